package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/hrconsole/internal/cache"
	"github.com/charlesng35/hrconsole/internal/models"
	"github.com/charlesng35/hrconsole/pkg/crypto"
	"github.com/charlesng35/hrconsole/pkg/logger"
	"github.com/charlesng35/hrconsole/pkg/metrics"
)

const (
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
	defaultRefreshBytes    = 48
	sessionCacheNamespace  = "auth:sessions"
)

// SessionConfig tunes a SessionService. Cache, when set, holds sessions by refresh fingerprint in
// front of the sessions table.
type SessionConfig struct {
	RefreshTokenTTL time.Duration
	RefreshLength   int
	Clock           func() time.Time
	Cache           cache.Store
}

// ClientInfo is recorded on the session row.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// TokenPair is what login and refresh hand back to clients.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

var (
	ErrSessionNotFound     = errors.New("session: not found")
	ErrSessionRevoked      = errors.New("session: revoked")
	ErrSessionExpired      = errors.New("session: expired")
	ErrSessionInvalidToken = errors.New("session: invalid token")
	ErrUserInactive        = errors.New("session: user inactive")

	errNoIssuer = errors.New("session service: no jwt service configured")
)

// IsSessionError reports whether err means the presented refresh token can no longer be used.
func IsSessionError(err error) bool {
	for _, target := range []error{ErrSessionNotFound, ErrSessionRevoked, ErrSessionExpired, ErrSessionInvalidToken, ErrUserInactive} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// SessionService starts, rotates and revokes refresh token sessions. Only a fingerprint of each
// refresh token is stored. Without a JWTService it can still revoke and purge but not issue tokens.
type SessionService struct {
	db         *gorm.DB
	jwt        *JWTService
	refreshTTL time.Duration
	tokenBytes int
	now        func() time.Time
	cache      *cache.Typed[models.Session]
	log        *zap.Logger
}

func NewSessionService(db *gorm.DB, jwt *JWTService, cfg SessionConfig) (*SessionService, error) {
	if db == nil {
		return nil, errors.New("session service: db is required")
	}
	s := &SessionService{
		db:         db,
		jwt:        jwt,
		refreshTTL: cfg.RefreshTokenTTL,
		tokenBytes: cfg.RefreshLength,
		now:        cfg.Clock,
		cache:      cache.NewTyped[models.Session](cfg.Cache, sessionCacheNamespace),
		log:        logger.WithModule("sessions"),
	}
	if s.refreshTTL <= 0 {
		s.refreshTTL = DefaultRefreshTokenTTL
	}
	if s.tokenBytes <= 0 {
		s.tokenBytes = defaultRefreshBytes
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// live narrows a query to sessions that have not been revoked.
func live(db *gorm.DB) *gorm.DB {
	return db.Where("revoked_at IS NULL")
}

// Start opens a session for user and issues its first token pair.
func (s *SessionService) Start(ctx context.Context, user *models.User, client ClientInfo) (TokenPair, *models.Session, error) {
	if user == nil || strings.TrimSpace(user.ID) == "" {
		return TokenPair{}, nil, errors.New("session service: user is required")
	}
	if s.jwt == nil {
		return TokenPair{}, nil, errNoIssuer
	}
	refresh, err := crypto.GenerateToken(s.tokenBytes)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("session service: generate refresh token: %w", err)
	}

	now := s.now()
	session := &models.Session{
		UserID:       user.ID,
		RefreshToken: crypto.Fingerprint(refresh),
		IPAddress:    strings.TrimSpace(client.IPAddress),
		UserAgent:    strings.TrimSpace(client.UserAgent),
		ExpiresAt:    now.Add(s.refreshTTL),
		LastUsedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return TokenPair{}, nil, fmt.Errorf("session service: create session: %w", err)
	}
	metrics.ActiveSessions.Inc()

	pair, err := s.pair(user, session, refresh)
	if err != nil {
		return TokenPair{}, nil, err
	}
	s.remember(ctx, session)
	return pair, session, nil
}

// Rotate exchanges a refresh token for a new pair. The presented token stops working at once.
func (s *SessionService) Rotate(ctx context.Context, refreshToken string) (TokenPair, *models.Session, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return TokenPair{}, nil, ErrSessionInvalidToken
	}
	if s.jwt == nil {
		return TokenPair{}, nil, errNoIssuer
	}
	old := crypto.Fingerprint(refreshToken)

	session, err := s.byFingerprint(ctx, old)
	if err != nil {
		return TokenPair{}, nil, err
	}
	now := s.now()
	switch {
	case session.RevokedAt != nil:
		return TokenPair{}, nil, ErrSessionRevoked
	case !now.Before(session.ExpiresAt):
		return TokenPair{}, nil, ErrSessionExpired
	}

	var user models.User
	err = s.db.WithContext(ctx).Take(&user, "id = ?", session.UserID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return TokenPair{}, nil, ErrSessionNotFound
	case err != nil:
		return TokenPair{}, nil, fmt.Errorf("session service: load user: %w", err)
	case !user.IsActive && !user.IsRoot:
		return TokenPair{}, nil, ErrUserInactive
	}

	refresh, err := crypto.GenerateToken(s.tokenBytes)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("session service: generate refresh token: %w", err)
	}
	next := crypto.Fingerprint(refresh)
	expires := now.Add(s.refreshTTL)

	// the fingerprint guard makes a concurrent rotation or revoke lose cleanly
	result := live(s.db.WithContext(ctx).Model(&models.Session{})).
		Where("id = ? AND refresh_token = ?", session.ID, old).
		Updates(map[string]any{"refresh_token": next, "expires_at": expires, "last_used_at": now})
	s.forget(ctx, old)
	if result.Error != nil {
		return TokenPair{}, nil, fmt.Errorf("session service: update session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return TokenPair{}, nil, ErrSessionNotFound
	}
	session.RefreshToken, session.ExpiresAt, session.LastUsedAt = next, expires, now

	pair, err := s.pair(&user, session, refresh)
	if err != nil {
		return TokenPair{}, nil, err
	}
	s.remember(ctx, session)
	return pair, session, nil
}

// Revoke ends one session. Revoking an unknown or already revoked session is ErrSessionNotFound.
func (s *SessionService) Revoke(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrSessionInvalidToken
	}
	n, err := s.revokeWhere(ctx, "id = ?", sessionID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// RevokeUser ends every live session of a user and returns how many were revoked.
func (s *SessionService) RevokeUser(ctx context.Context, userID string) (int64, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, ErrSessionInvalidToken
	}
	return s.revokeWhere(ctx, "user_id = ?", userID)
}

func (s *SessionService) revokeWhere(ctx context.Context, query string, args ...any) (int64, error) {
	var fingerprints []string
	db := s.db.WithContext(ctx)
	if err := live(db.Model(&models.Session{})).Where(query, args...).Pluck("refresh_token", &fingerprints).Error; err != nil {
		return 0, fmt.Errorf("session service: load sessions: %w", err)
	}
	if len(fingerprints) == 0 {
		return 0, nil
	}
	result := live(db.Model(&models.Session{})).Where(query, args...).Update("revoked_at", s.now())
	if result.Error != nil {
		return 0, fmt.Errorf("session service: revoke: %w", result.Error)
	}
	s.forget(ctx, fingerprints...)
	metrics.ActiveSessions.Sub(float64(result.RowsAffected))
	return result.RowsAffected, nil
}

// Active reports whether the session behind an access token may still be used.
func (s *SessionService) Active(ctx context.Context, sessionID string) (bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return false, nil
	}
	var session models.Session
	err := s.db.WithContext(ctx).Select("id", "expires_at", "revoked_at").Take(&session, "id = ?", sessionID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("session service: load session: %w", err)
	}
	return session.Active(s.now()), nil
}

// Purge deletes expired and revoked sessions and returns the number removed.
func (s *SessionService) Purge(ctx context.Context) (int64, error) {
	now := s.now()
	db := s.db.WithContext(ctx)
	dead := func(tx *gorm.DB) *gorm.DB {
		return tx.Where("expires_at < ? OR revoked_at IS NOT NULL", now)
	}

	var lapsed int64
	if err := live(db.Model(&models.Session{})).Where("expires_at < ?", now).Count(&lapsed).Error; err != nil {
		return 0, fmt.Errorf("session service: count expired sessions: %w", err)
	}
	var fingerprints []string
	if s.cache != nil {
		if err := db.Model(&models.Session{}).Scopes(dead).Pluck("refresh_token", &fingerprints).Error; err != nil {
			s.log.Warn("could not list purged sessions for cache eviction", zap.Error(err))
		}
	}

	result := db.Scopes(dead).Delete(&models.Session{})
	if result.Error != nil {
		return 0, fmt.Errorf("session service: purge sessions: %w", result.Error)
	}
	s.forget(ctx, fingerprints...)
	metrics.ActiveSessions.Sub(float64(lapsed))
	return result.RowsAffected, nil
}

func (s *SessionService) pair(user *models.User, session *models.Session, refresh string) (TokenPair, error) {
	access, err := s.jwt.Issue(TokenSubject{
		UserID:    user.ID,
		SessionID: session.ID,
		Username:  user.Username,
		Root:      user.IsRoot,
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("session service: issue access token: %w", err)
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.jwt.AccessTokenTTL() / time.Second),
	}, nil
}

func (s *SessionService) byFingerprint(ctx context.Context, fingerprint string) (*models.Session, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.Load(ctx, fingerprint)
		if err != nil {
			s.log.Warn("session cache read failed", zap.Error(err))
		}
		if ok {
			cached.RefreshToken = fingerprint
			return &cached, nil
		}
	}

	var session models.Session
	err := s.db.WithContext(ctx).Take(&session, "refresh_token = ?", fingerprint).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrSessionNotFound
	case err != nil:
		return nil, fmt.Errorf("session service: find session: %w", err)
	}
	s.remember(ctx, &session)
	return &session, nil
}

func (s *SessionService) remember(ctx context.Context, session *models.Session) {
	ttl := session.Remaining(s.now())
	if s.cache == nil || ttl == 0 {
		return
	}
	if err := s.cache.Save(ctx, session.RefreshToken, *session, ttl); err != nil {
		s.log.Warn("session cache write failed", zap.Error(err))
	}
}

func (s *SessionService) forget(ctx context.Context, fingerprints ...string) {
	if s.cache == nil || len(fingerprints) == 0 {
		return
	}
	if err := s.cache.Forget(ctx, fingerprints...); err != nil {
		s.log.Warn("session cache delete failed", zap.Error(err))
	}
}
