// Package providers authenticates console users against the local users table.
package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/hrconsole/internal/models"
	"github.com/charlesng35/hrconsole/pkg/crypto"
	"github.com/charlesng35/hrconsole/pkg/logger"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrAccountLocked      = errors.New("auth: account locked")
	ErrAccountDisabled    = errors.New("auth: account disabled")
)

const (
	defaultThreshold = 5
	defaultLockout   = 15 * time.Minute
)

type LocalConfig struct {
	LockoutThreshold int
	LockoutDuration  time.Duration
	Clock            func() time.Time
}

// AuthenticateInput is one sign-in attempt. Identifier is a username or an email address.
type AuthenticateInput struct {
	Identifier string
	Password   string
	IPAddress  string
}

// lockout counts consecutive failures and locks the account for a while once the threshold is hit.
type lockout struct {
	threshold int
	duration  time.Duration
}

// fail records one failure on user and returns the columns to persist. A lock that has already
// expired resets the count.
func (l lockout) fail(user *models.User, now time.Time) map[string]any {
	if user.LockedUntil != nil {
		user.FailedAttempts, user.LockedUntil = 0, nil
	}
	user.FailedAttempts++
	if user.FailedAttempts >= l.threshold {
		until := now.Add(l.duration)
		user.LockedUntil = &until
	}
	return map[string]any{"failed_attempts": user.FailedAttempts, "locked_until": user.LockedUntil}
}

type LocalProvider struct {
	db     *gorm.DB
	now    func() time.Time
	policy lockout
}

func NewLocalProvider(db *gorm.DB, cfg LocalConfig) (*LocalProvider, error) {
	if db == nil {
		return nil, errors.New("local provider: db is required")
	}
	p := &LocalProvider{db: db, now: cfg.Clock, policy: lockout{threshold: cfg.LockoutThreshold, duration: cfg.LockoutDuration}}
	if p.now == nil {
		p.now = time.Now
	}
	if p.policy.threshold <= 0 {
		p.policy.threshold = defaultThreshold
	}
	if p.policy.duration <= 0 {
		p.policy.duration = defaultLockout
	}
	return p, nil
}

// Authenticate checks the attempt and returns the user with roles loaded. Disabled accounts are
// refused unless they are root.
func (p *LocalProvider) Authenticate(ctx context.Context, in AuthenticateInput) (*models.User, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	db := p.db.WithContext(ctx)

	ident := strings.ToLower(strings.TrimSpace(in.Identifier))
	if ident == "" || in.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := p.lookup(db, ident)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		crypto.BurnVerify(in.Password)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	now := p.now()
	switch {
	case !user.IsActive && !user.IsRoot:
		return nil, ErrAccountDisabled
	case user.Locked(now):
		return nil, ErrAccountLocked
	}

	if !crypto.VerifyPassword(user.Password, in.Password) {
		if err := db.Model(user).Updates(p.policy.fail(user, now)).Error; err != nil {
			return nil, fmt.Errorf("local provider: record failure: %w", err)
		}
		if user.LockedUntil != nil {
			return nil, ErrAccountLocked
		}
		return nil, ErrInvalidCredentials
	}

	user.FailedAttempts, user.LockedUntil = 0, nil
	user.LastLoginAt, user.LastLoginIP = &now, strings.TrimSpace(in.IPAddress)
	updates := map[string]any{
		"failed_attempts": 0,
		"locked_until":    nil,
		"last_login_at":   now,
		"last_login_ip":   user.LastLoginIP,
	}
	if crypto.NeedsRehash(user.Password) {
		if hash, err := crypto.HashPassword(in.Password); err == nil {
			user.Password = hash
			updates["password"] = hash
		} else {
			logger.WithModule("auth").Warn("password rehash skipped", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	if err := db.Model(user).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("local provider: record login: %w", err)
	}
	return user, nil
}

func (p *LocalProvider) lookup(db *gorm.DB, ident string) (*models.User, error) {
	var user models.User
	err := db.Preload("Roles").
		Where("LOWER(username) = ? OR LOWER(email) = ?", ident, ident).
		Take(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("local provider: query user: %w", err)
	}
	return &user, nil
}
