package auth

import (
	"cmp"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultAccessTokenTTL applies when the configuration leaves the lifetime unset.
	DefaultAccessTokenTTL = 15 * time.Minute
	// DefaultIssuer is stamped on tokens when no issuer is configured.
	DefaultIssuer = "hrconsole"

	tokenAudience = "hrconsole-api"
	clockSkew     = 5 * time.Second
)

var (
	errNoSecret  = errors.New("jwt: secret must be provided")
	errNoSubject = errors.New("jwt: user id is required")
)

type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
	Clock          func() time.Time
}

// Claims are the application claims carried by an access token next to the registered ones.
type Claims struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid,omitempty"`
	Username  string `json:"usr,omitempty"`
	Root      bool   `json:"root,omitempty"`
	jwt.RegisteredClaims
}

// TokenSubject identifies who an access token is issued to.
type TokenSubject struct {
	UserID    string
	SessionID string
	Username  string
	Root      bool
}

// JWTService signs and verifies HS256 access tokens bound to a session.
type JWTService struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

func NewJWTService(cfg JWTConfig) (*JWTService, error) {
	if cfg.Secret == "" {
		return nil, errNoSecret
	}
	svc := &JWTService{
		key:    []byte(cfg.Secret),
		issuer: cmp.Or(cfg.Issuer, DefaultIssuer),
		ttl:    cfg.AccessTokenTTL,
		now:    cfg.Clock,
	}
	if svc.ttl <= 0 {
		svc.ttl = DefaultAccessTokenTTL
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	svc.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(svc.now),
		jwt.WithIssuer(svc.issuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithLeeway(clockSkew),
		jwt.WithExpirationRequired(),
	)
	return svc, nil
}

func (s *JWTService) AccessTokenTTL() time.Duration {
	return s.ttl
}

// Issue signs a token for sub valid for the configured lifetime. The session id doubles as jti.
func (s *JWTService) Issue(sub TokenSubject) (string, error) {
	if sub.UserID == "" {
		return "", errNoSubject
	}

	issued := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UserID:    sub.UserID,
		SessionID: sub.SessionID,
		Username:  sub.Username,
		Root:      sub.Root,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sub.SessionID,
			Subject:   sub.UserID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(issued),
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(s.ttl)),
		},
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer, audience and validity window of raw and returns its claims.
func (s *JWTService) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, errors.New("jwt: token string is empty")
	}

	claims := new(Claims)
	_, err := s.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return s.key, nil })
	if err != nil {
		return nil, fmt.Errorf("jwt: parse token: %w", err)
	}
	if claims.UserID == "" || claims.UserID != claims.Subject {
		return nil, errors.New("jwt: subject does not match user id claim")
	}
	return claims, nil
}
