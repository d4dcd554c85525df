package models

import "time"

// Session is one refresh token family. RefreshToken holds a fingerprint, never the token itself.
type Session struct {
	BaseModel

	UserID       string     `gorm:"type:uuid;not null;index" json:"user_id"`
	User         *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	RefreshToken string     `gorm:"uniqueIndex;not null" json:"-"`
	IPAddress    string     `json:"ip_address"`
	UserAgent    string     `json:"user_agent"`
	ExpiresAt    time.Time  `gorm:"index" json:"expires_at"`
	LastUsedAt   time.Time  `json:"last_used_at"`
	RevokedAt    *time.Time `json:"revoked_at"`
}

func (s *Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// Remaining is how long the session stays refreshable after now; zero once inactive.
func (s *Session) Remaining(now time.Time) time.Duration {
	if !s.Active(now) {
		return 0
	}
	return s.ExpiresAt.Sub(now)
}
