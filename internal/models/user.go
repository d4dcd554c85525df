package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// User is a console account. Root accounts bypass permission checks and the active flag.
type User struct {
	BaseModel

	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	IsRoot   bool `json:"is_root"`
	IsActive bool `json:"is_active"`

	Roles    []Role    `gorm:"many2many:user_roles;" json:"roles,omitempty"`
	Sessions []Session `gorm:"foreignKey:UserID" json:"-"`

	LastLoginAt *time.Time `json:"last_login_at"`
	LastLoginIP string     `json:"last_login_ip"`

	FailedAttempts int        `gorm:"not null;default:0" json:"-"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`

	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) RoleIDs() []uint { return pluck(u.Roles, roleID) }

// DisplayName is "First Last" when either part is set, else the username.
func (u *User) DisplayName() string {
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return u.Username
}

// Locked reports whether a lockout is in force at now.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}
