package models

import "time"

// Permission is the persisted copy of a registered permission. ID is the permission code, e.g. "menu.manage".
type Permission struct {
	ID          string    `gorm:"primaryKey;size:128" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Module      string    `gorm:"not null;index" json:"module"`
	Description string    `json:"description"`
	DependsOn   string    `gorm:"type:json" json:"depends_on"`
	Implies     string    `gorm:"type:json" json:"implies"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Roles []Role `gorm:"many2many:role_permissions;" json:"roles,omitempty"`
	Menus []Menu `gorm:"many2many:menu_permissions;" json:"menus,omitempty"`
}
