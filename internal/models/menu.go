package models

import "gorm.io/datatypes"

// Menu is a navigation entry of the console. ParentID is a plain column without a foreign key so that
// delete policies can detach or move children explicitly.
type Menu struct {
	SerialModel

	Name      string            `gorm:"uniqueIndex;size:128;not null" json:"name"`
	Label     string            `gorm:"not null" json:"label"`
	URL       string            `json:"url"`
	Icon      string            `json:"icon"`
	ParentID  *uint             `gorm:"index" json:"parent_id"`
	MenuOrder int               `gorm:"column:menu_order;not null;default:0" json:"menu_order"`
	IsActive  bool              `gorm:"not null" json:"is_active"`
	Meta      datatypes.JSONMap `json:"meta,omitempty"`

	Roles       []Role       `gorm:"many2many:menu_roles;" json:"roles,omitempty"`
	Permissions []Permission `gorm:"many2many:menu_permissions;" json:"permissions,omitempty"`
}

// RoleIDs lists the ids of the preloaded roles.
func (m *Menu) RoleIDs() []uint { return pluck(m.Roles, roleID) }

// PermissionIDs lists the ids of the preloaded permissions.
func (m *Menu) PermissionIDs() []string { return pluck(m.Permissions, permissionID) }
