package models

// Role groups permissions and menu grants. System roles cannot be renamed or deleted.
type Role struct {
	SerialModel

	Name        string `gorm:"uniqueIndex;size:128;not null" json:"role_name"`
	Description string `json:"description"`
	IsDefault   bool   `gorm:"index" json:"is_default"`
	IsSystem    bool   `json:"is_system"`

	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions,omitempty"`
	Menus       []Menu       `gorm:"many2many:menu_roles;" json:"menus,omitempty"`
	Users       []User       `gorm:"many2many:user_roles;" json:"users,omitempty"`
}

func (r *Role) PermissionIDs() []string { return pluck(r.Permissions, permissionID) }

func (r *Role) MenuIDs() []uint { return pluck(r.Menus, menuID) }
