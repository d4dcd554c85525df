package forms

import (
	"slices"

	"github.com/charlesng35/hrconsole/internal/client"
)

// MenuValues is the menu edit form.
type MenuValues struct {
	Name          string   `json:"name" validate:"required,max=128"`
	Label         string   `json:"label" validate:"required,max=255"`
	URL           string   `json:"url" validate:"omitempty,max=512,startswith=/"`
	Icon          string   `json:"icon" validate:"max=64"`
	ParentID      *uint    `json:"parent_id"`
	MenuOrder     int      `json:"menu_order" validate:"gte=0"`
	IsActive      bool     `json:"is_active"`
	RoleIDs       []uint   `json:"role_ids"`
	PermissionIDs []string `json:"permission_ids"`
}

// NewMenuValues is the blank form of a new, active menu.
func NewMenuValues() MenuValues {
	return MenuValues{IsActive: true, RoleIDs: []uint{}, PermissionIDs: []string{}}
}

// MenuValuesFrom loads an existing menu into the form.
func MenuValuesFrom(menu client.Menu) MenuValues {
	values := MenuValues{
		Name:          menu.Name,
		Label:         menu.Label,
		URL:           menu.URL,
		Icon:          menu.Icon,
		MenuOrder:     menu.Order,
		IsActive:      menu.Active,
		RoleIDs:       slices.Clone(menu.RoleIDs),
		PermissionIDs: slices.Clone(menu.PermissionIDs),
	}
	if menu.ParentID != nil {
		parent := *menu.ParentID
		values.ParentID = &parent
	}
	if values.RoleIDs == nil {
		values.RoleIDs = []uint{}
	}
	if values.PermissionIDs == nil {
		values.PermissionIDs = []string{}
	}
	return values
}

// Input converts the form into the API body. Grants are always sent as complete sets.
func (v MenuValues) Input() client.MenuInput {
	active := v.IsActive
	return client.MenuInput{
		Name:          v.Name,
		Label:         v.Label,
		URL:           v.URL,
		Icon:          v.Icon,
		ParentID:      v.ParentID,
		MenuOrder:     v.MenuOrder,
		IsActive:      &active,
		RoleIDs:       nonNilUints(v.RoleIDs),
		PermissionIDs: nonNilStrings(v.PermissionIDs),
	}
}

// RoleValues is the role edit form.
type RoleValues struct {
	Name          string   `json:"role_name" validate:"required,max=128"`
	Description   string   `json:"description" validate:"max=512"`
	IsDefault     bool     `json:"is_default"`
	PermissionIDs []string `json:"permission_ids"`
}

// RoleValuesFrom loads an existing role into the form.
func RoleValuesFrom(role client.Role) RoleValues {
	return RoleValues{
		Name:          role.Name,
		Description:   role.Description,
		IsDefault:     role.IsDefault,
		PermissionIDs: nonNilStrings(slices.Clone(role.PermissionIDs)),
	}
}

func (v RoleValues) Input() client.RoleInput {
	return client.RoleInput{
		Name:          v.Name,
		Description:   v.Description,
		IsDefault:     v.IsDefault,
		PermissionIDs: nonNilStrings(v.PermissionIDs),
	}
}

// ToggleUint returns a new slice with id added when absent or removed when present.
func ToggleUint(ids []uint, id uint) []uint {
	return toggle(ids, id)
}

// ToggleString is ToggleUint for permission ids.
func ToggleString(ids []string, id string) []string {
	return toggle(ids, id)
}

// SetMember returns a new slice where id is present exactly when member is true. Adding a present id or
// removing an absent one returns an equal copy.
func SetMember[T comparable](ids []T, id T, member bool) []T {
	present := slices.Contains(ids, id)
	if present == member {
		return nonNil(slices.Clone(ids))
	}
	return toggle(ids, id)
}

func toggle[T comparable](ids []T, id T) []T {
	out := make([]T, 0, len(ids)+1)
	found := false
	for _, existing := range ids {
		if existing == id {
			found = true
			continue
		}
		out = append(out, existing)
	}
	if !found {
		out = append(out, id)
	}
	return out
}

func nonNil[T any](ids []T) []T {
	if ids == nil {
		return []T{}
	}
	return ids
}

func nonNilUints(ids []uint) []uint       { return nonNil(ids) }
func nonNilStrings(ids []string) []string { return nonNil(ids) }
