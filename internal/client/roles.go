package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Role is a role with the ids of its permissions and menus.
type Role struct {
	ID            uint     `json:"id"`
	Name          string   `json:"role_name"`
	Description   string   `json:"description"`
	IsDefault     bool     `json:"is_default"`
	IsSystem      bool     `json:"is_system"`
	PermissionIDs []string `json:"permission_ids"`
	MenuIDs       []uint   `json:"menu_ids"`
}

// Permission is a catalogue entry.
type Permission struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Module      string `json:"module"`
	Description string `json:"description"`
}

// RoleInput is the body of role create.
type RoleInput struct {
	Name          string   `json:"role_name"`
	Description   string   `json:"description"`
	IsDefault     bool     `json:"is_default"`
	PermissionIDs []string `json:"permission_ids,omitempty"`
}

func (c *Client) Roles(ctx context.Context) ([]Role, error) {
	var roles []Role
	if err := c.do(ctx, call{method: http.MethodGet, path: "/roles"}, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// Permissions fetches the flat permission catalogue.
func (c *Client) Permissions(ctx context.Context) ([]Permission, error) {
	var perms []Permission
	if err := c.do(ctx, call{method: http.MethodGet, path: "/roles/permissions"}, &perms); err != nil {
		return nil, err
	}
	return perms, nil
}

// PermissionGroups fetches the catalogue grouped by module.
func (c *Client) PermissionGroups(ctx context.Context) (map[string][]Permission, error) {
	var groups []struct {
		Module      string       `json:"module"`
		Permissions []Permission `json:"permissions"`
	}
	query := url.Values{"grouped": []string{"true"}}
	if err := c.do(ctx, call{method: http.MethodGet, path: "/roles/permissions", query: query}, &groups); err != nil {
		return nil, err
	}

	out := make(map[string][]Permission, len(groups))
	for _, group := range groups {
		out[group.Module] = group.Permissions
	}
	return out, nil
}

func (c *Client) CreateRole(ctx context.Context, input RoleInput) (*Role, error) {
	var role Role
	if err := c.do(ctx, call{method: http.MethodPost, path: "/roles", body: input}, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

func (c *Client) DeleteRole(ctx context.Context, id uint) error {
	return c.do(ctx, call{method: http.MethodDelete, path: rolePath(id)}, nil)
}

// SetRolePermissions replaces the role's permissions and returns the granted set, dependencies included.
func (c *Client) SetRolePermissions(ctx context.Context, id uint, permissionIDs []string) ([]string, error) {
	if permissionIDs == nil {
		permissionIDs = []string{}
	}
	var result struct {
		PermissionIDs []string `json:"permission_ids"`
	}
	err := c.do(ctx, call{
		method: http.MethodPut,
		path:   rolePath(id) + "/permissions",
		body:   map[string][]string{"permission_ids": permissionIDs},
	}, &result)
	if err != nil {
		return nil, err
	}
	return result.PermissionIDs, nil
}

func rolePath(id uint) string {
	return "/roles/" + strconv.FormatUint(uint64(id), 10)
}
