package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/charlesng35/hrconsole/internal/menutree"
)

// MenuQuery selects the relations and filter applied by Menus and MenuTree.
type MenuQuery struct {
	WithRoles       bool
	WithPermissions bool
	Search          string
	IncludeInactive bool
}

// PermissionRef is a permission as embedded in menu payloads.
type PermissionRef struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Module string `json:"module"`
}

// Menu is a flat menu record with its optional role and permission details.
type Menu struct {
	menutree.Record
	Roles       []RoleRef       `json:"roles,omitempty"`
	Permissions []PermissionRef `json:"permissions,omitempty"`
}

// MenuInput is the body of create and update. Nil RoleIDs or PermissionIDs leave the grants untouched on
// update; empty non-nil slices clear them.
type MenuInput struct {
	Name          string   `json:"name"`
	Label         string   `json:"label"`
	URL           string   `json:"url,omitempty"`
	Icon          string   `json:"icon,omitempty"`
	ParentID      *uint    `json:"parent_id"`
	MenuOrder     int      `json:"menu_order"`
	IsActive      *bool    `json:"is_active,omitempty"`
	RoleIDs       []uint   `json:"role_ids"`
	PermissionIDs []string `json:"permission_ids"`
}

// DeleteResult lists what a menu delete removed and moved.
type DeleteResult struct {
	Policy  string `json:"policy"`
	Deleted []uint `json:"deleted"`
	Moved   []uint `json:"moved"`
}

// RoleAccess is the outcome of a single role toggle.
type RoleAccess struct {
	RoleID  uint `json:"role_id"`
	MenuID  uint `json:"menu_id"`
	Granted bool `json:"granted"`
	Changed bool `json:"changed"`
}

// Menus fetches the flat menu list.
func (c *Client) Menus(ctx context.Context, q MenuQuery) ([]Menu, error) {
	query := url.Values{}
	if q.WithRoles {
		query.Set("with_roles", "true")
	}
	if q.WithPermissions {
		query.Set("with_permissions", "true")
	}

	var menus []Menu
	if err := c.do(ctx, call{method: http.MethodGet, path: "/menus", query: query}, &menus); err != nil {
		return nil, err
	}
	return menus, nil
}

// MenuTree fetches the flat list with its grants and builds and filters the forest locally.
func (c *Client) MenuTree(ctx context.Context, q MenuQuery) (menutree.Forest, menutree.Report, error) {
	q.WithRoles = true
	q.WithPermissions = true
	menus, err := c.Menus(ctx, q)
	if err != nil {
		return nil, menutree.Report{}, err
	}

	records := make([]menutree.Record, 0, len(menus))
	for _, menu := range menus {
		records = append(records, menu.Record)
	}
	forest, report := menutree.BuildWithReport(records)
	return menutree.Filter(forest, q.Search, q.IncludeInactive), report, nil
}

// VisibleMenus returns the forest the signed in user may open.
func (c *Client) VisibleMenus(ctx context.Context) (menutree.Forest, error) {
	var forest menutree.Forest
	if err := c.do(ctx, call{method: http.MethodGet, path: "/menus/visible"}, &forest); err != nil {
		return nil, err
	}
	return forest, nil
}

// Menu fetches one menu with its roles and permissions.
func (c *Client) Menu(ctx context.Context, id uint) (*Menu, error) {
	var menu Menu
	if err := c.do(ctx, call{method: http.MethodGet, path: menuPath(id)}, &menu); err != nil {
		return nil, err
	}
	return &menu, nil
}

// Parents lists the menus eligible as parent of menuID (0 for a new menu).
func (c *Client) Parents(ctx context.Context, menuID uint) ([]*menutree.Node, error) {
	query := url.Values{}
	if menuID != 0 {
		query.Set("exclude", strconv.FormatUint(uint64(menuID), 10))
	}
	var parents []*menutree.Node
	if err := c.do(ctx, call{method: http.MethodGet, path: "/menus/parents", query: query}, &parents); err != nil {
		return nil, err
	}
	return parents, nil
}

func (c *Client) CreateMenu(ctx context.Context, input MenuInput) (*Menu, error) {
	var menu Menu
	if err := c.do(ctx, call{method: http.MethodPost, path: "/menus", body: input}, &menu); err != nil {
		return nil, err
	}
	return &menu, nil
}

func (c *Client) UpdateMenu(ctx context.Context, id uint, input MenuInput) (*Menu, error) {
	var menu Menu
	if err := c.do(ctx, call{method: http.MethodPut, path: menuPath(id), body: input}, &menu); err != nil {
		return nil, err
	}
	return &menu, nil
}

// DeleteMenu removes a menu. An empty policy uses the server default.
func (c *Client) DeleteMenu(ctx context.Context, id uint, policy string) (*DeleteResult, error) {
	query := url.Values{}
	if policy != "" {
		query.Set("policy", policy)
	}
	var result DeleteResult
	if err := c.do(ctx, call{method: http.MethodDelete, path: menuPath(id), query: query}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SaveMenuAccess replaces the full role and permission sets of a menu.
func (c *Client) SaveMenuAccess(ctx context.Context, menuID uint, roleIDs []uint, permissionIDs []string) (*Menu, error) {
	if roleIDs == nil {
		roleIDs = []uint{}
	}
	if permissionIDs == nil {
		permissionIDs = []string{}
	}
	body := map[string]any{"role_ids": roleIDs, "permission_ids": permissionIDs}

	var menu Menu
	if err := c.do(ctx, call{method: http.MethodPut, path: menuPath(menuID) + "/access", body: body}, &menu); err != nil {
		return nil, err
	}
	return &menu, nil
}

// SetRoleMenuAccess grants or revokes one role's access to one menu.
func (c *Client) SetRoleMenuAccess(ctx context.Context, roleID, menuID uint, granted bool) (*RoleAccess, error) {
	var result RoleAccess
	err := c.do(ctx, call{
		method: http.MethodPut,
		path:   fmt.Sprintf("/menus/roles/%d/menus/%d/access", roleID, menuID),
		body:   map[string]bool{"granted": granted},
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func menuPath(id uint) string {
	return "/menus/" + strconv.FormatUint(uint64(id), 10)
}
