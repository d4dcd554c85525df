package permissions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/hrconsole/internal/models"
)

// Grant is the effective access of one user: role names plus permissions widened by Implies. Root
// users hold every registered permission; inactive users hold none.
type Grant struct {
	UserID string
	Root   bool
	Active bool
	Roles  []string

	perms map[string]struct{}
}

// NewGrant builds the grant of a non-root user from role names and directly assigned permissions.
func NewGrant(userID string, active bool, roles []string, perms ...string) (Grant, error) {
	expanded, err := withImplied(perms)
	if err != nil {
		return Grant{}, err
	}
	return Grant{UserID: userID, Active: active, Roles: roles, perms: expanded}, nil
}

// Has reports whether the grant covers id together with every permission id depends on.
func (g Grant) Has(id string) (bool, error) {
	if g.Root {
		return true, nil
	}
	if !g.Active {
		return false, nil
	}
	if _, ok := Get(id); !ok {
		return false, fmt.Errorf("%w %q", ErrUnknownPermission, id)
	}
	required, err := ResolveDependencies(id)
	if err != nil {
		return false, err
	}
	for _, dep := range append(required, id) {
		if _, ok := g.perms[dep]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// Permissions lists the granted ids in order.
func (g Grant) Permissions() []string {
	var ids []string
	switch {
	case g.Root:
		for id := range GetAll() {
			ids = append(ids, id)
		}
	case g.Active:
		for id := range g.perms {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if ids == nil {
		ids = []string{}
	}
	return ids
}

// Evaluator answers role and permission questions over the grant.
func (g Grant) Evaluator() Evaluator {
	roles := make([]Identifier, len(g.Roles))
	for i, name := range g.Roles {
		roles[i] = Identifier{Name: name}
	}
	return NewEvaluator(roles, Identifiers(g.Permissions()...))
}

// Checker computes grants from the users, roles and role permissions tables.
type Checker struct {
	db *gorm.DB
}

func NewChecker(db *gorm.DB) (*Checker, error) {
	if db == nil {
		return nil, errors.New("permission checker: db is required")
	}
	return &Checker{db: db}, nil
}

// Grant loads userID with its roles and computes the effective grant.
func (c *Checker) Grant(ctx context.Context, userID string) (Grant, *models.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Grant{}, nil, errors.New("permission checker: user id is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var user models.User
	if err := c.db.WithContext(ctx).Preload("Roles.Permissions").First(&user, "id = ?", userID).Error; err != nil {
		return Grant{}, nil, fmt.Errorf("permission checker: load user: %w", err)
	}

	var roles, direct []string
	for _, role := range user.Roles {
		roles = append(roles, role.Name)
		direct = append(direct, role.PermissionIDs()...)
	}
	grant, err := NewGrant(user.ID, user.IsActive, roles, direct...)
	if err != nil {
		return Grant{}, nil, err
	}
	grant.Root = user.IsRoot
	return grant, &user, nil
}

// Check reports whether userID holds permissionID and its dependencies.
func (c *Checker) Check(ctx context.Context, userID, permissionID string) (bool, error) {
	permissionID = strings.TrimSpace(permissionID)
	if permissionID == "" {
		return false, errors.New("permission checker: permission id is required")
	}
	grant, _, err := c.Grant(ctx, userID)
	if err != nil {
		return false, err
	}
	return grant.Has(permissionID)
}

// GetUserPermissions returns the sorted effective permission ids of userID.
func (c *Checker) GetUserPermissions(ctx context.Context, userID string) ([]string, error) {
	grant, _, err := c.Grant(ctx, userID)
	if err != nil {
		return nil, err
	}
	return grant.Permissions(), nil
}

// Evaluator is Grant followed by Grant.Evaluator.
func (c *Checker) Evaluator(ctx context.Context, userID string) (Evaluator, *models.User, error) {
	grant, user, err := c.Grant(ctx, userID)
	if err != nil {
		return Evaluator{}, nil, err
	}
	return grant.Evaluator(), user, nil
}

// withImplied widens ids with everything they imply, transitively. Unknown ids are an error.
func withImplied(ids []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(ids))
	queue := append([]string(nil), ids...)
	for len(queue) > 0 {
		id := strings.TrimSpace(queue[0])
		queue = queue[1:]
		if _, seen := out[id]; seen || id == "" {
			continue
		}
		def, ok := Get(id)
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownPermission, id)
		}
		out[id] = struct{}{}
		queue = append(queue, def.Implies...)
	}
	return out, nil
}
