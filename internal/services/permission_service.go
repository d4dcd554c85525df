package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/hrconsole/internal/models"
	"github.com/charlesng35/hrconsole/internal/permissions"
	apperrors "github.com/charlesng35/hrconsole/pkg/errors"
)

var (
	ErrRoleNotFound        = apperrors.New("ROLE_NOT_FOUND", "Role not found", http.StatusNotFound)
	ErrSystemRoleImmutable = apperrors.New("ROLE_IMMUTABLE", "System roles cannot be modified", http.StatusBadRequest)
	ErrRoleExists          = apperrors.New("ROLE_EXISTS", "Role name already exists", http.StatusConflict)
)

// PermissionService owns roles and the permission sets they carry. System roles keep their name and
// permissions and cannot be deleted; their description and default flag stay editable.
type PermissionService struct {
	db      *gorm.DB
	audit   *AuditService
	catalog *CatalogCache
	checker *permissions.Checker
}

func NewPermissionService(db *gorm.DB, audit *AuditService, catalog *CatalogCache) (*PermissionService, error) {
	if db == nil {
		return nil, errors.New("permission service: db is required")
	}
	checker, err := permissions.NewChecker(db)
	if err != nil {
		return nil, err
	}
	return &PermissionService{db: db, audit: audit, catalog: catalog, checker: checker}, nil
}

type CreateRoleInput struct {
	Name          string
	Description   string
	IsDefault     bool
	IsSystem      bool
	PermissionIDs []string
}

// UpdateRoleInput leaves nil fields untouched.
type UpdateRoleInput struct {
	Name        *string
	Description *string
	IsDefault   *bool
}

type PermissionGroup struct {
	Module      string              `json:"module"`
	Permissions []models.Permission `json:"permissions"`
}

func roleName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", apperrors.NewBadRequest("role name is required")
	}
	return name, nil
}

// CreateRole stores a role. Its permissions are expanded with their dependencies.
func (s *PermissionService) CreateRole(ctx context.Context, input CreateRoleInput) (*models.Role, error) {
	ctx = ensureContext(ctx)

	name, err := roleName(input.Name)
	if err != nil {
		return nil, err
	}
	applied, err := expandWithDependencies(input.PermissionIDs)
	if err != nil {
		return nil, err
	}

	role := &models.Role{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		IsDefault:   input.IsDefault,
		IsSystem:    input.IsSystem,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if role.IsDefault {
			if err := clearDefaultRole(tx); err != nil {
				return err
			}
		}
		if err := tx.Create(role).Error; err != nil {
			return err
		}
		return replaceRolePermissions(tx, role, applied)
	})
	if err != nil {
		return nil, writeFailed("permission service: create role", err, ErrRoleExists)
	}

	s.written(ctx, "role.create", role.ID, map[string]any{
		"name":           role.Name,
		"is_default":     role.IsDefault,
		"is_system":      role.IsSystem,
		"permission_ids": applied,
	})
	return s.GetRole(ctx, role.ID)
}

func (s *PermissionService) UpdateRole(ctx context.Context, roleID uint, input UpdateRoleInput) (*models.Role, error) {
	ctx = ensureContext(ctx)

	var changes map[string]any
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, err := loadRole(tx, roleID)
		if err != nil {
			return err
		}
		changes, err = roleChanges(role, input)
		if err != nil || len(changes) == 0 {
			return err
		}
		if changes["is_default"] == true {
			if err := clearDefaultRole(tx); err != nil {
				return err
			}
		}
		return tx.Model(role).Updates(changes).Error
	})
	if err != nil {
		return nil, writeFailed("permission service: update role", err, ErrRoleExists)
	}

	if len(changes) > 0 {
		s.written(ctx, "role.update", roleID, changes)
	}
	return s.GetRole(ctx, roleID)
}

// roleChanges diffs input against role. Renaming a system role is refused.
func roleChanges(role *models.Role, input UpdateRoleInput) (map[string]any, error) {
	changes := map[string]any{}
	if input.Name != nil {
		name, err := roleName(*input.Name)
		if err != nil {
			return nil, err
		}
		if name != role.Name {
			if role.IsSystem {
				return nil, ErrSystemRoleImmutable
			}
			changes["name"] = name
		}
	}
	if input.Description != nil {
		if desc := strings.TrimSpace(*input.Description); desc != role.Description {
			changes["description"] = desc
		}
	}
	if input.IsDefault != nil && *input.IsDefault != role.IsDefault {
		changes["is_default"] = *input.IsDefault
	}
	return changes, nil
}

// DeleteRole removes a non-system role along with its user, permission and menu links.
func (s *PermissionService) DeleteRole(ctx context.Context, roleID uint) error {
	ctx = ensureContext(ctx)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, err := loadMutableRole(tx, roleID)
		if err != nil {
			return err
		}
		for _, assoc := range []string{"Permissions", "Users", "Menus"} {
			if err := tx.Model(role).Association(assoc).Clear(); err != nil {
				return fmt.Errorf("clear role %s: %w", strings.ToLower(assoc), err)
			}
		}
		return tx.Delete(role).Error
	})
	if err != nil {
		return writeFailed("permission service: delete role", err, nil)
	}

	s.written(ctx, "role.delete", roleID, nil)
	return nil
}

// SetRolePermissions replaces the role's permissions with ids plus their dependencies and returns
// the stored set.
func (s *PermissionService) SetRolePermissions(ctx context.Context, roleID uint, ids []string) ([]string, error) {
	ctx = ensureContext(ctx)

	applied, err := expandWithDependencies(ids)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		role, err := loadMutableRole(tx, roleID)
		if err != nil {
			return err
		}
		return replaceRolePermissions(tx, role, applied)
	})
	if err != nil {
		return nil, writeFailed("permission service: set role permissions", err, nil)
	}

	s.written(ctx, "role.set_permissions", roleID, map[string]any{"permission_ids": applied})
	return applied, nil
}

func (s *PermissionService) GetRole(ctx context.Context, roleID uint) (*models.Role, error) {
	var role models.Role
	err := s.db.WithContext(ensureContext(ctx)).Preload("Permissions").Preload("Menus").First(&role, roleID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrRoleNotFound
	case err != nil:
		return nil, fmt.Errorf("permission service: get role: %w", err)
	}
	return &role, nil
}

// ListRoles returns every role by id with permissions and menus, through the catalogue cache.
func (s *PermissionService) ListRoles(ctx context.Context) ([]models.Role, error) {
	return cachedCatalog(ensureContext(ctx), s.catalog, CatalogRoles, func(ctx context.Context) ([]models.Role, error) {
		var roles []models.Role
		if err := s.db.WithContext(ctx).Preload("Permissions").Preload("Menus").Order("id").Find(&roles).Error; err != nil {
			return nil, fmt.Errorf("permission service: list roles: %w", err)
		}
		return roles, nil
	})
}

// ListPermissions returns the stored catalogue by module then id, through the catalogue cache.
func (s *PermissionService) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	return cachedCatalog(ensureContext(ctx), s.catalog, CatalogPermissions, func(ctx context.Context) ([]models.Permission, error) {
		var perms []models.Permission
		if err := s.db.WithContext(ctx).Order("module, id").Find(&perms).Error; err != nil {
			return nil, fmt.Errorf("permission service: list permissions: %w", err)
		}
		return perms, nil
	})
}

// ListUserPermissions is the effective permission set of a user, dependencies and implications
// included.
func (s *PermissionService) ListUserPermissions(ctx context.Context, userID string) ([]string, error) {
	return s.checker.GetUserPermissions(ensureContext(ctx), userID)
}

// GroupPermissionsByModule sorts groups by module and keeps the input order inside each group.
func GroupPermissionsByModule(perms []models.Permission) []PermissionGroup {
	var groups []PermissionGroup
	for _, perm := range perms {
		i := slices.IndexFunc(groups, func(g PermissionGroup) bool { return g.Module == perm.Module })
		if i < 0 {
			i = len(groups)
			groups = append(groups, PermissionGroup{Module: perm.Module})
		}
		groups[i].Permissions = append(groups[i].Permissions, perm)
	}
	slices.SortStableFunc(groups, func(a, b PermissionGroup) int { return cmp.Compare(a.Module, b.Module) })
	return groups
}

// written invalidates cached catalogues and audits a successful role write.
func (s *PermissionService) written(ctx context.Context, action string, roleID uint, metadata map[string]any) {
	s.catalog.InvalidateAll(ctx)
	recordAudit(s.audit, ctx, AuditEntry{
		Action:   action,
		Resource: roleResource(roleID),
		Result:   "success",
		Metadata: metadata,
	})
}

func loadRole(tx *gorm.DB, roleID uint) (*models.Role, error) {
	var role models.Role
	err := tx.First(&role, roleID).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrRoleNotFound
	case err != nil:
		return nil, fmt.Errorf("load role: %w", err)
	}
	return &role, nil
}

func loadMutableRole(tx *gorm.DB, roleID uint) (*models.Role, error) {
	role, err := loadRole(tx, roleID)
	if err == nil && role.IsSystem {
		return nil, ErrSystemRoleImmutable
	}
	return role, err
}

func replaceRolePermissions(tx *gorm.DB, role *models.Role, ids []string) error {
	assoc := tx.Model(role).Association("Permissions")
	if len(ids) == 0 {
		return assoc.Clear()
	}
	var perms []models.Permission
	if err := tx.Where("id IN ?", ids).Find(&perms).Error; err != nil {
		return fmt.Errorf("load permissions: %w", err)
	}
	if len(perms) != len(ids) {
		return fmt.Errorf("%d of %d permissions are not synced to the database", len(ids)-len(perms), len(ids))
	}
	if err := assoc.Replace(perms); err != nil {
		return fmt.Errorf("replace permissions: %w", err)
	}
	return nil
}

func clearDefaultRole(tx *gorm.DB) error {
	return tx.Model(&models.Role{}).Where("is_default = ?", true).Update("is_default", false).Error
}

// expandWithDependencies adds every transitive dependency to ids. Unknown ids are a bad request.
func expandWithDependencies(ids []string) ([]string, error) {
	applied, err := permissions.Closure(normaliseIDs(ids))
	if err != nil {
		return nil, apperrors.NewBadRequest(err.Error())
	}
	return applied, nil
}

func roleResource(id uint) string {
	return fmt.Sprintf("role:%d", id)
}
