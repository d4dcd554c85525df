package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/hrconsole/internal/access"
	"github.com/charlesng35/hrconsole/internal/menutree"
	"github.com/charlesng35/hrconsole/internal/models"
	apperrors "github.com/charlesng35/hrconsole/pkg/errors"
	"github.com/charlesng35/hrconsole/pkg/logger"
	"github.com/charlesng35/hrconsole/pkg/metrics"
)

var (
	ErrMenuNotFound       = apperrors.New("MENU_NOT_FOUND", "Menu not found", http.StatusNotFound)
	ErrMenuHasChildren    = apperrors.New("MENU_HAS_CHILDREN", "Menu has child menus", http.StatusConflict)
	ErrMenuExists         = apperrors.New("MENU_EXISTS", "Menu name already exists", http.StatusConflict)
	ErrMenuSelfParent     = apperrors.New("MENU_SELF_PARENT", "A menu cannot be its own parent", http.StatusBadRequest)
	ErrMenuParentNotFound = apperrors.New("MENU_PARENT_NOT_FOUND", "Parent menu not found", http.StatusBadRequest)
	ErrMenuCycle          = apperrors.New("MENU_CYCLE", "Parent menu is a descendant of this menu", http.StatusBadRequest)
	ErrMenuTooDeep        = apperrors.New("MENU_DEPTH_EXCEEDED", "Menu hierarchy is too deep", http.StatusBadRequest)
	ErrUnknownRole        = apperrors.New("ROLE_UNKNOWN", "One or more roles do not exist", http.StatusBadRequest)
	ErrUnknownPermission  = apperrors.New("PERMISSION_UNKNOWN", "One or more permissions do not exist", http.StatusBadRequest)
	ErrInvalidPolicy      = apperrors.New("MENU_DELETE_POLICY_INVALID", "Unknown delete policy", http.StatusBadRequest)
)

// DeletePolicy decides what happens to the children of a deleted menu.
type DeletePolicy string

const (
	// DeleteReject refuses to delete menus that still have children.
	DeleteReject DeletePolicy = "reject"
	// DeleteOrphan turns the children into roots.
	DeleteOrphan DeletePolicy = "orphan"
	// DeleteReassign moves the children to the deleted menu's parent.
	DeleteReassign DeletePolicy = "reassign"
	// DeleteCascade deletes the whole subtree.
	DeleteCascade DeletePolicy = "cascade"
)

// ParseDeletePolicy validates a policy name. An empty name yields an empty policy meaning "use the default".
func ParseDeletePolicy(value string) (DeletePolicy, error) {
	switch policy := DeletePolicy(strings.ToLower(strings.TrimSpace(value))); policy {
	case "", DeleteReject, DeleteOrphan, DeleteReassign, DeleteCascade:
		return policy, nil
	default:
		return "", ErrInvalidPolicy
	}
}

// MenuServiceConfig carries the menu business rules read from configuration.
type MenuServiceConfig struct {
	DeletePolicy DeletePolicy
	MaxDepth     int
}

// MenuInput is the editable state of a menu. RoleIDs and PermissionIDs replace the current grants when
// non-nil and leave them untouched when nil. A nil IsActive means active on create and unchanged on update.
type MenuInput struct {
	Name          string
	Label         string
	URL           string
	Icon          string
	ParentID      *uint
	MenuOrder     int
	IsActive      *bool
	RoleIDs       []uint
	PermissionIDs []string
}

// MenuListOptions selects the relations included by List.
type MenuListOptions struct {
	WithRoles       bool
	WithPermissions bool
}

// TreeOptions filters the tree returned by Tree.
type TreeOptions struct {
	Search          string
	IncludeInactive bool
}

// RoleSummary is the compact role reference embedded in menu views.
type RoleSummary struct {
	ID   uint   `json:"id"`
	Name string `json:"role_name"`
}

// PermissionSummary is the compact permission reference embedded in menu views.
type PermissionSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Module string `json:"module"`
}

// MenuView is a menu record together with optional role and permission details.
type MenuView struct {
	menutree.Record
	Roles       []RoleSummary       `json:"roles,omitempty"`
	Permissions []PermissionSummary `json:"permissions,omitempty"`
}

// DeleteResult reports the menus removed and the children moved by a delete.
type DeleteResult struct {
	Policy  DeletePolicy `json:"policy"`
	Deleted []uint       `json:"deleted"`
	Moved   []uint       `json:"moved"`
}

// MenuService persists the menu hierarchy and its access grants.
type MenuService struct {
	db           *gorm.DB
	checker      PermissionChecker
	auditService *AuditService
	catalog      *CatalogCache
	cfg          MenuServiceConfig
	log          *zap.Logger
}

// NewMenuService constructs a MenuService. checker is only needed by VisibleTree.
func NewMenuService(db *gorm.DB, checker PermissionChecker, audit *AuditService, catalog *CatalogCache, cfg MenuServiceConfig) (*MenuService, error) {
	if db == nil {
		return nil, errors.New("menu service: db is required")
	}
	policy, err := ParseDeletePolicy(string(cfg.DeletePolicy))
	if err != nil {
		return nil, fmt.Errorf("menu service: delete policy %q: %w", cfg.DeletePolicy, err)
	}
	if policy == "" {
		policy = DeleteReject
	}
	cfg.DeletePolicy = policy
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = menutree.DefaultMaxDepth
	}

	return &MenuService{
		db:           db,
		checker:      checker,
		auditService: audit,
		catalog:      catalog,
		cfg:          cfg,
		log:          logger.WithModule("menus"),
	}, nil
}

// Records returns every menu as a flat record with its grant ids, ordered by menu_order then id.
func (s *MenuService) Records(ctx context.Context) ([]menutree.Record, error) {
	ctx = ensureContext(ctx)

	return cachedCatalog(ctx, s.catalog, CatalogMenus, func(ctx context.Context) ([]menutree.Record, error) {
		menus, err := loadMenus(s.db.WithContext(ctx))
		if err != nil {
			return nil, err
		}
		records := make([]menutree.Record, 0, len(menus))
		for i := range menus {
			records = append(records, toRecord(&menus[i]))
		}
		return records, nil
	})
}

// List returns the flat menu list, optionally expanded with role and permission details.
func (s *MenuService) List(ctx context.Context, opts MenuListOptions) ([]MenuView, error) {
	ctx = ensureContext(ctx)

	if !opts.WithRoles && !opts.WithPermissions {
		records, err := s.Records(ctx)
		if err != nil {
			return nil, err
		}
		views := make([]MenuView, 0, len(records))
		for _, record := range records {
			record.RoleIDs = nil
			record.PermissionIDs = nil
			views = append(views, MenuView{Record: record})
		}
		return views, nil
	}

	menus, err := loadMenus(s.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	views := make([]MenuView, 0, len(menus))
	for i := range menus {
		views = append(views, toView(&menus[i], opts))
	}
	return views, nil
}

// Tree builds the menu forest and applies the search filter. The report lists repaired records.
func (s *MenuService) Tree(ctx context.Context, opts TreeOptions) (menutree.Forest, menutree.Report, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return nil, menutree.Report{}, err
	}

	forest, report := menutree.BuildWithReport(records)
	return menutree.Filter(forest, opts.Search, opts.IncludeInactive), report, nil
}

// Get returns a single menu with its roles and permissions.
func (s *MenuService) Get(ctx context.Context, id uint) (*MenuView, error) {
	ctx = ensureContext(ctx)

	menu, err := loadMenu(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	view := toView(menu, MenuListOptions{WithRoles: true, WithPermissions: true})
	return &view, nil
}

// Create validates the placement and stores a new menu with its grants.
func (s *MenuService) Create(ctx context.Context, input MenuInput) (*MenuView, error) {
	ctx = ensureContext(ctx)

	name, label, err := requireMenuNames(input)
	if err != nil {
		return nil, err
	}

	menu := &models.Menu{
		Name:      name,
		Label:     label,
		URL:       strings.TrimSpace(input.URL),
		Icon:      strings.TrimSpace(input.Icon),
		ParentID:  input.ParentID,
		MenuOrder: input.MenuOrder,
		IsActive:  true,
	}
	if input.IsActive != nil {
		menu.IsActive = *input.IsActive
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.validateParent(tx, 0, input.ParentID); err != nil {
			return err
		}
		if err := tx.Create(menu).Error; err != nil {
			return writeFailed("menu service: create menu", err, ErrMenuExists)
		}
		return replaceMenuGrants(tx, menu, input.RoleIDs, input.PermissionIDs)
	})
	s.observeWrite("create", err)
	if err != nil {
		return nil, err
	}

	s.catalog.InvalidateAll(ctx)
	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "menu.create",
		Resource: menuResource(menu.ID),
		Result:   "success",
		Metadata: map[string]any{"name": menu.Name, "parent_id": menu.ParentID},
	})

	return s.Get(ctx, menu.ID)
}

// Update replaces the editable fields of a menu, moving it when the parent changes.
func (s *MenuService) Update(ctx context.Context, id uint, input MenuInput) (*MenuView, error) {
	ctx = ensureContext(ctx)

	name, label, err := requireMenuNames(input)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		menu, err := loadMenu(tx, id)
		if err != nil {
			return err
		}
		if err := s.validateParent(tx, id, input.ParentID); err != nil {
			return err
		}

		updates := map[string]any{
			"name":       name,
			"label":      label,
			"url":        strings.TrimSpace(input.URL),
			"icon":       strings.TrimSpace(input.Icon),
			"parent_id":  input.ParentID,
			"menu_order": input.MenuOrder,
		}
		if input.IsActive != nil {
			updates["is_active"] = *input.IsActive
		}
		if err := tx.Model(menu).Updates(updates).Error; err != nil {
			return writeFailed("menu service: update menu", err, ErrMenuExists)
		}
		return replaceMenuGrants(tx, menu, input.RoleIDs, input.PermissionIDs)
	})
	s.observeWrite("update", err)
	if err != nil {
		return nil, err
	}

	s.catalog.InvalidateAll(ctx)
	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "menu.update",
		Resource: menuResource(id),
		Result:   "success",
		Metadata: map[string]any{"name": name, "parent_id": input.ParentID},
	})

	return s.Get(ctx, id)
}

// Delete removes a menu and handles its children according to policy. An empty policy uses the
// configured default.
func (s *MenuService) Delete(ctx context.Context, id uint, policy DeletePolicy) (*DeleteResult, error) {
	ctx = ensureContext(ctx)

	policy, err := ParseDeletePolicy(string(policy))
	if err != nil {
		return nil, err
	}
	if policy == "" {
		policy = s.cfg.DeletePolicy
	}

	result := &DeleteResult{Policy: policy, Deleted: []uint{}, Moved: []uint{}}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		forest, err := currentForest(tx)
		if err != nil {
			return err
		}
		node, ok := forest.Find(id)
		if !ok {
			return ErrMenuNotFound
		}

		children := make([]uint, 0, len(node.Children))
		for _, child := range node.Children {
			children = append(children, child.ID)
		}

		deleted := []uint{id}
		switch {
		case len(children) == 0:
		case policy == DeleteReject:
			return ErrMenuHasChildren
		case policy == DeleteOrphan:
			if err := tx.Model(&models.Menu{}).Where("parent_id = ?", id).Update("parent_id", nil).Error; err != nil {
				return fmt.Errorf("menu service: orphan children: %w", err)
			}
			result.Moved = children
		case policy == DeleteReassign:
			if err := tx.Model(&models.Menu{}).Where("parent_id = ?", id).Update("parent_id", node.ParentID).Error; err != nil {
				return fmt.Errorf("menu service: reassign children: %w", err)
			}
			result.Moved = children
		case policy == DeleteCascade:
			deleted = deleted[:0]
			menutree.Forest{node}.Walk(func(n *menutree.Node) bool {
				deleted = append(deleted, n.ID)
				return true
			})
		}

		if err := deleteMenus(tx, deleted); err != nil {
			return err
		}
		result.Deleted = deleted
		return nil
	})
	s.observeWrite("delete", err)
	if err != nil {
		return nil, err
	}

	s.catalog.InvalidateAll(ctx)
	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "menu.delete",
		Resource: menuResource(id),
		Result:   "success",
		Metadata: map[string]any{
			"policy":  string(policy),
			"deleted": result.Deleted,
			"moved":   result.Moved,
		},
	})

	return result, nil
}

// SetAccess replaces the complete role and permission sets of a menu in one transaction.
func (s *MenuService) SetAccess(ctx context.Context, menuID uint, roleIDs []uint, permissionIDs []string) (*MenuView, error) {
	ctx = ensureContext(ctx)

	if roleIDs == nil {
		roleIDs = []uint{}
	}
	if permissionIDs == nil {
		permissionIDs = []string{}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		menu, err := loadMenu(tx, menuID)
		if err != nil {
			return err
		}
		return replaceMenuGrants(tx, menu, roleIDs, permissionIDs)
	})
	s.observeWrite("access", err)
	if err != nil {
		return nil, err
	}

	s.catalog.InvalidateAll(ctx)
	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "menu.set_access",
		Resource: menuResource(menuID),
		Result:   "success",
		Metadata: map[string]any{
			"role_ids":       normaliseUintIDs(roleIDs),
			"permission_ids": normaliseIDs(permissionIDs),
		},
	})

	return s.Get(ctx, menuID)
}

// SetRoleAccess grants or revokes one role's access to one menu. It reports whether anything changed.
func (s *MenuService) SetRoleAccess(ctx context.Context, roleID, menuID uint, granted bool) (bool, error) {
	ctx = ensureContext(ctx)

	changed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		menu, err := loadMenu(tx, menuID)
		if err != nil {
			return err
		}
		var role models.Role
		if err := tx.First(&role, roleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoleNotFound
			}
			return fmt.Errorf("menu service: load role: %w", err)
		}

		matrix := access.FromRecords([]menutree.Record{toRecord(menu)})
		if granted {
			changed = matrix.AttachRole(menuID, roleID)
		} else {
			changed = matrix.DetachRole(menuID, roleID)
		}
		if !changed {
			return nil
		}

		assoc := tx.Model(menu).Association("Roles")
		if granted {
			return assoc.Append(&role)
		}
		return assoc.Delete(&role)
	})
	s.observeWrite("access", err)
	if err != nil {
		return false, err
	}

	if changed {
		s.catalog.InvalidateAll(ctx)
		recordAudit(s.auditService, ctx, AuditEntry{
			Action:   "menu.set_role_access",
			Resource: menuResource(menuID),
			Result:   "success",
			Metadata: map[string]any{"role_id": roleID, "granted": granted},
		})
	}
	return changed, nil
}

// EligibleParents lists the menus menuID may be placed under. A zero menuID stands for a new menu.
func (s *MenuService) EligibleParents(ctx context.Context, menuID uint) ([]*menutree.Node, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}
	forest := menutree.Build(records)
	if menuID != 0 {
		if _, ok := forest.Find(menuID); !ok {
			return nil, ErrMenuNotFound
		}
	}
	return menutree.EligibleParents(forest, menuID, s.cfg.MaxDepth), nil
}

// VisibleTree returns the active menus the user may open.
func (s *MenuService) VisibleTree(ctx context.Context, userID string) (menutree.Forest, error) {
	ctx = ensureContext(ctx)
	if s.checker == nil {
		return nil, errors.New("menu service: permission checker is required")
	}

	eval, user, err := s.checker.Evaluator(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("menu service: resolve permissions: %w", err)
	}
	if !user.IsActive && !user.IsRoot {
		return menutree.Forest{}, nil
	}

	records, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}

	subject := access.Subject{Root: user.IsRoot, RoleIDs: user.RoleIDs(), Evaluator: eval}
	return access.Visible(menutree.Build(records), access.FromRecords(records), subject), nil
}

// validateParent checks a parent change against the hierarchy read under FOR UPDATE, so concurrent
// reparents serialise on the menu rows instead of each passing against the other's old parent.
func (s *MenuService) validateParent(tx *gorm.DB, menuID uint, parentID *uint) error {
	forest, err := currentForest(tx.Clauses(clause.Locking{Strength: "UPDATE"}))
	if err != nil {
		return err
	}

	switch err := menutree.ValidateParent(forest, menuID, parentID, s.cfg.MaxDepth); {
	case err == nil:
		return nil
	case errors.Is(err, menutree.ErrSelfParent):
		return ErrMenuSelfParent
	case errors.Is(err, menutree.ErrParentNotFound):
		return ErrMenuParentNotFound
	case errors.Is(err, menutree.ErrCycle):
		return ErrMenuCycle
	case errors.Is(err, menutree.ErrDepthExceeded):
		return ErrMenuTooDeep
	default:
		return err
	}
}

func (s *MenuService) observeWrite(operation string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			s.log.Error("menu write failed", zap.String("operation", operation), zap.Error(err))
		}
	}
	metrics.MenuWrites.WithLabelValues(operation, result).Inc()
}

func requireMenuNames(input MenuInput) (string, string, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return "", "", apperrors.NewBadRequest("menu name is required")
	}
	label := strings.TrimSpace(input.Label)
	if label == "" {
		return "", "", apperrors.NewBadRequest("menu label is required")
	}
	return name, label, nil
}

func currentForest(tx *gorm.DB) (menutree.Forest, error) {
	var rows []models.Menu
	if err := tx.Select("id", "parent_id", "menu_order", "is_active").
		Order("menu_order ASC").Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("menu service: load hierarchy: %w", err)
	}

	records := make([]menutree.Record, 0, len(rows))
	for i := range rows {
		records = append(records, menutree.Record{
			ID:       rows[i].ID,
			ParentID: rows[i].ParentID,
			Order:    rows[i].MenuOrder,
			Active:   rows[i].IsActive,
		})
	}
	return menutree.Build(records), nil
}

func loadMenus(tx *gorm.DB) ([]models.Menu, error) {
	var menus []models.Menu
	if err := tx.Preload("Roles").Preload("Permissions").
		Order("menu_order ASC").Order("id ASC").
		Find(&menus).Error; err != nil {
		return nil, fmt.Errorf("menu service: list menus: %w", err)
	}
	return menus, nil
}

func loadMenu(tx *gorm.DB, id uint) (*models.Menu, error) {
	var menu models.Menu
	err := tx.Preload("Roles").Preload("Permissions").First(&menu, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMenuNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("menu service: load menu: %w", err)
	}
	return &menu, nil
}

// replaceMenuGrants replaces the grant sets that are non-nil.
func replaceMenuGrants(tx *gorm.DB, menu *models.Menu, roleIDs []uint, permissionIDs []string) error {
	if roleIDs != nil {
		ids := normaliseUintIDs(roleIDs)
		var roles []models.Role
		if len(ids) > 0 {
			if err := tx.Where("id IN ?", ids).Find(&roles).Error; err != nil {
				return fmt.Errorf("menu service: load roles: %w", err)
			}
			if len(roles) != len(ids) {
				return ErrUnknownRole
			}
		}
		if err := replaceAssociation(tx, menu, "Roles", roles, len(roles)); err != nil {
			return fmt.Errorf("menu service: replace roles: %w", err)
		}
	}

	if permissionIDs != nil {
		ids := normaliseIDs(permissionIDs)
		var perms []models.Permission
		if len(ids) > 0 {
			if err := tx.Where("id IN ?", ids).Find(&perms).Error; err != nil {
				return fmt.Errorf("menu service: load permissions: %w", err)
			}
			if len(perms) != len(ids) {
				return ErrUnknownPermission
			}
		}
		if err := replaceAssociation(tx, menu, "Permissions", perms, len(perms)); err != nil {
			return fmt.Errorf("menu service: replace permissions: %w", err)
		}
	}
	return nil
}

func replaceAssociation(tx *gorm.DB, menu *models.Menu, name string, values any, count int) error {
	assoc := tx.Model(menu).Association(name)
	if count == 0 {
		return assoc.Clear()
	}
	return assoc.Replace(values)
}

func deleteMenus(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Exec("DELETE FROM menu_roles WHERE menu_id IN ?", ids).Error; err != nil {
		return fmt.Errorf("menu service: delete role grants: %w", err)
	}
	if err := tx.Exec("DELETE FROM menu_permissions WHERE menu_id IN ?", ids).Error; err != nil {
		return fmt.Errorf("menu service: delete permission grants: %w", err)
	}
	if err := tx.Delete(&models.Menu{}, ids).Error; err != nil {
		return fmt.Errorf("menu service: delete menus: %w", err)
	}
	return nil
}

func toRecord(menu *models.Menu) menutree.Record {
	record := menutree.Record{
		ID:            menu.ID,
		Name:          menu.Name,
		Label:         menu.Label,
		URL:           menu.URL,
		Icon:          menu.Icon,
		Order:         menu.MenuOrder,
		Active:        menu.IsActive,
		RoleIDs:       normaliseUintIDs(menu.RoleIDs()),
		PermissionIDs: normaliseIDs(menu.PermissionIDs()),
	}
	if menu.ParentID != nil {
		pid := *menu.ParentID
		record.ParentID = &pid
	}
	if record.RoleIDs == nil {
		record.RoleIDs = []uint{}
	}
	if record.PermissionIDs == nil {
		record.PermissionIDs = []string{}
	}
	return record
}

func toView(menu *models.Menu, opts MenuListOptions) MenuView {
	view := MenuView{Record: toRecord(menu)}
	if opts.WithRoles {
		view.Roles = make([]RoleSummary, 0, len(menu.Roles))
		for _, role := range menu.Roles {
			view.Roles = append(view.Roles, RoleSummary{ID: role.ID, Name: role.Name})
		}
	} else {
		view.RoleIDs = nil
	}
	if opts.WithPermissions {
		view.Permissions = make([]PermissionSummary, 0, len(menu.Permissions))
		for _, perm := range menu.Permissions {
			view.Permissions = append(view.Permissions, PermissionSummary{ID: perm.ID, Name: perm.Name, Module: perm.Module})
		}
	} else {
		view.PermissionIDs = nil
	}
	return view
}

func menuResource(id uint) string {
	return fmt.Sprintf("menu:%d", id)
}
