package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/hrconsole/internal/models"
	"github.com/charlesng35/hrconsole/internal/permissions"
)

// Names of the roles created on first start.
const (
	AdminRoleName    = "Administrator"
	HRRoleName       = "HR Manager"
	EmployeeRoleName = "Employee"
)

// MenuSeedSetting records that the default menu hierarchy has been installed, so deleted menus stay deleted.
const MenuSeedSetting = "seed.menus"

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.Permission{},
		&models.Menu{},
		&models.Session{},
		&models.AuditLog{},
		&models.CacheEntry{},
		&models.SystemSetting{},
	)
}

type seedRole struct {
	name        string
	description string
	isDefault   bool
	permissions []string
}

var defaultRoles = []seedRole{
	{
		name:        AdminRoleName,
		description: "Full console access",
	},
	{
		name:        HRRoleName,
		description: "Manages employees, leave and payroll",
		permissions: []string{
			"employee.view", "employee.manage",
			"leave.view", "leave.approve", "leave.manage",
			"payroll.view", "payroll.run",
			"meeting.view", "meeting.manage",
			"activity.view",
		},
	},
	{
		name:        EmployeeRoleName,
		description: "Self-service access for staff",
		isDefault:   true,
		permissions: []string{"leave.view", "leave.apply", "meeting.view"},
	},
}

type seedMenu struct {
	name        string
	label       string
	url         string
	icon        string
	parent      string
	order       int
	roles       []string
	permissions []string
}

var defaultMenus = []seedMenu{
	{name: "dashboard", label: "Dashboard", url: "/dashboard", icon: "home", order: 0},
	{name: "employees", label: "Employees", url: "/employees", icon: "users", order: 1, permissions: []string{"employee.view"}},
	{name: "leave", label: "Leave", url: "/leave", icon: "calendar", order: 2, permissions: []string{"leave.view"}},
	{name: "leave-applications", label: "My Applications", url: "/leave/applications", parent: "leave", order: 0, permissions: []string{"leave.apply"}},
	{name: "leave-approvals", label: "Approvals", url: "/leave/approvals", parent: "leave", order: 1, permissions: []string{"leave.approve"}},
	{name: "payroll", label: "Payroll", url: "/payroll", icon: "wallet", order: 3, permissions: []string{"payroll.view"}},
	{name: "payroll-runs", label: "Payroll Runs", url: "/payroll/runs", parent: "payroll", order: 0, permissions: []string{"payroll.run"}},
	{name: "budgets", label: "Budgets", url: "/budgets", icon: "chart", order: 4, permissions: []string{"budget.view"}},
	{name: "procurement", label: "Procurement", url: "/procurement", icon: "cart", order: 5, permissions: []string{"procurement.view"}},
	{name: "meetings", label: "Meetings", url: "/meetings", icon: "video", order: 6, permissions: []string{"meeting.view"}},
	{name: "administration", label: "Administration", icon: "settings", order: 7, roles: []string{AdminRoleName}},
	{name: "admin-menus", label: "Menus", url: "/admin/menus", parent: "administration", order: 0, permissions: []string{"menu.view"}},
	{name: "admin-roles", label: "Roles", url: "/admin/roles", parent: "administration", order: 1, permissions: []string{"role.view"}},
	{name: "admin-activity", label: "Activity Log", url: "/admin/activity", parent: "administration", order: 2, permissions: []string{"activity.view"}},
}

// SeedData syncs the permission catalogue, ensures the default roles exist and installs the default
// menu hierarchy once.
func SeedData(db *gorm.DB) error {
	ctx := context.Background()

	if err := permissions.Sync(ctx, db); err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		roleIDs := make(map[string]uint, len(defaultRoles))
		for _, seed := range defaultRoles {
			role := models.Role{
				Name:        seed.name,
				Description: seed.description,
				IsSystem:    seed.name == AdminRoleName,
				IsDefault:   seed.isDefault,
			}
			if err := tx.Where(models.Role{Name: seed.name}).Attrs(role).FirstOrCreate(&role).Error; err != nil {
				return fmt.Errorf("seed role %s: %w", seed.name, err)
			}
			roleIDs[seed.name] = role.ID

			perms := seed.permissions
			if seed.name == AdminRoleName {
				perms = allPermissionIDs()
			}
			if err := assignRolePermissions(tx, &role, perms); err != nil {
				return fmt.Errorf("seed role %s permissions: %w", seed.name, err)
			}
		}

		if _, seeded, err := readSetting(ctx, tx, MenuSeedSetting); err != nil || seeded {
			return err
		}

		if err := seedMenus(tx, roleIDs); err != nil {
			return err
		}
		return writeSetting(ctx, tx, MenuSeedSetting, "1")
	})
}

func seedMenus(tx *gorm.DB, roleIDs map[string]uint) error {
	menuIDs := make(map[string]uint, len(defaultMenus))
	for _, seed := range defaultMenus {
		menu := models.Menu{
			Name:      seed.name,
			Label:     seed.label,
			URL:       seed.url,
			Icon:      seed.icon,
			MenuOrder: seed.order,
			IsActive:  true,
		}
		if seed.parent != "" {
			parentID, ok := menuIDs[seed.parent]
			if !ok {
				return fmt.Errorf("seed menu %s: unknown parent %s", seed.name, seed.parent)
			}
			menu.ParentID = &parentID
		}

		if err := tx.Where(models.Menu{Name: seed.name}).Attrs(menu).FirstOrCreate(&menu).Error; err != nil {
			return fmt.Errorf("seed menu %s: %w", seed.name, err)
		}
		menuIDs[seed.name] = menu.ID

		ids := make([]uint, 0, len(seed.roles))
		for _, name := range seed.roles {
			ids = append(ids, roleIDs[name])
		}
		if err := assignMenuGrants(tx, &menu, ids, seed.permissions); err != nil {
			return fmt.Errorf("seed menu %s grants: %w", seed.name, err)
		}
	}
	return nil
}

func allPermissionIDs() []string {
	all := permissions.List()
	ids := make([]string, 0, len(all))
	for _, perm := range all {
		ids = append(ids, perm.ID)
	}
	return ids
}
