package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/hrconsole/internal/cache"
	"github.com/charlesng35/hrconsole/internal/database"
	"github.com/charlesng35/hrconsole/internal/database/testutil"
	"github.com/charlesng35/hrconsole/internal/models"
	"github.com/charlesng35/hrconsole/internal/permissions"
)

type testServices struct {
	db          *gorm.DB
	audit       *AuditService
	catalog     *CatalogCache
	permissions *PermissionService
	menus       *MenuService
	users       *UserService
}

func newTestServices(t *testing.T, cfg MenuServiceConfig) *testServices {
	t.Helper()

	db := testutil.Seeded(t)

	audit, err := NewAuditService(db)
	require.NoError(t, err)

	catalog := NewCatalogCache(cache.NewDatabaseStore(db), 0)

	permSvc, err := NewPermissionService(db, audit, catalog)
	require.NoError(t, err)

	checker, err := permissions.NewChecker(db)
	require.NoError(t, err)

	menuSvc, err := NewMenuService(db, checker, audit, catalog, cfg)
	require.NoError(t, err)

	userSvc, err := NewUserService(db, audit)
	require.NoError(t, err)

	return &testServices{
		db:          db,
		audit:       audit,
		catalog:     catalog,
		permissions: permSvc,
		menus:       menuSvc,
		users:       userSvc,
	}
}

func (s *testServices) role(t *testing.T, name string) models.Role {
	t.Helper()

	var role models.Role
	require.NoError(t, s.db.Where(&models.Role{Name: name}).First(&role).Error)
	return role
}

func (s *testServices) menuID(t *testing.T, name string) uint {
	t.Helper()

	var menu models.Menu
	require.NoError(t, s.db.Where(&models.Menu{Name: name}).First(&menu).Error)
	return menu.ID
}

func (s *testServices) createUser(t *testing.T, username string, roleNames ...string) *models.User {
	t.Helper()

	roleIDs := make([]uint, 0, len(roleNames))
	for _, name := range roleNames {
		roleIDs = append(roleIDs, s.role(t, name).ID)
	}

	user, err := s.users.Create(context.Background(), CreateUserInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret123!",
		RoleIDs:  roleIDs,
	})
	require.NoError(t, err)
	return user
}

var seededRoles = []string{database.AdminRoleName, database.HRRoleName, database.EmployeeRoleName}

func uintPtr(v uint) *uint { return &v }

func boolPtr(v bool) *bool { return &v }

func stringPtr(v string) *string { return &v }
