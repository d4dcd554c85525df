package security

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/hrconsole/internal/app"
	"github.com/charlesng35/hrconsole/internal/database"
	testutil "github.com/charlesng35/hrconsole/internal/database/testutil"
	"github.com/charlesng35/hrconsole/internal/models"
)

func findCheck(t *testing.T, result Result, id string) Check {
	t.Helper()
	for _, check := range result.Checks {
		if check.ID == id {
			return check
		}
	}
	t.Fatalf("check %s not found", id)
	return Check{}
}

func TestAuditServiceRun(t *testing.T) {
	db := testutil.Seeded(t)

	root := &models.User{
		Username: "root",
		Email:    "root@example.com",
		Password: "hashed",
		IsRoot:   true,
	}
	require.NoError(t, db.Create(root).Error)

	cfg := &app.Config{
		Server: app.ServerConfig{CORS: app.CORSConfig{Origins: []string{"https://hr.example.com"}}},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "0123456789abcdef0123456789abcdef0123456789abcdef",
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
			Session: app.SessionSettings{
				RefreshTTL:    720 * time.Hour,
				RefreshLength: 48,
			},
		},
	}

	svc := NewAuditService(db, cfg)
	fixed := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return fixed })

	result := svc.Run(context.Background())
	require.Equal(t, fixed, result.CheckedAt)
	require.Len(t, result.Checks, len(rules))
	require.Equal(t, len(rules), result.Summary[string(StatusPass)], result.Checks)
	require.False(t, result.Failed())
}

func TestAuditServiceDetectsMissingRoot(t *testing.T) {
	db := testutil.Seeded(t)

	result := NewAuditService(db, &app.Config{}).Run(context.Background())

	require.Equal(t, StatusFail, findCheck(t, result, "root_user_present").Status)
	require.Equal(t, StatusFail, findCheck(t, result, "jwt_secret_strength").Status)
	require.Equal(t, StatusWarn, findCheck(t, result, "session_refresh_ttl").Status)
	require.Equal(t, StatusWarn, findCheck(t, result, "cors_origins").Status)
	require.True(t, result.Failed())
}

func TestAuditServiceDetectsStrippedAdministrator(t *testing.T) {
	db := testutil.Seeded(t)

	var role models.Role
	require.NoError(t, db.Where("name = ?", database.AdminRoleName).First(&role).Error)
	require.NoError(t, db.Model(&role).Association("Permissions").Clear())

	check := findCheck(t, NewAuditService(db, nil).Run(context.Background()), "admin_role_grants")
	require.Equal(t, StatusFail, check.Status)
	require.Equal(t, map[string]any{"missing": []string{"menu.manage", "role.manage"}}, check.Details)
}

func TestAuditServiceReportsBrokenMenuParents(t *testing.T) {
	db := testutil.Seeded(t)

	missing := uint(9999)
	require.NoError(t, db.Create(&models.Menu{Name: "stray", Label: "Stray", ParentID: &missing, IsActive: true}).Error)

	check := findCheck(t, NewAuditService(db, nil).Run(context.Background()), "menu_tree_integrity")
	require.Equal(t, StatusWarn, check.Status)
	require.NotEmpty(t, check.Details)
}

func TestAuditServiceWithoutDependencies(t *testing.T) {
	result := NewAuditService(nil, nil).Run(context.Background())
	require.Equal(t, len(rules), result.Summary[string(StatusWarn)])
	for _, check := range result.Checks {
		require.NotEmpty(t, check.Remediation, check.ID)
	}
	require.False(t, result.Failed())
}

func TestCORSWildcardWarns(t *testing.T) {
	cfg := &app.Config{Server: app.ServerConfig{CORS: app.CORSConfig{Origins: []string{"https://hr.example.com", "*"}}}}
	check := findCheck(t, NewAuditService(nil, cfg).Run(context.Background()), "cors_origins")
	require.Equal(t, StatusWarn, check.Status)
	require.Contains(t, check.Remediation, "server.cors.origins")
}
