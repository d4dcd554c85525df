package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/charlesng35/hrconsole/internal/app"
	"github.com/charlesng35/hrconsole/internal/database"
	"github.com/charlesng35/hrconsole/internal/models"
)

func testConfig() *app.Config {
	return &app.Config{
		Database: app.DatabaseConfig{Driver: "sqlite"},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{Secret: "bootstrap-test-secret-key-32-bytes!", Issuer: "test", TTL: time.Minute},
			Bootstrap: app.BootstrapSettings{
				Username: "admin",
				Email:    "admin@example.com",
				Password: "Sup3rSecret!",
			},
		},
		Maintenance: app.MaintenanceConfig{Enabled: true, AuditRetentionDays: 30},
		Monitoring: app.MonitoringConfig{
			Health: app.HealthConfig{Enabled: true},
		},
	}
}

func TestBootstrapRuntimeCreatesAdministrator(t *testing.T) {
	stack, err := bootstrapRuntime(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	require.NotNil(t, stack.Admin)
	require.True(t, stack.Admin.IsRoot)

	var admin models.User
	require.NoError(t, stack.DB.Preload("Roles").First(&admin, "username = ?", "admin").Error)
	require.Len(t, admin.Roles, 1)
	require.Equal(t, database.AdminRoleName, admin.Roles[0].Name)

	// A second run keeps the existing root account.
	again, err := ensureBootstrapAdmin(context.Background(), stack.DB, stack.AuditSvc, testConfig().Auth.Bootstrap)
	require.NoError(t, err)
	require.Nil(t, again)

	w := httptest.NewRecorder()
	stack.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), `"component":"database"`)
	require.Contains(t, w.Body.String(), `"component":"maintenance"`)
}

func TestBootstrapAdminSkippedWithoutPassword(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Bootstrap.Password = ""
	cfg.Maintenance.Enabled = false

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	require.Nil(t, stack.Admin)
	require.Nil(t, stack.Maintenance)

	var count int64
	require.NoError(t, stack.DB.Model(&models.User{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestConvertDatabaseConfig(t *testing.T) {
	cfg := &app.Config{Database: app.DatabaseConfig{
		Driver: "PostgreSQL",
		Postgres: app.DBAuthConfig{
			Host:     " db.internal ",
			Port:     5432,
			Database: "hr",
			Username: "hr",
			Password: " secret ",
		},
	}}

	got := convertDatabaseConfig(cfg)
	require.Equal(t, "postgres", got.Driver)
	require.Equal(t, "db.internal", got.Host)
	require.Equal(t, 5432, got.Port)
	require.Equal(t, "hr", got.Name)
	require.Equal(t, " secret ", got.Password)

	cfg.Database = app.DatabaseConfig{Driver: "", Path: " ./data/hr.sqlite "}
	got = convertDatabaseConfig(cfg)
	require.Equal(t, "sqlite", got.Driver)
	require.Equal(t, "./data/hr.sqlite", got.Path)
	require.Empty(t, got.Host)
}
