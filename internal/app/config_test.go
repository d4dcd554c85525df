package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/hrconsole/internal/auth"
	"github.com/charlesng35/hrconsole/internal/auth/providers"
	"github.com/charlesng35/hrconsole/internal/menutree"
	"github.com/charlesng35/hrconsole/internal/services"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig("testdata")
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, []string{"https://hr.example.com", "https://admin.example.com"}, cfg.Server.CORS.Origins)
	require.Equal(t, 30, cfg.Server.RateLimit.Requests)
	require.Equal(t, 30*time.Second, cfg.Server.RateLimit.Window)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, "hrconsole", cfg.Database.Postgres.Database)

	require.True(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, 3*time.Second, cfg.Cache.Redis.Timeout)
	require.Equal(t, 2*time.Minute, cfg.Cache.CatalogTTL)

	require.Equal(t, "jwt-secret", cfg.Auth.JWT.Secret)
	require.Equal(t, "hrconsole", cfg.Auth.JWT.Issuer)
	require.Equal(t, 30*time.Minute, cfg.Auth.JWT.TTL)
	require.Equal(t, 72*time.Hour, cfg.Auth.Session.RefreshTTL)
	require.Equal(t, 64, cfg.Auth.Session.RefreshLength)
	require.Equal(t, 7, cfg.Auth.Local.LockoutThreshold)
	require.Equal(t, 20*time.Minute, cfg.Auth.Local.LockoutDuration)
	require.Equal(t, BootstrapSettings{Username: "root", Email: "root@example.com", Password: "change-me"}, cfg.Auth.Bootstrap)

	require.Equal(t, "cascade", cfg.Menus.DeletePolicy)
	require.Equal(t, 3, cfg.Menus.MaxDepth)

	require.True(t, cfg.Maintenance.Enabled)
	require.Equal(t, 30, cfg.Maintenance.AuditRetentionDays)
	require.Equal(t, "@hourly", cfg.Maintenance.SessionSchedule)
	require.Equal(t, "@every 5m", cfg.Maintenance.CacheSchedule)

	require.Equal(t, "https://hr.example.com/api", cfg.Console.BaseURL)
	require.Equal(t, 4, cfg.Console.ReadRetries)
	require.Equal(t, 15*time.Second, cfg.Console.Timeout)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.False(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, "reject", cfg.Menus.DeletePolicy)
	require.Equal(t, 2, cfg.Menus.MaxDepth)
	require.Equal(t, 100, cfg.Server.RateLimit.Requests)
	require.Equal(t, time.Minute, cfg.Server.RateLimit.Window)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("HRCONSOLE_MENUS_DELETE_POLICY", "orphan")
	t.Setenv("HRCONSOLE_SERVER_PORT", "9191")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "orphan", cfg.Menus.DeletePolicy)
	require.Equal(t, 9191, cfg.Server.Port)
}

func TestMenuServiceConfig(t *testing.T) {
	cfg, err := MenuConfig{DeletePolicy: " Reassign ", MaxDepth: 4}.MenuServiceConfig()
	require.NoError(t, err)
	require.Equal(t, services.MenuServiceConfig{DeletePolicy: services.DeleteReassign, MaxDepth: 4}, cfg)

	cfg, err = MenuConfig{}.MenuServiceConfig()
	require.NoError(t, err)
	require.Equal(t, services.DeleteReject, cfg.DeletePolicy)
	require.Equal(t, menutree.DefaultMaxDepth, cfg.MaxDepth)

	_, err = MenuConfig{DeletePolicy: "explode"}.MenuServiceConfig()
	require.ErrorIs(t, err, services.ErrInvalidPolicy)
}

func TestAuthConfigAdapters(t *testing.T) {
	cfg := Config{
		Auth: AuthConfig{
			JWT: JWTSettings{
				Secret: "secret",
				Issuer: "issuer",
				TTL:    30 * time.Minute,
			},
			Session: SessionSettings{
				RefreshTTL:    10 * time.Hour,
				RefreshLength: 32,
			},
			Local: LocalAuthSettings{
				LockoutThreshold: 4,
				LockoutDuration:  10 * time.Minute,
			},
		},
	}

	require.Equal(t, auth.JWTConfig{
		Secret:         "secret",
		Issuer:         "issuer",
		AccessTokenTTL: 30 * time.Minute,
	}, cfg.Auth.JWTServiceConfig())

	require.Equal(t, auth.SessionConfig{
		RefreshTokenTTL: 10 * time.Hour,
		RefreshLength:   32,
	}, cfg.Auth.SessionServiceConfig())

	require.Equal(t, providers.LocalConfig{
		LockoutThreshold: 4,
		LockoutDuration:  10 * time.Minute,
	}, cfg.Auth.LocalProviderConfig())
}

func TestAuthConfigAdaptersFallback(t *testing.T) {
	var cfg AuthConfig

	require.Equal(t, auth.DefaultAccessTokenTTL, cfg.JWTServiceConfig().AccessTokenTTL)

	sessionCfg := cfg.SessionServiceConfig()
	require.Equal(t, auth.DefaultRefreshTokenTTL, sessionCfg.RefreshTokenTTL)
	require.Equal(t, defaultRefreshLength, sessionCfg.RefreshLength)

	localCfg := cfg.LocalProviderConfig()
	require.Equal(t, defaultLockoutThreshold, localCfg.LockoutThreshold)
	require.Equal(t, defaultLockoutDuration, localCfg.LockoutDuration)
}

func TestRedisClientConfig(t *testing.T) {
	cfg := CacheConfig{Redis: RedisCacheConfig{Address: " redis:6379 ", DB: 2, Timeout: time.Second}}
	redisCfg := cfg.RedisClientConfig()
	require.Equal(t, "redis:6379", redisCfg.Address)
	require.Equal(t, 2, redisCfg.DB)
	require.Equal(t, time.Second, redisCfg.Timeout)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"driver":     {"HRCONSOLE_DATABASE_DRIVER": "oracle"},
		"port":       {"HRCONSOLE_SERVER_PORT": "70000"},
		"log format": {"HRCONSOLE_SERVER_LOG_FORMAT": "xml"},
		"retries":    {"HRCONSOLE_CONSOLE_READ_RETRIES": "-1"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for key, value := range env {
				t.Setenv(key, value)
			}
			_, err := LoadConfig(t.TempDir())
			require.Error(t, err)
			require.ErrorContains(t, err, "config:")
		})
	}
}
