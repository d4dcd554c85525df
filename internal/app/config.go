package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/charlesng35/hrconsole/pkg/validator"
)

// Config is the merged file, default and environment configuration shared by the server and the console.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Menus       MenuConfig        `mapstructure:"menus"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	Console     ConsoleConfig     `mapstructure:"console"`
}

type ServerConfig struct {
	Port      int             `mapstructure:"port" validate:"gte=0,lte=65535"`
	LogLevel  string          `mapstructure:"log_level"`
	LogFormat string          `mapstructure:"log_format" validate:"omitempty,oneof=json console"`
	LogFile   string          `mapstructure:"log_file"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// CORSConfig lists the browser origins allowed to call the API. Empty allows any origin.
type CORSConfig struct {
	Origins []string `mapstructure:"origins"`
}

// RateLimitConfig bounds requests per client address and route.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests" validate:"gte=0"`
	Window   time.Duration `mapstructure:"window" validate:"gte=0"`
}

// DatabaseConfig selects the driver. DSN wins over the per-driver host settings.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver" validate:"omitempty,oneof=sqlite postgres postgresql mysql"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type CacheConfig struct {
	Redis      RedisCacheConfig `mapstructure:"redis"`
	CatalogTTL time.Duration    `mapstructure:"catalog_ttl"`
}

type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address" validate:"required_if=Enabled true"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TLS      bool          `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	JWT       JWTSettings       `mapstructure:"jwt"`
	Session   SessionSettings   `mapstructure:"session"`
	Local     LocalAuthSettings `mapstructure:"local"`
	Bootstrap BootstrapSettings `mapstructure:"bootstrap"`
}

type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// SessionSettings bounds refresh tokens. RefreshLength counts random bytes, not characters.
type SessionSettings struct {
	RefreshTTL    time.Duration `mapstructure:"refresh_token_ttl"`
	RefreshLength int           `mapstructure:"refresh_token_length" validate:"omitempty,gte=16,lte=256"`
}

type LocalAuthSettings struct {
	LockoutThreshold int           `mapstructure:"lockout_threshold"`
	LockoutDuration  time.Duration `mapstructure:"lockout_duration"`
}

// BootstrapSettings names the root account created on an empty database. No password disables it.
type BootstrapSettings struct {
	Username string `mapstructure:"username"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// MenuConfig controls menu hierarchy writes.
type MenuConfig struct {
	DeletePolicy string `mapstructure:"delete_policy"`
	MaxDepth     int    `mapstructure:"max_depth" validate:"gte=0"`
}

// MaintenanceConfig schedules the background cleaners.
type MaintenanceConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	SessionSchedule    string `mapstructure:"session_schedule"`
	AuditSchedule      string `mapstructure:"audit_schedule"`
	CacheSchedule      string `mapstructure:"cache_schedule"`
	AuditRetentionDays int    `mapstructure:"audit_retention_days" validate:"gte=0"`
}

type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ConsoleConfig configures the command line console client.
type ConsoleConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	ReadRetries int           `mapstructure:"read_retries" validate:"gte=0,lte=10"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	SessionFile string        `mapstructure:"session_file"`
}

// EnvPrefix prefixes environment overrides, e.g. HRCONSOLE_SERVER_PORT.
const EnvPrefix = "HRCONSOLE"

var defaults = map[string]any{
	"server.port":                8000,
	"server.log_level":           "info",
	"server.log_format":          "json",
	"server.log_file":            "",
	"server.cors.origins":        []string{},
	"server.rate_limit.requests": 100,
	"server.rate_limit.window":   "1m",

	"database.driver": "sqlite",
	"database.path":   "./data/hrconsole.sqlite",

	"cache.redis.enabled":  false,
	"cache.redis.address":  "127.0.0.1:6379",
	"cache.redis.username": "",
	"cache.redis.password": "",
	"cache.redis.db":       0,
	"cache.redis.tls":      false,
	"cache.redis.timeout":  "5s",
	"cache.catalog_ttl":    "5m",

	"auth.jwt.issuer":                   "hrconsole",
	"auth.jwt.access_token_ttl":         "15m",
	"auth.session.refresh_token_ttl":    "168h",
	"auth.session.refresh_token_length": defaultRefreshLength,
	"auth.local.lockout_threshold":      defaultLockoutThreshold,
	"auth.local.lockout_duration":       defaultLockoutDuration.String(),
	"auth.bootstrap.username":           "admin",
	"auth.bootstrap.email":              "admin@example.com",
	"auth.bootstrap.password":           "",

	"menus.delete_policy": "reject",
	"menus.max_depth":     2,

	"maintenance.enabled":              true,
	"maintenance.session_schedule":     "@hourly",
	"maintenance.audit_schedule":       "@daily",
	"maintenance.cache_schedule":       "@every 10m",
	"maintenance.audit_retention_days": 90,

	"monitoring.prometheus.enabled":   true,
	"monitoring.prometheus.endpoint":  "/metrics",
	"monitoring.health_check.enabled": true,

	"console.base_url":     "http://127.0.0.1:8000/api",
	"console.timeout":      "15s",
	"console.read_retries": 2,
	"console.cache_ttl":    "30s",
	"console.session_file": "",
}

// LoadConfig reads config.yaml from ./config and then each of paths, applies HRCONSOLE_*
// overrides and validates the result. A missing file is not an error.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range append([]string{"./config"}, paths...) {
		v.AddConfigPath(path)
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil && !errors.As(err, new(viper.ConfigFileNotFoundError)) {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations the server relies on.
func (c *Config) Validate() error {
	if err := validator.ValidateStruct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
