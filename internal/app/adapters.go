package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charlesng35/hrconsole/internal/auth"
	"github.com/charlesng35/hrconsole/internal/auth/providers"
	"github.com/charlesng35/hrconsole/internal/cache"
	"github.com/charlesng35/hrconsole/internal/menutree"
	"github.com/charlesng35/hrconsole/internal/services"
)

// The adapters below translate configuration sections into the option structs of the packages that
// consume them. Zero or negative values fall back to the package defaults.

const (
	defaultLockoutThreshold = 5
	defaultLockoutDuration  = 15 * time.Minute
	defaultRefreshLength    = 48
)

func positive[T int | time.Duration](v, fallback T) T {
	if v > 0 {
		return v
	}
	return fallback
}

func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: positive(c.JWT.TTL, auth.DefaultAccessTokenTTL),
	}
}

func (c AuthConfig) SessionServiceConfig() auth.SessionConfig {
	return auth.SessionConfig{
		RefreshTokenTTL: positive(c.Session.RefreshTTL, auth.DefaultRefreshTokenTTL),
		RefreshLength:   positive(c.Session.RefreshLength, defaultRefreshLength),
	}
}

func (c AuthConfig) LocalProviderConfig() providers.LocalConfig {
	return providers.LocalConfig{
		LockoutThreshold: positive(c.Local.LockoutThreshold, defaultLockoutThreshold),
		LockoutDuration:  positive(c.Local.LockoutDuration, defaultLockoutDuration),
	}
}

func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	return cache.RedisConfig{
		Address:  strings.TrimSpace(c.Redis.Address),
		Username: strings.TrimSpace(c.Redis.Username),
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		TLS:      c.Redis.TLS,
		Timeout:  c.Redis.Timeout,
	}
}

// MenuServiceConfig also rejects an unknown delete policy.
func (c MenuConfig) MenuServiceConfig() (services.MenuServiceConfig, error) {
	policy, err := services.ParseDeletePolicy(c.DeletePolicy)
	if err != nil {
		return services.MenuServiceConfig{}, fmt.Errorf("menus.delete_policy %q: %w", c.DeletePolicy, err)
	}
	if policy == "" {
		policy = services.DeleteReject
	}
	return services.MenuServiceConfig{
		DeletePolicy: policy,
		MaxDepth:     positive(c.MaxDepth, menutree.DefaultMaxDepth),
	}, nil
}
