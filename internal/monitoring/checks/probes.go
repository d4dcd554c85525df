// Package checks holds the readiness probes of the console backend.
package checks

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/hrconsole/internal/monitoring"
)

const defaultProbeTimeout = 2 * time.Second

var errNotConfigured = errors.New("not configured")

// Pinger is anything that can prove it is reachable, such as cache.RedisStore.
type Pinger interface {
	Ping(ctx context.Context) error
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Ping reports target down when it cannot answer within timeout.
func Ping(name string, target Pinger, timeout time.Duration) monitoring.Check {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return monitoring.NewCheck(name, func(ctx context.Context) monitoring.ProbeResult {
		if target == nil {
			return monitoring.ResultFromError(name, errNotConfigured, 0)
		}
		start := time.Now()
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return monitoring.ResultFromError(name, target.Ping(ctx), time.Since(start))
	})
}

// Database pings the connection pool behind db.
func Database(db *gorm.DB, timeout time.Duration) monitoring.Check {
	var target Pinger
	if db != nil {
		target = pingFunc(func(ctx context.Context) error {
			pool, err := db.DB()
			if err != nil {
				return err
			}
			return pool.PingContext(ctx)
		})
	}
	return Ping("database", target, timeout)
}

// Redis probes the shared cache. Register it only when redis is the active store.
func Redis(client Pinger, timeout time.Duration) monitoring.Check {
	return Ping("redis", client, timeout)
}
