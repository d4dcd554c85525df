// Package cache holds the shared key/value stores behind refresh sessions, rate limits and catalogue
// snapshots. Redis is used when configured; otherwise the primary database serves as the store.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Store is implemented by RedisStore, DatabaseStore and MemoryStore.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key. A non-positive ttl keeps it until deleted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Hit counts one event in the fixed window that starts with the first hit of key.
	Hit(ctx context.Context, key string, window time.Duration) (Window, error)
}

// Window is the state of a counter after a Hit.
type Window struct {
	Count   int64
	ResetIn time.Duration
}

const defaultWindow = time.Minute

var errNotInitialised = errors.New("cache: store not initialised")

// Key joins parts into a colon separated key, skipping blank parts.
func Key(parts ...string) string {
	kept := parts[:0:0]
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, ":")
}

func windowOrDefault(window time.Duration) time.Duration {
	if window <= 0 {
		return defaultWindow
	}
	return window
}
