package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Typed stores JSON encoded values of T under a key namespace.
type Typed[T any] struct {
	store     Store
	namespace string
}

// NewTyped returns nil for a nil store so callers can treat "no cache" as a nil value.
func NewTyped[T any](store Store, namespace string) *Typed[T] {
	if store == nil {
		return nil
	}
	return &Typed[T]{store: store, namespace: namespace}
}

func (c *Typed[T]) key(id string) string {
	return Key(c.namespace, id)
}

// Load returns the value stored for id. A value that no longer decodes is reported as an error.
func (c *Typed[T]) Load(ctx context.Context, id string) (T, bool, error) {
	var value T
	raw, ok, err := c.store.Get(ctx, c.key(id))
	if err != nil || !ok {
		return value, false, err
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, false, fmt.Errorf("cache: decode %s: %w", c.key(id), err)
	}
	return value, true, nil
}

func (c *Typed[T]) Save(ctx context.Context, id string, value T, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", c.key(id), err)
	}
	return c.store.Set(ctx, c.key(id), raw, ttl)
}

func (c *Typed[T]) Forget(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	return c.store.Delete(ctx, keys...)
}
