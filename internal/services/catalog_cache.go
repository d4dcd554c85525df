package services

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/charlesng35/hrconsole/internal/cache"
	"github.com/charlesng35/hrconsole/pkg/logger"
	"github.com/charlesng35/hrconsole/pkg/metrics"
)

// Catalogue names, stored under the "catalog" key namespace.
const (
	CatalogRoles       = "roles"
	CatalogPermissions = "permissions"
	CatalogMenus       = "menus"
)

const catalogNamespace = "catalog"

// generationKey changes on every invalidation. A snapshot is only kept when the generation read
// before its load is still current after it has been stored.
var generationKey = cache.Key(catalogNamespace, "generation")

const defaultCatalogTTL = 5 * time.Minute

// CatalogCache keeps JSON snapshots of the catalogues in a shared cache.Store. A nil *CatalogCache or
// one without a store loads straight from the database.
type CatalogCache struct {
	store cache.Store
	ttl   time.Duration
	log   *zap.Logger
}

// NewCatalogCache returns a cache over store. A non-positive ttl uses the five minute default.
func NewCatalogCache(store cache.Store, ttl time.Duration) *CatalogCache {
	if ttl <= 0 {
		ttl = defaultCatalogTTL
	}
	return &CatalogCache{
		store: store,
		ttl:   ttl,
		log:   logger.WithModule("catalog_cache"),
	}
}

// Invalidate drops the given catalogues. The generation moves first so that loads already in flight
// discard what they read.
func (c *CatalogCache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || c.store == nil || len(keys) == 0 {
		return
	}
	if err := c.store.Set(ctx, generationKey, []byte(uuid.NewString()), 0); err != nil {
		c.log.Warn("catalog generation bump failed", zap.Error(err))
	}
	if err := cache.NewTyped[struct{}](c.store, catalogNamespace).Forget(ctx, keys...); err != nil {
		c.log.Warn("catalog invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// InvalidateAll drops every catalogue. Role and menu writes change grants visible through all of them.
func (c *CatalogCache) InvalidateAll(ctx context.Context) {
	c.Invalidate(ctx, CatalogRoles, CatalogPermissions, CatalogMenus)
}

// cachedCatalog returns the cached value for key or loads, stores and returns a fresh one.
// Cache failures degrade to a direct load.
func cachedCatalog[T any](ctx context.Context, c *CatalogCache, key string, load func(context.Context) (T, error)) (T, error) {
	if c == nil || c.store == nil {
		return load(ctx)
	}

	typed := cache.NewTyped[T](c.store, catalogNamespace)
	generation, genErr := c.generation(ctx)
	cached, ok, err := typed.Load(ctx, key)
	switch {
	case err != nil:
		metrics.CatalogCacheLookups.WithLabelValues(key, "error").Inc()
		c.log.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
	case ok:
		metrics.CatalogCacheLookups.WithLabelValues(key, "hit").Inc()
		return cached, nil
	default:
		metrics.CatalogCacheLookups.WithLabelValues(key, "miss").Inc()
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	if genErr != nil || !c.current(ctx, generation) {
		return value, nil
	}
	if err := typed.Save(ctx, key, value, c.ttl); err != nil {
		c.log.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
		return value, nil
	}
	// An invalidation between the check and the save may already have run its delete.
	if !c.current(ctx, generation) {
		if err := typed.Forget(ctx, key); err != nil {
			c.log.Warn("catalog cache rollback failed", zap.String("key", key), zap.Error(err))
		}
	}
	return value, nil
}

func (c *CatalogCache) generation(ctx context.Context) ([]byte, error) {
	raw, _, err := c.store.Get(ctx, generationKey)
	if err != nil {
		c.log.Warn("catalog generation read failed", zap.Error(err))
	}
	return raw, err
}

func (c *CatalogCache) current(ctx context.Context, generation []byte) bool {
	now, err := c.generation(ctx)
	return err == nil && bytes.Equal(now, generation)
}
