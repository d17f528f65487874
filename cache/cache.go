package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultTTL bounds staleness as a backstop; explicit invalidation on write
// is the primary consistency mechanism.
const DefaultTTL = time.Hour

// Cache implements cache-aside reads and refresh-plus-invalidate writes over
// a Store. The cache is an optimization: any store failure degrades to a
// miss, never to a request failure.
type Cache struct {
	store  Store
	logger *zap.Logger
	ttl    time.Duration
}

func New(store Store, logger *zap.Logger) *Cache {
	return &Cache{
		store:  store,
		logger: logger,
		ttl:    DefaultTTL,
	}
}

// GetJSON looks up a key and unmarshals it into dest. A present-but-corrupt
// value is deleted and reported as a miss so the caller repopulates it.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			c.logger.Warn("cache read failed, falling back to store",
				zap.String("key", key),
				zap.Error(err))
		}
		return ErrCacheMiss
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Warn("corrupt cache entry, treating as miss",
			zap.String("key", key),
			zap.Error(err))
		if delErr := c.store.Del(ctx, key); delErr != nil {
			c.logger.Warn("failed to drop corrupt cache entry",
				zap.String("key", key),
				zap.Error(delErr))
		}
		return ErrCacheMiss
	}
	return nil
}

// SetJSON marshals a value and stores it under key with the default TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, value any) error {
	return c.SetJSONWithTTL(ctx, key, value, c.ttl)
}

// SetJSONWithTTL is SetJSON with an explicit expiry, used for entries whose
// lifetime is tied to something other than cache staleness, like session
// tokens.
func (c *Cache) SetJSONWithTTL(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to marshal data for cache")
	}
	return c.store.Set(ctx, key, data, ttl)
}

// Delete removes the given keys. Missing keys are not an error.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	return c.store.Del(ctx, keys...)
}

// Invalidate drops every paged-listing key plus the total and upcoming
// shortcut keys under the scope. Best effort: a failure leaves the TTL as
// the consistency backstop.
func (c *Cache) Invalidate(ctx context.Context, ks Keys) {
	keys, err := c.store.Keys(ctx, ks.PagePattern())
	if err != nil {
		c.logger.Warn("failed to enumerate page keys for invalidation",
			zap.String("pattern", ks.PagePattern()),
			zap.Error(err))
	}
	keys = append(keys, ks.Total(), ks.Upcoming())
	if err := c.store.Del(ctx, keys...); err != nil {
		c.logger.Warn("failed to invalidate cache keys",
			zap.Strings("keys", keys),
			zap.Error(err))
	}
}

// GetOrPopulate is the read path for single entities and singleton records:
// cache hit short-circuits, miss queries the source of truth through loader
// and repopulates the key. When bypass is set (a free-text search or filter
// is present) the cache is skipped entirely in both directions.
func GetOrPopulate[T any](ctx context.Context, c *Cache, key string, bypass bool, loader func(context.Context) (T, error)) (T, error) {
	var cached T
	if !bypass {
		if err := c.GetJSON(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	value, err := loader(ctx)
	if err != nil {
		return value, err
	}

	if !bypass {
		if err := c.SetJSON(ctx, key, value); err != nil {
			c.logger.Warn("failed to populate cache",
				zap.String("key", key),
				zap.Error(err))
		}
	}
	return value, nil
}

// ListOrPopulate is the read path for the unfiltered paginated baseline view.
// A hit requires both the page key and its sibling total key; on miss the
// loader returns the page items plus the unfiltered total and both keys are
// repopulated. Filtered listings always bypass.
func ListOrPopulate[T any](ctx context.Context, c *Cache, ks Keys, page int, bypass bool, loader func(context.Context) ([]T, int, error)) ([]T, int, error) {
	pageKey := ks.Page(page)
	totalKey := ks.Total()

	if !bypass {
		var items []T
		var total int
		if c.GetJSON(ctx, pageKey, &items) == nil && c.GetJSON(ctx, totalKey, &total) == nil {
			return items, total, nil
		}
	}

	items, total, err := loader(ctx)
	if err != nil {
		return nil, 0, err
	}

	if !bypass {
		if err := c.SetJSON(ctx, pageKey, items); err != nil {
			c.logger.Warn("failed to populate page cache",
				zap.String("key", pageKey),
				zap.Error(err))
		} else if err := c.SetJSON(ctx, totalKey, total); err != nil {
			c.logger.Warn("failed to populate total cache",
				zap.String("key", totalKey),
				zap.Error(err))
		}
	}
	return items, total, nil
}

// MutateAndInvalidate is the write path: apply the mutation against the
// source of truth, refresh the entity's direct-lookup key with the fresh
// shape, then drop every listing key whose value could now be stale.
func MutateAndInvalidate[T any](ctx context.Context, c *Cache, ks Keys, entityID string, mutator func(context.Context) (T, error)) (T, error) {
	value, err := mutator(ctx)
	if err != nil {
		return value, err
	}

	if err := c.SetJSON(ctx, ks.Entity(entityID), value); err != nil {
		c.logger.Warn("failed to refresh entity cache after write",
			zap.String("key", ks.Entity(entityID)),
			zap.Error(err))
	}

	c.Invalidate(ctx, ks)
	return value, nil
}
