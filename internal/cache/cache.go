// Package cache provides a small bounded get-or-load cache with TTL expiry
// and explicit invalidation, used where the platform would otherwise reach
// for ambient module-level state (e.g. per-account preference lookups on
// the signal ingestion path).
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Cache is a bounded TTL cache. Concurrent loads for the same key are
// collapsed into a single loader call; entries expire after the configured
// TTL or when explicitly invalidated.
type Cache[V any] struct {
	lru   *expirable.LRU[string, V]
	group singleflight.Group
}

// New creates a cache holding at most size entries, each expiring ttl
// after it was stored.
func New[V any](size int, ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		lru: expirable.NewLRU[string, V](size, nil, ttl),
	}
}

// GetOrLoad returns the cached value for key, calling loader on a miss and
// storing its result. Loader errors are not cached: a failed load leaves
// the key absent so the next call retries.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, loader func(ctx context.Context) (V, error)) (V, error) {
	if value, ok := c.lru.Get(key); ok {
		return value, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check under the flight: another caller may have populated the
		// entry while this one was queued.
		if value, ok := c.lru.Get(key); ok {
			return value, nil
		}

		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}

		c.lru.Add(key, value)
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}

	return result.(V), nil
}

// Invalidate removes the entry for key, forcing the next GetOrLoad to hit
// the loader.
func (c *Cache[V]) Invalidate(key string) {
	c.lru.Remove(key)
}

// Purge removes all entries.
func (c *Cache[V]) Purge() {
	c.lru.Purge()
}

// Len returns the number of live entries.
func (c *Cache[V]) Len() int {
	return c.lru.Len()
}
