package storage

import (
	"context"
	"time"

	"github.com/livetemplate/syntaxstudio/internal/cache"
)

// Cached is a read-through cache in front of another store. Writes always
// reach the backend before the cache is refreshed, one backend write per Set.
type Cached struct {
	backend Store
	cache   cache.Cache
	ttl     time.Duration
}

// NewCached wraps backend with c, caching lookups for ttl.
func NewCached(backend Store, c cache.Cache, ttl time.Duration) *Cached {
	return &Cached{backend: backend, cache: c, ttl: ttl}
}

// Get serves from the cache when possible.
func (c *Cached) Get(ctx context.Context, key string) (string, bool, error) {
	if entry, ok := c.cache.Get(key); ok {
		return entry.Value, entry.Found, nil
	}

	value, found, err := c.backend.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	c.cache.Set(key, value, found, c.ttl)
	return value, found, nil
}

// Set writes through to the backend.
func (c *Cached) Set(ctx context.Context, key, value string) error {
	if err := c.backend.Set(ctx, key, value); err != nil {
		c.cache.Invalidate(key)
		return err
	}
	c.cache.Set(key, value, true, c.ttl)
	return nil
}

// Delete removes key from the backend and the cache.
func (c *Cached) Delete(ctx context.Context, key string) error {
	err := c.backend.Delete(ctx, key)
	c.cache.Invalidate(key)
	return err
}

// Keys always asks the backend.
func (c *Cached) Keys(ctx context.Context, prefix string) ([]string, error) {
	return c.backend.Keys(ctx, prefix)
}

// Close stops the cache sweeper and closes the backend.
func (c *Cached) Close() error {
	c.cache.InvalidateAll()
	if stopper, ok := c.cache.(interface{ Stop() }); ok {
		stopper.Stop()
	}
	return c.backend.Close()
}
