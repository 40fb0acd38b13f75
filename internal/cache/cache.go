// Package cache provides a TTL read cache for durable storage lookups.
package cache

import (
	"sync"
	"time"
)

// Entry is a cached lookup result. Found is false for a cached miss, so an
// absent key does not hit the backend on every read either.
type Entry struct {
	Value     string
	Found     bool
	ExpiresAt time.Time
}

// IsExpired returns true if the entry has expired at now.
func (e *Entry) IsExpired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Cache defines the interface for storage lookup caching
type Cache interface {
	// Get returns the cached entry for key, if present and not expired.
	Get(key string) (Entry, bool)

	// Set stores a lookup result for key with the given TTL.
	Set(key string, value string, found bool, ttl time.Duration)

	// Invalidate removes an entry from the cache
	Invalidate(key string)

	// InvalidateAll removes all entries from the cache
	InvalidateAll()
}

// MemoryCache is an in-memory cache implementation with TTL support
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	now     func() time.Time

	// For background cleanup
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once // Ensures Stop() is idempotent
}

// Option configures a MemoryCache.
type Option func(*MemoryCache)

// WithNow replaces the time source, for tests.
func WithNow(now func() time.Time) Option {
	return func(c *MemoryCache) {
		c.now = now
	}
}

// WithCleanupInterval sets how often expired entries are swept.
func WithCleanupInterval(d time.Duration) Option {
	return func(c *MemoryCache) {
		if d > 0 {
			c.cleanupInterval = d
		}
	}
}

// NewMemoryCache creates a new in-memory cache and starts its sweeper.
func NewMemoryCache(opts ...Option) *MemoryCache {
	c := &MemoryCache{
		entries:         make(map[string]*Entry),
		now:             time.Now,
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.cleanupLoop()
	return c
}

// Get returns the cached entry for key.
func (c *MemoryCache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return Entry{}, false
	}

	if entry.IsExpired(c.now()) {
		c.Invalidate(key)
		return Entry{}, false
	}

	return *entry, true
}

// Set stores a lookup result for key.
func (c *MemoryCache) Set(key string, value string, found bool, ttl time.Duration) {
	entry := &Entry{
		Value:     value,
		Found:     found,
		ExpiresAt: c.now().Add(ttl),
	}

	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// Invalidate removes an entry from the cache
func (c *MemoryCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidateAll removes all entries from the cache
func (c *MemoryCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]*Entry)
	c.mu.Unlock()
}

// cleanupLoop periodically removes expired entries
func (c *MemoryCache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

// cleanup removes all expired entries
func (c *MemoryCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, entry := range c.entries {
		if entry.IsExpired(now) {
			delete(c.entries, key)
		}
	}
}

// Stop stops the background cleanup goroutine
// Safe to call multiple times
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCleanup)
	})
}

// Len returns the number of entries in the cache (for testing)
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
