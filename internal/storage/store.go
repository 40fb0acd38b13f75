// Package storage provides the durable key/value stores that back the
// playground buffers.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/livetemplate/syntaxstudio/internal/cache"
	"github.com/livetemplate/syntaxstudio/internal/config"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage: store is closed")

// Store is a durable string key/value store.
type Store interface {
	// Get returns the value stored at key. found is false if the key is absent.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set stores value at key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists the stored keys that start with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Close releases resources.
	Close() error
}

// Open creates the store selected by cfg. A configured cache TTL wraps the
// backend in a read-through cache.
func Open(cfg config.StorageConfig) (Store, error) {
	var (
		backend Store
		err     error
	)

	switch cfg.GetDriver() {
	case "memory":
		backend = NewMemory()
	case "sqlite":
		backend, err = NewSQLite(cfg.GetPath())
	case "postgres":
		backend, err = NewPostgres(cfg.GetDSN())
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if ttl := cfg.GetCacheTTL(); ttl > 0 {
		return NewCached(backend, cache.NewMemoryCache(), ttl), nil
	}
	return backend, nil
}
