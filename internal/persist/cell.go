// Package persist exposes single named slots of a durable store as
// in-memory values with a setter.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"reflect"
	"sync"

	"github.com/livetemplate/syntaxstudio/internal/config"
	"github.com/livetemplate/syntaxstudio/internal/storage"
)

// DefaultPrefix namespaces every key so the playground does not collide with
// other users of the same store.
const DefaultPrefix = config.DefaultPrefix

// Default supplies the value used when the store has nothing for a key.
type Default[T any] struct {
	value   T
	produce func() T
}

// Value is a literal default.
func Value[T any](v T) Default[T] {
	return Default[T]{value: v}
}

// Func is a lazily computed default. f runs at most once, and only when the
// store has no entry.
func Func[T any](f func() T) Default[T] {
	return Default[T]{produce: f}
}

func (d Default[T]) get() T {
	if d.produce != nil {
		return d.produce()
	}
	return d.value
}

// DecodeError reports a stored value that could not be deserialized.
type DecodeError struct {
	Key string // Namespaced key
	Raw string // Stored text
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("persist: stored value for %q is corrupt: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type options struct {
	prefix            string
	fallbackOnCorrupt bool
	writeContext      context.Context
}

// Option configures a Cell.
type Option func(*options)

// WithPrefix replaces the key namespace.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithFallbackOnCorrupt seeds from the default, after logging, when the
// stored value cannot be decoded. Without it NewCell fails.
func WithFallbackOnCorrupt() Option {
	return func(o *options) {
		o.fallbackOnCorrupt = true
	}
}

// WithWriteContext sets the context used by background writes.
func WithWriteContext(ctx context.Context) Option {
	return func(o *options) {
		o.writeContext = ctx
	}
}

// Cell mirrors one value into one namespaced key of a store.
//
// Set updates the in-memory value immediately and writes the JSON encoding
// in the background. Writes are applied in Set order, one per change, with
// no batching and no retry.
type Cell[T any] struct {
	store    storage.Store
	key      string
	writeCtx context.Context

	mu    sync.Mutex
	value T
	// corrupt is set when the stored value was replaced by the default; the
	// next Set writes even if it equals the default.
	corrupt bool
	// lastWrite is closed when the most recently queued write finishes.
	lastWrite chan struct{}
}

// NewCell reads prefix+key from store. A stored value is JSON-decoded;
// otherwise def provides the initial value.
func NewCell[T any](ctx context.Context, store storage.Store, key string, def Default[T], opts ...Option) (*Cell[T], error) {
	o := options{prefix: DefaultPrefix, writeContext: context.Background()}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Cell[T]{
		store:    store,
		key:      o.prefix + key,
		writeCtx: o.writeContext,
	}

	raw, found, err := store.Get(ctx, c.key)
	if err != nil {
		return nil, fmt.Errorf("persist: failed to read %q: %w", c.key, err)
	}

	if !found {
		c.value = def.get()
		return c, nil
	}

	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		decodeErr := &DecodeError{Key: c.key, Raw: raw, Err: err}
		if !o.fallbackOnCorrupt {
			return nil, decodeErr
		}
		log.Printf("[Persist] %v; using default", decodeErr)
		v = def.get()
		c.corrupt = true
	}
	c.value = v
	return c, nil
}

// Key returns the namespaced storage key.
func (c *Cell[T]) Key() string {
	return c.key
}

// Get returns the in-memory value.
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set replaces the in-memory value and queues its write. The returned channel
// yields the write's outcome once and is then closed. Setting the current
// value again is not a change: nothing is written and the channel yields nil,
// unless the slot held a corrupt value at creation.
func (c *Cell[T]) Set(v T) <-chan error {
	result := make(chan error, 1)

	c.mu.Lock()
	if !c.corrupt && reflect.DeepEqual(c.value, v) {
		c.mu.Unlock()
		result <- nil
		close(result)
		return result
	}
	c.value = v
	c.corrupt = false

	prev := c.lastWrite
	done := make(chan struct{})
	c.lastWrite = done
	c.mu.Unlock()

	go func() {
		defer close(result)
		defer close(done)
		if prev != nil {
			<-prev
		}
		result <- c.write(v)
	}()

	return result
}

func (c *Cell[T]) write(v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("persist: failed to encode %q: %w", c.key, err)
	}
	if err := c.store.Set(c.writeCtx, c.key, string(data)); err != nil {
		log.Printf("[Persist] Failed to write %s: %v", c.key, err)
		return fmt.Errorf("persist: failed to write %q: %w", c.key, err)
	}
	return nil
}

// Wait blocks until every write queued so far has finished.
func (c *Cell[T]) Wait() {
	c.mu.Lock()
	last := c.lastWrite
	c.mu.Unlock()
	if last != nil {
		<-last
	}
}
