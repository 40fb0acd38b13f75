// Package playground wires the three editor buffers to persistence, the
// debounced preview and the surface that displays it.
package playground

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/livetemplate/syntaxstudio/internal/clipboard"
	"github.com/livetemplate/syntaxstudio/internal/config"
	"github.com/livetemplate/syntaxstudio/internal/debounce"
	"github.com/livetemplate/syntaxstudio/internal/pane"
	"github.com/livetemplate/syntaxstudio/internal/persist"
	"github.com/livetemplate/syntaxstudio/internal/preview"
	"github.com/livetemplate/syntaxstudio/internal/storage"
)

// ErrClosed is reported by Edit after Close.
var ErrClosed = errors.New("playground: controller is closed")

// Surface displays a composed preview document.
type Surface interface {
	Render(doc string)
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func(doc string)

// Render calls f.
func (f SurfaceFunc) Render(doc string) { f(doc) }

type options struct {
	clock             debounce.Clock
	delay             time.Duration
	prefix            string
	surface           Surface
	fallbackOnCorrupt bool
}

// Option configures a Controller.
type Option func(*options)

// WithClock sets the clock driving the debounce timer.
func WithClock(c debounce.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithDelay sets the quiet period before the preview is recomposed.
func WithDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.delay = d
		}
	}
}

// WithPrefix sets the storage key namespace.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithSurface sets where composed previews are delivered.
func WithSurface(s Surface) Option {
	return func(o *options) { o.surface = s }
}

// WithFallbackOnCorrupt seeds a buffer with "" when its stored value cannot
// be decoded, instead of failing New.
func WithFallbackOnCorrupt() Option {
	return func(o *options) { o.fallbackOnCorrupt = true }
}

func buildOptions(opts []Option) options {
	o := options{
		clock:  debounce.RealClock{},
		delay:  config.DefaultDebounceDelay,
		prefix: config.DefaultPrefix,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) cellOptions() []persist.Option {
	opts := []persist.Option{persist.WithPrefix(o.prefix)}
	if o.fallbackOnCorrupt {
		opts = append(opts, persist.WithFallbackOnCorrupt())
	}
	return opts
}

// Controller owns the buffers of one playground instance.
//
// Each Edit is persisted immediately through the buffer's cell; the preview
// is recomposed only after the debounce delay passes with no further edit.
type Controller struct {
	cells     [3]*persist.Cell[string]
	panes     [3]*pane.Pane
	surface   Surface
	debouncer *debounce.Debouncer

	mu      sync.RWMutex
	preview string
	renders int
	closed  bool
}

// New seeds the buffers from store and arms the first render.
func New(ctx context.Context, store storage.Store, opts ...Option) (*Controller, error) {
	o := buildOptions(opts)

	c := &Controller{surface: o.surface}
	for _, k := range pane.Kinds {
		cell, err := persist.NewCell(ctx, store, k.Key(), persist.Value(""), o.cellOptions()...)
		if err != nil {
			return nil, fmt.Errorf("playground: failed to load %s: %w", k.DisplayName(), err)
		}
		c.cells[k] = cell
		c.panes[k] = pane.New(k)
	}

	c.debouncer = debounce.New(o.clock, o.delay, c.render)
	c.debouncer.Call()
	return c, nil
}

// Load reads the stored document without starting a controller.
func Load(ctx context.Context, store storage.Store, opts ...Option) (preview.Document, error) {
	o := buildOptions(opts)

	var values [3]string
	for _, k := range pane.Kinds {
		cell, err := persist.NewCell(ctx, store, k.Key(), persist.Value(""), o.cellOptions()...)
		if err != nil {
			return preview.Document{}, fmt.Errorf("playground: failed to load %s: %w", k.DisplayName(), err)
		}
		values[k] = cell.Get()
	}
	return preview.Document{
		Markup: values[pane.Markup],
		Style:  values[pane.Style],
		Script: values[pane.Script],
	}, nil
}

func (c *Controller) render() {
	doc := preview.Compose(c.Document())

	c.mu.Lock()
	c.preview = doc
	c.renders++
	c.mu.Unlock()

	if c.surface != nil {
		c.surface.Render(doc)
	}
}

func valid(kind pane.Kind) bool {
	return kind >= pane.Markup && kind <= pane.Script
}

func failed(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	close(ch)
	return ch
}

// Edit replaces the buffer for kind and schedules a re-render. The returned
// channel reports the outcome of the storage write.
func (c *Controller) Edit(kind pane.Kind, value string) <-chan error {
	if !valid(kind) {
		return failed(fmt.Errorf("%w: %d", pane.ErrUnknownPane, int(kind)))
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return failed(ErrClosed)
	}

	result := c.cells[kind].Set(value)
	c.debouncer.Call()
	return result
}

// Reset empties all three buffers.
func (c *Controller) Reset() error {
	var errs []error
	results := make([]<-chan error, 0, len(pane.Kinds))
	for _, k := range pane.Kinds {
		results = append(results, c.Edit(k, ""))
	}
	for _, ch := range results {
		if err := <-ch; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Value returns the current buffer for kind.
func (c *Controller) Value(kind pane.Kind) string {
	if !valid(kind) {
		return ""
	}
	return c.cells[kind].Get()
}

// Document returns the current buffers.
func (c *Controller) Document() preview.Document {
	return preview.Document{
		Markup: c.cells[pane.Markup].Get(),
		Style:  c.cells[pane.Style].Get(),
		Script: c.cells[pane.Script].Get(),
	}
}

// Preview returns the last composed document, or "" before the first render.
func (c *Controller) Preview() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.preview
}

// Renders returns how many times the preview has been composed.
func (c *Controller) Renders() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.renders
}

// Flush renders now if an edit is waiting for the debounce delay.
func (c *Controller) Flush() {
	c.debouncer.Flush()
}

// Pane returns the display state for kind, or nil for an unknown kind.
func (c *Controller) Pane(kind pane.Kind) *pane.Pane {
	if !valid(kind) {
		return nil
	}
	return c.panes[kind]
}

// Panes returns the pane states in display order.
func (c *Controller) Panes() []pane.State {
	states := make([]pane.State, 0, len(c.panes))
	for _, p := range c.panes {
		states = append(states, p.State())
	}
	return states
}

// Copy copies the buffer for kind to cb and notifies n of the outcome.
func (c *Controller) Copy(ctx context.Context, kind pane.Kind, cb clipboard.Clipboard, n pane.Notifier) {
	p := c.Pane(kind)
	if p == nil {
		if n != nil {
			n.Notify(pane.LevelError, fmt.Sprintf("unknown pane %d", int(kind)))
		}
		return
	}
	p.Copy(ctx, cb, c.Value(kind), n)
}

// Close stops the debounce timer and waits for queued writes. No render
// happens after Close returns. Close must not be called from a Surface.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.debouncer.Stop()
	for _, cell := range c.cells {
		cell.Wait()
	}
	return nil
}
