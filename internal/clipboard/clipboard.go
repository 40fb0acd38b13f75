// Package clipboard defines the write-only clipboard capability used by the
// copy action.
package clipboard

import (
	"context"
	"sync"

	"github.com/atotto/clipboard"
)

// Clipboard writes text to a clipboard. Implementations may complete
// asynchronously; Copy returns once the outcome is known or ctx is done.
type Clipboard interface {
	Copy(ctx context.Context, text string) error
}

// System writes to the operating system clipboard.
type System struct{}

// Copy copies text to the system clipboard.
func (System) Copy(ctx context.Context, text string) error {
	done := make(chan error, 1)
	go func() {
		done <- clipboard.WriteAll(text)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Supported reports whether a system clipboard utility is available.
func (System) Supported() bool {
	return !clipboard.Unsupported
}

// Recorder is an in-memory clipboard for tests. Set Err to make copies fail.
type Recorder struct {
	mu     sync.Mutex
	copies []string
	Err    error
}

// Copy records text, or returns Err.
func (r *Recorder) Copy(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.copies = append(r.copies, text)
	return nil
}

// Copies returns the recorded texts.
func (r *Recorder) Copies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.copies...)
}

// Last returns the most recent copy, or "".
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.copies) == 0 {
		return ""
	}
	return r.copies[len(r.copies)-1]
}
