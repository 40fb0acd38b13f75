package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClipboardRejected is returned when the page reports that it could not
// write to the clipboard.
var ErrClipboardRejected = errors.New("browser clipboard: write rejected")

// ClipboardRequest asks the page to write text to its clipboard.
type ClipboardRequest struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type clipboardResult struct {
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// browserClipboard writes through the page's clipboard API. Each copy is a
// request/response pair over the session, matched by id.
type browserClipboard struct {
	session *Session
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]chan clipboardResult
}

func newBrowserClipboard(s *Session, timeout time.Duration) *browserClipboard {
	return &browserClipboard{
		session: s,
		timeout: timeout,
		pending: make(map[string]chan clipboardResult),
	}
}

// Copy sends text to the page and waits for its answer.
func (b *browserClipboard) Copy(ctx context.Context, text string) error {
	id := uuid.NewString()
	ch := make(chan clipboardResult, 1)

	b.mu.Lock()
	b.pending[id] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	if err := b.session.send(MessageClipboard, "", ClipboardRequest{ID: id, Text: text}); err != nil {
		return fmt.Errorf("browser clipboard: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	select {
	case res := <-ch:
		if !res.OK {
			if res.Error != "" {
				return fmt.Errorf("%w: %s", ErrClipboardRejected, res.Error)
			}
			return ErrClipboardRejected
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser clipboard: %w", ctx.Err())
	}
}

// resolve hands a result to its waiting Copy. It reports false for unknown
// or already answered ids.
func (b *browserClipboard) resolve(res clipboardResult) bool {
	b.mu.Lock()
	ch, ok := b.pending[res.ID]
	delete(b.pending, res.ID)
	b.mu.Unlock()

	if !ok {
		return false
	}
	ch <- res
	return true
}
