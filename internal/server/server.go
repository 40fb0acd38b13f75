// Package server hosts the playground in a browser: the page, its assets,
// one websocket session per tab and an optional REST API over the stored
// document.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/livetemplate/syntaxstudio/internal/assets"
	"github.com/livetemplate/syntaxstudio/internal/config"
	"github.com/livetemplate/syntaxstudio/internal/pane"
	"github.com/livetemplate/syntaxstudio/internal/persist"
	"github.com/livetemplate/syntaxstudio/internal/playground"
	"github.com/livetemplate/syntaxstudio/internal/preview"
	"github.com/livetemplate/syntaxstudio/internal/storage"
)

// CodeMirrorBase is where the page loads the editor widget from.
const CodeMirrorBase = codeMirrorCDN + "/ajax/libs/codemirror/5.65.16"

// Option configures a Server.
type Option func(*Server)

// WithPlaygroundOptions adds options to every session's controller.
func WithPlaygroundOptions(opts ...playground.Option) Option {
	return func(s *Server) {
		s.extraOpts = append(s.extraOpts, opts...)
	}
}

// Server is the syntaxstudio HTTP server.
type Server struct {
	cfg       *config.Config
	store     storage.Store
	page      *template.Template
	handler   http.Handler
	extraOpts []playground.Option

	ctx           context.Context
	cancel        context.CancelFunc
	rateLimitDone <-chan struct{}
	wg            sync.WaitGroup

	mu       sync.RWMutex
	sessions map[string]*Session
	watcher  *Watcher
}

// SyncDir returns the directory being mirrored, or "" when sync is off.
func (s *Server) SyncDir() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.watcher == nil {
		return ""
	}
	return s.watcher.Dir()
}

// New creates a server over store. The store is shared by every session and
// is not closed by the server.
func New(cfg *config.Config, store storage.Store, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	page, err := assets.PageTemplate()
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		store:    store,
		page:     page,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.servePage)
	mux.HandleFunc("GET /assets/{name}", s.serveAsset)
	mux.HandleFunc("GET /ws", s.serveWebSocket)

	if s.cfg.IsAPIEnabled() {
		api := http.NewServeMux()
		api.HandleFunc("GET /api/document", s.handleGetDocument)
		api.HandleFunc("PUT /api/document/{pane}", s.handlePutPane)
		api.HandleFunc("DELETE /api/document", s.handleResetDocument)
		api.HandleFunc("GET /api/preview", s.handlePreview)

		limit, done := RateLimitMiddleware(s.ctx,
			s.cfg.API.GetRateLimitRPS(),
			s.cfg.API.GetRateLimitBurst(),
			s.cfg.API.GetRateLimitMaxIPs())
		s.rateLimitDone = done
		mux.Handle("/api/", limit(api))
	}

	return SecurityHeadersMiddleware()(WithCompression(mux))
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) controllerOptions() []playground.Option {
	opts := []playground.Option{
		playground.WithDelay(s.cfg.Editor.GetDebounceDelay()),
		playground.WithPrefix(s.cfg.Storage.GetPrefix()),
	}
	if s.cfg.Storage.FallbackOnCorrupt() {
		opts = append(opts, playground.WithFallbackOnCorrupt())
	}
	return append(opts, s.extraOpts...)
}

type paneView struct {
	State       pane.State
	OptionsJSON string
}

type pageData struct {
	Title          string
	Panes          []paneView
	Themes         []pane.Theme
	FontSizes      []pane.FontSize
	Sandbox        string
	CodeMirrorBase string
}

// RenderPage renders the playground page with every pane in its initial
// state.
func (s *Server) RenderPage() ([]byte, error) {
	data := pageData{
		Title:          s.cfg.Title,
		Themes:         pane.Themes,
		FontSizes:      pane.FontSizes,
		Sandbox:        preview.SandboxPolicy,
		CodeMirrorBase: CodeMirrorBase,
	}
	for _, k := range pane.Kinds {
		p := pane.New(k)
		opts, err := json.Marshal(p.EditorOptions())
		if err != nil {
			return nil, err
		}
		data.Panes = append(data.Panes, paneView{State: p.State(), OptionsJSON: string(opts)})
	}

	var buf bytes.Buffer
	if err := s.page.ExecuteTemplate(&buf, "playground.html", data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request) {
	body, err := s.RenderPage()
	if err != nil {
		log.Printf("[Server] Failed to render page: %v", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(body)
}

func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request) {
	var (
		data        []byte
		err         error
		contentType string
	)
	switch r.PathValue("name") {
	case "playground.js":
		data, err = assets.GetClientJS()
		contentType = "application/javascript"
	case "playground.css":
		data, err = assets.GetClientCSS()
		contentType = "text/css"
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "Asset not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// RegisterSession adds a live session.
func (s *Server) RegisterSession(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.id] = sess
	log.Printf("[Server] Session registered: %d active sessions", len(s.sessions))
}

// UnregisterSession removes a session.
func (s *Server) UnregisterSession(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess.id)
	log.Printf("[Server] Session unregistered: %d active sessions", len(s.sessions))
}

// Sessions returns the live sessions.
func (s *Server) Sessions() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// Document reads the stored buffers.
func (s *Server) Document(ctx context.Context) (preview.Document, error) {
	return playground.Load(ctx, s.store, s.controllerOptions()...)
}

// ApplyEdit stores value for kind and pushes it to every live session.
func (s *Server) ApplyEdit(ctx context.Context, kind pane.Kind, value string) error {
	cellOpts := []persist.Option{persist.WithPrefix(s.cfg.Storage.GetPrefix()), persist.WithFallbackOnCorrupt()}
	cell, err := persist.NewCell(ctx, s.store, kind.Key(), persist.Value(""), cellOpts...)
	if err != nil {
		return err
	}
	if err := <-cell.Set(value); err != nil {
		return err
	}

	sessions := s.Sessions()
	results := make([]<-chan error, 0, len(sessions))
	for _, sess := range sessions {
		results = append(results, sess.Apply(kind, value))
	}

	var errs []error
	for _, ch := range results {
		if err := <-ch; err != nil && !errors.Is(err, playground.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if len(sessions) > 0 {
		log.Printf("[Server] Applied %s edit to %d sessions", kind, len(sessions))
	}
	return errors.Join(errs...)
}

// Reset empties every buffer.
func (s *Server) Reset(ctx context.Context) error {
	var errs []error
	for _, k := range pane.Kinds {
		if err := s.ApplyEdit(ctx, k, ""); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// EnableSync mirrors index.html, style.css and script.js in dir into the
// playground. Files present at start are applied immediately. A directory
// synced earlier stops being watched; if dir cannot be watched the earlier
// one is kept.
func (s *Server) EnableSync(dir string) error {
	apply := func(kind pane.Kind, value string) error {
		return s.ApplyEdit(s.ctx, kind, value)
	}

	w, err := NewWatcher(dir, apply, s.cfg.Server.Debug)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	s.stopWatcher()

	for _, k := range pane.Kinds {
		data, err := os.ReadFile(filepath.Join(dir, SyncFileName(k)))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			w.Stop()
			return err
		}
		if err := apply(k, string(data)); err != nil {
			w.Stop()
			return err
		}
	}

	s.mu.Lock()
	prev := s.watcher
	s.watcher = w
	s.mu.Unlock()
	if prev != nil {
		// Another EnableSync raced this one; the later install wins.
		prev.Stop()
	}
	w.Start()

	log.Printf("[Sync] Watching %s", dir)
	return nil
}

// stopWatcher detaches and stops the current sync watcher, if any. The
// watcher may be applying a change, which takes s.mu, so it is stopped
// outside the lock.
func (s *Server) stopWatcher() {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if w == nil {
		return
	}
	if err := w.Stop(); err != nil {
		log.Printf("[Sync] Stop failed for %s: %v", w.Dir(), err)
	}
}

// Shutdown stops the watcher, closes every session and waits for their
// controllers to finish writing, or for ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopWatcher()
	sessions := s.Sessions()

	for _, sess := range sessions {
		sess.conn.Close()
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		if s.rateLimitDone != nil {
			<-s.rateLimitDone
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
