package main

import (
	"context"
	"fmt"
	"html/template"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/livetemplate/syntaxstudio/internal/config"
	"github.com/livetemplate/syntaxstudio/internal/preview"
	"github.com/livetemplate/syntaxstudio/internal/server"
	"github.com/livetemplate/syntaxstudio/internal/storage"
)

// App runs the playground server on a loopback port and points the window
// at it. The webview asset server cannot carry websockets, so the page has
// to be loaded from the real listener.
type App struct {
	ctx        context.Context
	store      storage.Store
	server     *server.Server
	httpServer *http.Server
	serverURL  string
	startErr   error
	mu         sync.RWMutex
}

// NewApp creates a new App application struct.
func NewApp() *App {
	return &App{}
}

// dataDir is where the desktop app keeps its database.
func dataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "syntaxstudio")
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	if err := a.startServer(); err != nil {
		log.Printf("[Desktop] Failed to start server: %v", err)
		a.mu.Lock()
		a.startErr = err
		a.mu.Unlock()
		return
	}
	runtime.EventsEmit(ctx, "navigate", a.GetServerURL())
}

func (a *App) shutdown(ctx context.Context) {
	a.stopServer()
}

func (a *App) startServer() error {
	cfg, err := config.LoadFromDir(dataDir())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	store, err := storage.Open(cfg.Storage)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, store)
	if err != nil {
		store.Close()
		return err
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		store.Close()
		return fmt.Errorf("failed to find free port: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	httpServer := &http.Server{Handler: srv}
	go func() {
		if err := httpServer.Serve(listener); err != http.ErrServerClosed {
			log.Printf("[Desktop] HTTP server error: %v", err)
		}
	}()

	a.mu.Lock()
	a.store = store
	a.server = srv
	a.httpServer = httpServer
	a.serverURL = fmt.Sprintf("http://127.0.0.1:%d/", port)
	a.mu.Unlock()

	log.Printf("[Desktop] Playground running at %s", a.serverURL)
	return nil
}

func (a *App) stopServer() {
	a.mu.Lock()
	defer a.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			log.Printf("[Desktop] Session shutdown incomplete: %v", err)
		}
		a.server = nil
	}
	if a.httpServer != nil {
		a.httpServer.Shutdown(ctx)
		a.httpServer = nil
	}
	if a.store != nil {
		a.store.Close()
		a.store = nil
	}
	a.serverURL = ""
}

func (a *App) current() (*server.Server, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.server == nil {
		return nil, fmt.Errorf("playground is not running")
	}
	return a.server, nil
}

// GetServerURL returns the playground URL, or "" if it is not running.
func (a *App) GetServerURL() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.serverURL
}

// GetSyncDirectory returns the mirrored directory, if any.
func (a *App) GetSyncDirectory() string {
	srv, err := a.current()
	if err != nil {
		return ""
	}
	return srv.SyncDir()
}

// SyncDirectory asks for a folder and mirrors its index.html, style.css and
// script.js into the playground.
func (a *App) SyncDirectory() (string, error) {
	srv, err := a.current()
	if err != nil {
		return "", err
	}

	dir, err := runtime.OpenDirectoryDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "Sync Folder (index.html, style.css, script.js)",
	})
	if err != nil || dir == "" {
		return "", err
	}

	if err := srv.EnableSync(dir); err != nil {
		return "", err
	}

	runtime.WindowSetTitle(a.ctx, fmt.Sprintf("Syntax Studio - %s", filepath.Base(dir)))
	return dir, nil
}

// ExportPreview saves the composed preview document.
func (a *App) ExportPreview() (string, error) {
	srv, err := a.current()
	if err != nil {
		return "", err
	}

	path, err := runtime.SaveFileDialog(a.ctx, runtime.SaveDialogOptions{
		Title:           "Export Preview",
		DefaultFilename: "preview.html",
		Filters: []runtime.FileFilter{
			{DisplayName: "HTML Files (*.html)", Pattern: "*.html"},
		},
	})
	if err != nil || path == "" {
		return "", err
	}

	doc, err := srv.Document(a.ctx)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(preview.Compose(doc)), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// Reset empties all three buffers in every open session.
func (a *App) Reset() error {
	srv, err := a.current()
	if err != nil {
		return err
	}
	return srv.Reset(a.ctx)
}

func (a *App) showError(title string, err error) {
	log.Printf("[Desktop] %s: %v", title, err)
	runtime.MessageDialog(a.ctx, runtime.MessageDialogOptions{
		Type:    runtime.ErrorDialog,
		Title:   title,
		Message: err.Error(),
	})
}

// GetHandler serves the window's first page, which forwards to the loopback
// server once it is up.
func (a *App) GetHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.RLock()
		data := launchData{URL: a.serverURL}
		if a.startErr != nil {
			data.Error = a.startErr.Error()
		}
		a.mu.RUnlock()

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := launchPage.Execute(w, data); err != nil {
			log.Printf("[Desktop] Failed to render launch page: %v", err)
		}
	})
}

type launchData struct {
	URL   string
	Error string
}

var launchPage = template.Must(template.New("launch").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Syntax Studio</title>
  <style>
    body { margin: 0; min-height: 100vh; display: flex; align-items: center; justify-content: center;
           background: #1e1e1e; color: #e0e0e0; font-family: system-ui, sans-serif; }
    .error { color: #ef5350; }
  </style>
</head>
<body>
  {{if .Error}}
  <p class="error">Could not start the playground: {{.Error}}</p>
  {{else}}
  <p id="status">Starting playground...</p>
  <script>
    function go(url) { if (url) { window.location.href = url; } }
    go({{.URL}});
    if (window.runtime) {
      window.runtime.EventsOn("navigate", go);
    }
    setTimeout(async function poll() {
      if (window.go && window.go.main && window.go.main.App) {
        const url = await window.go.main.App.GetServerURL();
        if (url) { go(url); return; }
      }
      setTimeout(poll, 200);
    }, 200);
  </script>
  {{end}}
</body>
</html>
`))
