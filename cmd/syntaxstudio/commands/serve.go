package commands

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/livetemplate/syntaxstudio/internal/config"
	"github.com/livetemplate/syntaxstudio/internal/server"
)

// ServeCommand implements the serve command.
func ServeCommand(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := f.loadConfig()
	if err != nil {
		return err
	}

	// CLI flags override config
	if f.port != "" {
		port, err := strconv.Atoi(f.port)
		if err != nil {
			return fmt.Errorf("invalid port: %s", f.port)
		}
		cfg.Server.Port = port
	}
	if f.host != "" {
		cfg.Server.Host = f.host
	}
	if f.debug {
		cfg.Server.Debug = true
	}
	if f.api {
		if cfg.API == nil {
			cfg.API = &config.APIConfig{}
		}
		cfg.API.Enabled = true
	}
	if f.syncDir != "" {
		cfg.Sync = &config.SyncConfig{Dir: f.syncDir}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	srv, err := server.New(cfg, store)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "🎨 Syntax Studio\n\n")
	fmt.Fprintf(stdout, "Storage: %s\n", describeStorage(cfg))

	if cfg.IsSyncEnabled() {
		if err := srv.EnableSync(cfg.Sync.Dir); err != nil {
			return fmt.Errorf("failed to enable sync: %w", err)
		}
		fmt.Fprintf(stdout, "👀 Syncing index.html, style.css and script.js from %s\n", cfg.Sync.Dir)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	fmt.Fprintf(stdout, "\n🌐 Server running at http://%s\n", addr)
	if cfg.IsAPIEnabled() {
		fmt.Fprintf(stdout, "🔌 REST API enabled at /api/document and /api/preview\n")
	}
	fmt.Fprintf(stdout, "⚡ Gzip compression enabled\n")
	fmt.Fprintf(stdout, "Press Ctrl+C to stop\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, &http.Server{Addr: addr, Handler: srv}, srv)
}

// run serves until ctx is cancelled, then shuts down sessions before the
// listener.
func run(ctx context.Context, httpServer *http.Server, srv *server.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Printf("[Server] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Server] Session shutdown incomplete: %v", err)
	}
	return httpServer.Shutdown(shutdownCtx)
}

func describeStorage(cfg *config.Config) string {
	switch cfg.Storage.GetDriver() {
	case "sqlite":
		return "sqlite " + cfg.Storage.GetPath()
	case "postgres":
		return "postgres"
	default:
		return cfg.Storage.GetDriver()
	}
}

func init() {
	log.SetFlags(0) // Remove timestamp from logs
}
