package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/livetemplate/syntaxstudio/internal/clipboard"
	"github.com/livetemplate/syntaxstudio/internal/config"
	"github.com/livetemplate/syntaxstudio/internal/pane"
	"github.com/livetemplate/syntaxstudio/internal/playground"
	"github.com/livetemplate/syntaxstudio/internal/preview"
	"github.com/livetemplate/syntaxstudio/internal/storage"
)

// systemClipboard is replaced in tests.
var systemClipboard clipboard.Clipboard = clipboard.System{}

func paneArg(f *flags, usage string) (pane.Kind, error) {
	if len(f.args) < 1 {
		return 0, fmt.Errorf("usage: %s", usage)
	}
	return pane.ParseKind(f.args[0])
}

// ShowCommand prints one stored buffer.
func ShowCommand(args []string) error {
	return withStore(args, func(f *flags, cfg *config.Config, store storage.Store) error {
		kind, err := paneArg(f, "syntaxstudio show <html|css|js>")
		if err != nil {
			return err
		}
		doc, err := playground.Load(context.Background(), store, playgroundOptions(cfg)...)
		if err != nil {
			return err
		}
		_, err = io.WriteString(stdout, valueOf(doc, kind))
		return err
	})
}

// SetCommand replaces one buffer from a file, or stdin when the file is
// "-" or omitted.
func SetCommand(args []string) error {
	return withStore(args, func(f *flags, cfg *config.Config, store storage.Store) error {
		kind, err := paneArg(f, "syntaxstudio set <html|css|js> [file|-]")
		if err != nil {
			return err
		}

		var data []byte
		if len(f.args) < 2 || f.args[1] == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(f.args[1])
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", kind, err)
		}

		ctrl, err := playground.New(context.Background(), store, writeOptions(cfg)...)
		if err != nil {
			return err
		}
		defer ctrl.Close()

		if err := <-ctrl.Edit(kind, string(data)); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Saved %s (%d bytes)\n", kind, len(data))
		return nil
	})
}

// ExportCommand writes the composed preview document to a file or stdout.
func ExportCommand(args []string) error {
	return withStore(args, func(f *flags, cfg *config.Config, store storage.Store) error {
		doc, err := playground.Load(context.Background(), store, playgroundOptions(cfg)...)
		if err != nil {
			return err
		}
		out := preview.Compose(doc)

		if len(f.args) == 0 || f.args[0] == "-" {
			_, err = io.WriteString(stdout, out)
			return err
		}
		if err := os.WriteFile(f.args[0], []byte(out), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.args[0], err)
		}
		fmt.Fprintf(os.Stderr, "✓ Exported preview to %s\n", f.args[0])
		return nil
	})
}

// CopyCommand copies one buffer to the system clipboard.
func CopyCommand(args []string) error {
	return withStore(args, func(f *flags, cfg *config.Config, store storage.Store) error {
		kind, err := paneArg(f, "syntaxstudio copy <html|css|js>")
		if err != nil {
			return err
		}

		ctrl, err := playground.New(context.Background(), store, playgroundOptions(cfg)...)
		if err != nil {
			return err
		}
		defer ctrl.Close()

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Editor.GetClipboardTimeout())
		defer cancel()

		var copyErr error
		ctrl.Copy(ctx, kind, systemClipboard, pane.NotifierFunc(func(level, message string) {
			if level == pane.LevelError {
				copyErr = errors.New(message)
				return
			}
			fmt.Fprintf(stdout, "✓ %s\n", message)
		}))
		return copyErr
	})
}

// ResetCommand empties all three buffers.
func ResetCommand(args []string) error {
	return withStore(args, func(f *flags, cfg *config.Config, store storage.Store) error {
		ctrl, err := playground.New(context.Background(), store, writeOptions(cfg)...)
		if err != nil {
			return err
		}
		defer ctrl.Close()

		if err := ctrl.Reset(); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "✓ Reset html, css and js\n")
		return nil
	})
}

func valueOf(doc preview.Document, kind pane.Kind) string {
	switch kind {
	case pane.Markup:
		return doc.Markup
	case pane.Style:
		return doc.Style
	default:
		return doc.Script
	}
}
