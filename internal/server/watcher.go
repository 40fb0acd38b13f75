package server

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/livetemplate/syntaxstudio/internal/pane"
)

// SyncFiles maps the files of a sync directory to the buffers they feed.
var SyncFiles = map[string]pane.Kind{
	"index.html": pane.Markup,
	"style.css":  pane.Style,
	"script.js":  pane.Script,
}

// SyncFileName returns the sync-directory file for kind.
func SyncFileName(kind pane.Kind) string {
	for name, k := range SyncFiles {
		if k == kind {
			return name
		}
	}
	return ""
}

// Watcher mirrors the sync files of a directory into the playground.
type Watcher struct {
	watcher  *fsnotify.Watcher
	dir      string
	onChange func(kind pane.Kind, value string) error
	done     chan struct{}
	exited   chan struct{}
	debug    bool

	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
	stopErr   error
}

// NewWatcher watches dir for writes to the sync files. onChange receives the
// new file contents.
func NewWatcher(dir string, onChange func(pane.Kind, string) error, debug bool) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("sync directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sync directory: %s is not a directory", dir)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, not the files: editors often replace a file by
	// renaming a temp file over it.
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	return &Watcher{
		watcher:  fsWatcher,
		dir:      dir,
		onChange: onChange,
		done:     make(chan struct{}),
		exited:   make(chan struct{}),
		debug:    debug,
	}, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Start begins watching for file changes. Calls after the first are
// ignored.
func (w *Watcher) Start() {
	w.startOnce.Do(func() {
		w.started = true
		go w.loop()
	})
}

func (w *Watcher) loop() {
	defer close(w.exited)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			kind, ok := SyncFiles[filepath.Base(event.Name)]
			if !ok {
				continue
			}
			if w.debug {
				log.Printf("[Sync] File changed: %s", filepath.Base(event.Name))
			}
			if err := w.apply(event.Name, kind); err != nil {
				log.Printf("[Sync] Apply failed for %s: %v", filepath.Base(event.Name), err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[Sync] Error: %v", err)

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) apply(path string, kind pane.Kind) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return w.onChange(kind, string(data))
}

// Stop stops the watcher and waits for an in-flight change to finish, so
// nothing is applied after it returns. It is safe to call more than once.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		// Mark as started so a later Start cannot launch the loop.
		w.startOnce.Do(func() {})
		close(w.done)
		w.stopErr = w.watcher.Close()
		if w.started {
			<-w.exited
		}
	})
	return w.stopErr
}
