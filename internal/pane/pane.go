// Package pane models one editor panel of the playground: its fixed
// identity, its ephemeral display state and the configuration handed to the
// text-editing widget.
package pane

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/livetemplate/syntaxstudio/internal/clipboard"
)

var (
	ErrUnknownPane     = errors.New("pane: unknown pane")
	ErrUnknownTheme    = errors.New("pane: unknown theme")
	ErrUnknownFontSize = errors.New("pane: unknown font size")
)

// Kind identifies one of the three buffers.
type Kind int

const (
	Markup Kind = iota
	Style
	Script
)

// Kinds lists every pane in display order.
var Kinds = []Kind{Markup, Style, Script}

// Key returns the storage key for the buffer.
func (k Kind) Key() string {
	switch k {
	case Markup:
		return "html"
	case Style:
		return "css"
	case Script:
		return "js"
	}
	return ""
}

// DisplayName returns the pane title.
func (k Kind) DisplayName() string {
	switch k {
	case Markup:
		return "HTML"
	case Style:
		return "CSS"
	case Script:
		return "JS"
	}
	return ""
}

// Mode returns the widget's language mode.
func (k Kind) Mode() string {
	switch k {
	case Markup:
		return "xml"
	case Style:
		return "css"
	case Script:
		return "javascript"
	}
	return ""
}

func (k Kind) String() string {
	if name := k.DisplayName(); name != "" {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind accepts a storage key ("html") or display name ("HTML").
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(s, k.Key()) || strings.EqualFold(s, k.DisplayName()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPane, s)
}

// Theme is the widget colour theme.
type Theme string

const (
	ThemeMaterial Theme = "material"
	ThemeDracula  Theme = "dracula"
)

// Themes lists the selectable themes.
var Themes = []Theme{ThemeMaterial, ThemeDracula}

// FontSize is the widget font size.
type FontSize string

// FontSizes lists the selectable sizes.
var FontSizes = []FontSize{"12px", "14px", "16px", "18px"}

const (
	DefaultTheme    = ThemeMaterial
	DefaultFontSize = FontSize("14px")
)

// Control is a UI element of the pane title bar.
type Control string

const (
	ControlTitle    Control = "title"
	ControlTheme    Control = "theme"
	ControlFontSize Control = "fontSize"
	ControlCopy     Control = "copy"
	ControlToggle   Control = "toggle"
)

// Notifier reports the outcome of a user action back to the user.
type Notifier interface {
	Notify(level, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level, message string)

// Notify calls f.
func (f NotifierFunc) Notify(level, message string) { f(level, message) }

// Notification levels.
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// State is a snapshot of the pane for the wire.
type State struct {
	Key         string        `json:"key"`
	DisplayName string        `json:"displayName"`
	Mode        string        `json:"mode"`
	Open        bool          `json:"open"`
	Theme       Theme         `json:"theme"`
	FontSize    FontSize      `json:"fontSize"`
	Controls    []Control     `json:"controls"`
	Options     EditorOptions `json:"options"`
}

// Pane is the display state of one editor. It never holds the buffer text;
// the controller owns that.
type Pane struct {
	kind Kind

	mu       sync.RWMutex
	open     bool
	theme    Theme
	fontSize FontSize
}

// New returns an expanded pane with the default theme and font size.
func New(kind Kind) *Pane {
	return &Pane{
		kind:     kind,
		open:     true,
		theme:    DefaultTheme,
		fontSize: DefaultFontSize,
	}
}

// Kind returns the pane identity.
func (p *Pane) Kind() Kind {
	return p.kind
}

// IsOpen reports whether the pane is expanded.
func (p *Pane) IsOpen() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.open
}

// Toggle flips between expanded and collapsed.
func (p *Pane) Toggle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = !p.open
	return p.open
}

// Theme returns the selected theme.
func (p *Pane) Theme() Theme {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.theme
}

// SetTheme selects one of Themes.
func (p *Pane) SetTheme(name string) error {
	for _, t := range Themes {
		if string(t) == name {
			p.mu.Lock()
			p.theme = t
			p.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownTheme, name)
}

// FontSize returns the selected font size.
func (p *Pane) FontSize() FontSize {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fontSize
}

// SetFontSize selects one of FontSizes.
func (p *Pane) SetFontSize(size string) error {
	for _, s := range FontSizes {
		if string(s) == size {
			p.mu.Lock()
			p.fontSize = s
			p.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownFontSize, size)
}

// Controls lists the visible title-bar controls. Collapsing hides the
// selectors and the copy button but never the title or the toggle.
func (p *Pane) Controls() []Control {
	if !p.IsOpen() {
		return []Control{ControlTitle, ControlToggle}
	}
	return []Control{ControlTitle, ControlTheme, ControlFontSize, ControlCopy, ControlToggle}
}

// State snapshots the pane.
func (p *Pane) State() State {
	p.mu.RLock()
	open, theme, size := p.open, p.theme, p.fontSize
	p.mu.RUnlock()

	return State{
		Key:         p.kind.Key(),
		DisplayName: p.kind.DisplayName(),
		Mode:        p.kind.Mode(),
		Open:        open,
		Theme:       theme,
		FontSize:    size,
		Controls:    p.Controls(),
		Options:     p.EditorOptions(),
	}
}

// Copy writes value to cb and tells the user how it went. A failure is
// logged and reported, never retried and never returned as fatal.
func (p *Pane) Copy(ctx context.Context, cb clipboard.Clipboard, value string, n Notifier) {
	if err := cb.Copy(ctx, value); err != nil {
		log.Printf("[Pane] Failed to copy %s: %v", p.kind.DisplayName(), err)
		if n != nil {
			n.Notify(LevelError, fmt.Sprintf("Failed to copy: %v", err))
		}
		return
	}
	if n != nil {
		n.Notify(LevelInfo, "Copied to clipboard!")
	}
}
