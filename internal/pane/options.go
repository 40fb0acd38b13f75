package pane

// EditorOptions is the configuration object consumed by the text-editing
// widget. Field names follow the widget's option names.
type EditorOptions struct {
	LineWrapping  bool              `json:"lineWrapping"`
	Lint          bool              `json:"lint"`
	Mode          string            `json:"mode"`
	Theme         Theme             `json:"theme"`
	FontSize      FontSize          `json:"fontSize"`
	LineNumbers   bool              `json:"lineNumbers"`
	MatchBrackets bool              `json:"matchBrackets"`
	FoldGutter    bool              `json:"foldGutter"`
	Gutters       []string          `json:"gutters"`
	ExtraKeys     map[string]string `json:"extraKeys"`
}

// Keybindings maps key combos to widget commands.
var Keybindings = map[string]string{
	"Ctrl-Space": "autocomplete",
	"F11":        "toggleFullscreen",
	"Esc":        "exitFullscreen",
}

// EditorOptions builds the widget configuration for the current display
// state. Only presentation fields depend on the state.
func (p *Pane) EditorOptions() EditorOptions {
	p.mu.RLock()
	theme, size := p.theme, p.fontSize
	p.mu.RUnlock()

	keys := make(map[string]string, len(Keybindings))
	for combo, action := range Keybindings {
		keys[combo] = action
	}

	return EditorOptions{
		LineWrapping:  true,
		Lint:          true,
		Mode:          p.kind.Mode(),
		Theme:         theme,
		FontSize:      size,
		LineNumbers:   true,
		MatchBrackets: true,
		FoldGutter:    true,
		Gutters:       []string{"CodeMirror-lint-markers", "CodeMirror-foldgutter"},
		ExtraKeys:     keys,
	}
}
