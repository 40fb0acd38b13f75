// Package preview composes the three playground buffers into one renderable
// document.
package preview

import "strings"

// SandboxPolicy is the iframe sandbox token list: scripts run, everything
// else (navigation, popups, forms, plugins, same-origin access) is denied.
const SandboxPolicy = "allow-scripts"

// Document holds the three author-editable buffers.
type Document struct {
	Markup string `json:"html"`
	Style  string `json:"css"`
	Script string `json:"js"`
}

// Compose wraps doc into a standalone HTML document: markup as the body,
// then the style block, then the script block. Buffers are inserted
// verbatim; malformed input is passed through for the sandbox to contain.
func Compose(doc Document) string {
	var b strings.Builder
	b.Grow(len(doc.Markup) + len(doc.Style) + len(doc.Script) + 96)

	b.WriteString("<html>\n")
	b.WriteString("  <body>")
	b.WriteString(doc.Markup)
	b.WriteString("</body>\n")
	b.WriteString("  <style>")
	b.WriteString(doc.Style)
	b.WriteString("</style>\n")
	b.WriteString("  <script>")
	b.WriteString(doc.Script)
	b.WriteString("</script>\n")
	b.WriteString("</html>\n")

	return b.String()
}

// ContentSecurityPolicy is sent when a composed document is served directly,
// so a top-level load gets the same sandbox as the iframe.
func ContentSecurityPolicy() string {
	return "sandbox " + SandboxPolicy
}
