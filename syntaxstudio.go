// Package syntaxstudio is a live HTML, CSS and JavaScript playground.
//
// Three editor panes feed a sandboxed preview frame. Each edit is written to
// the configured store and, after a short quiet period, the panes are
// composed into one document and pushed to the page. The server lives in
// internal/server; cmd/syntaxstudio and desktop wrap it for the shell and
// for a native window.
package syntaxstudio

// Version is the release reported by the CLI and the desktop shell.
const Version = "0.1.0-dev"
