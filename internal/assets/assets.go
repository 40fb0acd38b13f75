// Package assets embeds the playground page and its browser client.
package assets

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed client/*
var clientFS embed.FS

// ClientFS returns the embedded client files.
func ClientFS() fs.FS {
	sub, err := fs.Sub(clientFS, "client")
	if err != nil {
		panic(err)
	}
	return sub
}

// GetClientJS returns the browser script that connects editors to the
// websocket session.
func GetClientJS() ([]byte, error) {
	return clientFS.ReadFile("client/playground.js")
}

// GetClientCSS returns the page stylesheet.
func GetClientCSS() ([]byte, error) {
	return clientFS.ReadFile("client/playground.css")
}

// PageTemplate parses the playground page template.
func PageTemplate() (*template.Template, error) {
	return template.ParseFS(clientFS, "client/playground.html")
}
