// Command syntaxstudio serves a live HTML/CSS/JS playground and manages the
// stored document from the shell.
package main

import (
	"fmt"
	"os"

	"github.com/livetemplate/syntaxstudio"
	"github.com/livetemplate/syntaxstudio/cmd/syntaxstudio/commands"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "serve":
		err = commands.ServeCommand(args)
	case "show":
		err = commands.ShowCommand(args)
	case "set":
		err = commands.SetCommand(args)
	case "export":
		err = commands.ExportCommand(args)
	case "copy":
		err = commands.CopyCommand(args)
	case "reset":
		err = commands.ResetCommand(args)
	case "version":
		fmt.Printf("syntaxstudio version %s\n", syntaxstudio.Version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("syntaxstudio - Live HTML, CSS and JS playground")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  syntaxstudio serve [flags]          Start the playground server")
	fmt.Println("  syntaxstudio show <pane>            Print a stored buffer (html, css, js)")
	fmt.Println("  syntaxstudio set <pane> [file|-]    Replace a buffer from a file or stdin")
	fmt.Println("  syntaxstudio export [file]          Write the composed preview document")
	fmt.Println("  syntaxstudio copy <pane>            Copy a buffer to the system clipboard")
	fmt.Println("  syntaxstudio reset                  Empty all three buffers")
	fmt.Println("  syntaxstudio version                Show version")
	fmt.Println("  syntaxstudio help                   Show this help")
	fmt.Println()
	fmt.Println("Flags (all commands):")
	fmt.Println("  --config, -c FILE   Config file (default: ./syntaxstudio.yaml)")
	fmt.Println("  --db URL|PATH       sqlite path, postgres:// DSN or \"memory\"")
	fmt.Println()
	fmt.Println("Serve flags:")
	fmt.Println("  --port, -p PORT     Listen port (default: 8080)")
	fmt.Println("  --host HOST         Listen host (default: localhost)")
	fmt.Println("  --sync DIR          Mirror index.html, style.css and script.js from DIR")
	fmt.Println("  --api               Enable the REST API under /api/")
	fmt.Println("  --debug             Verbose logging")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  syntaxstudio serve --port 3000")
	fmt.Println("  syntaxstudio serve --db postgres://localhost/studio --api")
	fmt.Println("  syntaxstudio set css style.css")
	fmt.Println("  echo '<h1>hi</h1>' | syntaxstudio set html -")
	fmt.Println("  syntaxstudio export preview.html")
}
