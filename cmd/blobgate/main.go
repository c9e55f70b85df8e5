package main

import (
	"github.com/asad/blobgate/internal/cli"
)

// main is the entry point for the blobgate application.
// It delegates to the CLI package which handles command parsing and execution.
func main() {
	cli.Execute()
}
