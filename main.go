// ./main.go
package main

import (
	"github.com/minsuoh/hipass-capture/cmd"
)

// main is the entry point for the hipass-capture application.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
