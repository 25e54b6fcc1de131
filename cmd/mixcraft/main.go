// Package main provides the mixcraft CLI.
//
// Usage:
//
//	mixcraft [flags] <command> [args]
//
// Commands:
//
//	create       - Create a mix from a text prompt
//	suggest      - Get mix prompt ideas
//	interactive  - Interactive shell
//	config       - Configuration management
//	version      - Show version
//
// Configuration:
//
//	The CLI stores configuration in ~/.mixcraft/
//	Use 'mixcraft config' commands to manage contexts.
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/mixcraft/cmd/mixcraft/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
