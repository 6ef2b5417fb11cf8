// Command claude-web drives Claude CLI sessions from the command line and
// serves them to MCP clients.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
