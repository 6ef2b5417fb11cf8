// Package cli locates the Claude Code CLI binary and builds the fixed
// command line used to run it as a long-lived streaming session.
//
// Discovery searches, in order:
//  1. An explicit path (Config.CliPath)
//  2. The system PATH
//  3. Common installation directories (/usr/local/bin, /usr/bin, ~/.local/bin)
//
// Every session process is started with streaming JSON input and output,
// verbose logging, and permission prompts bypassed:
//
//	args := cli.BuildArgs(model)
//	env := cli.BuildEnvironment(extraEnv)
package cli
