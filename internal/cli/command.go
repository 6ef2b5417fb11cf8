package cli

import (
	"fmt"
	"os"
	"slices"
)

// baseArgs select stream-json on both pipes, verbose output (required by the
// CLI for stream-json output), and auto-approval of every tool permission.
var baseArgs = []string{
	"--input-format", "stream-json",
	"--output-format", "stream-json",
	"--verbose",
	"--dangerously-skip-permissions",
}

// BuildArgs constructs the CLI arguments for a session process.
// The model flag is only added when model is non-empty.
func BuildArgs(model string) []string {
	args := slices.Clone(baseArgs)

	if model != "" {
		args = append(args, "--model", model)
	}

	return args
}

// BuildEnvironment returns the parent environment with extra appended.
// Later entries win, so extra overrides inherited values.
func BuildEnvironment(extra map[string]string) []string {
	env := os.Environ()

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, extra[k]))
	}

	return env
}
