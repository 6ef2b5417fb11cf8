//go:build integration

package integration

import (
	"context"
	"errors"
	"strings"
	"testing"

	claudeweb "github.com/codemonkey800/claude-code-web"
)

// newEngine starts an engine against the installed CLI, skipping the test
// when no CLI is found.
func newEngine(t *testing.T, opts ...claudeweb.Option) *claudeweb.Engine {
	t.Helper()

	engine, err := claudeweb.New(context.Background(), append([]claudeweb.Option{claudeweb.WithModel("haiku")}, opts...)...)
	if err != nil {
		if _, ok := errors.AsType[*claudeweb.CLINotFoundError](err); ok {
			t.Skip("Claude CLI not installed")
		}

		t.Fatalf("New failed: %v", err)
	}

	t.Cleanup(func() { _ = engine.Close(context.Background()) })

	return engine
}

// contains42 checks if a string contains "42" in various formats.
func contains42(s string) bool {
	lower := strings.ToLower(s)

	return strings.Contains(lower, "42") ||
		strings.Contains(lower, "forty-two") ||
		strings.Contains(lower, "forty two")
}

func resultText(r *claudeweb.QueryResult) string {
	if r == nil || r.Message == nil || r.Message.Result == nil {
		return ""
	}

	return *r.Message.Result
}
