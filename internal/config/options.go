// Package config provides configuration types for the session engine.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/codemonkey800/claude-code-web/internal/errors"
)

const (
	// DefaultKillTimeout is the grace period between SIGTERM and SIGKILL.
	DefaultKillTimeout = 5 * time.Second
	// MinKillTimeout is the smallest accepted kill timeout.
	MinKillTimeout = 1 * time.Second
	// MaxKillTimeout is the largest accepted kill timeout.
	MaxKillTimeout = 30 * time.Second

	// DefaultQueryTimeout bounds how long a query waits for its result message.
	DefaultQueryTimeout = 5 * time.Minute
	// MinQueryTimeout is the smallest accepted query timeout.
	MinQueryTimeout = 30 * time.Second
	// MaxQueryTimeout is the largest accepted query timeout.
	MaxQueryTimeout = 10 * time.Minute

	// DefaultMaxLineSize is the maximum size of a single stdout line.
	DefaultMaxLineSize = 1024 * 1024 // 1MB
)

// Environment variables that override configured values.
const (
	EnvQueryTimeout = "CLAUDE_WEB_QUERY_TIMEOUT"
	EnvKillTimeout  = "CLAUDE_WEB_KILL_TIMEOUT"
	EnvCliPath      = "CLAUDE_WEB_CLI_PATH"
)

// Options configures the session engine.
type Options struct {
	// Logger is the slog logger for debug output.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// CliPath is the explicit path to the claude CLI binary.
	// If empty, the CLI is searched in PATH and common install locations.
	CliPath string

	// Model is the default model passed to every spawned session.
	Model string

	// Env provides additional environment variables for the CLI process.
	// The parent environment is always inherited.
	Env map[string]string

	// KillTimeout is how long Terminate waits after SIGTERM before SIGKILL.
	KillTimeout time.Duration

	// QueryTimeout is how long a query waits for a result message.
	QueryTimeout time.Duration

	// SerializeQueries makes the engine run at most one query per session at a
	// time, queueing later submissions. When false, callers must serialize.
	SerializeQueries bool

	// MaxLineSize caps a single stdout line. Zero means DefaultMaxLineSize.
	MaxLineSize int

	// SkipVersionCheck skips the CLI version probe during discovery.
	SkipVersionCheck bool
}

// ApplyDefaults fills zero-valued fields with their defaults.
func (o *Options) ApplyDefaults() {
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if o.KillTimeout == 0 {
		o.KillTimeout = DefaultKillTimeout
	}

	if o.QueryTimeout == 0 {
		o.QueryTimeout = DefaultQueryTimeout
	}

	if o.MaxLineSize == 0 {
		o.MaxLineSize = DefaultMaxLineSize
	}
}

// Validate checks that timing values fall inside their accepted ranges.
func (o *Options) Validate() error {
	if o.KillTimeout < MinKillTimeout || o.KillTimeout > MaxKillTimeout {
		return &errors.ConfigError{
			Field:  "kill timeout",
			Value:  o.KillTimeout,
			Reason: fmt.Sprintf("must be between %s and %s", MinKillTimeout, MaxKillTimeout),
		}
	}

	if o.QueryTimeout < MinQueryTimeout || o.QueryTimeout > MaxQueryTimeout {
		return &errors.ConfigError{
			Field:  "query timeout",
			Value:  o.QueryTimeout,
			Reason: fmt.Sprintf("must be between %s and %s", MinQueryTimeout, MaxQueryTimeout),
		}
	}

	if o.MaxLineSize < 0 {
		return &errors.ConfigError{Field: "max line size", Value: o.MaxLineSize, Reason: "must not be negative"}
	}

	return nil
}

// ApplyEnv overrides options from CLAUDE_WEB_* environment variables.
// A nil lookup uses os.LookupEnv.
func (o *Options) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if v, ok := lookup(EnvQueryTimeout); ok && v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvQueryTimeout, err)
		}

		o.QueryTimeout = d
	}

	if v, ok := lookup(EnvKillTimeout); ok && v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvKillTimeout, err)
		}

		o.KillTimeout = d
	}

	if v, ok := lookup(EnvCliPath); ok && v != "" {
		o.CliPath = v
	}

	return nil
}

// ParseDuration accepts Go duration strings ("90s", "2m") or a bare
// integer number of seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if secs, err := strconv.Atoi(s); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("duration must be positive: %q", s)
		}

		return time.Duration(secs) * time.Second, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", s, err)
	}

	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive: %q", s)
	}

	return d, nil
}
