package claudeweb

import (
	"log/slog"
	"maps"
	"time"

	"github.com/codemonkey800/claude-code-web/internal/config"
	"github.com/codemonkey800/claude-code-web/internal/session"
)

// Option configures an Engine using the functional options pattern.
type Option func(*engineOptions)

type engineOptions struct {
	config.Options

	registry   session.Registry
	newProcess ProcessFactory
	configFile string
	lookupEnv  func(string) (string, bool)
}

func applyOptions(opts []Option) *engineOptions {
	o := &engineOptions{}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// WithLogger sets the logger for engine diagnostics.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		o.Logger = logger
	}
}

// WithCliPath sets the explicit path to the claude CLI binary.
// If not set, the CLI is searched in PATH and common install locations.
func WithCliPath(path string) Option {
	return func(o *engineOptions) {
		o.CliPath = path
	}
}

// WithModel sets the model every new session starts with.
func WithModel(model string) Option {
	return func(o *engineOptions) {
		o.Model = model
	}
}

// WithKillTimeout sets how long termination waits after SIGTERM before SIGKILL.
// Accepted range is 1s to 30s.
func WithKillTimeout(d time.Duration) Option {
	return func(o *engineOptions) {
		o.KillTimeout = d
	}
}

// WithQueryTimeout sets how long a query waits for its result.
// Accepted range is 30s to 10m.
func WithQueryTimeout(d time.Duration) Option {
	return func(o *engineOptions) {
		o.QueryTimeout = d
	}
}

// WithEnv adds environment variables to every CLI process.
func WithEnv(env map[string]string) Option {
	return func(o *engineOptions) {
		if o.Env == nil {
			o.Env = make(map[string]string, len(env))
		}

		maps.Copy(o.Env, env)
	}
}

// WithSerializedQueries queues queries per session instead of requiring
// callers to avoid overlap.
func WithSerializedQueries() Option {
	return func(o *engineOptions) {
		o.SerializeQueries = true
	}
}

// WithMaxLineSize caps a single line of CLI output.
func WithMaxLineSize(n int) Option {
	return func(o *engineOptions) {
		o.MaxLineSize = n
	}
}

// WithSkipVersionCheck disables the CLI version probe.
func WithSkipVersionCheck() Option {
	return func(o *engineOptions) {
		o.SkipVersionCheck = true
	}
}

// WithRegistry sets the registry OpenSession resolves working directories from.
func WithRegistry(registry session.Registry) Option {
	return func(o *engineOptions) {
		o.registry = registry
	}
}

// WithProcessFactory replaces how session processes are built.
// When set without a CLI path, CLI discovery is skipped.
func WithProcessFactory(factory ProcessFactory) Option {
	return func(o *engineOptions) {
		o.newProcess = factory
	}
}

// WithConfigFile loads a TOML config file before other options are applied.
// Explicit options take precedence over the file.
func WithConfigFile(path string) Option {
	return func(o *engineOptions) {
		o.configFile = path
	}
}

// withLookupEnv replaces os.LookupEnv for environment overrides.
func withLookupEnv(lookup func(string) (string, bool)) Option {
	return func(o *engineOptions) {
		o.lookupEnv = lookup
	}
}
