package claudeweb

import "github.com/codemonkey800/claude-code-web/internal/errors"

// Re-export error types from internal package

// EngineError is the base interface for all engine errors.
type EngineError = errors.EngineError

// CLINotFoundError indicates the Claude CLI binary was not found.
type CLINotFoundError = errors.CLINotFoundError

// ProcessStartError indicates a CLI process could not be spawned.
type ProcessStartError = errors.ProcessStartError

// SessionNotFoundError indicates an operation named a session with no live process.
type SessionNotFoundError = errors.SessionNotFoundError

// SessionExistsError indicates a session already has a process.
type SessionExistsError = errors.SessionExistsError

// WriteError indicates a write to a CLI process failed.
type WriteError = errors.WriteError

// QueryTimeoutError indicates no result arrived within the query timeout.
type QueryTimeoutError = errors.QueryTimeoutError

// QueryAbortedError indicates the caller cancelled a query.
type QueryAbortedError = errors.QueryAbortedError

// SubprocessCrashedError indicates a CLI process exited unexpectedly.
type SubprocessCrashedError = errors.SubprocessCrashedError

// AuthenticationError indicates the CLI reported an authentication failure.
type AuthenticationError = errors.AuthenticationError

// ConfigError indicates an invalid configuration value.
type ConfigError = errors.ConfigError

// Re-export sentinel errors from internal package.
var (
	ErrSessionNotFound   = errors.ErrSessionNotFound
	ErrSessionExists     = errors.ErrSessionExists
	ErrStreamClosed      = errors.ErrStreamClosed
	ErrProcessNotStarted = errors.ErrProcessNotStarted
	ErrQueryTimeout      = errors.ErrQueryTimeout
	ErrQueryAborted      = errors.ErrQueryAborted
	ErrQueryCancelled    = errors.ErrQueryCancelled
)
