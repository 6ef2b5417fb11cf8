package errors

import (
	"errors"
	"fmt"
	"time"
)

// EngineError is the base interface for all engine errors.
type EngineError interface {
	error
	IsEngineError() bool
}

// Compile-time verification that all error types implement EngineError.
var (
	_ EngineError = (*CLINotFoundError)(nil)
	_ EngineError = (*ProcessStartError)(nil)
	_ EngineError = (*SessionNotFoundError)(nil)
	_ EngineError = (*SessionExistsError)(nil)
	_ EngineError = (*WriteError)(nil)
	_ EngineError = (*QueryTimeoutError)(nil)
	_ EngineError = (*QueryAbortedError)(nil)
	_ EngineError = (*SubprocessCrashedError)(nil)
	_ EngineError = (*AuthenticationError)(nil)
	_ EngineError = (*MalformedOutputLineError)(nil)
	_ EngineError = (*MessageParseError)(nil)
	_ EngineError = (*ConfigError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrSessionNotFound indicates no live process handle exists for a session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExists indicates a live process handle already exists for a session.
	ErrSessionExists = errors.New("session already exists")

	// ErrStreamClosed indicates the process stdin was closed or the process exited.
	ErrStreamClosed = errors.New("stream closed")

	// ErrProcessNotStarted indicates the process handle has not been started.
	ErrProcessNotStarted = errors.New("process not started")

	// ErrQueryTimeout indicates no result arrived within the query timeout.
	ErrQueryTimeout = errors.New("query timeout")

	// ErrQueryAborted indicates the caller cancelled the query.
	ErrQueryAborted = errors.New("query aborted")

	// ErrQueryCancelled is the cancellation cause recorded by CancelQuery.
	ErrQueryCancelled = errors.New("query cancelled")
)

// CLINotFoundError indicates the Claude CLI binary was not found.
type CLINotFoundError struct {
	SearchedPaths []string
}

func (e *CLINotFoundError) Error() string {
	return fmt.Sprintf("claude CLI not found in: %v", e.SearchedPaths)
}

// IsEngineError implements EngineError.
func (e *CLINotFoundError) IsEngineError() bool { return true }

// ProcessStartError indicates the CLI process could not be spawned.
type ProcessStartError struct {
	Err error
}

func (e *ProcessStartError) Error() string {
	return fmt.Sprintf("failed to start CLI process: %v", e.Err)
}

func (e *ProcessStartError) Unwrap() error {
	return e.Err
}

// IsEngineError implements EngineError.
func (e *ProcessStartError) IsEngineError() bool { return true }

// SessionNotFoundError indicates the session has no live process handle.
type SessionNotFoundError struct {
	SessionID string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("session %q not found", e.SessionID)
}

func (e *SessionNotFoundError) Unwrap() error {
	return ErrSessionNotFound
}

// IsEngineError implements EngineError.
func (e *SessionNotFoundError) IsEngineError() bool { return true }

// SessionExistsError indicates a second handle was requested for a live session.
type SessionExistsError struct {
	SessionID string
}

func (e *SessionExistsError) Error() string {
	return fmt.Sprintf("session %q already exists", e.SessionID)
}

func (e *SessionExistsError) Unwrap() error {
	return ErrSessionExists
}

// IsEngineError implements EngineError.
func (e *SessionExistsError) IsEngineError() bool { return true }

// WriteError indicates a low-level failure writing to the process stdin.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write to CLI stdin: %v", e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// IsEngineError implements EngineError.
func (e *WriteError) IsEngineError() bool { return true }

// QueryTimeoutError indicates no result message arrived within the query timeout.
type QueryTimeoutError struct {
	QueryID string
	Timeout time.Duration
}

func (e *QueryTimeoutError) Error() string {
	return fmt.Sprintf("query %s: no result after %s", e.QueryID, e.Timeout)
}

func (e *QueryTimeoutError) Unwrap() error {
	return ErrQueryTimeout
}

// IsEngineError implements EngineError.
func (e *QueryTimeoutError) IsEngineError() bool { return true }

// QueryAbortedError indicates the caller cancelled the query before it completed.
// Cause holds the context cancellation cause when one was recorded.
type QueryAbortedError struct {
	QueryID string
	Cause   error
}

func (e *QueryAbortedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("query %s aborted: %v", e.QueryID, e.Cause)
	}

	return fmt.Sprintf("query %s aborted", e.QueryID)
}

func (e *QueryAbortedError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrQueryAborted, e.Cause}
	}

	return []error{ErrQueryAborted}
}

// IsEngineError implements EngineError.
func (e *QueryAbortedError) IsEngineError() bool { return true }

// SubprocessCrashedError indicates the CLI process exited unexpectedly.
// Signal is set when the process was terminated by a signal rather than exiting.
type SubprocessCrashedError struct {
	ExitCode int
	Signal   string
	Stderr   string
}

func (e *SubprocessCrashedError) Error() string {
	if e.Signal != "" {
		return fmt.Sprintf("CLI process crashed (signal %s)", e.Signal)
	}

	if e.Stderr != "" {
		return fmt.Sprintf("CLI process crashed (exit %d): %s", e.ExitCode, e.Stderr)
	}

	return fmt.Sprintf("CLI process crashed (exit %d)", e.ExitCode)
}

// IsEngineError implements EngineError.
func (e *SubprocessCrashedError) IsEngineError() bool { return true }

// AuthenticationError indicates the CLI reported an authentication problem on stderr.
type AuthenticationError struct {
	Detail string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("claude CLI authentication failed: %s", e.Detail)
}

// IsEngineError implements EngineError.
func (e *AuthenticationError) IsEngineError() bool { return true }

// MalformedOutputLineError indicates one stdout line was not valid JSON.
// This error preserves the original raw data that failed to parse.
type MalformedOutputLineError struct {
	RawData string
	Err     error
}

func (e *MalformedOutputLineError) Error() string {
	return fmt.Sprintf("malformed output line from CLI: %v", e.Err)
}

func (e *MalformedOutputLineError) Unwrap() error {
	return e.Err
}

// IsEngineError implements EngineError.
func (e *MalformedOutputLineError) IsEngineError() bool { return true }

// MessageParseError indicates a decoded JSON object could not be classified.
type MessageParseError struct {
	Message string
	Data    map[string]any
}

func (e *MessageParseError) Error() string {
	return fmt.Sprintf("failed to parse message: %s", e.Message)
}

// IsEngineError implements EngineError.
func (e *MessageParseError) IsEngineError() bool { return true }

// ConfigError indicates an invalid configuration value.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// IsEngineError implements EngineError.
func (e *ConfigError) IsEngineError() bool { return true }
