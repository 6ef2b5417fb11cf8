package errors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCLINotFoundError(t *testing.T) {
	err := &CLINotFoundError{
		SearchedPaths: []string{"/usr/bin/claude", "/opt/bin/claude"},
	}

	require.Equal(
		t,
		"claude CLI not found in: [/usr/bin/claude /opt/bin/claude]",
		err.Error(),
	)
	require.True(t, err.IsEngineError())
}

func TestProcessStartError(t *testing.T) {
	root := errors.New("fork failed")
	err := &ProcessStartError{Err: root}

	require.Equal(t, "failed to start CLI process: fork failed", err.Error())
	require.ErrorIs(t, err, root)
}

func TestSessionNotFoundError(t *testing.T) {
	err := &SessionNotFoundError{SessionID: "missing"}

	require.Equal(t, `session "missing" not found`, err.Error())
	require.Contains(t, err.Error(), "not found")
	require.ErrorIs(t, err, ErrSessionNotFound)
	require.True(t, err.IsEngineError())
}

func TestSessionExistsError(t *testing.T) {
	err := &SessionExistsError{SessionID: "s1"}

	require.ErrorIs(t, err, ErrSessionExists)
	require.NotErrorIs(t, err, ErrSessionNotFound)
}

func TestWriteError(t *testing.T) {
	root := errors.New("broken pipe")
	err := &WriteError{Err: root}

	require.Equal(t, "write to CLI stdin: broken pipe", err.Error())
	require.ErrorIs(t, err, root)
}

func TestQueryTimeoutError(t *testing.T) {
	err := &QueryTimeoutError{QueryID: "q1", Timeout: 30 * time.Second}

	require.Equal(t, "query q1: no result after 30s", err.Error())
	require.ErrorIs(t, err, ErrQueryTimeout)
}

func TestQueryAbortedError_WithCause(t *testing.T) {
	err := &QueryAbortedError{QueryID: "q1", Cause: context.Canceled}

	require.Equal(t, "query q1 aborted: context canceled", err.Error())
	require.ErrorIs(t, err, ErrQueryAborted)
	require.ErrorIs(t, err, context.Canceled)
}

func TestQueryAbortedError_WithoutCause(t *testing.T) {
	err := &QueryAbortedError{QueryID: "q2"}

	require.Equal(t, "query q2 aborted", err.Error())
	require.ErrorIs(t, err, ErrQueryAborted)
}

func TestSubprocessCrashedError(t *testing.T) {
	t.Run("exit code with stderr", func(t *testing.T) {
		err := &SubprocessCrashedError{ExitCode: 2, Stderr: "boom"}
		require.Equal(t, "CLI process crashed (exit 2): boom", err.Error())
	})

	t.Run("exit code only", func(t *testing.T) {
		err := &SubprocessCrashedError{ExitCode: 1}
		require.Equal(t, "CLI process crashed (exit 1)", err.Error())
	})

	t.Run("signal", func(t *testing.T) {
		err := &SubprocessCrashedError{ExitCode: -1, Signal: "killed"}
		require.Equal(t, "CLI process crashed (signal killed)", err.Error())
	})
}

func TestAuthenticationError(t *testing.T) {
	err := &AuthenticationError{Detail: "Invalid API key"}

	require.Equal(t, "claude CLI authentication failed: Invalid API key", err.Error())

	wrapped := errors.Join(errors.New("outer"), err)
	got, ok := errors.AsType[*AuthenticationError](wrapped)
	require.True(t, ok)
	require.Equal(t, "Invalid API key", got.Detail)
}

func TestMalformedOutputLineError(t *testing.T) {
	root := errors.New("unexpected token")
	err := &MalformedOutputLineError{
		RawData: `{"not":"valid",`,
		Err:     root,
	}

	require.Equal(t, "malformed output line from CLI: unexpected token", err.Error())
	require.ErrorIs(t, err, root)
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Field: "kill timeout", Value: 100 * time.Millisecond, Reason: "must be between 1s and 30s"}

	require.Equal(t, "invalid kill timeout 100ms: must be between 1s and 30s", err.Error())
}
