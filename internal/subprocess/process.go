package subprocess

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codemonkey800/claude-code-web/internal/cli"
	"github.com/codemonkey800/claude-code-web/internal/errors"
	"github.com/codemonkey800/claude-code-web/internal/eventbus"
	"github.com/codemonkey800/claude-code-web/internal/message"
)

const (
	// exitGracePeriod bounds how long Terminate waits for the exit status
	// after SIGKILL and stream teardown.
	exitGracePeriod = 2 * time.Second

	// writeAbandonTimeout bounds how long a cancelled write may linger after
	// stdin is closed underneath it.
	writeAbandonTimeout = time.Second

	stderrChunkSize = 4096
)

// Config describes one CLI process.
type Config struct {
	// SessionID tags every event this process publishes.
	SessionID string

	// Cwd is the working directory of the CLI.
	Cwd string

	// CliPath is the resolved CLI binary.
	CliPath string

	// Model is passed as --model when set.
	Model string

	// Env is appended to the inherited environment.
	Env map[string]string

	// MaxLineSize bounds one stdout line. Zero selects the decoder default.
	MaxLineSize int

	// Bus receives decoded messages and process events.
	Bus *eventbus.Bus

	Logger *slog.Logger
}

// Process is the handle for one spawned CLI process and its three streams.
type Process struct {
	log *slog.Logger
	cfg Config
	bus *eventbus.Bus

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	writeMu     sync.Mutex // Serializes stdin writes; never held by Close
	stdinClosed atomic.Bool

	stateMu  sync.RWMutex
	token    string
	healthy  bool
	exitCode int
	signal   string

	terminating   atomic.Bool
	terminateOnce sync.Once
	terminateErr  error

	exited     chan struct{}
	stderrTail tailBuffer
}

// New creates a process handle. Nothing is spawned until Start.
func New(cfg Config) *Process {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	log = log.With("component", "process", "session_id", cfg.SessionID)

	bus := cfg.Bus
	if bus == nil {
		bus = eventbus.New(log)
	}

	return &Process{
		log:    log,
		cfg:    cfg,
		bus:    bus,
		exited: make(chan struct{}),
	}
}

// Start spawns the CLI in cfg.Cwd and begins reading stdout and stderr.
//
// The process is not tied to ctx; it lives until Terminate or until it exits
// on its own. Returns ProcessStartError if the process cannot be spawned.
func (p *Process) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if p.cmd != nil {
		return &errors.ProcessStartError{Err: fmt.Errorf("process already started")}
	}

	args := cli.BuildArgs(p.cfg.Model)
	p.log.Debug("Built command arguments", "args", args, "cwd", p.cfg.Cwd)

	//nolint:gosec // G204: Subprocess launching with dynamic args is expected for CLI invocation
	cmd := exec.Command(p.cfg.CliPath, args...)
	cmd.Dir = p.cfg.Cwd
	cmd.Env = cli.BuildEnvironment(p.cfg.Env)
	setSysProcAttr(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &errors.ProcessStartError{Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &errors.ProcessStartError{Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &errors.ProcessStartError{Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		p.log.Error("Failed to start CLI process", "error", err)

		return &errors.ProcessStartError{Err: err}
	}

	p.cmd = cmd
	p.stdin = stdin
	p.stdout = stdout
	p.stderr = stderr

	p.stateMu.Lock()
	p.healthy = true
	p.stateMu.Unlock()

	p.log.Info("Claude CLI process started", "pid", cmd.Process.Pid)

	go p.readOutput()

	return nil
}

// readOutput publishes stdout messages in order, then reaps the process.
func (p *Process) readOutput() {
	var stderrWg sync.WaitGroup

	stderrWg.Go(p.readStderr)

	dec := message.NewDecoder(p.log, p.stdout, p.cfg.MaxLineSize)

	for {
		data, err := dec.Decode()
		if err != nil {
			if err != io.EOF && !p.terminating.Load() {
				p.log.Warn("Stopped reading CLI output", "error", err)
			}

			break
		}

		msg, err := message.Parse(p.log, data)
		if err != nil {
			p.log.Warn("Skipping unclassifiable output line", "error", err)

			continue
		}

		if token := msg.SessionToken(); token != "" {
			p.stateMu.Lock()
			p.token = token
			p.stateMu.Unlock()
		}

		p.bus.PublishMessage(p.cfg.SessionID, msg)
	}

	stderrWg.Wait()

	p.handleExit(p.cmd.Wait())
}

func (p *Process) readStderr() {
	buf := make([]byte, stderrChunkSize)

	var auth authScanner

	for {
		n, err := p.stderr.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])

			p.stderrTail.Write(buf[:n])
			p.log.Debug("CLI stderr", "output", chunk)

			p.reportAuthFailure(auth.Feed(chunk))
		}

		if err != nil {
			p.reportAuthFailure(auth.Flush())

			return
		}
	}
}

func (p *Process) reportAuthFailure(detail string) {
	if detail == "" {
		return
	}

	p.log.Error("CLI reported an authentication failure", "detail", detail)
	p.bus.PublishQueryError(p.cfg.SessionID, "", &errors.AuthenticationError{Detail: detail})
}

// handleExit records the exit status, then publishes a crash when the exit
// was not requested and was abnormal.
func (p *Process) handleExit(waitErr error) {
	exitCode := 0
	if p.cmd.ProcessState != nil {
		exitCode = p.cmd.ProcessState.ExitCode()
	}

	signal := exitSignal(p.cmd.ProcessState)

	p.stateMu.Lock()
	p.healthy = false
	p.exitCode = exitCode
	p.signal = signal
	p.stateMu.Unlock()

	_ = p.closeStdin()

	close(p.exited)

	if p.terminating.Load() {
		p.log.Debug("CLI process exited during termination", "exit_code", exitCode, "signal", signal)

		return
	}

	if waitErr == nil {
		p.log.Warn("CLI process exited unexpectedly with status 0")

		return
	}

	crash := &errors.SubprocessCrashedError{
		ExitCode: exitCode,
		Signal:   signal,
		Stderr:   cleanStderr(p.stderrTail.String()),
	}

	p.log.Error("CLI process crashed", "exit_code", exitCode, "signal", signal, "stderr", crash.Stderr)

	p.bus.Publish(eventbus.Event{
		Type:      eventbus.EventSubprocessCrashed,
		SessionID: p.cfg.SessionID,
		Err:       crash,
		ExitCode:  exitCode,
		Signal:    signal,
	})
}

// Write sends one newline-terminated line to stdin.
//
// Returns ErrStreamClosed once stdin is closed or the process has exited.
// Any other I/O failure is returned as *WriteError and also published to
// the bus. If ctx is cancelled during a blocked write, stdin is closed to
// unblock it and the handle can no longer be written to.
func (p *Process) Write(ctx context.Context, data []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if p.stdin == nil {
		return errors.ErrProcessNotStarted
	}

	if p.stdinClosed.Load() {
		return errors.ErrStreamClosed
	}

	select {
	case <-p.exited:
		return errors.ErrStreamClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if len(data) == 0 || data[len(data)-1] != '\n' {
		line := make([]byte, len(data)+1)
		copy(line, data)
		line[len(data)] = '\n'
		data = line
	}

	done := make(chan error, 1)

	go func() {
		_, err := p.stdin.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			if p.stdinClosed.Load() {
				p.log.Debug("Stdin closed during write", "error", err)

				return errors.ErrStreamClosed
			}

			writeErr := &errors.WriteError{Err: err}

			p.log.Error("Failed to write to CLI stdin", "error", err)
			p.bus.PublishQueryError(p.cfg.SessionID, "", writeErr)

			return writeErr
		}

		p.log.Debug("Wrote line to CLI stdin", "bytes", len(data))

		return nil

	case <-ctx.Done():
		p.log.Debug("Context cancelled during write, closing stdin")

		_ = p.closeStdin()

		select {
		case <-done:
		case <-time.After(writeAbandonTimeout):
			p.log.Warn("Write goroutine did not exit after stdin close")
		}

		return ctx.Err()
	}
}

// Close half-closes stdin. The process keeps running. A write blocked on a
// full pipe is released with ErrStreamClosed.
func (p *Process) Close() error {
	p.log.Debug("Closing stdin")

	return p.closeStdin()
}

// closeStdin marks stdin closed and closes the pipe exactly once. It does
// not take writeMu, so it can interrupt an in-flight write.
func (p *Process) closeStdin() error {
	if !p.stdinClosed.CompareAndSwap(false, true) || p.stdin == nil {
		return nil
	}

	return p.stdin.Close()
}

// Terminate stops the process: SIGTERM first, SIGKILL if it has not exited
// within killTimeout. All three streams are closed before it returns on
// every path. Calling it again, or on an exited process, is a no-op.
func (p *Process) Terminate(killTimeout time.Duration) error {
	p.terminateOnce.Do(func() {
		p.terminateErr = p.terminate(killTimeout)
	})

	return p.terminateErr
}

func (p *Process) terminate(killTimeout time.Duration) error {
	if p.cmd == nil {
		return nil
	}

	p.terminating.Store(true)
	defer p.closeStreams()

	pid := p.cmd.Process.Pid

	select {
	case <-p.exited:
		p.log.Debug("Process already exited")

		return nil
	default:
	}

	p.log.Debug("Sending SIGTERM", "pid", pid)

	if err := terminateGroup(pid); err != nil {
		p.log.Warn("SIGTERM failed", "pid", pid, "error", err)
	}

	timer := time.NewTimer(killTimeout)
	defer timer.Stop()

	select {
	case <-p.exited:
		p.log.Info("CLI process stopped", "pid", pid)

		return nil
	case <-timer.C:
	}

	p.log.Warn("CLI process ignored SIGTERM, sending SIGKILL", "pid", pid, "kill_timeout", killTimeout)

	var killErr error
	if err := killGroup(pid); err != nil {
		killErr = fmt.Errorf("kill CLI process (pid %d): %w", pid, err)
	}

	p.closeStreams()

	select {
	case <-p.exited:
	case <-time.After(exitGracePeriod):
		p.log.Error("CLI process did not exit after SIGKILL", "pid", pid)

		return stderrors.Join(killErr, fmt.Errorf("pid %d still running after SIGKILL", pid))
	}

	return killErr
}

// closeStreams closes stdin, stdout and stderr. Safe to call repeatedly.
func (p *Process) closeStreams() {
	_ = p.closeStdin()

	if p.stdout != nil {
		_ = p.stdout.Close()
	}

	if p.stderr != nil {
		_ = p.stderr.Close()
	}
}

// SessionToken returns the last session token the CLI reported.
func (p *Process) SessionToken() string {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()

	return p.token
}

// Healthy reports whether the process is running and has not exited.
func (p *Process) Healthy() bool {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()

	return p.healthy
}

// PID returns the OS process id, or 0 before Start.
func (p *Process) PID() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}

	return p.cmd.Process.Pid
}

// Done is closed once the process has exited and been reaped.
func (p *Process) Done() <-chan struct{} {
	return p.exited
}

// ExitStatus returns the exit code and terminating signal name.
// Only meaningful after Done is closed.
func (p *Process) ExitStatus() (int, string) {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()

	return p.exitCode, p.signal
}
