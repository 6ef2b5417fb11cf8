package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/codemonkey800/claude-code-web/internal/config"
	"github.com/codemonkey800/claude-code-web/internal/errors"
	"github.com/codemonkey800/claude-code-web/internal/eventbus"
	"github.com/codemonkey800/claude-code-web/internal/message"
	"github.com/codemonkey800/claude-code-web/internal/subprocess"
)

// Process is the handle the manager drives. *subprocess.Process implements it.
type Process interface {
	Start(ctx context.Context) error
	Write(ctx context.Context, data []byte) error
	Close() error
	Terminate(killTimeout time.Duration) error
	SessionToken() string
	Healthy() bool
	PID() int
}

var _ Process = (*subprocess.Process)(nil)

// ProcessFactory builds an unstarted process for a session.
type ProcessFactory func(cfg subprocess.Config) Process

// State is the lifecycle state of a managed session.
type State string

const (
	StateStarting State = "starting"
	StateLive     State = "live"
	StateClosing  State = "closing"
)

// Config configures a Manager.
type Config struct {
	// CliPath is the resolved CLI binary used for every session.
	CliPath string

	// Env is added to each process environment.
	Env map[string]string

	// KillTimeout is the SIGTERM to SIGKILL grace period. Zero selects the default.
	KillTimeout time.Duration

	// MaxLineSize bounds one stdout line.
	MaxLineSize int

	// Bus receives process output. Required.
	Bus *eventbus.Bus

	// NewProcess overrides process construction, mainly for tests.
	NewProcess ProcessFactory

	Logger *slog.Logger
}

// Info is a snapshot of one session.
type Info struct {
	SessionID        string    `json:"session_id"`
	WorkingDirectory string    `json:"working_directory"`
	Model            string    `json:"model,omitempty"`
	State            State     `json:"state"`
	SessionToken     string    `json:"session_token,omitempty"`
	Healthy          bool      `json:"healthy"`
	PID              int       `json:"pid,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type entry struct {
	id        string
	cwd       string
	model     string
	proc      Process
	state     State
	createdAt time.Time
}

// CreateOption configures one CreateSession call.
type CreateOption func(*entry)

// WithModel starts the session's process with --model.
func WithModel(model string) CreateOption {
	return func(e *entry) {
		e.model = model
	}
}

// Manager owns the session to process map. Safe for concurrent use.
type Manager struct {
	log *slog.Logger
	cfg Config
	bus *eventbus.Bus

	mu           sync.Mutex
	sessions     map[string]*entry
	shuttingDown bool // No reaper starts once set

	unwatch func()
	reaping sync.WaitGroup
}

// NewManager creates a manager and starts watching the bus for crashes.
func NewManager(cfg Config) *Manager {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if cfg.KillTimeout <= 0 {
		cfg.KillTimeout = config.DefaultKillTimeout
	}

	if cfg.NewProcess == nil {
		cfg.NewProcess = func(c subprocess.Config) Process { return subprocess.New(c) }
	}

	m := &Manager{
		log:      log.With("component", "session_manager"),
		cfg:      cfg,
		bus:      cfg.Bus,
		sessions: make(map[string]*entry),
	}

	m.unwatch = m.bus.Watch(func(e eventbus.Event) bool {
		return e.Type == eventbus.EventSubprocessCrashed
	}, func(e eventbus.Event) {
		m.mu.Lock()
		defer m.mu.Unlock()

		if m.shuttingDown {
			return
		}

		// The crash is published from the process reader; reap elsewhere.
		m.reaping.Go(func() { m.reap(e.SessionID) })
	})

	return m
}

// CreateSession starts a process for sessionID in workingDirectory.
//
// Fails with *errors.SessionExistsError if the session already has a process,
// including one that is still starting, and with *errors.ProcessStartError if
// the directory is unusable or the process cannot be spawned.
func (m *Manager) CreateSession(
	ctx context.Context,
	sessionID string,
	workingDirectory string,
	opts ...CreateOption,
) error {
	if err := validateWorkingDirectory(workingDirectory); err != nil {
		return &errors.ProcessStartError{Err: err}
	}

	e := &entry{
		id:        sessionID,
		cwd:       workingDirectory,
		state:     StateStarting,
		createdAt: time.Now(),
	}

	for _, opt := range opts {
		opt(e)
	}

	m.mu.Lock()
	if _, exists := m.sessions[sessionID]; exists {
		m.mu.Unlock()

		return &errors.SessionExistsError{SessionID: sessionID}
	}

	m.sessions[sessionID] = e
	m.mu.Unlock()

	proc := m.cfg.NewProcess(subprocess.Config{
		SessionID:   sessionID,
		Cwd:         workingDirectory,
		CliPath:     m.cfg.CliPath,
		Model:       e.model,
		Env:         m.cfg.Env,
		MaxLineSize: m.cfg.MaxLineSize,
		Bus:         m.bus,
		Logger:      m.log,
	})

	if err := proc.Start(ctx); err != nil {
		m.mu.Lock()
		delete(m.sessions, sessionID)
		m.mu.Unlock()

		m.log.Error("Failed to start session", "session_id", sessionID, "error", err)

		return err
	}

	m.mu.Lock()
	e.proc = proc
	e.state = StateLive
	m.mu.Unlock()

	m.log.Info("Session started", "session_id", sessionID, "cwd", workingDirectory, "pid", proc.PID())

	return nil
}

func validateWorkingDirectory(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("working directory is empty")
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("working directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("working directory %s is not a directory", dir)
	}

	return nil
}

// live returns the entry for a live session, or nil.
func (m *Manager) live(sessionID string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[sessionID]
	if !ok || e.state != StateLive {
		return nil
	}

	return e
}

// SendMessage writes prompt to the session's process as a user message.
// Returns *errors.SessionNotFoundError without any I/O when the session is not live.
func (m *Manager) SendMessage(ctx context.Context, sessionID, prompt string) error {
	e := m.live(sessionID)
	if e == nil {
		return &errors.SessionNotFoundError{SessionID: sessionID}
	}

	line, err := message.EncodeUserMessage(prompt)
	if err != nil {
		return err
	}

	return e.proc.Write(ctx, line)
}

// SetModel asks the session's CLI to switch models for subsequent turns.
func (m *Manager) SetModel(ctx context.Context, sessionID, model string) error {
	e := m.live(sessionID)
	if e == nil {
		return &errors.SessionNotFoundError{SessionID: sessionID}
	}

	line, err := message.EncodeControlRequest(
		"req_"+ulid.Make().String(),
		"set_model",
		map[string]any{"model": model},
	)
	if err != nil {
		return err
	}

	if err := e.proc.Write(ctx, line); err != nil {
		return err
	}

	m.mu.Lock()
	e.model = model
	m.mu.Unlock()

	m.log.Debug("Switched session model", "session_id", sessionID, "model", model)

	return nil
}

// Model returns the model the session is running, "" for the CLI default.
func (m *Manager) Model(sessionID string) (string, bool) {
	e := m.live(sessionID)
	if e == nil {
		return "", false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return e.model, true
}

// DestroySession closes stdin, terminates the process and removes the
// session. Destroying an absent session is a no-op.
func (m *Manager) DestroySession(sessionID string) error {
	m.mu.Lock()

	e, ok := m.sessions[sessionID]
	if !ok || e.state != StateLive {
		m.mu.Unlock()

		return nil
	}

	e.state = StateClosing
	m.mu.Unlock()

	return m.teardown(e)
}

// teardown runs the closing state for an entry already marked closing.
func (m *Manager) teardown(e *entry) error {
	m.log.Debug("Closing session", "session_id", e.id)

	closeErr := e.proc.Close()
	termErr := e.proc.Terminate(m.cfg.KillTimeout)

	m.mu.Lock()
	if m.sessions[e.id] == e {
		delete(m.sessions, e.id)
	}
	m.mu.Unlock()

	if err := stderrors.Join(closeErr, termErr); err != nil {
		m.log.Warn("Session teardown reported errors", "session_id", e.id, "error", err)

		return err
	}

	m.log.Info("Session closed", "session_id", e.id)

	return nil
}

// reap tears down a session whose process exited on its own.
func (m *Manager) reap(sessionID string) {
	m.mu.Lock()

	e, ok := m.sessions[sessionID]
	if !ok || e.state != StateLive || e.proc.Healthy() {
		m.mu.Unlock()

		return
	}

	e.state = StateClosing
	m.mu.Unlock()

	m.log.Warn("Reaping crashed session", "session_id", sessionID)

	_ = m.teardown(e)
}

// GetSessionState returns a snapshot of a live session.
func (m *Manager) GetSessionState(sessionID string) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[sessionID]
	if !ok || e.state == StateStarting {
		return Info{}, false
	}

	return e.info(), true
}

// Sessions returns snapshots of every started session, ordered by id.
func (m *Manager) Sessions() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	infos := make([]Info, 0, len(m.sessions))

	for _, e := range m.sessions {
		if e.state != StateStarting {
			infos = append(infos, e.info())
		}
	}

	slices.SortFunc(infos, func(a, b Info) int { return strings.Compare(a.SessionID, b.SessionID) })

	return infos
}

// info must be called with mu held.
func (e *entry) info() Info {
	return Info{
		SessionID:        e.id,
		WorkingDirectory: e.cwd,
		Model:            e.model,
		State:            e.state,
		SessionToken:     e.proc.SessionToken(),
		Healthy:          e.proc.Healthy(),
		PID:              e.proc.PID(),
		CreatedAt:        e.createdAt,
	}
}

// Shutdown destroys every session in parallel and stops crash reaping.
// It returns ctx.Err() if ctx ends first; teardown continues in the background.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.unwatch()

	m.mu.Lock()

	m.shuttingDown = true

	var closing []*entry

	for _, e := range m.sessions {
		if e.state == StateLive {
			e.state = StateClosing
			closing = append(closing, e)
		}
	}

	m.mu.Unlock()

	m.log.Info("Shutting down sessions", "count", len(closing))

	var g errgroup.Group

	for _, e := range closing {
		g.Go(func() error { return m.teardown(e) })
	}

	done := make(chan error, 1)

	go func() {
		err := g.Wait()
		m.reaping.Wait()
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
