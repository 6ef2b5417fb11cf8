package claudeweb

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/codemonkey800/claude-code-web/internal/cli"
	"github.com/codemonkey800/claude-code-web/internal/config"
	"github.com/codemonkey800/claude-code-web/internal/eventbus"
	"github.com/codemonkey800/claude-code-web/internal/mcpserver"
	"github.com/codemonkey800/claude-code-web/internal/query"
	"github.com/codemonkey800/claude-code-web/internal/session"
)

// Engine runs one Claude CLI process per session and executes queries
// against them. Safe for concurrent use.
//
// Lifecycle: Engines are single-use. After Close, create a new one with New.
type Engine struct {
	log      *slog.Logger
	opts     config.Options
	cliPath  string
	registry session.Registry

	bus      *eventbus.Bus
	sessions *session.Manager
	queries  *query.Engine

	closeOnce sync.Once
	closeErr  error
}

// New resolves configuration, locates the CLI and returns a ready engine.
//
// Configuration is layered: the optional config file, then explicit options,
// then CLAUDE_WEB_* environment overrides. Returns *CLINotFoundError when the
// CLI cannot be found and *ConfigError when a timeout is out of range.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	eo := applyOptions(opts)

	resolved, err := resolveOptions(eo)
	if err != nil {
		return nil, err
	}

	log := resolved.Logger.With("component", "engine")

	// A custom process factory may not need a CLI at all.
	cliPath := resolved.CliPath
	if cliPath != "" || eo.newProcess == nil {
		cliPath, err = cli.NewDiscoverer(&cli.Config{
			CliPath:          cliPath,
			SkipVersionCheck: resolved.SkipVersionCheck,
			Logger:           resolved.Logger,
		}).Discover(ctx)
		if err != nil {
			return nil, err
		}
	}

	bus := eventbus.New(resolved.Logger)

	sessions := session.NewManager(session.Config{
		CliPath:     cliPath,
		Env:         resolved.Env,
		KillTimeout: resolved.KillTimeout,
		MaxLineSize: resolved.MaxLineSize,
		Bus:         bus,
		NewProcess:  eo.newProcess,
		Logger:      resolved.Logger,
	})

	e := &Engine{
		log:      log,
		opts:     resolved,
		cliPath:  cliPath,
		registry: eo.registry,
		bus:      bus,
		sessions: sessions,
		queries: query.NewEngine(query.Config{
			Sessions:  sessions,
			Bus:       bus,
			Timeout:   resolved.QueryTimeout,
			Serialize: resolved.SerializeQueries,
			Logger:    resolved.Logger,
		}),
	}

	log.Info("Engine ready",
		"cli_path", cliPath,
		"query_timeout", resolved.QueryTimeout,
		"kill_timeout", resolved.KillTimeout,
		"serialize_queries", resolved.SerializeQueries,
	)

	return e, nil
}

// resolveOptions layers the config file, explicit options and environment,
// then applies defaults and validates.
func resolveOptions(eo *engineOptions) (config.Options, error) {
	var resolved config.Options

	if eo.configFile != "" {
		f, err := config.LoadFile(eo.configFile)
		if err != nil {
			return resolved, err
		}

		if err := f.Apply(&resolved); err != nil {
			return resolved, fmt.Errorf("config %s: %w", eo.configFile, err)
		}
	}

	overlay(&resolved, &eo.Options)

	if err := resolved.ApplyEnv(eo.lookupEnv); err != nil {
		return resolved, err
	}

	resolved.ApplyDefaults()

	if err := resolved.Validate(); err != nil {
		return resolved, err
	}

	return resolved, nil
}

// overlay copies the non-zero fields of src onto dst.
func overlay(dst, src *config.Options) {
	if src.Logger != nil {
		dst.Logger = src.Logger
	}

	if src.CliPath != "" {
		dst.CliPath = src.CliPath
	}

	if src.Model != "" {
		dst.Model = src.Model
	}

	if len(src.Env) > 0 {
		if dst.Env == nil {
			dst.Env = make(map[string]string, len(src.Env))
		}

		maps.Copy(dst.Env, src.Env)
	}

	if src.KillTimeout != 0 {
		dst.KillTimeout = src.KillTimeout
	}

	if src.QueryTimeout != 0 {
		dst.QueryTimeout = src.QueryTimeout
	}

	if src.SerializeQueries {
		dst.SerializeQueries = true
	}

	if src.MaxLineSize != 0 {
		dst.MaxLineSize = src.MaxLineSize
	}

	if src.SkipVersionCheck {
		dst.SkipVersionCheck = true
	}
}

// CliPath returns the CLI binary sessions are started with.
func (e *Engine) CliPath() string {
	return e.cliPath
}

// CreateSession starts a CLI process for sessionID in workingDirectory.
// Sessions start with the engine's default model unless opts choose one.
func (e *Engine) CreateSession(ctx context.Context, sessionID, workingDirectory string, opts ...SessionOption) error {
	if e.opts.Model != "" {
		opts = append([]SessionOption{session.WithModel(e.opts.Model)}, opts...)
	}

	return e.sessions.CreateSession(ctx, sessionID, workingDirectory, opts...)
}

// OpenSession creates a session whose working directory comes from the
// configured registry.
func (e *Engine) OpenSession(ctx context.Context, sessionID string, opts ...SessionOption) error {
	if e.registry == nil {
		return fmt.Errorf("open session %s: no registry configured", sessionID)
	}

	dir, err := e.registry.WorkingDirectory(ctx, sessionID)
	if err != nil {
		return err
	}

	return e.CreateSession(ctx, sessionID, dir, opts...)
}

// DestroySession terminates a session's process. Destroying an absent session
// is a no-op.
func (e *Engine) DestroySession(sessionID string) error {
	err := e.sessions.DestroySession(sessionID)
	e.queries.Forget(sessionID)

	return err
}

// SendMessage writes a prompt to a session without waiting for a result.
// Output arrives as EventMessage events.
func (e *Engine) SendMessage(ctx context.Context, sessionID, prompt string) error {
	return e.sessions.SendMessage(ctx, sessionID, prompt)
}

// ExecuteQuery sends prompt to a session and waits for its result.
func (e *Engine) ExecuteQuery(ctx context.Context, sessionID, prompt string, opts ...QueryOption) (*QueryResult, error) {
	return e.queries.ExecuteQuery(ctx, sessionID, prompt, opts...)
}

// CancelQuery stops waiting for a running query. It reports whether the
// query was running.
func (e *Engine) CancelQuery(queryID string) bool {
	return e.queries.CancelQuery(queryID)
}

// GetSessionState returns a snapshot of a session.
func (e *Engine) GetSessionState(sessionID string) (SessionInfo, bool) {
	return e.sessions.GetSessionState(sessionID)
}

// Sessions returns snapshots of every session, ordered by id.
func (e *Engine) Sessions() []SessionInfo {
	return e.sessions.Sessions()
}

// GetQueryState returns a snapshot of a running query.
func (e *Engine) GetQueryState(queryID string) (QueryState, bool) {
	return e.queries.GetQueryState(queryID)
}

// Queries returns snapshots of every running query, oldest first.
func (e *Engine) Queries() []QueryState {
	return e.queries.Queries()
}

// Subscribe returns a buffered channel of events matching filter. Slow
// subscribers lose events rather than stalling session output. Call
// unsubscribe when done.
func (e *Engine) Subscribe(filter Filter) (events <-chan Event, unsubscribe func()) {
	return e.bus.Subscribe(filter)
}

// MCPServer returns an MCP server exposing the engine as tools.
func (e *Engine) MCPServer(name, version string) *mcpserver.Server {
	return mcpserver.New(mcpBackend{e: e}, mcpserver.Options{
		Name:    name,
		Version: version,
		Logger:  e.opts.Logger,
	})
}

// Close cancels running queries, terminates every session and closes the
// event bus. It blocks until teardown finishes or ctx ends.
func (e *Engine) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		e.queries.CancelAll()

		err := e.sessions.Shutdown(ctx)
		e.bus.Close()

		if err != nil {
			e.log.Warn("Engine shutdown incomplete", "error", err)
		}

		e.closeErr = err
	})

	return e.closeErr
}

// mcpBackend adapts the engine to the MCP tool surface.
type mcpBackend struct {
	e *Engine
}

var _ mcpserver.Backend = mcpBackend{}

func (b mcpBackend) CreateSession(ctx context.Context, sessionID, workingDirectory, model string) error {
	var opts []SessionOption
	if model != "" {
		opts = append(opts, WithSessionModel(model))
	}

	return b.e.CreateSession(ctx, sessionID, workingDirectory, opts...)
}

func (b mcpBackend) DestroySession(sessionID string) error {
	return b.e.DestroySession(sessionID)
}

func (b mcpBackend) SessionState(sessionID string) (session.Info, bool) {
	return b.e.GetSessionState(sessionID)
}

func (b mcpBackend) Sessions() []session.Info {
	return b.e.Sessions()
}

func (b mcpBackend) ExecuteQuery(ctx context.Context, req mcpserver.QueryRequest) (*query.Result, error) {
	var opts []QueryOption

	if req.QueryID != "" {
		opts = append(opts, WithQueryID(req.QueryID))
	}

	if req.Model != "" {
		opts = append(opts, WithQueryModel(req.Model))
	}

	if req.Timeout > 0 {
		opts = append(opts, WithTimeout(req.Timeout))
	}

	return b.e.ExecuteQuery(ctx, req.SessionID, req.Prompt, opts...)
}

func (b mcpBackend) CancelQuery(queryID string) bool {
	return b.e.CancelQuery(queryID)
}

func (b mcpBackend) QueryState(queryID string) (query.State, bool) {
	return b.e.GetQueryState(queryID)
}
