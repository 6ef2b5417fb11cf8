package claudeweb

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codemonkey800/claude-code-web/internal/message"
	"github.com/codemonkey800/claude-code-web/internal/mcpserver"
	"github.com/codemonkey800/claude-code-web/internal/subprocess"
)

// echoProcess answers every user message with a result line.
type echoProcess struct {
	cfg subprocess.Config

	mu      sync.Mutex
	healthy bool
	writes  []map[string]any
}

func (p *echoProcess) Start(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.healthy = true

	return nil
}

func (p *echoProcess) Write(_ context.Context, data []byte) error {
	var line map[string]any
	if err := json.Unmarshal(data, &line); err != nil {
		return err
	}

	p.mu.Lock()
	p.writes = append(p.writes, line)
	p.mu.Unlock()

	if line["type"] != message.TypeUser {
		return nil
	}

	msg, err := message.Parse(NopLogger(), map[string]any{
		"type":       "result",
		"subtype":    "success",
		"session_id": "tok-" + p.cfg.SessionID,
		"result":     "ok",
	})
	if err != nil {
		return err
	}

	p.cfg.Bus.PublishMessage(p.cfg.SessionID, msg)

	return nil
}

func (p *echoProcess) Close() error { return nil }

func (p *echoProcess) Terminate(time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.healthy = false

	return nil
}

func (p *echoProcess) SessionToken() string { return "" }

func (p *echoProcess) Healthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.healthy
}

func (p *echoProcess) PID() int { return 1 }

type echoFactory struct {
	mu    sync.Mutex
	procs []*echoProcess
}

func (f *echoFactory) build(cfg ProcessConfig) Process {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := &echoProcess{cfg: cfg}
	f.procs = append(f.procs, p)

	return p
}

func (f *echoFactory) last() *echoProcess {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.procs[len(f.procs)-1]
}

func noEnv(string) (string, bool) { return "", false }

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *echoFactory) {
	t.Helper()

	factory := &echoFactory{}
	opts = append([]Option{WithProcessFactory(factory.build), withLookupEnv(noEnv)}, opts...)

	engine, err := New(context.Background(), opts...)
	require.NoError(t, err)

	t.Cleanup(func() { _ = engine.Close(context.Background()) })

	return engine, factory
}

func TestEngine_ExecuteQuery(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	events, unsubscribe := engine.Subscribe(ForSession("s1"))
	defer unsubscribe()

	require.NoError(t, engine.CreateSession(ctx, "s1", t.TempDir()))

	result, err := engine.ExecuteQuery(ctx, "s1", "hello", WithQueryID("q1"))
	require.NoError(t, err)
	require.Equal(t, "q1", result.QueryID)
	require.Equal(t, "tok-s1", result.SessionToken)
	require.Equal(t, "ok", *result.Message.Result)

	var types []EventType
	for range 3 {
		select {
		case ev := <-events:
			types = append(types, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("missing event")
		}
	}

	require.Equal(t, []EventType{EventQueryStarted, EventMessage, EventQueryCompleted}, types)
}

func TestEngine_DefaultModel(t *testing.T) {
	engine, factory := newTestEngine(t, WithModel("sonnet"))
	ctx := context.Background()

	require.NoError(t, engine.CreateSession(ctx, "s1", t.TempDir()))
	require.Equal(t, "sonnet", factory.last().cfg.Model)

	require.NoError(t, engine.CreateSession(ctx, "s2", t.TempDir(), WithSessionModel("opus")))
	require.Equal(t, "opus", factory.last().cfg.Model)
}

func TestEngine_QueryModelSwitch(t *testing.T) {
	engine, factory := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.CreateSession(ctx, "s1", t.TempDir()))

	_, err := engine.ExecuteQuery(ctx, "s1", "hello", WithQueryModel("opus"))
	require.NoError(t, err)

	p := factory.last()
	p.mu.Lock()
	defer p.mu.Unlock()

	require.Len(t, p.writes, 2)
	require.Equal(t, "control_request", p.writes[0]["type"])
	require.Equal(t, message.TypeUser, p.writes[1]["type"])
}

func TestEngine_DestroySession(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.CreateSession(ctx, "s1", t.TempDir()))
	require.Len(t, engine.Sessions(), 1)

	require.NoError(t, engine.DestroySession("s1"))
	require.NoError(t, engine.DestroySession("s1"))
	require.Empty(t, engine.Sessions())

	_, err := engine.ExecuteQuery(ctx, "s1", "hello")
	require.ErrorIs(t, err, ErrSessionNotFound)

	_, ok := stderrors.AsType[*SessionNotFoundError](err)
	require.True(t, ok)
}

func TestEngine_OpenSession(t *testing.T) {
	dir := t.TempDir()
	registry := NewMapRegistry(map[string]string{"known": dir})

	engine, _ := newTestEngine(t, WithRegistry(registry))
	ctx := context.Background()

	require.NoError(t, engine.OpenSession(ctx, "known"))

	info, ok := engine.GetSessionState("known")
	require.True(t, ok)
	require.Equal(t, dir, info.WorkingDirectory)

	require.ErrorIs(t, engine.OpenSession(ctx, "unknown"), ErrSessionNotFound)
}

func TestEngine_OpenSessionWithoutRegistry(t *testing.T) {
	engine, _ := newTestEngine(t)

	require.ErrorContains(t, engine.OpenSession(context.Background(), "s1"), "no registry")
}

func TestEngine_InvalidTimeouts(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"query timeout too short", WithQueryTimeout(time.Second)},
		{"query timeout too long", WithQueryTimeout(time.Hour)},
		{"kill timeout too short", WithKillTimeout(time.Millisecond)},
		{"kill timeout too long", WithKillTimeout(time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), WithProcessFactory((&echoFactory{}).build), withLookupEnv(noEnv), tt.opt)

			_, ok := stderrors.AsType[*ConfigError](err)
			require.True(t, ok, "got %v", err)
		})
	}
}

func TestResolveOptions_Layering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claude-web.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
cli_path = "/from/file"
model = "haiku"
kill_timeout = "3s"
query_timeout = "2m"

[env]
FROM_FILE = "1"
`), 0o600))

	eo := applyOptions([]Option{
		WithConfigFile(path),
		WithKillTimeout(4 * time.Second),
		WithEnv(map[string]string{"EXPLICIT": "1"}),
		withLookupEnv(func(key string) (string, bool) {
			if key == "CLAUDE_WEB_QUERY_TIMEOUT" {
				return "90", true
			}

			return "", false
		}),
	})

	resolved, err := resolveOptions(eo)
	require.NoError(t, err)

	require.Equal(t, "/from/file", resolved.CliPath)
	require.Equal(t, "haiku", resolved.Model)
	require.Equal(t, 4*time.Second, resolved.KillTimeout)
	require.Equal(t, 90*time.Second, resolved.QueryTimeout)
	require.Equal(t, map[string]string{"FROM_FILE": "1", "EXPLICIT": "1"}, resolved.Env)
	require.NotNil(t, resolved.Logger)
}

func TestResolveOptions_MissingFile(t *testing.T) {
	_, err := resolveOptions(applyOptions([]Option{
		WithConfigFile(filepath.Join(t.TempDir(), "missing.toml")),
		withLookupEnv(noEnv),
	}))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestEngine_MCPServer(t *testing.T) {
	engine, _ := newTestEngine(t)
	server := engine.MCPServer("test", "v0")
	ctx := context.Background()

	res, err := server.CallTool(ctx, mcpserver.ToolCreateSession, map[string]any{
		"session_id":        "s1",
		"working_directory": t.TempDir(),
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	res, err = server.CallTool(ctx, mcpserver.ToolExecuteQuery, map[string]any{
		"session_id": "s1",
		"prompt":     "hello",
		"query_id":   "q1",
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	_, ok := engine.GetSessionState("s1")
	require.True(t, ok)
}

func TestEngine_CloseIsIdempotent(t *testing.T) {
	engine, factory := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.CreateSession(ctx, "s1", t.TempDir()))
	require.NoError(t, engine.Close(ctx))
	require.NoError(t, engine.Close(ctx))

	require.False(t, factory.last().Healthy())
	require.Empty(t, engine.Sessions())

	events, _ := engine.Subscribe(nil)
	_, open := <-events
	require.False(t, open)
}

func TestWithEngine_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithEngine(ctx, func(*Engine) error {
		t.Error("callback should not be called with cancelled context")

		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestWithEngine_ReturnsCallbackError(t *testing.T) {
	boom := stderrors.New("boom")

	err := WithEngine(context.Background(), func(e *Engine) error {
		require.NotNil(t, e)

		return boom
	}, WithProcessFactory((&echoFactory{}).build), withLookupEnv(noEnv))
	require.ErrorIs(t, err, boom)
}

func TestEngine_WithFakeCLI(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake CLI scripts require a POSIX shell")
	}

	cliPath := filepath.Join(t.TempDir(), "claude")
	script := `#!/bin/sh
echo '{"type":"system","subtype":"init","session_id":"cli-session"}'
while IFS= read -r line; do
  echo '{"type":"result","subtype":"success","is_error":false,"result":"done"}'
done
`
	require.NoError(t, os.WriteFile(cliPath, []byte(script), 0o755))

	err := WithEngine(context.Background(), func(e *Engine) error {
		require.Equal(t, cliPath, e.CliPath())
		require.NoError(t, e.CreateSession(context.Background(), "s1", t.TempDir()))

		result, err := e.ExecuteQuery(context.Background(), "s1", "hello")
		require.NoError(t, err)
		require.Equal(t, "cli-session", result.SessionToken)
		require.Equal(t, "done", *result.Message.Result)

		return nil
	},
		WithCliPath(cliPath),
		WithKillTimeout(time.Second),
		WithSkipVersionCheck(),
		withLookupEnv(noEnv),
	)
	require.NoError(t, err)
}

func TestNew_CLINotFound(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "claude")

	_, err := New(context.Background(), WithCliPath(missing), withLookupEnv(noEnv))

	notFound, ok := stderrors.AsType[*CLINotFoundError](err)
	require.True(t, ok, "got %v", err)
	require.Equal(t, []string{missing}, notFound.SearchedPaths)
}
