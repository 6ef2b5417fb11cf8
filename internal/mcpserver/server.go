package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codemonkey800/claude-code-web/internal/query"
	"github.com/codemonkey800/claude-code-web/internal/session"
)

// QueryRequest is one execute_query call.
type QueryRequest struct {
	SessionID string
	Prompt    string
	Model     string
	QueryID   string
	Timeout   time.Duration
}

// Backend is the engine surface the tools drive.
type Backend interface {
	CreateSession(ctx context.Context, sessionID, workingDirectory, model string) error
	DestroySession(sessionID string) error
	SessionState(sessionID string) (session.Info, bool)
	Sessions() []session.Info
	ExecuteQuery(ctx context.Context, req QueryRequest) (*query.Result, error)
	CancelQuery(queryID string) bool
	QueryState(queryID string) (query.State, bool)
}

// Options configures a Server.
type Options struct {
	Name    string
	Version string
	Logger  *slog.Logger
}

type registeredTool struct {
	tool    *mcp.Tool
	handler mcp.ToolHandler
}

// Server serves the engine tools.
type Server struct {
	log     *slog.Logger
	backend Backend
	sdk     *mcp.Server

	mu    sync.RWMutex
	tools map[string]*registeredTool
}

// New creates a server with every engine tool registered.
func New(backend Backend, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if opts.Name == "" {
		opts.Name = "claude-web"
	}

	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		log:     log.With("component", "mcp_server"),
		backend: backend,
		sdk:     mcp.NewServer(&mcp.Implementation{Name: opts.Name, Version: opts.Version}, nil),
		tools:   make(map[string]*registeredTool),
	}

	s.registerTools()

	return s
}

// addTool registers a tool with the SDK server and the direct-call table.
func (s *Server) addTool(tool *mcp.Tool, handler mcp.ToolHandler) {
	s.mu.Lock()
	s.tools[tool.Name] = &registeredTool{tool: tool, handler: handler}
	s.mu.Unlock()

	s.sdk.AddTool(tool, handler)
}

// ListTools returns the registered tools ordered by name.
func (s *Server) ListTools() []*mcp.Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tools := make([]*mcp.Tool, 0, len(s.tools))
	for _, t := range s.tools {
		tools = append(tools, t.tool)
	}

	slices.SortFunc(tools, func(a, b *mcp.Tool) int { return strings.Compare(a.Name, b.Name) })

	return tools
}

// CallTool invokes a tool without a transport.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	s.mu.RLock()
	t, ok := s.tools[name]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}

	if args == nil {
		args = map[string]any{}
	}

	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal arguments: %w", err)
	}

	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{
			Name:      name,
			Arguments: data,
		},
	}

	return t.handler(ctx, req)
}

// Run serves the tools over transport until ctx ends or the client disconnects.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	s.log.Info("MCP server running")

	if err := s.sdk.Run(ctx, transport); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	return nil
}

// SDK returns the underlying MCP server.
func (s *Server) SDK() *mcp.Server {
	return s.sdk
}
