package mcpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codemonkey800/claude-code-web/internal/models"
)

const (
	ToolCreateSession  = "create_session"
	ToolDestroySession = "destroy_session"
	ToolSessionState   = "session_state"
	ToolListSessions   = "list_sessions"
	ToolExecuteQuery   = "execute_query"
	ToolCancelQuery    = "cancel_query"
	ToolQueryState     = "query_state"
	ToolListModels     = "list_models"
)

func (s *Server) registerTools() {
	s.addTool(&mcp.Tool{
		Name:        ToolCreateSession,
		Description: "Start a Claude CLI process for a session in a working directory.",
		InputSchema: objectSchema(
			optional("session_id", "string", "Session id; generated when omitted"),
			required("working_directory", "string", "Existing directory the CLI runs in"),
			optional("model", "string", "Model id or alias to start the CLI with"),
		),
	}, s.createSession)

	s.addTool(&mcp.Tool{
		Name:        ToolDestroySession,
		Description: "Terminate a session's CLI process. Destroying an absent session succeeds.",
		InputSchema: objectSchema(
			required("session_id", "string", "Session to destroy"),
		),
		Annotations: &mcp.ToolAnnotations{IdempotentHint: true},
	}, s.destroySession)

	s.addTool(&mcp.Tool{
		Name:        ToolSessionState,
		Description: "Describe a live session.",
		InputSchema: objectSchema(
			required("session_id", "string", "Session to describe"),
		),
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, s.sessionState)

	s.addTool(&mcp.Tool{
		Name:        ToolListSessions,
		Description: "List live sessions.",
		InputSchema: objectSchema(),
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, s.listSessions)

	s.addTool(&mcp.Tool{
		Name:        ToolExecuteQuery,
		Description: "Send a prompt to a session and wait for the CLI's result.",
		InputSchema: objectSchema(
			required("session_id", "string", "Session to query"),
			required("prompt", "string", "Prompt text"),
			optional("model", "string", "Switch the session to this model first"),
			optional("query_id", "string", "Caller-chosen id, usable with cancel_query"),
			optional("timeout_seconds", "int", "Overrides the engine query timeout"),
		),
	}, s.executeQuery)

	s.addTool(&mcp.Tool{
		Name:        ToolCancelQuery,
		Description: "Stop waiting for a running query. The CLI is not interrupted.",
		InputSchema: objectSchema(
			required("query_id", "string", "Query to cancel"),
		),
	}, s.cancelQuery)

	s.addTool(&mcp.Tool{
		Name:        ToolQueryState,
		Description: "Describe a running query.",
		InputSchema: objectSchema(
			required("query_id", "string", "Query to describe"),
		),
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, s.queryState)

	s.addTool(&mcp.Tool{
		Name:        ToolListModels,
		Description: "List known models and their aliases.",
		InputSchema: objectSchema(),
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, s.listModels)
}

type sessionArgs struct {
	SessionID        string `json:"session_id"`
	WorkingDirectory string `json:"working_directory"`
	Model            string `json:"model"`
}

type queryArgs struct {
	SessionID      string `json:"session_id"`
	Prompt         string `json:"prompt"`
	Model          string `json:"model"`
	QueryID        string `json:"query_id"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func (s *Server) createSession(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArguments[sessionArgs](req)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	if args.WorkingDirectory == "" {
		return errorResult("working_directory is required"), nil
	}

	if args.SessionID == "" {
		args.SessionID = uuid.NewString()
	}

	if err := s.backend.CreateSession(ctx, args.SessionID, args.WorkingDirectory, args.Model); err != nil {
		s.log.Warn("create_session failed", "session_id", args.SessionID, "error", err)

		return errorResult(err.Error()), nil
	}

	info, ok := s.backend.SessionState(args.SessionID)
	if !ok {
		return errorResult(fmt.Sprintf("session %s exited during startup", args.SessionID)), nil
	}

	return jsonResult(info), nil
}

func (s *Server) destroySession(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArguments[sessionArgs](req)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	if args.SessionID == "" {
		return errorResult("session_id is required"), nil
	}

	if err := s.backend.DestroySession(args.SessionID); err != nil {
		return errorResult(err.Error()), nil
	}

	return textResult("destroyed " + args.SessionID), nil
}

func (s *Server) sessionState(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArguments[sessionArgs](req)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	info, ok := s.backend.SessionState(args.SessionID)
	if !ok {
		return errorResult(fmt.Sprintf("session %s not found", args.SessionID)), nil
	}

	return jsonResult(info), nil
}

func (s *Server) listSessions(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.backend.Sessions()), nil
}

func (s *Server) executeQuery(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArguments[queryArgs](req)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	switch {
	case args.SessionID == "":
		return errorResult("session_id is required"), nil
	case args.Prompt == "":
		return errorResult("prompt is required"), nil
	case args.TimeoutSeconds < 0:
		return errorResult("timeout_seconds must not be negative"), nil
	}

	result, err := s.backend.ExecuteQuery(ctx, QueryRequest{
		SessionID: args.SessionID,
		Prompt:    args.Prompt,
		Model:     args.Model,
		QueryID:   args.QueryID,
		Timeout:   time.Duration(args.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return errorResult(err.Error()), nil
	}

	return jsonResult(result), nil
}

func (s *Server) cancelQuery(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArguments[queryArgs](req)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	if !s.backend.CancelQuery(args.QueryID) {
		return errorResult(fmt.Sprintf("query %s is not running", args.QueryID)), nil
	}

	return textResult("cancelled " + args.QueryID), nil
}

func (s *Server) queryState(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArguments[queryArgs](req)
	if err != nil {
		return errorResult(err.Error()), nil
	}

	state, ok := s.backend.QueryState(args.QueryID)
	if !ok {
		return errorResult(fmt.Sprintf("query %s is not running", args.QueryID)), nil
	}

	return jsonResult(state), nil
}

func (s *Server) listModels(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(models.All()), nil
}
