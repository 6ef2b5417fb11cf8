package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	claudeweb "github.com/codemonkey800/claude-code-web"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve session and query tools over MCP stdio",
	Long: `Serve the engine as MCP tools on stdin/stdout.

Tools: create_session, destroy_session, session_state, list_sessions,
execute_query, cancel_query, query_state, list_models.
Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := engineOptions()
	if err != nil {
		return err
	}

	return claudeweb.WithEngine(ctx, func(engine *claudeweb.Engine) error {
		return engine.MCPServer("claude-web", version).Run(ctx, &mcp.StdioTransport{})
	}, opts...)
}
