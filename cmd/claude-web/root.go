package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	claudeweb "github.com/codemonkey800/claude-code-web"
)

var rootCmd = &cobra.Command{
	Use:   "claude-web",
	Short: "Run Claude CLI sessions",
	Long: `claude-web runs one Claude CLI process per session and turns prompts into results.

Quick start:
  claude-web query --cwd . "Summarize this repo"   # One session, one query
  claude-web mcp                                   # Serve sessions over MCP stdio`,
	SilenceUsage: true,
}

var (
	configFlag   string
	logLevelFlag string
	cliPathFlag  string
	serialFlag   bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "TOML config file")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&cliPathFlag, "cli-path", "", "Path to the claude binary")
	rootCmd.PersistentFlags().BoolVar(&serialFlag, "serialize", false, "Queue overlapping queries per session")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}

// newLogger logs to stderr; stdout carries command output.
func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(logLevelFlag))); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", logLevelFlag)
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})), nil
}

// engineOptions collects the options shared by every command.
func engineOptions(extra ...claudeweb.Option) ([]claudeweb.Option, error) {
	log, err := newLogger()
	if err != nil {
		return nil, err
	}

	opts := []claudeweb.Option{claudeweb.WithLogger(log)}

	if configFlag != "" {
		opts = append(opts, claudeweb.WithConfigFile(configFlag))
	}

	if cliPathFlag != "" {
		opts = append(opts, claudeweb.WithCliPath(cliPathFlag))
	}

	if serialFlag {
		opts = append(opts, claudeweb.WithSerializedQueries())
	}

	return append(opts, extra...), nil
}
