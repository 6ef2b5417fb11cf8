package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	claudeweb "github.com/codemonkey800/claude-code-web"
)

var queryCmd = &cobra.Command{
	Use:   "query <prompt>",
	Short: "Start a session, run one query and print its events as JSON lines",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

var (
	queryCwdFlag     string
	queryModelFlag   string
	queryTimeoutFlag time.Duration
	queryEventsFlag  bool
)

func init() {
	queryCmd.Flags().StringVar(&queryCwdFlag, "cwd", ".", "Working directory for the session")
	queryCmd.Flags().StringVar(&queryModelFlag, "model", "", "Model id or alias")
	queryCmd.Flags().DurationVar(&queryTimeoutFlag, "timeout", 0, "Query timeout (default from config)")
	queryCmd.Flags().BoolVar(&queryEventsFlag, "events", true, "Print every event, not just the result")
}

// eventLine is the JSON form of one event.
type eventLine struct {
	Type      claudeweb.EventType `json:"type"`
	SessionID string              `json:"session_id"`
	QueryID   string              `json:"query_id,omitempty"`
	Message   claudeweb.Message   `json:"message,omitempty"`
	Error     string              `json:"error,omitempty"`
	Duration  time.Duration       `json:"duration,omitempty"`
	Time      time.Time           `json:"time"`
}

func newEventLine(ev claudeweb.Event) eventLine {
	line := eventLine{
		Type:      ev.Type,
		SessionID: ev.SessionID,
		QueryID:   ev.QueryID,
		Message:   ev.Message,
		Duration:  ev.Duration,
		Time:      ev.Time,
	}

	if ev.Err != nil {
		line.Error = ev.Err.Error()
	}

	return line
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var extra []claudeweb.Option
	if queryTimeoutFlag > 0 {
		extra = append(extra, claudeweb.WithQueryTimeout(queryTimeoutFlag))
	}

	opts, err := engineOptions(extra...)
	if err != nil {
		return err
	}

	return claudeweb.WithEngine(ctx, func(engine *claudeweb.Engine) error {
		sessionID := uuid.NewString()
		enc := json.NewEncoder(cmd.OutOrStdout())

		events, unsubscribe := engine.Subscribe(claudeweb.ForSession(sessionID))

		var wg sync.WaitGroup
		if queryEventsFlag {
			wg.Go(func() {
				for ev := range events {
					_ = enc.Encode(newEventLine(ev))
				}
			})
		}

		defer func() {
			unsubscribe()
			wg.Wait()
		}()

		var sessionOpts []claudeweb.SessionOption
		if queryModelFlag != "" {
			sessionOpts = append(sessionOpts, claudeweb.WithSessionModel(queryModelFlag))
		}

		if err := engine.CreateSession(ctx, sessionID, queryCwdFlag, sessionOpts...); err != nil {
			return err
		}

		result, err := engine.ExecuteQuery(ctx, sessionID, args[0])
		if err != nil {
			return err
		}

		if !queryEventsFlag {
			return enc.Encode(result)
		}

		return nil
	}, opts...)
}
