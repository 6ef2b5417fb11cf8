package query

import (
	"time"

	"github.com/codemonkey800/claude-code-web/internal/message"
)

// Status is the lifecycle of one query. It only moves forward, ending in
// completed or failed.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusRunning      Status = "running"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// ResultSuccess is the only status a returned Result carries.
const ResultSuccess = "success"

// State is a snapshot of a running query.
type State struct {
	QueryID        string     `json:"query_id"`
	SessionID      string     `json:"session_id"`
	Status         Status     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	SessionToken   string     `json:"session_token,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// Result is a successfully completed query.
type Result struct {
	QueryID      string                 `json:"query_id"`
	SessionID    string                 `json:"session_id"`
	Status       string                 `json:"status"`
	Duration     time.Duration          `json:"duration"`
	SessionToken string                 `json:"session_token,omitempty"`
	Message      *message.ResultMessage `json:"result,omitempty"`
}
