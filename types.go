package claudeweb

import (
	"time"

	"github.com/codemonkey800/claude-code-web/internal/eventbus"
	"github.com/codemonkey800/claude-code-web/internal/message"
	"github.com/codemonkey800/claude-code-web/internal/models"
	"github.com/codemonkey800/claude-code-web/internal/query"
	"github.com/codemonkey800/claude-code-web/internal/session"
	"github.com/codemonkey800/claude-code-web/internal/subprocess"
)

// Event is a notification published on the engine's bus.
type Event = eventbus.Event

// EventType identifies an event kind.
type EventType = eventbus.EventType

// Filter selects events for a subscription.
type Filter = eventbus.Filter

const (
	EventQueryStarted      = eventbus.EventQueryStarted
	EventMessage           = eventbus.EventMessage
	EventQueryCompleted    = eventbus.EventQueryCompleted
	EventQueryError        = eventbus.EventQueryError
	EventSubprocessCrashed = eventbus.EventSubprocessCrashed
)

// ForSession matches events for one session, optionally limited to types.
func ForSession(sessionID string, types ...EventType) Filter {
	return eventbus.ForSession(sessionID, types...)
}

// Message is one decoded line of CLI output.
type Message = message.Message

// Message variants.
type (
	SystemMessage    = message.SystemMessage
	AssistantMessage = message.AssistantMessage
	UserMessage      = message.UserMessage
	ResultMessage    = message.ResultMessage
	UnknownMessage   = message.UnknownMessage
)

// SessionInfo is a snapshot of one session.
type SessionInfo = session.Info

// SessionState is a session's lifecycle state.
type SessionState = session.State

// Registry resolves a session's working directory.
type Registry = session.Registry

// NewMapRegistry returns an in-memory Registry seeded with dirs.
func NewMapRegistry(dirs map[string]string) *session.MapRegistry {
	return session.NewMapRegistry(dirs)
}

// Process is a session's CLI process handle.
type Process = session.Process

// ProcessConfig configures one session process.
type ProcessConfig = subprocess.Config

// ProcessFactory builds an unstarted process for a session.
type ProcessFactory = session.ProcessFactory

// QueryState is a snapshot of a running query.
type QueryState = query.State

// QueryStatus is a query's lifecycle status.
type QueryStatus = query.Status

// QueryResult is a settled query.
type QueryResult = query.Result

// QueryOption configures one ExecuteQuery call.
type QueryOption = query.Option

// WithQueryID sets the id of a query so it can be cancelled while it runs.
func WithQueryID(id string) QueryOption {
	return query.WithQueryID(id)
}

// WithQueryModel switches the session to model before the prompt is sent.
func WithQueryModel(model string) QueryOption {
	return query.WithModel(model)
}

// WithTimeout overrides the engine query timeout for one query.
func WithTimeout(d time.Duration) QueryOption {
	return query.WithTimeout(d)
}

// SessionOption configures one CreateSession call.
type SessionOption = session.CreateOption

// WithSessionModel starts the session's CLI with model.
func WithSessionModel(model string) SessionOption {
	return session.WithModel(model)
}

// Model is a catalog entry.
type Model = models.Model

// Models lists the known models.
func Models() []Model {
	return models.All()
}
