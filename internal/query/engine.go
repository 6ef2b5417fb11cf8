package query

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/codemonkey800/claude-code-web/internal/config"
	"github.com/codemonkey800/claude-code-web/internal/errors"
	"github.com/codemonkey800/claude-code-web/internal/eventbus"
	"github.com/codemonkey800/claude-code-web/internal/message"
	"github.com/codemonkey800/claude-code-web/internal/models"
	"github.com/codemonkey800/claude-code-web/internal/session"
)

// Sessions is the part of the session manager the engine drives.
// *session.Manager implements it.
type Sessions interface {
	SendMessage(ctx context.Context, sessionID, prompt string) error
	SetModel(ctx context.Context, sessionID, model string) error
	Model(sessionID string) (string, bool)
	GetSessionState(sessionID string) (session.Info, bool)
}

var _ Sessions = (*session.Manager)(nil)

// Config configures an Engine.
type Config struct {
	Sessions Sessions

	// Bus carries the session output the engine watches. Required.
	Bus *eventbus.Bus

	// Timeout bounds each query from submission. Zero selects the default.
	Timeout time.Duration

	// Serialize queues queries per session instead of letting them overlap.
	Serialize bool

	Logger *slog.Logger
}

// inflight is the index entry for a query that has not settled.
type inflight struct {
	mu     sync.Mutex
	state  State
	cancel context.CancelCauseFunc
}

func (q *inflight) snapshot() State {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.state
}

func (q *inflight) update(fn func(*State)) {
	q.mu.Lock()
	defer q.mu.Unlock()

	fn(&q.state)
}

// Engine turns prompts into exactly one result or error each.
type Engine struct {
	log *slog.Logger
	cfg Config
	bus *eventbus.Bus

	mu      sync.Mutex
	queries map[string]*inflight
	locks   map[string]chan struct{}
}

// NewEngine creates a query engine.
func NewEngine(cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultQueryTimeout
	}

	return &Engine{
		log:     log.With("component", "query_engine"),
		cfg:     cfg,
		bus:     cfg.Bus,
		queries: make(map[string]*inflight),
		locks:   make(map[string]chan struct{}),
	}
}

// Option configures one ExecuteQuery call.
type Option func(*options)

type options struct {
	queryID string
	model   string
	timeout time.Duration
}

// WithQueryID uses id instead of a generated query id, so the caller can
// cancel or inspect the query while it runs.
func WithQueryID(id string) Option {
	return func(o *options) {
		o.queryID = id
	}
}

// WithModel switches the session to model before sending the prompt.
func WithModel(model string) Option {
	return func(o *options) {
		o.model = model
	}
}

// WithTimeout overrides the engine timeout for this query.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// outcome is what the watcher hands back to the waiting query.
type outcome struct {
	result *message.ResultMessage
	err    error
}

// ExecuteQuery sends prompt to the session and waits for the CLI's result
// message, the query timeout, or cancellation of ctx, whichever is first.
//
// Completion is the first "result" line the session emits after the prompt
// is written; the CLI does not echo query ids. Without Serialize, callers
// must not overlap queries on one session.
func (e *Engine) ExecuteQuery(ctx context.Context, sessionID, prompt string, opts ...Option) (*Result, error) {
	o := options{timeout: e.cfg.Timeout}
	for _, opt := range opts {
		opt(&o)
	}

	if o.queryID == "" {
		o.queryID = ulid.Make().String()
	}

	qctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	// The timeout bounds every step, including a write blocked on a full
	// stdin pipe.
	tctx, stop := context.WithTimeoutCause(qctx, o.timeout, errors.ErrQueryTimeout)
	defer stop()

	now := time.Now()
	q := &inflight{
		state: State{
			QueryID:        o.queryID,
			SessionID:      sessionID,
			Status:         StatusInitializing,
			StartedAt:      now,
			LastActivityAt: now,
		},
		cancel: cancel,
	}

	e.mu.Lock()
	if _, dup := e.queries[o.queryID]; dup {
		e.mu.Unlock()

		return nil, fmt.Errorf("query %s is already running", o.queryID)
	}

	e.queries[o.queryID] = q
	e.mu.Unlock()

	log := e.log.With("query_id", o.queryID, "session_id", sessionID)
	log.Debug("Query started")

	e.bus.Publish(eventbus.Event{Type: eventbus.EventQueryStarted, SessionID: sessionID, QueryID: o.queryID})

	result, err := e.run(tctx, q, prompt, o)

	// The final state stays visible to watchers of the settle event.
	defer func() {
		e.mu.Lock()
		delete(e.queries, o.queryID)
		e.mu.Unlock()
	}()

	if err != nil {
		e.fail(q, err)

		log.Warn("Query failed", "error", err)
		e.bus.PublishQueryError(sessionID, o.queryID, err)

		return nil, err
	}

	log.Debug("Query completed", "duration", result.Duration)

	e.bus.Publish(eventbus.Event{
		Type:         eventbus.EventQueryCompleted,
		SessionID:    sessionID,
		QueryID:      o.queryID,
		Duration:     result.Duration,
		SessionToken: result.SessionToken,
	})

	return result, nil
}

// run executes the send and wait steps. Every listener it registers is
// removed before it returns.
func (e *Engine) run(ctx context.Context, q *inflight, prompt string, o options) (*Result, error) {
	sessionID := q.state.SessionID

	if _, ok := e.cfg.Sessions.GetSessionState(sessionID); !ok {
		return nil, &errors.SessionNotFoundError{SessionID: sessionID}
	}

	if e.cfg.Serialize {
		release, err := e.acquire(ctx, sessionID, q.state.QueryID, o.timeout)
		if err != nil {
			return nil, err
		}

		defer release()
	}

	done := make(chan outcome, 1)
	settle := func(out outcome) {
		select {
		case done <- out:
		default:
		}
	}

	// Watch before writing so a fast result cannot be missed.
	unwatch := e.bus.Watch(eventbus.ForSession(sessionID), func(ev eventbus.Event) {
		switch ev.Type {
		case eventbus.EventMessage:
			q.update(func(s *State) {
				s.LastActivityAt = ev.Time
				if ev.SessionToken != "" {
					s.SessionToken = ev.SessionToken
				}
			})

			if r, ok := ev.Message.(*message.ResultMessage); ok {
				settle(outcome{result: r})
			}
		case eventbus.EventSubprocessCrashed:
			settle(outcome{err: ev.Err})
		case eventbus.EventQueryError:
			// Process-level failures carry no query id.
			if ev.QueryID == "" {
				settle(outcome{err: ev.Err})
			}
		}
	})
	defer unwatch()

	q.update(func(s *State) { s.Status = StatusRunning })

	if o.model != "" {
		if err := e.switchModel(ctx, sessionID, o.model); err != nil {
			return nil, e.sendError(ctx, q.state.QueryID, o.timeout, err)
		}
	}

	if err := e.cfg.Sessions.SendMessage(ctx, sessionID, prompt); err != nil {
		return nil, e.sendError(ctx, q.state.QueryID, o.timeout, err)
	}

	select {
	case out := <-done:
		if out.err != nil {
			return nil, out.err
		}

		return e.succeed(q, out.result), nil

	case <-ctx.Done():
		return nil, interrupted(ctx, q.state.QueryID, o.timeout)
	}
}

// sendError reports a write cut short by the timeout or by cancellation as
// the query's timeout or abort.
func (e *Engine) sendError(ctx context.Context, queryID string, timeout time.Duration, err error) error {
	if ctx.Err() != nil {
		return interrupted(ctx, queryID, timeout)
	}

	return err
}

// interrupted maps a done query context to *QueryTimeoutError when its own
// deadline fired and to *QueryAbortedError otherwise.
func interrupted(ctx context.Context, queryID string, timeout time.Duration) error {
	cause := context.Cause(ctx)
	if stderrors.Is(cause, errors.ErrQueryTimeout) {
		return &errors.QueryTimeoutError{QueryID: queryID, Timeout: timeout}
	}

	return &errors.QueryAbortedError{QueryID: queryID, Cause: cause}
}

// fail marks q failed with err before it leaves the index.
func (e *Engine) fail(q *inflight, err error) {
	completed := time.Now()

	q.update(func(s *State) {
		s.Status = StatusFailed
		s.Error = err.Error()
		s.CompletedAt = &completed
	})
}

func (e *Engine) succeed(q *inflight, r *message.ResultMessage) *Result {
	completed := time.Now()

	var state State

	q.update(func(s *State) {
		s.Status = StatusCompleted
		s.CompletedAt = &completed

		if r.SessionToken() != "" {
			s.SessionToken = r.SessionToken()
		}

		state = *s
	})

	token := state.SessionToken
	if token == "" {
		if info, ok := e.cfg.Sessions.GetSessionState(state.SessionID); ok {
			token = info.SessionToken
		}
	}

	return &Result{
		QueryID:      state.QueryID,
		SessionID:    state.SessionID,
		Status:       ResultSuccess,
		Duration:     completed.Sub(state.StartedAt),
		SessionToken: token,
		Message:      r,
	}
}

// switchModel sends set_model when the requested model differs from the
// session's current one.
func (e *Engine) switchModel(ctx context.Context, sessionID, requested string) error {
	resolved, known := models.Resolve(requested)
	if !known {
		e.log.Warn("Unknown model, passing through", "model", requested, "session_id", sessionID)
	}

	current, ok := e.cfg.Sessions.Model(sessionID)
	if ok && models.Same(current, resolved) {
		return nil
	}

	return e.cfg.Sessions.SetModel(ctx, sessionID, resolved)
}

// acquire takes the per-session query slot, giving up on cancellation or
// when the query's own timeout fires first.
func (e *Engine) acquire(
	ctx context.Context,
	sessionID string,
	queryID string,
	timeout time.Duration,
) (func(), error) {
	e.mu.Lock()

	slot, ok := e.locks[sessionID]
	if !ok {
		slot = make(chan struct{}, 1)
		e.locks[sessionID] = slot
	}

	e.mu.Unlock()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, interrupted(ctx, queryID, timeout)
	}
}

// CancelQuery aborts the engine's wait for queryID. The CLI is not
// signalled and keeps working on the prompt. It reports whether a running
// query was found.
func (e *Engine) CancelQuery(queryID string) bool {
	e.mu.Lock()
	q, ok := e.queries[queryID]
	e.mu.Unlock()

	if !ok {
		e.log.Debug("Cancel for unknown or settled query", "query_id", queryID)

		return false
	}

	q.cancel(errors.ErrQueryCancelled)

	return true
}

// CancelAll aborts every running query.
func (e *Engine) CancelAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, q := range e.queries {
		q.cancel(errors.ErrQueryCancelled)
	}
}

// GetQueryState returns a running query's state. Settled queries are gone.
func (e *Engine) GetQueryState(queryID string) (State, bool) {
	e.mu.Lock()
	q, ok := e.queries[queryID]
	e.mu.Unlock()

	if !ok {
		return State{}, false
	}

	return q.snapshot(), true
}

// Queries returns the state of every running query, oldest first.
func (e *Engine) Queries() []State {
	e.mu.Lock()

	states := make([]State, 0, len(e.queries))
	for _, q := range e.queries {
		states = append(states, q.snapshot())
	}

	e.mu.Unlock()

	slices.SortFunc(states, func(a, b State) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}

		return strings.Compare(a.QueryID, b.QueryID)
	})

	return states
}

// Forget drops the per-session queue slot once a session is destroyed.
func (e *Engine) Forget(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.locks, sessionID)
}
