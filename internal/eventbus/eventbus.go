// Package eventbus provides the in-process pub/sub bus that carries every
// decoded CLI output line and every query and process lifecycle event.
//
// Two kinds of subscribers exist. Channel subscribers receive events on a
// buffered channel and lose events when they fall behind. Watchers are
// invoked synchronously on the publishing goroutine, so they observe events
// in publish order and must not block.
package eventbus

import (
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codemonkey800/claude-code-web/internal/message"
)

// EventType identifies the type of event.
type EventType string

const (
	EventQueryStarted      EventType = "query_started"
	EventMessage           EventType = "message"
	EventQueryCompleted    EventType = "query_completed"
	EventQueryError        EventType = "query_error"
	EventSubprocessCrashed EventType = "subprocess_crashed"
)

// DefaultBufferSize is the channel capacity for Subscribe.
const DefaultBufferSize = 256

// Event is one entry on the bus. Fields are populated per type:
// Message for EventMessage, Duration and SessionToken for EventQueryCompleted,
// Err for EventQueryError and EventSubprocessCrashed, ExitCode and Signal for
// EventSubprocessCrashed.
type Event struct {
	Type         EventType
	SessionID    string
	QueryID      string
	Message      message.Message
	Duration     time.Duration
	SessionToken string
	Err          error
	ExitCode     int
	Signal       string
	Time         time.Time
}

// Filter selects the events a subscriber receives. A nil Filter accepts all.
type Filter func(Event) bool

// ForSession accepts events for one session, optionally narrowed to types.
func ForSession(sessionID string, types ...EventType) Filter {
	return func(e Event) bool {
		if e.SessionID != sessionID {
			return false
		}

		if len(types) == 0 {
			return true
		}

		for _, t := range types {
			if e.Type == t {
				return true
			}
		}

		return false
	}
}

type channelSub struct {
	ch     chan Event
	filter Filter
}

type watcher struct {
	handler func(Event)
	filter  Filter
	active  atomic.Bool
}

// Bus is an in-process event bus. Safe for concurrent use.
type Bus struct {
	log *slog.Logger

	mu       sync.RWMutex
	channels map[string]*channelSub
	watchers map[string]*watcher
	nextID   int
	closed   bool

	dropped atomic.Int64
}

// New creates a new event bus.
func New(log *slog.Logger) *Bus {
	return &Bus{
		log:      log.With("component", "eventbus"),
		channels: make(map[string]*channelSub),
		watchers: make(map[string]*watcher),
	}
}

// Subscribe creates a buffered subscription. The returned unsubscribe
// function closes the channel and must be called when done.
// Events are dropped for this subscriber when its buffer is full.
func (b *Bus) Subscribe(filter Filter) (events <-chan Event, unsubscribe func()) {
	return b.SubscribeBuffered(filter, DefaultBufferSize)
}

// SubscribeBuffered is Subscribe with an explicit buffer size.
func (b *Bus) SubscribeBuffered(filter Filter, size int) (events <-chan Event, unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)

		return ch, func() {}
	}

	id := b.newID()
	ch := make(chan Event, max(size, 1))
	b.channels[id] = &channelSub{ch: ch, filter: filter}

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if sub, ok := b.channels[id]; ok {
			close(sub.ch)
			delete(b.channels, id)
		}
	}
}

// Watch registers handler to run synchronously for each matching event.
// The handler runs on the publisher's goroutine and must return quickly.
// Once unsubscribe returns, no new invocation of handler begins.
func (b *Bus) Watch(filter Filter, handler func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.newID()
	w := &watcher{handler: handler, filter: filter}
	w.active.Store(true)
	b.watchers[id] = w

	return func() {
		w.active.Store(false)

		b.mu.Lock()
		delete(b.watchers, id)
		b.mu.Unlock()
	}
}

// Publish delivers an event to all matching subscribers. It never blocks
// on a channel subscriber.
func (b *Bus) Publish(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	b.mu.RLock()

	if b.closed {
		b.mu.RUnlock()

		return
	}

	for _, sub := range b.channels {
		if sub.filter != nil && !sub.filter(event) {
			continue
		}

		select {
		case sub.ch <- event:
		default:
			b.dropped.Add(1)
			b.log.Debug("Dropped event for slow subscriber",
				"event_type", event.Type, "session_id", event.SessionID)
		}
	}

	watchers := make([]*watcher, 0, len(b.watchers))
	for _, w := range b.watchers {
		if w.filter == nil || w.filter(event) {
			watchers = append(watchers, w)
		}
	}

	b.mu.RUnlock()

	for _, w := range watchers {
		if w.active.Load() {
			w.handler(event)
		}
	}
}

// PublishMessage publishes a decoded output line for a session.
func (b *Bus) PublishMessage(sessionID string, msg message.Message) {
	b.Publish(Event{
		Type:         EventMessage,
		SessionID:    sessionID,
		Message:      msg,
		SessionToken: msg.SessionToken(),
	})
}

// PublishQueryError publishes a failure, with or without an owning query.
func (b *Bus) PublishQueryError(sessionID, queryID string, err error) {
	b.Publish(Event{
		Type:      EventQueryError,
		SessionID: sessionID,
		QueryID:   queryID,
		Err:       err,
	})
}

// Close shuts down the bus and closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true

	for id, sub := range b.channels {
		close(sub.ch)
		delete(b.channels, id)
	}

	for id, w := range b.watchers {
		w.active.Store(false)
		delete(b.watchers, id)
	}
}

// SubscriberCount returns the current number of channel subscribers and watchers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.channels) + len(b.watchers)
}

// Dropped returns how many channel deliveries were dropped.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// newID must be called with mu held.
func (b *Bus) newID() string {
	b.nextID++

	return strconv.Itoa(b.nextID)
}
