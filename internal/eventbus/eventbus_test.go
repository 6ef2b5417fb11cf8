package eventbus

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codemonkey800/claude-code-web/internal/message"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()

	bus := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(bus.Close)

	return bus
}

func TestBus_PublishSubscribe(t *testing.T) {
	bus := newTestBus(t)

	events, unsub := bus.Subscribe(nil)
	defer unsub()

	bus.Publish(Event{Type: EventQueryStarted, SessionID: "s1", QueryID: "q1"})

	select {
	case event := <-events:
		require.Equal(t, EventQueryStarted, event.Type)
		require.Equal(t, "q1", event.QueryID)
		require.False(t, event.Time.IsZero())
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestBus_FilterBySession(t *testing.T) {
	bus := newTestBus(t)

	events, unsub := bus.Subscribe(ForSession("s1", EventMessage))
	defer unsub()

	bus.Publish(Event{Type: EventMessage, SessionID: "s2"})
	bus.Publish(Event{Type: EventQueryStarted, SessionID: "s1"})
	bus.PublishMessage("s1", &message.ResultMessage{Token: "tok"})

	event := <-events
	require.Equal(t, "s1", event.SessionID)
	require.Equal(t, EventMessage, event.Type)
	require.Equal(t, "tok", event.SessionToken)

	select {
	case extra := <-events:
		t.Fatalf("unexpected event %v", extra.Type)
	default:
	}
}

func TestBus_DropsWhenFull(t *testing.T) {
	bus := newTestBus(t)

	events, unsub := bus.SubscribeBuffered(nil, 1)
	defer unsub()

	bus.Publish(Event{Type: EventMessage, QueryID: "first"})
	bus.Publish(Event{Type: EventMessage, QueryID: "second"})

	require.Equal(t, "first", (<-events).QueryID)
	require.Equal(t, int64(1), bus.Dropped())
}

func TestBus_WatchPreservesOrder(t *testing.T) {
	bus := newTestBus(t)

	var got []string

	unsub := bus.Watch(ForSession("s1"), func(e Event) {
		got = append(got, e.QueryID)
	})
	defer unsub()

	for _, id := range []string{"a", "b", "c", "d"} {
		bus.Publish(Event{Type: EventMessage, SessionID: "s1", QueryID: id})
	}

	require.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func TestBus_WatchUnsubscribe(t *testing.T) {
	bus := newTestBus(t)

	calls := 0
	unsub := bus.Watch(nil, func(Event) { calls++ })

	bus.Publish(Event{Type: EventMessage})
	unsub()
	bus.Publish(Event{Type: EventMessage})

	require.Equal(t, 1, calls)
	require.Equal(t, 0, bus.SubscriberCount())
}

func TestBus_WatcherMayUnsubscribeItself(t *testing.T) {
	bus := newTestBus(t)

	var (
		unsub func()
		calls int
	)

	unsub = bus.Watch(nil, func(Event) {
		calls++
		unsub()
	})

	bus.Publish(Event{Type: EventMessage})
	bus.Publish(Event{Type: EventMessage})

	require.Equal(t, 1, calls)
}

func TestBus_PublishQueryError(t *testing.T) {
	bus := newTestBus(t)

	events, unsub := bus.Subscribe(nil)
	defer unsub()

	boom := errors.New("boom")
	bus.PublishQueryError("s1", "", boom)

	event := <-events
	require.Equal(t, EventQueryError, event.Type)
	require.ErrorIs(t, event.Err, boom)
	require.Empty(t, event.QueryID)
}

func TestBus_Close(t *testing.T) {
	bus := New(slog.New(slog.NewTextHandler(io.Discard, nil)))

	events, unsub := bus.Subscribe(nil)
	bus.Close()

	_, ok := <-events
	require.False(t, ok)

	// Unsubscribe after close and publish after close are both safe.
	unsub()
	bus.Publish(Event{Type: EventMessage})
	bus.Close()

	late, lateUnsub := bus.Subscribe(nil)
	defer lateUnsub()

	_, ok = <-late
	require.False(t, ok)
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := newTestBus(t)

	var (
		mu    sync.Mutex
		count int
	)

	unsub := bus.Watch(nil, func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	defer unsub()

	var wg sync.WaitGroup

	for range 10 {
		wg.Go(func() {
			for range 100 {
				bus.Publish(Event{Type: EventMessage})
			}
		})
	}

	wg.Wait()

	require.Equal(t, 1000, count)
}
