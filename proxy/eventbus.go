package proxy

import (
	"log/slog"
	"sync"
)

// eventBufferSize bounds each subscriber's channel. 128 is small enough
// that a stuck subscriber can't grow memory unbounded, and large enough to
// absorb a burst from a fast test run without dropping events under normal
// load.
const eventBufferSize = 128

// EventKind identifies the kind of Event a subscriber receives.
type EventKind int

const (
	// EventRequestReceived fires twice per request: once as soon as it has
	// been parsed, before any rule has been matched against it, and once
	// after rule selection with the body buffered.
	EventRequestReceived EventKind = iota
	// EventResponseCompleted fires once the pipeline has a Response to send
	// (from a rule, or the no-match 503), before the front-end writes it to
	// the client.
	EventResponseCompleted
	// EventRequestAborted fires when the matched Handler returned an error
	// (the client then gets a 500) or returned no Response (Close, Reset
	// and Timeout handlers). A client or origin disconnect does not publish
	// it.
	EventRequestAborted
	// EventFailedTLSRequest fires when the TLS terminator could not
	// complete a handshake for an intercepted CONNECT tunnel.
	EventFailedTLSRequest
)

// Event is a single notification published to the bus. Only the fields
// relevant to Kind are populated (EventResponseCompleted carries both
// Request and Response); the others are zero.
type Event struct {
	Kind       EventKind
	Request    *Request
	Response   *Response
	TLSFailure *TLSFailure
}

type subscriber struct {
	ch       chan Event
	warnedAt bool
}

// eventBus is a small pub/sub fan-out: Publish never blocks, even if a
// subscriber isn't draining its channel. A full subscriber channel drops
// the event and logs a warning at most once per subscriber lifetime, so a
// slow subscriber doesn't spam the log once per dropped event.
type eventBus struct {
	mu          sync.Mutex
	subscribers map[int]*subscriber
	nextID      int
	logger      *slog.Logger
}

func newEventBus(logger *slog.Logger) *eventBus {
	return &eventBus{subscribers: make(map[int]*subscriber), logger: logger}
}

// Subscribe returns a channel of future events and an unsubscribe function.
func (b *eventBus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &subscriber{ch: make(chan Event, eventBufferSize)}
	b.subscribers[id] = sub

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subscribers[id]; ok {
			close(s.ch)
			delete(b.subscribers, id)
		}
	}
	return sub.ch, unsubscribe
}

// Publish fans ev out to every current subscriber without blocking.
func (b *eventBus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subscribers {
		select {
		case sub.ch <- ev:
		default:
			if !sub.warnedAt {
				b.logger.Warn("event subscriber buffer full, dropping event", "kind", ev.Kind)
				sub.warnedAt = true
			}
		}
	}
}
