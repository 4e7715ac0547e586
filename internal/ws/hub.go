package ws

import (
	"sync"
)

// Event is the unit delivered to subscribers. Type is "message:new" or
// "presence:changed".
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

const (
	EventMessageNew      = "message:new"
	EventPresenceChanged = "presence:changed"
)

// Subscriber receives the room stream through a bounded channel. When the
// hub drops a subscriber (buffer overflow or Unsubscribe) the channel is
// closed; the client must resync via the bounded history read.
type Subscriber struct {
	events chan Event
}

// Events yields the ordered stream. The channel closes when the
// subscription ends; a closed channel before the client went away means
// the subscriber fell too far behind.
func (s *Subscriber) Events() <-chan Event {
	return s.events
}

// Hub is the publish/subscribe bus for the single chat room. Broadcast
// never blocks on a slow subscriber: each subscriber has a bounded queue
// and is dropped when it overflows, so one stalled connection cannot
// stall writers or grow memory without bound.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	buffer int
	closed bool
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		subs:   map[*Subscriber]struct{}{},
		buffer: buffer,
	}
}

func (h *Hub) Subscribe() *Subscriber {
	s := &Subscriber{
		events: make(chan Event, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(s.events)
		return s
	}
	h.subs[s] = struct{}{}

	return s
}

// Unsubscribe is idempotent; the subscriber's channel is closed exactly
// once, by whichever of Unsubscribe or an overflow drop comes first.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(s)
}

// Broadcast fans an event out to every live subscriber. Callers that need
// delivery order to match commit order must serialize their
// persist+Broadcast sequence; the hub itself preserves the order in which
// Broadcast is called.
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs {
		select {
		case s.events <- ev:
		default:
			// Queue full. Dropping one event would leave a silent gap in
			// the stream, so drop the whole subscription instead and let
			// the client resync.
			h.dropLocked(s)
		}
	}
}

// SubscriberCount reports live subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close drops all subscribers during shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for s := range h.subs {
		h.dropLocked(s)
	}
}

func (h *Hub) dropLocked(s *Subscriber) {
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.events)
}
