package hubs

import (
	"crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/rs/zerolog"
)

const subscriberQueueDepth = 32

// Subscriber is one live SSE connection's inbox. Publish never blocks
// on a Subscriber: a full queue means the subscriber is dropped (spec
// §4.1, §9 "bounded per-subscriber queue; on overflow drop the
// subscriber rather than stall the dispatcher").
type Subscriber struct {
	events chan Event
	done   chan struct{}
}

// Events returns the channel the HTTP handler should range over to
// write SSE frames.
func (s *Subscriber) Events() <-chan Event { return s.events }

// Done is closed when the hub has dropped this subscriber (queue
// overflow, or — for the admin hub — a newer connection superseding
// it). The HTTP handler should stop serving once this fires.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Hub is one of the two broadcast channels of spec §4.1.
type Hub struct {
	log   zerolog.Logger
	admin bool

	mu      sync.Mutex
	subs    map[*Subscriber]struct{}
	current *Subscriber // admin hub only: the single active subscriber
	token   string      // admin hub only: the live X-Admin-Token value

	degraded bool
}

// New builds a Hub. admin=true enables the single-subscriber token
// gate of spec §4.1.
func New(admin bool, log zerolog.Logger) *Hub {
	return &Hub{admin: admin, log: log, subs: make(map[*Subscriber]struct{})}
}

func newToken() string {
	buf := make([]byte, 16) // 128 bits, per spec §4.1
	if _, err := rand.Read(buf); err != nil {
		panic("hubs: crypto/rand failure: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

// Subscribe registers a new subscriber and sends it the mandatory
// handshake event first. For the admin hub, any previously active
// subscriber is closed and its token invalidated immediately (spec
// §4.1: "at most one active subscriber").
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{events: make(chan Event, subscriberQueueDepth), done: make(chan struct{})}

	h.mu.Lock()
	var handshake HandshakePayload
	if h.admin {
		if h.current != nil {
			close(h.current.done)
			delete(h.subs, h.current)
		}
		h.token = newToken()
		h.current = sub
		handshake.Token = h.token
	}
	h.subs[sub] = struct{}{}
	degraded := h.degraded
	h.mu.Unlock()

	sub.events <- Event{Name: EventHandshake, Payload: handshake}
	if degraded {
		sub.events <- Event{Name: EventSystemStatus, Payload: SystemStatusPayload{Degraded: true}}
	}

	return sub
}

// Unsubscribe removes sub, e.g. on client disconnect.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.subs, sub)
	if h.current == sub {
		h.current = nil
		h.token = ""
	}
}

// ValidateToken reports whether token matches the live admin token.
// Always false on the public hub.
func (h *Hub) ValidateToken(token string) bool {
	if !h.admin || token == "" {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return token == h.token
}

// Publish fans ev out to every live subscriber. Publication never
// blocks: a subscriber whose queue is full is dropped rather than
// allowed to apply backpressure to the dispatcher (spec §4.1, §5).
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	targets := make([]*Subscriber, 0, len(h.subs))
	for sub := range h.subs {
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.events <- ev:
		default:
			h.log.Warn().Str("event", string(ev.Name)).Msg("subscriber queue full, dropping subscriber")
			h.Unsubscribe(sub)
			close(sub.done)
		}
	}
}

// SetDegraded updates the shared degraded flag and, on change, emits a
// system_status event (spec §4.1, §4.6). Returns true if the value
// changed.
func (h *Hub) SetDegraded(degraded bool) bool {
	h.mu.Lock()
	changed := h.degraded != degraded
	h.degraded = degraded
	h.mu.Unlock()

	if changed {
		h.Publish(Event{Name: EventSystemStatus, Payload: SystemStatusPayload{Degraded: degraded}})
	}
	return changed
}

// Degraded reports the current shared degraded flag.
func (h *Hub) Degraded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.degraded
}

// SubscriberCount reports the number of live subscribers, for tests
// and diagnostics.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
