package buzzer

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/neonbeat/back/internal/ids"
)

// Dispatcher is the narrow callback surface the Registry needs from
// the Command Dispatcher. Defined here (rather than imported from
// internal/dispatch) so buzzer has no dependency on dispatch; dispatch
// depends on buzzer and implements this interface, keeping the import
// graph acyclic.
type Dispatcher interface {
	HandleBuzz(buzzerID string)
}

// socket is one live, possibly-not-yet-identified buzzer connection.
type socket struct {
	conn *websocket.Conn
	send chan OutboundFrame
	done chan struct{}

	mu sync.Mutex
	id string // "" until an identification frame is accepted
}

// Registry tracks buzzer-id -> live socket (spec §4.2).
type Registry struct {
	log             zerolog.Logger
	dispatcher      Dispatcher
	identifyTimeout time.Duration

	mu      sync.Mutex
	sockets map[string]*socket // keyed by identified buzzer id
}

func New(dispatcher Dispatcher, identifyTimeout time.Duration, log zerolog.Logger) *Registry {
	return &Registry{
		log:             log,
		dispatcher:      dispatcher,
		identifyTimeout: identifyTimeout,
		sockets:         make(map[string]*socket),
	}
}

// HandleConn takes ownership of a freshly upgraded websocket
// connection and runs its read/write pumps until it closes. It blocks
// until the connection ends, so callers should invoke it from the
// HTTP handler's own goroutine (one per connection), exactly the way
// the upstream Client.readPump/writePump pair is driven.
func (r *Registry) HandleConn(conn *websocket.Conn) {
	sock := &socket{conn: conn, send: make(chan OutboundFrame, 8), done: make(chan struct{})}

	go sock.writePump()

	identified := make(chan struct{})
	timer := time.AfterFunc(r.identifyTimeout, func() {
		select {
		case <-identified:
		default:
			r.log.Debug().Msg("buzzer did not identify in time, closing")
			_ = conn.Close()
		}
	})
	defer timer.Stop()

	r.readPump(sock, identified)
}

func (r *Registry) readPump(sock *socket, identified chan struct{}) {
	defer func() {
		sock.mu.Lock()
		id := sock.id
		sock.mu.Unlock()

		if id != "" {
			r.mu.Lock()
			if r.sockets[id] == sock {
				delete(r.sockets, id)
			}
			r.mu.Unlock()
		}
		close(sock.done)
		_ = sock.conn.Close()
	}()

	for {
		var frame InboundFrame
		if err := sock.conn.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Type {
		case frameIdentification:
			if !ids.ValidBuzzerID(frame.ID) {
				continue // malformed frame, ignored per spec §4.2
			}
			r.identify(sock, frame.ID)
			select {
			case <-identified:
			default:
				close(identified)
			}

		case frameBuzz:
			sock.mu.Lock()
			myID := sock.id
			sock.mu.Unlock()

			if myID == "" || frame.ID != myID {
				continue // unidentified, or id mismatch: ignored per spec §4.2
			}
			r.dispatcher.HandleBuzz(myID)

		default:
			// malformed/unknown frame type, ignored
		}
	}
}

// identify binds sock to id, closing any prior socket already
// registered under that id (spec §4.2: "a second identification for
// the same id closes the prior socket").
func (r *Registry) identify(sock *socket, id string) {
	r.mu.Lock()
	prior, exists := r.sockets[id]
	sock.mu.Lock()
	sock.id = id
	sock.mu.Unlock()
	r.sockets[id] = sock
	r.mu.Unlock()

	if exists && prior != sock {
		_ = prior.conn.Close()
	}
}

// Send best-effort delivers pattern to buzzer id, dropping silently if
// no live socket is identified under that id or its outbound queue is
// full (spec §4.2).
func (r *Registry) Send(id string, pattern Pattern) {
	r.mu.Lock()
	sock, ok := r.sockets[id]
	r.mu.Unlock()
	if !ok {
		return
	}

	select {
	case sock.send <- OutboundFrame{Pattern: pattern}:
	default:
		r.log.Warn().Str("buzzer_id", id).Msg("outbound queue full, dropping pattern")
	}
}

// BroadcastPaired sends pattern to every buzzer id in ids, intended
// for teams that currently own a buzzer.
func (r *Registry) BroadcastPaired(buzzerIDs []string, pattern Pattern) {
	for _, id := range buzzerIDs {
		r.Send(id, pattern)
	}
}

// BroadcastUnpaired sends pattern to every connected-but-unpaired
// buzzer id.
func (r *Registry) BroadcastUnpaired(buzzerIDs []string, pattern Pattern) {
	for _, id := range buzzerIDs {
		r.Send(id, pattern)
	}
}

// Connected reports whether a live, identified socket exists for id.
func (r *Registry) Connected(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sockets[id]
	return ok
}

func (s *socket) writePump() {
	defer s.conn.Close()
	for {
		select {
		case frame, ok := <-s.send:
			if !ok {
				return
			}
			if err := s.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}
