// Package hubs implements the two broadcast channels of spec §4.1:
// public and admin. The upstream party-game Hub fans websocket
// messages out to in-process *Client values over a channel; here the
// same non-blocking fan-out pattern feeds SSE subscribers instead,
// generalized to two independently gated hubs and a single-admin
// token handshake.
package hubs

// EventName is one of the stable SSE event-name tags from spec §6.
type EventName string

const (
	EventHandshake       EventName = "handshake"
	EventSystemStatus    EventName = "system_status"
	EventPhaseChanged    EventName = "phase_changed"
	EventTeamCreated     EventName = "team.created"
	EventTeamUpdated     EventName = "team.updated"
	EventTeamDeleted     EventName = "team.deleted"
	EventGameSession     EventName = "game.session"
	EventFieldsFound     EventName = "fields_found"
	EventAnswerValidation EventName = "answer_validation"
	EventScoreAdjustment EventName = "score_adjustment"
	EventPairingWaiting  EventName = "pairing.waiting"
	EventPairingAssigned EventName = "pairing.assigned"
	EventPairingRestored EventName = "pairing.restored"
	EventTestBuzz        EventName = "test.buzz"
)

// Event is one message published to a Hub: a stable name tag plus a
// JSON-serializable payload (spec §4.1).
type Event struct {
	Name    EventName
	Payload any
}

// HandshakePayload is sent to every fresh subscriber before anything
// else. Token is populated only for the admin hub.
type HandshakePayload struct {
	Token string `json:"token,omitempty"`
}

// SystemStatusPayload announces the Persistence Coordinator's degraded
// flag (spec §4.1, §4.6).
type SystemStatusPayload struct {
	Degraded bool `json:"degraded"`
}
