package fsm

import (
	"sync"

	"github.com/neonbeat/back/internal/apperr"
)

// StateMachine holds the small table of in-flight reservations between
// Prepare and Apply. It carries no game state of its own — Phase lives
// on the Game document (internal/model) and is threaded through every
// call — so a single StateMachine can safely serve every active game,
// though in practice one server runs a single game at a time (spec
// §1 Non-goals: single-instance server).
type StateMachine struct {
	mu      sync.Mutex
	pending map[Token]Reservation
	next    Token
}

func New() *StateMachine {
	return &StateMachine{pending: make(map[Token]Reservation)}
}

// Prepare validates ev against the current phase and facts, returning
// a Reservation (and the Token identifying it) or a PhaseRejected /
// Precondition error. No state changes until Apply is called with the
// returned token.
func (m *StateMachine) Prepare(current Phase, ev Event, facts Facts) (Token, Reservation, error) {
	r, err := transition(current, ev, facts)
	if err != nil {
		return 0, Reservation{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	tok := m.next
	m.pending[tok] = r
	return tok, r, nil
}

// Apply commits a previously prepared transition, returning the new
// Phase. Calling Apply with an unknown or already-applied token is a
// programming error in the dispatcher, not a gameplay error.
func (m *StateMachine) Apply(tok Token) (Phase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.pending[tok]
	if !ok {
		return Phase{}, apperr.New(apperr.Internal, "fsm: unknown or already-applied reservation token")
	}
	delete(m.pending, tok)
	return r.To, nil
}

// Discard abandons a prepared reservation without committing it, for
// the case where the dispatcher's own session mutation fails between
// Prepare and Apply.
func (m *StateMachine) Discard(tok Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, tok)
}

func phaseRejected(current Phase, ev Event) error {
	return apperr.New(apperr.PhaseRejected, "event %q is not valid in phase %s", ev.Kind, current)
}

// transition is the pure guard table of spec §4.3.
func transition(current Phase, ev Event, facts Facts) (Reservation, error) {
	switch ev.Kind {

	case EventCreateGame, EventLoadGame:
		if current.Name != Idle {
			return Reservation{}, phaseRejected(current, ev)
		}
		if !facts.PlaylistNonEmpty {
			return Reservation{}, apperr.New(apperr.Precondition, "playlist has no songs")
		}
		return Reservation{
			From: current, To: Phase{Name: PrepReady},
			Event: ev, Shuffle: ev.Shuffle,
		}, nil

	case EventEnterPairing:
		if current.Name != PrepReady {
			return Reservation{}, phaseRejected(current, ev)
		}
		target := ev.FirstTeamID
		if target == "" {
			target = facts.WaitingTeamID
		}
		return Reservation{
			From: current, To: Phase{Name: PrepPairing},
			Event: ev, AssignTeamID: target,
		}, nil

	case EventBuzzAssign:
		if current.Name != PrepPairing {
			return Reservation{}, phaseRejected(current, ev)
		}
		to := Phase{Name: PrepPairing}
		clear := false
		if facts.RemainingUnpairedAfterAssign == 0 {
			to = Phase{Name: PrepReady}
			clear = true
		}
		return Reservation{
			From: current, To: to, Event: ev,
			AssignTeamID: ev.TeamID, ClearSnapshot: clear,
		}, nil

	case EventAbortPairing:
		if current.Name != PrepPairing {
			return Reservation{}, phaseRejected(current, ev)
		}
		return Reservation{
			From: current, To: Phase{Name: PrepReady}, Event: ev,
			ClearSnapshot: true, RestoreSnapshot: true,
		}, nil

	case EventStartGame:
		if current.Name != PrepReady {
			return Reservation{}, phaseRejected(current, ev)
		}
		if facts.TeamCount < 1 {
			return Reservation{}, apperr.New(apperr.Precondition, "cannot start a game with zero teams")
		}
		if ev.Shuffle && facts.PlaylistStarted && !facts.PlaylistCompleted {
			return Reservation{}, apperr.New(apperr.Precondition, "cannot reshuffle a playlist that is already in progress")
		}
		return Reservation{
			From: current, To: Phase{Name: Playing}, Event: ev,
			ResetPlaylist: facts.PlaylistCompleted,
			Shuffle:       ev.Shuffle && facts.PlaylistCompleted,
		}, nil

	case EventPauseManual:
		if current.Name != Playing {
			return Reservation{}, phaseRejected(current, ev)
		}
		return Reservation{From: current, To: Phase{Name: Paused, PauseKind: PauseManual}, Event: ev}, nil

	case EventBuzz:
		if current.Name != Playing {
			return Reservation{}, phaseRejected(current, ev)
		}
		if !facts.CanAcceptBuzz {
			return Reservation{}, apperr.New(apperr.PhaseRejected, "buzz not accepted")
		}
		return Reservation{
			From: current, To: Phase{Name: Paused, PauseKind: PauseBuzz, PauseTeamID: ev.TeamID}, Event: ev,
		}, nil

	case EventContinue:
		if current.Name != Paused {
			return Reservation{}, phaseRejected(current, ev)
		}
		return Reservation{From: current, To: Phase{Name: Playing}, Event: ev}, nil

	case EventReveal:
		if current.Name != Playing && current.Name != Paused {
			return Reservation{}, phaseRejected(current, ev)
		}
		return Reservation{From: current, To: Phase{Name: Reveal}, Event: ev}, nil

	case EventNextSong:
		if current.Name != Reveal {
			return Reservation{}, phaseRejected(current, ev)
		}
		to := Phase{Name: Playing}
		reason := FinishReason("")
		if facts.AtEndAfterAdvance {
			to = Phase{Name: ShowScores}
			reason = FinishPlaylistCompleted
		}
		return Reservation{
			From: current, To: to, Event: ev,
			MarkCurrentPlayed: true, MarkCurrentFound: facts.CurrentSongFound,
			AdvanceIndex: true,
			FinishReason: reason,
		}, nil

	case EventFinish:
		if !current.InGameRunning() {
			return Reservation{}, phaseRejected(current, ev)
		}
		return Reservation{
			From: current, To: Phase{Name: ShowScores}, Event: ev,
			FinishReason: ev.Reason,
		}, nil

	case EventEndGame:
		if current.Name != ShowScores {
			return Reservation{}, phaseRejected(current, ev)
		}
		return Reservation{From: current, To: Phase{Name: Idle}, Event: ev}, nil

	default:
		return Reservation{}, apperr.New(apperr.Validation, "unknown event kind %q", ev.Kind)
	}
}
