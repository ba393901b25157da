// Package fsm implements the Game State Machine of spec §4.3: a
// hierarchical phase graph modeled as a flat tagged Phase value (per
// spec §9's "avoid trait inheritance" design note), pure guard
// functions on (current phase, event, facts), and a two-phase
// prepare/apply transition so the Command Dispatcher can guarantee
// side effects only happen after a transition is certain to commit.
package fsm

import "fmt"

// PhaseName is the top-level phase tag.
type PhaseName string

const (
	Idle        PhaseName = "idle"
	PrepReady   PhaseName = "prep_ready"
	PrepPairing PhaseName = "prep_pairing"
	Playing     PhaseName = "playing"
	Paused      PhaseName = "paused"
	Reveal      PhaseName = "reveal"
	ShowScores  PhaseName = "show_scores"
)

// PauseKind distinguishes the two ways of reaching Paused.
type PauseKind string

const (
	NoPause    PauseKind = ""
	PauseManual PauseKind = "manual"
	PauseBuzz   PauseKind = "buzz"
)

// Phase is the full state: a name plus the Paused sub-kind and, for a
// buzz-pause, the team that buzzed.
type Phase struct {
	Name        PhaseName
	PauseKind   PauseKind
	PauseTeamID string
}

func (p Phase) String() string {
	if p.Name == Paused && p.PauseKind == PauseBuzz {
		return fmt.Sprintf("paused(buzz:%s)", p.PauseTeamID)
	}
	if p.Name == Paused {
		return "paused(manual)"
	}
	return string(p.Name)
}

// InGameRunning reports whether p is one of the GameRunning sub-phases
// (Prep::*, Playing, Paused, Reveal) as opposed to Idle/ShowScores.
func (p Phase) InGameRunning() bool {
	switch p.Name {
	case PrepReady, PrepPairing, Playing, Paused, Reveal:
		return true
	default:
		return false
	}
}

// EventKind enumerates the admin commands and buzzer signals the
// machine accepts.
type EventKind string

const (
	EventCreateGame    EventKind = "create_game"
	EventLoadGame      EventKind = "load_game"
	EventEnterPairing  EventKind = "enter_pairing"
	EventBuzzAssign    EventKind = "buzz_assign"
	EventAbortPairing  EventKind = "abort_pairing"
	EventStartGame     EventKind = "start_game"
	EventPauseManual   EventKind = "pause_manual"
	EventBuzz          EventKind = "buzz"
	EventContinue      EventKind = "continue"
	EventReveal        EventKind = "reveal"
	EventNextSong      EventKind = "next_song"
	EventFinish        EventKind = "finish"
	EventEndGame       EventKind = "end_game"
)

// FinishReason distinguishes an admin-initiated stop from the playlist
// running out, since only the latter has already marked playlist state
// (spec §4.3: "Manual stop does not mutate playlist state").
type FinishReason string

const (
	FinishManual            FinishReason = "manual"
	FinishPlaylistCompleted FinishReason = "playlist_completed"
)

// Event is the input to Prepare. Only the fields relevant to Kind are
// read; the zero value of the others is ignored.
type Event struct {
	Kind EventKind

	TeamID      string // Buzz, BuzzAssign
	BuzzerID    string // BuzzAssign
	FirstTeamID string // EnterPairing
	Shuffle     bool   // CreateGame/LoadGame/StartGame
	Reason      FinishReason
}

// Facts are the session-derived predicates the machine needs to guard
// a transition but does not itself own (the Session is the source of
// truth for team counts, pairing completeness, and playlist position).
// The dispatcher computes these immediately before calling Prepare.
type Facts struct {
	PlaylistNonEmpty bool
	TeamCount        int

	// RemainingUnpairedAfterAssign is the number of teams that would
	// still lack a buzzer after the BuzzAssign currently being
	// prepared is applied. Only BuzzAssign reads it.
	RemainingUnpairedAfterAssign int
	WaitingTeamID                string // next unpaired team, "" if none

	PlaylistStarted bool // current index > 0, or any song already played
	PlaylistCompleted bool // every song in the play sequence played

	CanAcceptBuzz bool // paired buzzer, and session.LastBuzzedTeam == ""

	AtEndAfterAdvance bool // true if NextSong would run past the last song
	CurrentSongFound  bool // at least one point or bonus field was found this round
}

// Reservation is the side-effect plan a prepared transition commits
// to. The dispatcher mutates the Session according to these fields
// between Prepare and Apply, then calls Apply to commit.
type Reservation struct {
	From Phase
	To   Phase
	Event Event

	AssignTeamID   string // BuzzAssign/EnterPairing: team to (auto-)pick
	ClearSnapshot  bool   // pairing finished (all paired) or aborted
	RestoreSnapshot bool  // AbortPairing

	ResetPlaylist bool // New Game Plus: reset played/found flags, reindex to 0
	Shuffle       bool // (re)shuffle the play sequence now

	MarkCurrentPlayed bool // NextSong: flag the outgoing song played
	MarkCurrentFound  bool // NextSong: flag it found too, if it was
	AdvanceIndex      bool

	FinishReason FinishReason
}

// Token identifies one in-flight prepared transition.
type Token uint64
