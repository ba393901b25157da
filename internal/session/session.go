// Package session holds the single active game in memory (spec §4.4):
// an ordered team map, the frozen playlist, the current song index,
// ephemeral found-fields, and the pairing snapshot used to roll back
// an aborted pairing. The Session is owned exclusively by the Command
// Dispatcher (internal/dispatch) — per spec §5 its mutations are
// already serialised by the dispatcher's command queue, so unlike the
// upstream hub's sync.RWMutex-guarded Hub, Session needs no locking of
// its own.
package session

import (
	"math/rand"

	"github.com/neonbeat/back/internal/apperr"
	"github.com/neonbeat/back/internal/fsm"
	"github.com/neonbeat/back/internal/model"
)

// FoundSet is the ephemeral per-song record of which point and bonus
// fields have been identified this round (spec §3, §4.4). It is never
// persisted; only the durable found=true flag on the playlist state
// survives a restart.
type FoundSet struct {
	Points map[string]bool
	Bonus  map[string]bool
}

func newFoundSet() *FoundSet {
	return &FoundSet{Points: make(map[string]bool), Bonus: make(map[string]bool)}
}

// Any reports whether at least one field, point or bonus, was found.
func (f *FoundSet) Any() bool {
	return len(f.Points) > 0 || len(f.Bonus) > 0
}

// Session is the in-memory mutable snapshot of the active game.
type Session struct {
	Game     model.Game
	Playlist model.Playlist
	Teams    *TeamMap

	found           map[string]*FoundSet // song_id -> found set, current song only ever has an entry
	pairingSnapshot *model.PairingSnapshot
	lastAnswer      string
	pairingWaiting  string // team id the next BuzzAssign targets; "" outside Prep::Pairing
}

// New returns an empty Session (phase Idle, no game loaded).
func New() *Session {
	return &Session{
		Teams: newTeamMap(),
		found: make(map[string]*FoundSet),
		Game:  model.Game{Phase: model.Phase{Name: string(fsm.Idle)}},
	}
}

// Phase returns the current fsm.Phase, converting out of the model's
// storage representation.
func (s *Session) Phase() fsm.Phase {
	return fsm.Phase{
		Name:        fsm.PhaseName(s.Game.Phase.Name),
		PauseKind:   fsm.PauseKind(s.Game.Phase.PauseKind),
		PauseTeamID: s.Game.Phase.PauseTeamID,
	}
}

// SetPhase commits a new fsm.Phase into the Game document.
func (s *Session) SetPhase(p fsm.Phase) {
	s.Game.Phase = model.Phase{
		Name:        string(p.Name),
		PauseKind:   string(p.PauseKind),
		PauseTeamID: p.PauseTeamID,
	}
}

// ResetForNewGame installs a freshly created game and its playlist,
// clearing the team map and all ephemeral state. Unlike Load, it does
// not check Invariant 6 since a freshly created game has no play
// sequence yet: callers populate teams via InsertTeam and then call
// FreezePlaySequence immediately afterward.
func (s *Session) ResetForNewGame(game model.Game, playlist model.Playlist) {
	s.Game = game
	s.Playlist = playlist
	s.Teams = newTeamMap()
	s.found = make(map[string]*FoundSet)
	s.pairingSnapshot = nil
	s.pairingWaiting = ""
}

// Load installs a reloaded game with its stored play sequence as is:
// it validates Invariant 6 (the play sequence's id multiset equals the
// playlist's) and replaces the team map.
func (s *Session) Load(game model.Game, playlist model.Playlist, teams []model.Team) error {
	if err := checkSequenceMatchesPlaylist(game.PlaySequence, playlist); err != nil {
		return err
	}

	s.Game = game
	s.Playlist = playlist
	tm := newTeamMap()
	for _, t := range teams {
		tm.insert(t)
	}
	s.Teams = tm
	s.found = make(map[string]*FoundSet)
	s.pairingSnapshot = nil
	return nil
}

func checkSequenceMatchesPlaylist(sequence []string, playlist model.Playlist) error {
	want := map[string]int{}
	for _, id := range playlist.SongIDs() {
		want[id]++
	}
	got := map[string]int{}
	for _, id := range sequence {
		got[id]++
	}
	if len(want) != len(got) {
		return apperr.New(apperr.Internal, "play sequence id multiset does not match playlist %s", playlist.ID)
	}
	for id, n := range want {
		if got[id] != n {
			return apperr.New(apperr.Internal, "play sequence id multiset does not match playlist %s", playlist.ID)
		}
	}
	return nil
}

// FreezePlaySequence sets (and optionally shuffles) the play sequence
// from the loaded playlist's song ids, resetting playlist state and
// the current index to 0. Used on CreateGame and on New Game Plus
// (spec §4.3).
func (s *Session) FreezePlaySequence(shuffle bool) {
	ids := s.Playlist.SongIDs()
	if shuffle {
		shuffled := make([]string, len(ids))
		copy(shuffled, ids)
		rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		ids = shuffled
	}

	flags := make([]model.SongFlags, len(ids))
	for i, id := range ids {
		flags[i] = model.SongFlags{SongID: id}
	}

	s.Game.PlaySequence = ids
	s.Game.PlaylistState = flags
	s.Game.CurrentIndex = 0
	s.Game.LastBuzzedTeam = ""
	s.found = make(map[string]*FoundSet)
}

// CurrentSong returns the Song at the current play-sequence index.
func (s *Session) CurrentSong() (model.Song, bool) {
	id := s.Game.CurrentSongID()
	if id == "" {
		return model.Song{}, false
	}
	for _, song := range s.Playlist.Songs {
		if song.ID == id {
			return song, true
		}
	}
	return model.Song{}, false
}

// EnterSong creates a fresh, empty found-fields set for the song now
// current, per spec §3 "created on entering Playing of a song".
func (s *Session) EnterSong() {
	id := s.Game.CurrentSongID()
	if id == "" {
		return
	}
	s.found[id] = newFoundSet()
}

// MarkField records that field (a point field, or a bonus field when
// bonus is true) has been identified for songID. It is rejected if
// songID is not the current song, and idempotent otherwise (spec
// §4.4). Returns the current song's found set.
func (s *Session) MarkField(songID, field string, bonus bool) (FoundSet, error) {
	current := s.Game.CurrentSongID()
	if current == "" || songID != current {
		return FoundSet{}, apperr.New(apperr.Validation, "song %s is not the current song", songID)
	}

	fs, ok := s.found[current]
	if !ok {
		fs = newFoundSet()
		s.found[current] = fs
	}
	if bonus {
		fs.Bonus[field] = true
	} else {
		fs.Points[field] = true
	}
	return *fs, nil
}

// CurrentFoundAny reports whether the current song has any field found
// this round, feeding fsm.Facts.CurrentSongFound.
func (s *Session) CurrentFoundAny() bool {
	id := s.Game.CurrentSongID()
	if id == "" {
		return false
	}
	fs, ok := s.found[id]
	return ok && fs.Any()
}

// CurrentFoundSet returns the ephemeral found-fields record for the
// current song, the empty value if none has been created yet.
func (s *Session) CurrentFoundSet() FoundSet {
	id := s.Game.CurrentSongID()
	if id == "" {
		return *newFoundSet()
	}
	fs, ok := s.found[id]
	if !ok {
		return *newFoundSet()
	}
	return *fs
}

// AnswerVerdict is the tri-state result of validating a spoken answer.
type AnswerVerdict string

const (
	AnswerCorrect    AnswerVerdict = "correct"
	AnswerIncomplete AnswerVerdict = "incomplete"
	AnswerWrong      AnswerVerdict = "wrong"
)

// ValidateAnswer records verdict for event emission only (spec §4.4);
// it has no effect on scoring or playlist state by itself.
func (s *Session) ValidateAnswer(verdict AnswerVerdict) {
	s.lastAnswer = string(verdict)
}

// AdvanceToNextSong marks the outgoing song played (and found, if
// markFound), advances the current index, and clears its found-fields
// entry. Called by the dispatcher when applying an EventNextSong
// reservation.
func (s *Session) AdvanceToNextSong(markFound bool) {
	id := s.Game.CurrentSongID()
	for i := range s.Game.PlaylistState {
		if s.Game.PlaylistState[i].SongID == id {
			s.Game.PlaylistState[i].Played = true
			s.Game.PlaylistState[i].Found = markFound
			break
		}
	}
	delete(s.found, id)
	s.Game.CurrentIndex++
}

// Buzz records the first accepted buzz of the current song (spec §4.3
// "record last-buzzed").
func (s *Session) Buzz(teamID string) {
	s.Game.LastBuzzedTeam = teamID
}

// ClearLastBuzzed clears last-buzzed on StartGame, Continue, and
// NextSong into Playing so the next Playing phase can accept a new buzz.
func (s *Session) ClearLastBuzzed() {
	s.Game.LastBuzzedTeam = ""
}

// PairingWaiting returns the team id the next BuzzAssign targets.
func (s *Session) PairingWaiting() string { return s.pairingWaiting }

// SetPairingWaiting updates the team id the next BuzzAssign targets.
func (s *Session) SetPairingWaiting(teamID string) { s.pairingWaiting = teamID }
