// Package model defines the persisted and in-memory shapes of spec §3:
// playlists, songs, teams, games, and the pairing snapshot used to roll
// back an aborted pairing session.
package model

import "time"

// Song is one immutable entry of a Playlist.
type Song struct {
	ID                string   `json:"id"`
	StartOffsetMS     int64    `json:"start_offset_ms"`
	IdentifyWindowMS  int64    `json:"identify_window_ms"`
	URL               string   `json:"url"`
	PointFields       []string `json:"point_fields"`
	BonusPointFields  []string `json:"bonus_point_fields"`
}

// Playlist is immutable once stored. Equality for "same game" purposes
// is the ordered tuple of song ids (spec §3).
type Playlist struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Songs []Song `json:"songs"`
}

// SongIDs returns the ordered tuple of song ids, used both to compare
// playlist identity and to freeze a game's play sequence.
func (p Playlist) SongIDs() []string {
	out := make([]string, len(p.Songs))
	for i, s := range p.Songs {
		out[i] = s.ID
	}
	return out
}

// HSV is a team's display color. Saturation and Value are in [0,1]
// (spec §6 validation); Hue is degrees [0,360) and is not range-
// checked here since the color-generation helper tool (out of scope
// per spec §1) is the thing that picks well-distributed hues.
type HSV struct {
	H float64 `json:"h"`
	S float64 `json:"s"`
	V float64 `json:"v"`
}

// Team is one entry of a game's ordered team mapping.
type Team struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	BuzzerID  string  `json:"buzzer_id,omitempty"`
	Color     HSV     `json:"color"`
	Score     int     `json:"score"`
}

// HasBuzzer reports whether this team currently owns a buzzer.
func (t Team) HasBuzzer() bool { return t.BuzzerID != "" }

// SongFlags tracks whether a play-sequence entry has been played and/or
// found, keyed by the song's position — but since the sequence is a
// slice, this is stored as a parallel struct per song id instead of a
// second map to keep iteration order implicit in the slice.
type SongFlags struct {
	SongID string `json:"song_id"`
	Played bool   `json:"played"`
	Found  bool   `json:"found"`
}

// Phase mirrors fsm.Phase structurally so model stays importable by
// the store layer without depending on the fsm package; fsm.Phase is
// the authoritative type and converts to/from this one at the
// persistence boundary.
type Phase struct {
	Name       string `json:"name"`       // idle, prep_ready, prep_pairing, playing, paused, reveal, show_scores
	PauseKind  string `json:"pause_kind,omitempty"`  // manual, buzz
	PauseTeamID string `json:"pause_team_id,omitempty"`
}

// Game is the persisted document (spec §3, §6). FoundFields is
// explicitly NOT part of this struct: it is ephemeral, lives only in
// the in-memory Session, and is never written to the store.
type Game struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	PlaylistID     string      `json:"playlist_id"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	// TeamIDs is the ordered list of team document ids belonging to
	// this game. Team documents are stored separately (spec §6: "it
	// does not embed team documents, separated to avoid write
	// hotspots"); this is the thin ordered reference that survives a
	// restart so the Session's ordered team map can be rebuilt.
	TeamIDs        []string    `json:"team_ids"`
	PlaySequence   []string    `json:"play_sequence"`
	PlaylistState  []SongFlags `json:"playlist_state"`
	CurrentIndex   int         `json:"current_index"`
	Phase          Phase       `json:"phase"`
	LastBuzzedTeam string      `json:"last_buzzed_team_id,omitempty"`
}

// CurrentSongID returns the song id at CurrentIndex, or "" past the
// end of the play sequence.
func (g Game) CurrentSongID() string {
	if g.CurrentIndex < 0 || g.CurrentIndex >= len(g.PlaySequence) {
		return ""
	}
	return g.PlaySequence[g.CurrentIndex]
}

// PlayedCount returns the number of songs flagged played, which spec
// Invariant 3 requires to equal CurrentIndex at all times.
func (g Game) PlayedCount() int {
	n := 0
	for _, f := range g.PlaylistState {
		if f.Played {
			n++
		}
	}
	return n
}

// Completed reports whether every song in the play sequence has been
// played, the precondition for New Game Plus (spec §4.3).
func (g Game) Completed() bool {
	return len(g.PlaySequence) > 0 && g.PlayedCount() == len(g.PlaySequence)
}

// PairedTeam captures one team's pairing-relevant fields, snapshotted
// when entering Prep::Pairing and restored verbatim on abort.
type PairedTeam struct {
	TeamID   string `json:"team_id"`
	BuzzerID string `json:"buzzer_id,omitempty"`
	Color    HSV    `json:"color"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}

// PairingSnapshot is the ordered list captured on EnterPairing, used
// to roll back an AbortPairing (spec §3, Invariant 4, scenario S2).
type PairingSnapshot struct {
	Teams []PairedTeam `json:"teams"`
}
