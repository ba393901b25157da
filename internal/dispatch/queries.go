package dispatch

import (
	"context"

	"github.com/neonbeat/back/internal/fsm"
	"github.com/neonbeat/back/internal/model"
)

// CurrentGame returns the live in-memory game, Idle/empty if no game is
// active. Unlike GetGameDetail it never falls back to the store: it is
// the read the public REST surface uses (spec §6 /public/phase).
func (d *Dispatcher) CurrentGame(ctx context.Context) (model.Game, error) {
	return submit(ctx, d, func(d *Dispatcher) (model.Game, error) {
		return d.sess.Game, nil
	})
}

// LiveTeams returns the active session's teams in insertion order.
func (d *Dispatcher) LiveTeams(ctx context.Context) ([]model.Team, error) {
	return submit(ctx, d, func(d *Dispatcher) ([]model.Team, error) {
		return d.sess.Teams.Ordered(), nil
	})
}

// SongView is the public shape of GET /public/song (spec §6): the url
// is disclosed only once the round reaches Reveal.
type SongView struct {
	SongID      string   `json:"song_id,omitempty"`
	Index       int      `json:"index"`
	Total       int      `json:"total"`
	URL         string   `json:"url,omitempty"`
	PointsFound []string `json:"points_found"`
	BonusFound  []string `json:"bonus_found"`
}

// PublicSong builds the current-song teaser view.
func (d *Dispatcher) PublicSong(ctx context.Context) (SongView, error) {
	return submit(ctx, d, func(d *Dispatcher) (SongView, error) {
		view := SongView{
			Index:       d.sess.Game.CurrentIndex,
			Total:       len(d.sess.Game.PlaySequence),
			PointsFound: []string{},
			BonusFound:  []string{},
		}
		song, ok := d.sess.CurrentSong()
		if !ok {
			return view, nil
		}
		view.SongID = song.ID
		if d.sess.Phase().Name == fsm.Reveal {
			view.URL = song.URL
		}
		fs := d.sess.CurrentFoundSet()
		view.PointsFound = sortedKeys(fs.Points)
		view.BonusFound = sortedKeys(fs.Bonus)
		return view, nil
	})
}

// PairingWaitingTeam returns the id of the team the next buzz assigns
// to, "" if pairing is not in progress (spec §6 /public/pairing-status).
func (d *Dispatcher) PairingWaitingTeam(ctx context.Context) (string, error) {
	return submit(ctx, d, func(d *Dispatcher) (string, error) {
		return d.sess.PairingWaiting(), nil
	})
}
