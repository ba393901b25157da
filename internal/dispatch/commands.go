package dispatch

import (
	"context"
	"time"

	"github.com/neonbeat/back/internal/apperr"
	"github.com/neonbeat/back/internal/buzzer"
	"github.com/neonbeat/back/internal/fsm"
	"github.com/neonbeat/back/internal/hubs"
	"github.com/neonbeat/back/internal/ids"
	"github.com/neonbeat/back/internal/model"
	"github.com/neonbeat/back/internal/session"
	"github.com/neonbeat/back/internal/store"
)

// TeamInput is the admin-supplied shape for one team at game creation.
type TeamInput struct {
	Name     string
	Color    model.HSV
	BuzzerID string
}

// persistGameAsync hands the session's current game document to the
// Persistence Coordinator without blocking the run loop (spec §5:
// "response returns only after the transition is applied and
// persistence is enqueued, not necessarily durable").
func (d *Dispatcher) persistGameAsync(game model.Game) {
	go d.persist.PersistGame(context.Background(), game)
}

func (d *Dispatcher) persistTeamAsync(t model.Team) {
	go d.persist.PersistTeam(context.Background(), t)
}

func (d *Dispatcher) publishPhaseChanged() {
	p := d.sess.Phase()
	ev := hubs.Event{Name: hubs.EventPhaseChanged, Payload: phaseChangedPayload{
		Phase: p.String(), PauseTeamID: p.PauseTeamID,
	}}
	d.public.Publish(ev)
	d.admin.Publish(ev)
}

func (d *Dispatcher) publishGameSession() {
	ev := hubs.Event{Name: hubs.EventGameSession, Payload: gameSessionPayload{Game: d.sess.Game}}
	d.admin.Publish(ev)
}

func (d *Dispatcher) publishTeamUpdated(t model.Team) {
	ev := hubs.Event{Name: hubs.EventTeamUpdated, Payload: teamPayload{Team: t}}
	d.public.Publish(ev)
	d.admin.Publish(ev)
}

func (d *Dispatcher) publishTeamCreated(t model.Team) {
	ev := hubs.Event{Name: hubs.EventTeamCreated, Payload: teamPayload{Team: t}}
	d.public.Publish(ev)
	d.admin.Publish(ev)
}

func (d *Dispatcher) publishTeamDeleted(teamID string) {
	ev := hubs.Event{Name: hubs.EventTeamDeleted, Payload: teamDeletedPayload{TeamID: teamID}}
	d.public.Publish(ev)
	d.admin.Publish(ev)
}

// --- Playlists ---------------------------------------------------------

// CreatePlaylist validates and stores a new playlist, generating ids
// for the playlist and any song missing one.
func (d *Dispatcher) CreatePlaylist(ctx context.Context, name string, songs []model.Song) (model.Playlist, error) {
	return submit(ctx, d, func(d *Dispatcher) (model.Playlist, error) {
		for i := range songs {
			if songs[i].ID == "" {
				songs[i].ID = ids.New()
			}
		}
		if err := validateSongs(songs); err != nil {
			return model.Playlist{}, err
		}

		p := model.Playlist{ID: ids.New(), Name: name, Songs: songs}
		if _, err := d.st.PutPlaylist(ctx, p, ""); err != nil {
			return model.Playlist{}, apperr.Wrap(apperr.Internal, err, "storing playlist")
		}
		return p, nil
	})
}

// ListPlaylists returns every stored playlist.
func (d *Dispatcher) ListPlaylists(ctx context.Context) ([]model.Playlist, error) {
	return submit(ctx, d, func(d *Dispatcher) ([]model.Playlist, error) {
		pl, err := d.st.ListPlaylists(ctx)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "listing playlists")
		}
		return pl, nil
	})
}

// --- Game lifecycle ------------------------------------------------------

// CreateGame builds a brand-new game document and an in-memory Prep
// session from playlistID and the supplied teams (spec §4.3 Idle ->
// Prep::Ready).
func (d *Dispatcher) CreateGame(ctx context.Context, name, playlistID string, teams []TeamInput, shuffle bool) (model.Game, error) {
	return submit(ctx, d, func(d *Dispatcher) (model.Game, error) {
		playlist, _, err := d.st.GetPlaylist(ctx, playlistID)
		if err != nil {
			return model.Game{}, apperr.Wrap(apperr.NotFound, err, "playlist %s not found", playlistID)
		}

		facts := fsm.Facts{PlaylistNonEmpty: len(playlist.Songs) > 0}
		tok, res, err := d.fsm.Prepare(d.sess.Phase(), fsm.Event{Kind: fsm.EventCreateGame, Shuffle: shuffle}, facts)
		if err != nil {
			return model.Game{}, err
		}

		built, err := buildTeams(teams)
		if err != nil {
			d.fsm.Discard(tok)
			return model.Game{}, err
		}

		now := time.Now()
		game := model.Game{
			ID: ids.New(), Name: name, PlaylistID: playlistID,
			CreatedAt: now, UpdatedAt: now,
		}
		for _, t := range built {
			game.TeamIDs = append(game.TeamIDs, t.ID)
		}

		d.sess.ResetForNewGame(game, playlist)
		for _, t := range built {
			_ = d.sess.InsertTeam(t) // uniqueness already checked in buildTeams
		}
		d.sess.FreezePlaySequence(res.Shuffle)
		d.sess.SetPhase(res.To)
		d.sess.Game.UpdatedAt = time.Now()

		if _, err := d.fsm.Apply(tok); err != nil {
			return model.Game{}, err
		}

		d.persistGameAsync(d.sess.Game)
		for _, t := range built {
			d.persistTeamAsync(t)
		}
		d.publishPhaseChanged()
		d.publishGameSession()

		return d.sess.Game, nil
	})
}

func buildTeams(inputs []TeamInput) ([]model.Team, error) {
	seen := make(map[string]bool)
	out := make([]model.Team, 0, len(inputs))
	for _, in := range inputs {
		if err := validateHSV(in.Color); err != nil {
			return nil, err
		}
		if in.BuzzerID != "" {
			if seen[in.BuzzerID] {
				return nil, apperr.New(apperr.Validation, "buzzer %s assigned to more than one team", in.BuzzerID)
			}
			seen[in.BuzzerID] = true
		}
		out = append(out, model.Team{ID: ids.New(), Name: in.Name, Color: in.Color, BuzzerID: in.BuzzerID})
	}
	return out, nil
}

// LoadGame reloads a previously persisted game back into the
// Prep::Ready session (spec §4.3 Idle -> Prep::Ready, LoadGame
// branch).
func (d *Dispatcher) LoadGame(ctx context.Context, gameID string) (model.Game, error) {
	return submit(ctx, d, func(d *Dispatcher) (model.Game, error) {
		game, _, err := d.st.GetGame(ctx, gameID)
		if err != nil {
			return model.Game{}, apperr.Wrap(apperr.NotFound, err, "game %s not found", gameID)
		}
		playlist, _, err := d.st.GetPlaylist(ctx, game.PlaylistID)
		if err != nil {
			return model.Game{}, apperr.Wrap(apperr.NotFound, err, "playlist %s not found", game.PlaylistID)
		}
		teams := make([]model.Team, 0, len(game.TeamIDs))
		for _, tid := range game.TeamIDs {
			t, _, err := d.st.GetTeam(ctx, tid)
			if err != nil {
				return model.Game{}, apperr.Wrap(apperr.Internal, err, "team %s missing for game %s", tid, gameID)
			}
			teams = append(teams, t)
		}

		facts := fsm.Facts{PlaylistNonEmpty: len(playlist.Songs) > 0}
		tok, res, err := d.fsm.Prepare(d.sess.Phase(), fsm.Event{Kind: fsm.EventLoadGame}, facts)
		if err != nil {
			return model.Game{}, err
		}

		if err := d.sess.Load(game, playlist, teams); err != nil {
			d.fsm.Discard(tok)
			return model.Game{}, err
		}
		d.sess.SetPhase(res.To)
		d.sess.Game.UpdatedAt = time.Now()

		if _, err := d.fsm.Apply(tok); err != nil {
			return model.Game{}, err
		}

		d.persistGameAsync(d.sess.Game)
		d.publishPhaseChanged()
		d.publishGameSession()

		return d.sess.Game, nil
	})
}

// ListGames returns every stored game's summary row.
func (d *Dispatcher) ListGames(ctx context.Context) ([]store.GameListItem, error) {
	return submit(ctx, d, func(d *Dispatcher) ([]store.GameListItem, error) {
		list, err := d.st.ListGames(ctx)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, err, "listing games")
		}
		return list, nil
	})
}

// GetGameDetail returns the authoritative in-memory game if id is the
// live session's game, else the persisted document.
func (d *Dispatcher) GetGameDetail(ctx context.Context, id string) (model.Game, error) {
	return submit(ctx, d, func(d *Dispatcher) (model.Game, error) {
		if d.sess.Game.ID == id {
			return d.sess.Game, nil
		}
		game, _, err := d.st.GetGame(ctx, id)
		if err != nil {
			return model.Game{}, apperr.Wrap(apperr.NotFound, err, "game %s not found", id)
		}
		return game, nil
	})
}

// DeleteGame removes a stored game, refusing if it is the currently
// running (non-Idle) live session.
func (d *Dispatcher) DeleteGame(ctx context.Context, id string) error {
	_, err := submit(ctx, d, func(d *Dispatcher) (struct{}, error) {
		if d.sess.Game.ID == id && d.sess.Phase().Name != fsm.Idle {
			return struct{}{}, apperr.New(apperr.Precondition, "game %s is currently running", id)
		}
		_, rev, err := d.st.GetGame(ctx, id)
		if err != nil {
			return struct{}{}, apperr.Wrap(apperr.NotFound, err, "game %s not found", id)
		}
		if err := d.persist.DeleteGame(ctx, id, rev); err != nil {
			return struct{}{}, apperr.Wrap(apperr.Conflict, err, "deleting game %s", id)
		}
		return struct{}{}, nil
	})
	return err
}

// --- Team roster ---------------------------------------------------------

func (d *Dispatcher) requirePrep() error {
	if !inPrep(d.sess.Phase()) {
		return apperr.New(apperr.PhaseRejected, "team roster edits require a Prep phase")
	}
	return nil
}

func inPrep(p fsm.Phase) bool {
	return p.Name == fsm.PrepReady || p.Name == fsm.PrepPairing
}

// CreateTeam adds a team to the active Prep session.
func (d *Dispatcher) CreateTeam(ctx context.Context, in TeamInput) (model.Team, error) {
	return submit(ctx, d, func(d *Dispatcher) (model.Team, error) {
		if err := d.requirePrep(); err != nil {
			return model.Team{}, err
		}
		if err := validateHSV(in.Color); err != nil {
			return model.Team{}, err
		}
		t := model.Team{ID: ids.New(), Name: in.Name, Color: in.Color, BuzzerID: in.BuzzerID}
		if err := d.sess.InsertTeam(t); err != nil {
			return model.Team{}, err
		}
		d.sess.Game.TeamIDs = append(d.sess.Game.TeamIDs, t.ID)

		d.persistTeamAsync(t)
		d.persistGameAsync(d.sess.Game)
		d.publishTeamCreated(t)
		return t, nil
	})
}

// UpdateTeamFields is the admin-supplied patch for PUT /admin/teams/:id.
type UpdateTeamFields struct {
	Name     *string
	Color    *model.HSV
	BuzzerID *string
	Score    *int
}

// UpdateTeam applies a partial update. Name/color/buzzer edits require
// a Prep phase; score edits are allowed throughout GameRunning (spec
// §4.4).
func (d *Dispatcher) UpdateTeam(ctx context.Context, id string, fields UpdateTeamFields) (model.Team, error) {
	return submit(ctx, d, func(d *Dispatcher) (model.Team, error) {
		structural := fields.Name != nil || fields.Color != nil || fields.BuzzerID != nil
		if structural {
			if err := d.requirePrep(); err != nil {
				return model.Team{}, err
			}
		} else if !d.sess.Phase().InGameRunning() {
			return model.Team{}, apperr.New(apperr.PhaseRejected, "no active game")
		}

		if fields.Color != nil {
			if err := validateHSV(*fields.Color); err != nil {
				return model.Team{}, err
			}
		}

		t, err := d.sess.UpdateTeam(id, func(t *model.Team) {
			if fields.Name != nil {
				t.Name = *fields.Name
			}
			if fields.Color != nil {
				t.Color = *fields.Color
			}
			if fields.BuzzerID != nil {
				t.BuzzerID = *fields.BuzzerID
			}
			if fields.Score != nil {
				t.Score = *fields.Score
			}
		})
		if err != nil {
			return model.Team{}, err
		}

		d.persistTeamAsync(t)
		d.publishTeamUpdated(t)
		return t, nil
	})
}

// RemoveTeam deletes a team, auto-advancing or ending pairing if it
// was the team currently waiting to be paired (spec §4.3).
func (d *Dispatcher) RemoveTeam(ctx context.Context, id string) error {
	_, err := submit(ctx, d, func(d *Dispatcher) (struct{}, error) {
		if err := d.requirePrep(); err != nil {
			return struct{}{}, err
		}
		if _, ok := d.sess.Teams.Get(id); !ok {
			return struct{}{}, apperr.New(apperr.NotFound, "team %s not found", id)
		}
		if err := d.sess.RemoveTeam(id); err != nil {
			return struct{}{}, err
		}
		for i, tid := range d.sess.Game.TeamIDs {
			if tid == id {
				d.sess.Game.TeamIDs = append(d.sess.Game.TeamIDs[:i], d.sess.Game.TeamIDs[i+1:]...)
				break
			}
		}

		if d.sess.Phase().Name == fsm.PrepPairing && d.sess.PairingWaiting() == id {
			d.advancePairingWaiting()
		}

		_, rev, err := d.st.GetTeam(ctx, id)
		if err == nil {
			_ = d.persist.DeleteTeam(ctx, id, rev)
		}
		d.persistGameAsync(d.sess.Game)
		d.publishTeamDeleted(id)
		return struct{}{}, nil
	})
	return err
}

// AdjustScore applies a score delta, allowed throughout GameRunning.
func (d *Dispatcher) AdjustScore(ctx context.Context, teamID string, delta int) (model.Team, error) {
	return submit(ctx, d, func(d *Dispatcher) (model.Team, error) {
		if !d.sess.Phase().InGameRunning() {
			return model.Team{}, apperr.New(apperr.PhaseRejected, "no active game")
		}
		t, err := d.sess.AdjustScore(teamID, delta)
		if err != nil {
			return model.Team{}, err
		}
		d.persistTeamAsync(t)
		ev := hubs.Event{Name: hubs.EventScoreAdjustment, Payload: scoreAdjustmentPayload{TeamID: teamID, Delta: delta, Score: t.Score}}
		d.public.Publish(ev)
		d.admin.Publish(ev)
		d.publishTeamUpdated(t)
		return t, nil
	})
}

// --- Pairing ---------------------------------------------------------------

// advancePairingWaiting recomputes and announces the next waiting
// team, ending pairing if every team is now paired. Called only from
// RemoveTeam when the deleted team was the one currently waiting; the
// state machine has no event for "unpaired count dropped via
// deletion" (only via BuzzAssign), so the phase flip to Prep::Ready is
// applied directly rather than through Prepare/Apply.
func (d *Dispatcher) advancePairingWaiting() {
	next := d.sess.NextWaitingTeam()
	d.sess.SetPairingWaiting(next)
	if next == "" {
		d.sess.ClearPairingSnapshot()
		d.sess.SetPhase(fsm.Phase{Name: fsm.PrepReady})
		d.persistGameAsync(d.sess.Game)
		d.publishPhaseChanged()
		return
	}
	d.public.Publish(hubs.Event{Name: hubs.EventPairingWaiting, Payload: pairingWaitingPayload{TeamID: next}})
	d.admin.Publish(hubs.Event{Name: hubs.EventPairingWaiting, Payload: pairingWaitingPayload{TeamID: next}})
}

// EnterPairing begins Prep::Pairing, snapshotting teams for rollback
// and announcing the first waiting team.
func (d *Dispatcher) EnterPairing(ctx context.Context, firstTeamID string) (model.Game, error) {
	return submit(ctx, d, func(d *Dispatcher) (model.Game, error) {
		facts := fsm.Facts{WaitingTeamID: d.sess.NextWaitingTeam()}
		tok, res, err := d.fsm.Prepare(d.sess.Phase(), fsm.Event{Kind: fsm.EventEnterPairing, FirstTeamID: firstTeamID}, facts)
		if err != nil {
			return model.Game{}, err
		}

		d.sess.SnapshotPairing()
		d.sess.SetPairingWaiting(res.AssignTeamID)
		d.sess.SetPhase(res.To)

		if _, err := d.fsm.Apply(tok); err != nil {
			return model.Game{}, err
		}

		d.publishPhaseChanged()
		if res.AssignTeamID != "" {
			ev := hubs.Event{Name: hubs.EventPairingWaiting, Payload: pairingWaitingPayload{TeamID: res.AssignTeamID}}
			d.public.Publish(ev)
			d.admin.Publish(ev)
		}
		return d.sess.Game, nil
	})
}

// AbortPairing restores the pre-pairing team state (Invariant 4).
func (d *Dispatcher) AbortPairing(ctx context.Context) (model.Game, error) {
	return submit(ctx, d, func(d *Dispatcher) (model.Game, error) {
		tok, res, err := d.fsm.Prepare(d.sess.Phase(), fsm.Event{Kind: fsm.EventAbortPairing}, fsm.Facts{})
		if err != nil {
			return model.Game{}, err
		}

		d.sess.RestorePairing()
		d.sess.SetPairingWaiting("")
		d.sess.SetPhase(res.To)

		if _, err := d.fsm.Apply(tok); err != nil {
			return model.Game{}, err
		}

		for _, t := range d.sess.Teams.Ordered() {
			d.persistTeamAsync(t)
		}
		d.publishPhaseChanged()
		ev := hubs.Event{Name: hubs.EventPairingRestored, Payload: pairingRestoredPayload{}}
		d.public.Publish(ev)
		d.admin.Publish(ev)
		return d.sess.Game, nil
	})
}

// --- Buzzer signals --------------------------------------------------------

var _ buzzer.Dispatcher = (*Dispatcher)(nil)

// handleBuzzerSignal resolves a raw device buzz into either a pairing
// assignment (Prep::Pairing) or a gameplay buzz (Playing); in any other
// phase it changes no state and only sends the device an off pattern.
func (d *Dispatcher) handleBuzzerSignal(buzzerID string) {
	phase := d.sess.Phase()

	switch phase.Name {
	case fsm.PrepPairing:
		d.assignBuzzPairing(buzzerID)

	case fsm.Playing:
		d.acceptGameplayBuzz(buzzerID)

	default:
		if d.reg != nil {
			d.reg.Send(buzzerID, buzzer.Pattern{Type: buzzer.PatternOff})
		}
	}
}

func (d *Dispatcher) assignBuzzPairing(buzzerID string) {
	teamID := d.sess.PairingWaiting()
	if teamID == "" {
		teamID = d.sess.NextWaitingTeam()
	}
	if teamID == "" {
		return
	}

	facts := fsm.Facts{RemainingUnpairedAfterAssign: d.sess.RemainingUnpaired(teamID)}
	tok, res, err := d.fsm.Prepare(d.sess.Phase(), fsm.Event{Kind: fsm.EventBuzzAssign, TeamID: teamID, BuzzerID: buzzerID}, facts)
	if err != nil {
		return
	}

	victimID, err := d.sess.AssignBuzzer(teamID, buzzerID)
	if err != nil {
		d.fsm.Discard(tok)
		return
	}
	d.sess.SetPhase(res.To)
	if res.ClearSnapshot {
		d.sess.ClearPairingSnapshot()
		d.sess.SetPairingWaiting("")
	} else {
		d.sess.SetPairingWaiting(d.sess.NextWaitingTeam())
	}

	if _, err := d.fsm.Apply(tok); err != nil {
		return
	}

	assigned, _ := d.sess.Teams.Get(teamID)
	d.persistTeamAsync(assigned)
	d.publishTeamUpdated(assigned)
	if victimID != "" {
		if victim, ok := d.sess.Teams.Get(victimID); ok {
			d.persistTeamAsync(victim)
			d.publishTeamUpdated(victim)
		}
	}

	ev := hubs.Event{Name: hubs.EventPairingAssigned, Payload: pairingAssignedPayload{TeamID: teamID, BuzzerID: buzzerID}}
	d.public.Publish(ev)
	d.admin.Publish(ev)
	d.publishPhaseChanged()

	if res.ClearSnapshot {
		d.persistGameAsync(d.sess.Game)
	} else {
		waiting := d.sess.PairingWaiting()
		if waiting != "" {
			wev := hubs.Event{Name: hubs.EventPairingWaiting, Payload: pairingWaitingPayload{TeamID: waiting}}
			d.public.Publish(wev)
			d.admin.Publish(wev)
		}
	}

	if d.reg != nil {
		d.reg.Send(buzzerID, buzzer.Pattern{Type: buzzer.PatternBlink})
	}
}

func (d *Dispatcher) acceptGameplayBuzz(buzzerID string) {
	team, ok := d.sess.TeamByBuzzer(buzzerID)
	if !ok {
		if d.reg != nil {
			d.reg.Send(buzzerID, buzzer.Pattern{Type: buzzer.PatternOff})
		}
		return
	}

	facts := fsm.Facts{CanAcceptBuzz: d.sess.Game.LastBuzzedTeam == ""}
	tok, res, err := d.fsm.Prepare(d.sess.Phase(), fsm.Event{Kind: fsm.EventBuzz, TeamID: team.ID}, facts)
	if err != nil {
		if d.reg != nil {
			d.reg.Send(buzzerID, buzzer.Pattern{Type: buzzer.PatternOff})
		}
		d.admin.Publish(hubs.Event{Name: hubs.EventTestBuzz, Payload: testBuzzPayload{BuzzerID: buzzerID}})
		return
	}

	d.sess.Buzz(team.ID)
	d.sess.SetPhase(res.To)

	if _, err := d.fsm.Apply(tok); err != nil {
		return
	}

	d.persistGameAsync(d.sess.Game)
	d.publishPhaseChanged()
	if d.reg != nil {
		d.reg.Send(buzzerID, buzzer.Pattern{Type: buzzer.PatternWave, Details: &buzzer.PatternDetails{Color: team.Color}})
	}
}

// --- Gameplay control ------------------------------------------------------

func (d *Dispatcher) transitionOnly(ctx context.Context, kind fsm.EventKind, facts fsm.Facts, mutate func(res fsm.Reservation)) (model.Game, error) {
	return submit(ctx, d, func(d *Dispatcher) (model.Game, error) {
		tok, res, err := d.fsm.Prepare(d.sess.Phase(), fsm.Event{Kind: kind}, facts)
		if err != nil {
			return model.Game{}, err
		}

		if mutate != nil {
			mutate(res)
		}
		d.sess.SetPhase(res.To)
		d.sess.Game.UpdatedAt = time.Now()

		if _, err := d.fsm.Apply(tok); err != nil {
			return model.Game{}, err
		}

		d.persistGameAsync(d.sess.Game)
		d.publishPhaseChanged()
		return d.sess.Game, nil
	})
}

// StartGame transitions Prep::Ready -> Playing, applying New Game Plus
// reset semantics when the playlist was already fully played.
func (d *Dispatcher) StartGame(ctx context.Context, shuffle bool) (model.Game, error) {
	return submit(ctx, d, func(d *Dispatcher) (model.Game, error) {
		facts := fsm.Facts{
			TeamCount:         d.sess.Teams.Len(),
			PlaylistStarted:   d.sess.Game.CurrentIndex > 0 || d.sess.Game.PlayedCount() > 0,
			PlaylistCompleted: d.sess.Game.Completed(),
		}
		tok, res, err := d.fsm.Prepare(d.sess.Phase(), fsm.Event{Kind: fsm.EventStartGame, Shuffle: shuffle}, facts)
		if err != nil {
			return model.Game{}, err
		}

		if res.ResetPlaylist {
			d.sess.FreezePlaySequence(res.Shuffle)
		}
		d.sess.ClearLastBuzzed()
		d.sess.EnterSong()
		d.sess.SetPhase(res.To)
		d.sess.Game.UpdatedAt = time.Now()

		if _, err := d.fsm.Apply(tok); err != nil {
			return model.Game{}, err
		}

		d.persistGameAsync(d.sess.Game)
		d.publishPhaseChanged()
		return d.sess.Game, nil
	})
}

// PauseManual transitions Playing -> Paused(Manual).
func (d *Dispatcher) PauseManual(ctx context.Context) (model.Game, error) {
	return d.transitionOnly(ctx, fsm.EventPauseManual, fsm.Facts{}, nil)
}

// Continue transitions Paused(*) -> Playing, clearing last-buzzed so a
// new buzz can be accepted.
func (d *Dispatcher) Continue(ctx context.Context) (model.Game, error) {
	return d.transitionOnly(ctx, fsm.EventContinue, fsm.Facts{}, func(fsm.Reservation) {
		d.sess.ClearLastBuzzed()
	})
}

// Reveal transitions Playing/Paused(*) -> Reveal.
func (d *Dispatcher) Reveal(ctx context.Context) (model.Game, error) {
	return d.transitionOnly(ctx, fsm.EventReveal, fsm.Facts{}, nil)
}

// NextSong transitions Reveal -> Playing or ShowScores, marking the
// outgoing song played (and found, if any field was identified).
func (d *Dispatcher) NextSong(ctx context.Context) (model.Game, error) {
	return submit(ctx, d, func(d *Dispatcher) (model.Game, error) {
		atEnd := d.sess.Game.CurrentIndex+1 >= len(d.sess.Game.PlaySequence)
		facts := fsm.Facts{AtEndAfterAdvance: atEnd, CurrentSongFound: d.sess.CurrentFoundAny()}
		tok, res, err := d.fsm.Prepare(d.sess.Phase(), fsm.Event{Kind: fsm.EventNextSong}, facts)
		if err != nil {
			return model.Game{}, err
		}

		d.sess.AdvanceToNextSong(res.MarkCurrentFound)
		if res.To.Name == fsm.Playing {
			d.sess.ClearLastBuzzed()
			d.sess.EnterSong()
		}
		d.sess.SetPhase(res.To)
		d.sess.Game.UpdatedAt = time.Now()

		if _, err := d.fsm.Apply(tok); err != nil {
			return model.Game{}, err
		}

		d.persistGameAsync(d.sess.Game)
		d.publishPhaseChanged()
		return d.sess.Game, nil
	})
}

// Finish transitions any GameRunning phase to ShowScores. Manual stop
// does not mutate playlist state (spec §4.3).
func (d *Dispatcher) Finish(ctx context.Context, reason fsm.FinishReason) (model.Game, error) {
	return submit(ctx, d, func(d *Dispatcher) (model.Game, error) {
		tok, res, err := d.fsm.Prepare(d.sess.Phase(), fsm.Event{Kind: fsm.EventFinish, Reason: reason}, fsm.Facts{})
		if err != nil {
			return model.Game{}, err
		}

		d.sess.SetPhase(res.To)
		d.sess.Game.UpdatedAt = time.Now()

		if _, err := d.fsm.Apply(tok); err != nil {
			return model.Game{}, err
		}

		d.persistGameAsync(d.sess.Game)
		d.publishPhaseChanged()
		return d.sess.Game, nil
	})
}

// EndGame transitions ShowScores -> Idle, persisting final scores.
func (d *Dispatcher) EndGame(ctx context.Context) error {
	_, err := submit(ctx, d, func(d *Dispatcher) (struct{}, error) {
		tok, res, err := d.fsm.Prepare(d.sess.Phase(), fsm.Event{Kind: fsm.EventEndGame}, fsm.Facts{})
		if err != nil {
			return struct{}{}, err
		}

		d.sess.SetPhase(res.To)
		d.sess.Game.UpdatedAt = time.Now()

		if _, err := d.fsm.Apply(tok); err != nil {
			return struct{}{}, err
		}

		d.persistGameAsync(d.sess.Game)
		for _, t := range d.sess.Teams.Ordered() {
			d.persistTeamAsync(t)
		}
		d.publishPhaseChanged()
		return struct{}{}, nil
	})
	return err
}

// Answer records a tri-state verdict for event emission only.
func (d *Dispatcher) Answer(ctx context.Context, verdict session.AnswerVerdict) error {
	_, err := submit(ctx, d, func(d *Dispatcher) (struct{}, error) {
		if !d.sess.Phase().InGameRunning() {
			return struct{}{}, apperr.New(apperr.PhaseRejected, "no active game")
		}
		d.sess.ValidateAnswer(verdict)
		ev := hubs.Event{Name: hubs.EventAnswerValidation, Payload: answerValidationPayload{Verdict: string(verdict)}}
		d.public.Publish(ev)
		d.admin.Publish(ev)
		return struct{}{}, nil
	})
	return err
}

// MarkField records a found point or bonus field for the current song.
func (d *Dispatcher) MarkField(ctx context.Context, songID, field string, bonus bool) (session.FoundSet, error) {
	return submit(ctx, d, func(d *Dispatcher) (session.FoundSet, error) {
		if d.sess.Phase().Name != fsm.Playing && d.sess.Phase().Name != fsm.Paused {
			return session.FoundSet{}, apperr.New(apperr.PhaseRejected, "fields can only be marked while a song is live")
		}
		fs, err := d.sess.MarkField(songID, field, bonus)
		if err != nil {
			return session.FoundSet{}, err
		}
		ev := hubs.Event{Name: hubs.EventFieldsFound, Payload: fieldsFoundPayload{
			SongID: songID, PointsFound: sortedKeys(fs.Points), BonusFound: sortedKeys(fs.Bonus),
		}}
		d.public.Publish(ev)
		d.admin.Publish(ev)
		return fs, nil
	})
}
