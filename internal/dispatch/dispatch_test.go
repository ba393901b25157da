package dispatch

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neonbeat/back/internal/apperr"
	"github.com/neonbeat/back/internal/fsm"
	"github.com/neonbeat/back/internal/hubs"
	"github.com/neonbeat/back/internal/model"
	"github.com/neonbeat/back/internal/persistence"
	"github.com/neonbeat/back/internal/store/memstore"
)

func nopLogger() zerolog.Logger { return zerolog.New(io.Discard) }

type harness struct {
	d      *Dispatcher
	public *hubs.Hub
	admin  *hubs.Hub
	st     *memstore.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := memstore.New()
	public := hubs.New(false, nopLogger())
	adminHub := hubs.New(true, nopLogger())
	coord := persistence.New(st, time.Millisecond, []time.Duration{time.Millisecond}, adminHub, nopLogger())
	d := New(st, coord, public, adminHub, nopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)
	t.Cleanup(cancel)

	return &harness{d: d, public: public, admin: adminHub, st: st}
}

func (h *harness) createGame(t *testing.T, teamNames ...string) (model.Game, map[string]string) {
	t.Helper()
	ctx := context.Background()

	playlist, err := h.d.CreatePlaylist(ctx, "one song", []model.Song{
		{StartOffsetMS: 0, IdentifyWindowMS: 5000, URL: "https://example.com/song1.mp3", PointFields: []string{"artist", "title"}},
	})
	require.NoError(t, err)

	teams := make([]TeamInput, len(teamNames))
	for i, name := range teamNames {
		teams[i] = TeamInput{Name: name}
	}
	g, err := h.d.CreateGame(ctx, "game", playlist.ID, teams, false)
	require.NoError(t, err)

	byName := make(map[string]string, len(teamNames))
	for i, id := range g.TeamIDs {
		byName[teamNames[i]] = id
	}
	return g, byName
}

// team and phase read session state through the command queue, the
// same way every other caller does, so tests never peek at the
// Session concurrently with the run loop.
func (h *harness) team(t *testing.T, id string) model.Team {
	t.Helper()
	tm, err := submit(context.Background(), h.d, func(d *Dispatcher) (model.Team, error) {
		tm, ok := d.sess.Teams.Get(id)
		if !ok {
			return model.Team{}, apperr.New(apperr.NotFound, "team %s not found", id)
		}
		return tm, nil
	})
	require.NoError(t, err)
	return tm
}

func (h *harness) phase(t *testing.T) fsm.Phase {
	t.Helper()
	p, err := submit(context.Background(), h.d, func(d *Dispatcher) (fsm.Phase, error) {
		return d.sess.Phase(), nil
	})
	require.NoError(t, err)
	return p
}

func drainUntil(t *testing.T, sub *hubs.Subscriber, name hubs.EventName, timeout time.Duration) hubs.Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-sub.Events():
			if ev.Name == name {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %s", name)
			return hubs.Event{}
		}
	}
}

// S1 Pairing happy path.
func TestScenarioS1_PairingHappyPath(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, byName := h.createGame(t, "T1", "T2")
	t1, t2 := byName["T1"], byName["T2"]

	sub := h.public.Subscribe()
	<-sub.Events() // handshake

	_, err := h.d.EnterPairing(ctx, t1)
	require.NoError(t, err)
	waiting := drainUntil(t, sub, hubs.EventPairingWaiting, time.Second)
	assert.Equal(t, t1, waiting.Payload.(pairingWaitingPayload).TeamID)

	h.d.HandleBuzz("aaaaaaaaaaaa")
	assigned := drainUntil(t, sub, hubs.EventPairingAssigned, time.Second)
	assert.Equal(t, pairingAssignedPayload{TeamID: t1, BuzzerID: "aaaaaaaaaaaa"}, assigned.Payload)
	waiting2 := drainUntil(t, sub, hubs.EventPairingWaiting, time.Second)
	assert.Equal(t, t2, waiting2.Payload.(pairingWaitingPayload).TeamID)

	h.d.HandleBuzz("bbbbbbbbbbbb")
	assigned2 := drainUntil(t, sub, hubs.EventPairingAssigned, time.Second)
	assert.Equal(t, pairingAssignedPayload{TeamID: t2, BuzzerID: "bbbbbbbbbbbb"}, assigned2.Payload)

	require.Eventually(t, func() bool {
		return h.phase(t).Name == fsm.PrepReady
	}, time.Second, 10*time.Millisecond)
}

// S2 Abort restores snapshot.
func TestScenarioS2_AbortRestoresSnapshot(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, byName := h.createGame(t, "T1", "T2")
	t1 := byName["T1"]

	_, err := h.d.EnterPairing(ctx, t1)
	require.NoError(t, err)
	h.d.HandleBuzz("aaaaaaaaaaaa")

	require.Eventually(t, func() bool {
		return h.team(t, t1).BuzzerID == "aaaaaaaaaaaa"
	}, time.Second, 10*time.Millisecond)

	g, err := h.d.AbortPairing(ctx)
	require.NoError(t, err)
	assert.Equal(t, fsm.PrepReady, fsm.PhaseName(g.Phase.Name))

	assert.Empty(t, h.team(t, t1).BuzzerID)
}

// S3 Conflict steal: assigning a buzzer already owned by another team
// takes it away from the prior owner.
func TestScenarioS3_ConflictSteal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, byName := h.createGame(t, "T1", "T2")
	t1, t2 := byName["T1"], byName["T2"]

	ccc := "cccccccccccc"
	_, err := h.d.UpdateTeam(ctx, t1, UpdateTeamFields{BuzzerID: &ccc})
	require.NoError(t, err)
	require.Equal(t, "cccccccccccc", h.team(t, t1).BuzzerID)

	_, err = h.d.EnterPairing(ctx, t2)
	require.NoError(t, err)
	h.d.HandleBuzz("cccccccccccc")

	require.Eventually(t, func() bool {
		return h.team(t, t1).BuzzerID == "" && h.team(t, t2).BuzzerID == "cccccccccccc"
	}, time.Second, 10*time.Millisecond)
}

// S6 Phase gating: a command invalid in the current phase produces no
// mutation and an error, with no events published.
func TestScenarioS6_PhaseGating(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createGame(t, "T1")

	sub := h.public.Subscribe()
	<-sub.Events() // handshake

	_, err := h.d.MarkField(ctx, "whatever", "artist", false)
	require.Error(t, err)
	assert.Equal(t, apperr.PhaseRejected, apperr.KindOf(err))

	select {
	case ev := <-sub.Events():
		t.Fatalf("expected no event, got %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGameplayLoop_StartPauseRevealNextSongFinishEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createGame(t, "T1")

	g, err := h.d.StartGame(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, string(fsm.Playing), g.Phase.Name)

	g, err = h.d.PauseManual(ctx)
	require.NoError(t, err)
	assert.Equal(t, string(fsm.Paused), g.Phase.Name)

	g, err = h.d.Continue(ctx)
	require.NoError(t, err)
	assert.Equal(t, string(fsm.Playing), g.Phase.Name)

	g, err = h.d.Reveal(ctx)
	require.NoError(t, err)
	assert.Equal(t, string(fsm.Reveal), g.Phase.Name)

	g, err = h.d.NextSong(ctx)
	require.NoError(t, err)
	assert.Equal(t, string(fsm.ShowScores), g.Phase.Name)

	require.NoError(t, h.d.EndGame(ctx))
}
