package fsm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neonbeat/back/internal/apperr"
	"github.com/neonbeat/back/internal/fsm"
)

func TestPrepareApply_CreateGame(t *testing.T) {
	m := fsm.New()

	tok, r, err := m.Prepare(fsm.Phase{Name: fsm.Idle}, fsm.Event{Kind: fsm.EventCreateGame}, fsm.Facts{PlaylistNonEmpty: true})
	require.NoError(t, err)
	assert.Equal(t, fsm.PrepReady, r.To.Name)

	phase, err := m.Apply(tok)
	require.NoError(t, err)
	assert.Equal(t, fsm.PrepReady, phase.Name)
}

func TestPrepare_CreateGame_EmptyPlaylistRejected(t *testing.T) {
	m := fsm.New()

	_, _, err := m.Prepare(fsm.Phase{Name: fsm.Idle}, fsm.Event{Kind: fsm.EventCreateGame}, fsm.Facts{PlaylistNonEmpty: false})
	require.Error(t, err)
	assert.Equal(t, apperr.Precondition, apperr.KindOf(err))
}

func TestPrepare_BadPhaseNoMutation(t *testing.T) {
	m := fsm.New()

	_, _, err := m.Prepare(fsm.Phase{Name: fsm.Idle}, fsm.Event{Kind: fsm.EventPauseManual}, fsm.Facts{})
	require.Error(t, err)
	assert.Equal(t, apperr.PhaseRejected, apperr.KindOf(err))
}

func TestStartGame_RequiresAtLeastOneTeam(t *testing.T) {
	m := fsm.New()

	_, _, err := m.Prepare(fsm.Phase{Name: fsm.PrepReady}, fsm.Event{Kind: fsm.EventStartGame}, fsm.Facts{TeamCount: 0})
	require.Error(t, err)
	assert.Equal(t, apperr.Precondition, apperr.KindOf(err))
}

func TestStartGame_ReshuffleMidPlaylistRejected(t *testing.T) {
	m := fsm.New()

	_, _, err := m.Prepare(fsm.Phase{Name: fsm.PrepReady}, fsm.Event{Kind: fsm.EventStartGame, Shuffle: true}, fsm.Facts{
		TeamCount: 1, PlaylistStarted: true, PlaylistCompleted: false,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.Precondition, apperr.KindOf(err))
}

func TestStartGame_NewGamePlusResetsAndAllowsReshuffle(t *testing.T) {
	m := fsm.New()

	_, r, err := m.Prepare(fsm.Phase{Name: fsm.PrepReady}, fsm.Event{Kind: fsm.EventStartGame, Shuffle: true}, fsm.Facts{
		TeamCount: 1, PlaylistStarted: true, PlaylistCompleted: true,
	})
	require.NoError(t, err)
	assert.True(t, r.ResetPlaylist)
	assert.True(t, r.Shuffle)
	assert.Equal(t, fsm.Playing, r.To.Name)
}

func TestPairing_AssignLastTeamReturnsToReady(t *testing.T) {
	m := fsm.New()

	_, r, err := m.Prepare(fsm.Phase{Name: fsm.PrepPairing}, fsm.Event{Kind: fsm.EventBuzzAssign, TeamID: "t2", BuzzerID: "aaaaaaaaaaaa"}, fsm.Facts{
		RemainingUnpairedAfterAssign: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, fsm.PrepReady, r.To.Name)
	assert.True(t, r.ClearSnapshot)
}

func TestPairing_AssignNotLastStaysInPairing(t *testing.T) {
	m := fsm.New()

	_, r, err := m.Prepare(fsm.Phase{Name: fsm.PrepPairing}, fsm.Event{Kind: fsm.EventBuzzAssign, TeamID: "t1", BuzzerID: "aaaaaaaaaaaa"}, fsm.Facts{
		RemainingUnpairedAfterAssign: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, fsm.PrepPairing, r.To.Name)
	assert.False(t, r.ClearSnapshot)
}

func TestAbortPairing_RestoresSnapshot(t *testing.T) {
	m := fsm.New()

	_, r, err := m.Prepare(fsm.Phase{Name: fsm.PrepPairing}, fsm.Event{Kind: fsm.EventAbortPairing}, fsm.Facts{})
	require.NoError(t, err)
	assert.Equal(t, fsm.PrepReady, r.To.Name)
	assert.True(t, r.RestoreSnapshot)
}

func TestBuzz_RejectedWhenAlreadyBuzzed(t *testing.T) {
	m := fsm.New()

	_, _, err := m.Prepare(fsm.Phase{Name: fsm.Playing}, fsm.Event{Kind: fsm.EventBuzz, TeamID: "t1"}, fsm.Facts{CanAcceptBuzz: false})
	require.Error(t, err)
	assert.Equal(t, apperr.PhaseRejected, apperr.KindOf(err))
}

func TestBuzz_AcceptedPausesOnTeam(t *testing.T) {
	m := fsm.New()

	_, r, err := m.Prepare(fsm.Phase{Name: fsm.Playing}, fsm.Event{Kind: fsm.EventBuzz, TeamID: "t1"}, fsm.Facts{CanAcceptBuzz: true})
	require.NoError(t, err)
	assert.Equal(t, fsm.Paused, r.To.Name)
	assert.Equal(t, fsm.PauseBuzz, r.To.PauseKind)
	assert.Equal(t, "t1", r.To.PauseTeamID)
}

func TestNextSong_AdvancesOrFinishes(t *testing.T) {
	m := fsm.New()

	_, r, err := m.Prepare(fsm.Phase{Name: fsm.Reveal}, fsm.Event{Kind: fsm.EventNextSong}, fsm.Facts{AtEndAfterAdvance: false})
	require.NoError(t, err)
	assert.Equal(t, fsm.Playing, r.To.Name)
	assert.True(t, r.AdvanceIndex)

	_, r2, err := m.Prepare(fsm.Phase{Name: fsm.Reveal}, fsm.Event{Kind: fsm.EventNextSong}, fsm.Facts{AtEndAfterAdvance: true})
	require.NoError(t, err)
	assert.Equal(t, fsm.ShowScores, r2.To.Name)
	assert.Equal(t, fsm.FinishPlaylistCompleted, r2.FinishReason)
}

func TestFinish_FromAnyGameRunningPhase(t *testing.T) {
	m := fsm.New()

	for _, p := range []fsm.Phase{
		{Name: fsm.PrepReady}, {Name: fsm.PrepPairing}, {Name: fsm.Playing},
		{Name: fsm.Paused, PauseKind: fsm.PauseManual}, {Name: fsm.Reveal},
	} {
		_, r, err := m.Prepare(p, fsm.Event{Kind: fsm.EventFinish, Reason: fsm.FinishManual}, fsm.Facts{})
		require.NoError(t, err)
		assert.Equal(t, fsm.ShowScores, r.To.Name)
	}

	_, _, err := m.Prepare(fsm.Phase{Name: fsm.Idle}, fsm.Event{Kind: fsm.EventFinish}, fsm.Facts{})
	require.Error(t, err)
}

func TestEndGame_ReturnsToIdle(t *testing.T) {
	m := fsm.New()

	_, r, err := m.Prepare(fsm.Phase{Name: fsm.ShowScores}, fsm.Event{Kind: fsm.EventEndGame}, fsm.Facts{})
	require.NoError(t, err)
	assert.Equal(t, fsm.Idle, r.To.Name)
}

func TestApply_UnknownTokenIsInternalError(t *testing.T) {
	m := fsm.New()

	_, err := m.Apply(fsm.Token(9999))
	require.Error(t, err)
	assert.Equal(t, apperr.Internal, apperr.KindOf(err))
}
