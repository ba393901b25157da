package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neonbeat/back/internal/model"
	"github.com/neonbeat/back/internal/session"
)

func samplePlaylist() model.Playlist {
	return model.Playlist{
		ID: "pl1",
		Songs: []model.Song{
			{ID: "s1", URL: "https://example.com/1.mp3", PointFields: []string{"artist"}},
			{ID: "s2", URL: "https://example.com/2.mp3", PointFields: []string{"artist"}},
			{ID: "s3", URL: "https://example.com/3.mp3", PointFields: []string{"artist"}},
		},
	}
}

func TestTeamMap_PreservesInsertionOrder(t *testing.T) {
	s := session.New()
	require.NoError(t, s.InsertTeam(model.Team{ID: "t1", Name: "Alpha"}))
	require.NoError(t, s.InsertTeam(model.Team{ID: "t2", Name: "Bravo"}))
	require.NoError(t, s.InsertTeam(model.Team{ID: "t3", Name: "Charlie"}))

	ordered := s.Teams.Ordered()
	require.Len(t, ordered, 3)
	assert.Equal(t, []string{"t1", "t2", "t3"}, []string{ordered[0].ID, ordered[1].ID, ordered[2].ID})

	require.NoError(t, s.RemoveTeam("t2"))
	require.NoError(t, s.InsertTeam(model.Team{ID: "t4", Name: "Delta"}))
	ordered = s.Teams.Ordered()
	assert.Equal(t, []string{"t1", "t3", "t4"}, []string{ordered[0].ID, ordered[1].ID, ordered[2].ID})
}

func TestInsertTeam_RejectsDuplicateBuzzer(t *testing.T) {
	s := session.New()
	require.NoError(t, s.InsertTeam(model.Team{ID: "t1", BuzzerID: "aaaaaaaaaaaa"}))
	err := s.InsertTeam(model.Team{ID: "t2", BuzzerID: "aaaaaaaaaaaa"})
	assert.Error(t, err)
}

func TestAssignBuzzer_StealsFromPriorOwner(t *testing.T) {
	s := session.New()
	require.NoError(t, s.InsertTeam(model.Team{ID: "t1", BuzzerID: "aaaaaaaaaaaa"}))
	require.NoError(t, s.InsertTeam(model.Team{ID: "t2"}))

	victim, err := s.AssignBuzzer("t2", "aaaaaaaaaaaa")
	require.NoError(t, err)
	assert.Equal(t, "t1", victim)

	t1, _ := s.Teams.Get("t1")
	t2, _ := s.Teams.Get("t2")
	assert.Empty(t, t1.BuzzerID)
	assert.Equal(t, "aaaaaaaaaaaa", t2.BuzzerID)
}

func TestPairingSnapshot_RestoresOrderingNamesColorsScoresBuzzers(t *testing.T) {
	s := session.New()
	require.NoError(t, s.InsertTeam(model.Team{ID: "t1", Name: "Alpha", Score: 10, BuzzerID: "aaaaaaaaaaaa"}))
	require.NoError(t, s.InsertTeam(model.Team{ID: "t2", Name: "Bravo", Score: 5}))

	s.SnapshotPairing()
	require.True(t, s.HasPairingSnapshot())

	_, err := s.AssignBuzzer("t2", "aaaaaaaaaaaa")
	require.NoError(t, err)
	require.NoError(t, s.RemoveTeam("t1"))

	s.RestorePairing()
	assert.False(t, s.HasPairingSnapshot())

	ordered := s.Teams.Ordered()
	require.Len(t, ordered, 2)
	assert.Equal(t, "t1", ordered[0].ID)
	assert.Equal(t, "Alpha", ordered[0].Name)
	assert.Equal(t, 10, ordered[0].Score)
	assert.Equal(t, "aaaaaaaaaaaa", ordered[0].BuzzerID)
	assert.Equal(t, "t2", ordered[1].ID)
	assert.Empty(t, ordered[1].BuzzerID)
}

func TestLoad_RejectsPlaySequenceMultisetMismatch(t *testing.T) {
	s := session.New()
	playlist := samplePlaylist()
	game := model.Game{ID: "g1", PlaylistID: "pl1", PlaySequence: []string{"s1", "s2"}}

	err := s.Load(game, playlist, nil)
	assert.Error(t, err)
}

func TestLoad_AcceptsShuffledSequence(t *testing.T) {
	s := session.New()
	playlist := samplePlaylist()
	game := model.Game{ID: "g1", PlaylistID: "pl1", PlaySequence: []string{"s3", "s1", "s2"}}

	require.NoError(t, s.Load(game, playlist, nil))
}

func TestMarkField_RejectsNonCurrentSongAndIsIdempotent(t *testing.T) {
	s := session.New()
	playlist := samplePlaylist()
	s.ResetForNewGame(model.Game{PlaylistID: "pl1"}, playlist)
	s.FreezePlaySequence(false)
	s.EnterSong()

	_, err := s.MarkField("s2", "artist", false)
	assert.Error(t, err)

	fs, err := s.MarkField("s1", "artist", false)
	require.NoError(t, err)
	assert.True(t, fs.Points["artist"])
	assert.True(t, s.CurrentFoundAny())

	fs2, err := s.MarkField("s1", "artist", false)
	require.NoError(t, err)
	assert.Equal(t, fs.Points, fs2.Points)
}

func TestAdvanceToNextSong_MarksPlayedAndClearsFoundFields(t *testing.T) {
	s := session.New()
	playlist := samplePlaylist()
	s.ResetForNewGame(model.Game{PlaylistID: "pl1"}, playlist)
	s.FreezePlaySequence(false)
	s.EnterSong()
	_, _ = s.MarkField("s1", "artist", false)

	s.AdvanceToNextSong(true)

	assert.Equal(t, 1, s.Game.CurrentIndex)
	assert.True(t, s.Game.PlaylistState[0].Played)
	assert.True(t, s.Game.PlaylistState[0].Found)
	assert.False(t, s.CurrentFoundAny())
	assert.Equal(t, 1, s.Game.PlayedCount())
	assert.False(t, s.Game.Completed())
}
