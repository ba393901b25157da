package persistence_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neonbeat/back/internal/model"
	"github.com/neonbeat/back/internal/persistence"
	"github.com/neonbeat/back/internal/store"
	"github.com/neonbeat/back/internal/store/memstore"
)

func nopLogger() zerolog.Logger { return zerolog.New(io.Discard) }

type fakeDegraded struct {
	mu       sync.Mutex
	degraded bool
	changes  int
}

func (f *fakeDegraded) SetDegraded(d bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.degraded == d {
		return false
	}
	f.degraded = d
	f.changes++
	return true
}

func (f *fakeDegraded) Degraded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.degraded
}

// countingStore wraps memstore.Store and counts PutTeam calls, with an
// optional hook to fail the first N calls.
type countingStore struct {
	*memstore.Store
	mu        sync.Mutex
	putTeams  int
	failFirst int
	failWith  error
}

func (c *countingStore) PutTeam(ctx context.Context, t model.Team, rev string) (string, error) {
	c.mu.Lock()
	c.putTeams++
	shouldFail := c.failFirst > 0
	if shouldFail {
		c.failFirst--
	}
	c.mu.Unlock()

	if shouldFail {
		return "", c.failWith
	}
	return c.Store.PutTeam(ctx, t, rev)
}

func (c *countingStore) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.putTeams
}

func TestPersist_DebounceCoalescesBurstIntoTwoWrites(t *testing.T) {
	st := &countingStore{Store: memstore.New()}
	deg := &fakeDegraded{}
	coord := persistence.New(st, 200*time.Millisecond, []time.Duration{50, 100, 200, 400}, deg, nopLogger())

	team := model.Team{ID: "t1", Name: "Team 1"}

	for i := 0; i < 5; i++ {
		team.Score = i + 1
		coord.PersistTeam(context.Background(), team)
		time.Sleep(20 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return st.calls() == 2
	}, time.Second, 10*time.Millisecond)

	got, _, err := st.GetTeam(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Score)
}

func TestPersist_RetriesOnConflictThenSucceeds(t *testing.T) {
	st := &countingStore{Store: memstore.New(), failFirst: 2, failWith: store.ErrConflict}
	deg := &fakeDegraded{}
	coord := persistence.New(st, 200*time.Millisecond, []time.Duration{10, 10, 10, 10}, deg, nopLogger())

	coord.PersistTeam(context.Background(), model.Team{ID: "t1", Name: "Team 1"})

	require.Eventually(t, func() bool {
		_, _, err := st.GetTeam(context.Background(), "t1")
		return err == nil
	}, time.Second, 10*time.Millisecond)

	assert.False(t, deg.Degraded())
}

func TestPersist_TransportFailureFlipsDegradedAfterTwoFailures(t *testing.T) {
	st := &countingStore{Store: memstore.New(), failFirst: 2, failWith: store.ErrTransport}
	deg := &fakeDegraded{}
	coord := persistence.New(st, 10*time.Millisecond, nil, deg, nopLogger())

	coord.PersistTeam(context.Background(), model.Team{ID: "t1", Name: "A"})
	time.Sleep(20 * time.Millisecond)
	coord.PersistTeam(context.Background(), model.Team{ID: "t1", Name: "B"})

	require.Eventually(t, func() bool {
		return deg.Degraded()
	}, time.Second, 10*time.Millisecond)
}

func TestShutdown_FlushesPendingWritesBypassingCooldown(t *testing.T) {
	st := &countingStore{Store: memstore.New()}
	deg := &fakeDegraded{}
	coord := persistence.New(st, 200*time.Millisecond, []time.Duration{50, 100, 200, 400}, deg, nopLogger())

	coord.PersistTeam(context.Background(), model.Team{ID: "t1", Name: "Team 1", Score: 1})
	coord.PersistTeam(context.Background(), model.Team{ID: "t1", Name: "Team 1", Score: 2})

	err := coord.Shutdown(context.Background())
	require.NoError(t, err)

	got, _, err := st.GetTeam(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Score)
}

func TestPersist_DifferentTeamsAreEachWritten(t *testing.T) {
	st := &countingStore{Store: memstore.New()}
	deg := &fakeDegraded{}
	coord := persistence.New(st, 0, nil, deg, nopLogger())

	coord.PersistTeam(context.Background(), model.Team{ID: "t1", Name: "A"})
	coord.PersistTeam(context.Background(), model.Team{ID: "t2", Name: "B"})

	require.Eventually(t, func() bool { return st.calls() == 2 }, time.Second, 10*time.Millisecond)

	_, _, err1 := st.GetTeam(context.Background(), "t1")
	_, _, err2 := st.GetTeam(context.Background(), "t2")
	assert.NoError(t, err1)
	assert.NoError(t, err2)
}
