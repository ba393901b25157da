// Package persistence implements the bounded-concurrency write-behind
// cache of spec §4.6: per-entity debouncing, per-team/per-game
// locking, optimistic retry on store.ErrConflict, a shared degraded
// flag, and a graceful-shutdown flush. It is the one component in this
// module with no direct analogue in the upstream party-game CLI (which
// has no persistence layer at all); its shape is grounded instead on
// the debounce/backoff/fan-in pattern spec'd in §4.6 itself, using
// golang.org/x/sync/errgroup for the shutdown flush fan-out the way
// the rest of the retrieved corpus reaches for errgroup over a raw
// sync.WaitGroup.
package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/neonbeat/back/internal/model"
	"github.com/neonbeat/back/internal/store"
)

// DegradedSink receives degraded-mode transitions. internal/hubs.Hub
// satisfies this without persistence importing hubs' event types.
type DegradedSink interface {
	SetDegraded(degraded bool) bool
}

type writeClass string

const (
	classGame     writeClass = "game"
	classTeam     writeClass = "team"
	classPlaylist writeClass = "playlist"
)

// writeFunc performs one PUT attempt against the store using rev as
// the known revision, returning the new revision on success.
type writeFunc func(ctx context.Context, rev string) (newRev string, err error)

// Coordinator is the Persistence Coordinator of spec §4.6.
type Coordinator struct {
	log         zerolog.Logger
	st          store.Store
	cooldown    time.Duration
	retryDelays []time.Duration
	degraded    DegradedSink

	gameMu sync.Mutex // protects all game- and playlist-document writes

	teamMusMu sync.Mutex
	teamMus   map[string]*sync.Mutex // lazily created, one per team id

	recordsMu sync.Mutex
	records   map[string]*entityRecord // keyed "class:id"

	shutdownMu sync.Mutex
	shutdown   bool

	failuresMu    sync.Mutex
	failureStreak int
}

// New builds a Coordinator. cooldown should be 200ms for test parity
// with spec §8 property 5 unless the caller has deliberately
// overridden it (SPEC_FULL.md Open Question 3).
func New(st store.Store, cooldown time.Duration, retryDelays []time.Duration, degraded DegradedSink, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		st:          st,
		cooldown:    cooldown,
		retryDelays: retryDelays,
		degraded:    degraded,
		teamMus:     make(map[string]*sync.Mutex),
		records:     make(map[string]*entityRecord),
		log:         log,
	}
}

// entityRecord is the per-entity-id debounce bookkeeping of spec
// §4.6: last_write_at, pending, flush_scheduled, guarded by lock
// (the shared game mutex, or this team's dedicated mutex). class and
// id identify which Get* method writeWithRetry re-fetches from on a
// conflict.
type entityRecord struct {
	lock *sync.Mutex

	class writeClass
	id    string

	lastWriteAt    time.Time
	pending        writeFunc
	flushScheduled bool
	rev            string
}

func recordKey(class writeClass, id string) string {
	return fmt.Sprintf("%s:%s", class, id)
}

func (c *Coordinator) lockFor(class writeClass, id string) *sync.Mutex {
	if class == classTeam {
		c.teamMusMu.Lock()
		defer c.teamMusMu.Unlock()
		m, ok := c.teamMus[id]
		if !ok {
			m = &sync.Mutex{}
			c.teamMus[id] = m
		}
		return m
	}
	return &c.gameMu
}

func (c *Coordinator) recordFor(class writeClass, id string) *entityRecord {
	key := recordKey(class, id)

	c.recordsMu.Lock()
	defer c.recordsMu.Unlock()

	rec, ok := c.records[key]
	if !ok {
		rec = &entityRecord{lock: c.lockFor(class, id), class: class, id: id}
		c.records[key] = rec
	}
	return rec
}

// currentRev re-fetches the revision a document actually holds in the
// store right now, used by writeWithRetry to recover from a stale
// rec.rev after a Conflict rather than resubmitting the same rev
// forever (spec §4.6: "each attempt re-fetching the latest revision").
func (c *Coordinator) currentRev(ctx context.Context, class writeClass, id string) (string, error) {
	switch class {
	case classGame:
		_, rev, err := c.st.GetGame(ctx, id)
		return rev, err
	case classTeam:
		_, rev, err := c.st.GetTeam(ctx, id)
		return rev, err
	case classPlaylist:
		_, rev, err := c.st.GetPlaylist(ctx, id)
		return rev, err
	default:
		return "", fmt.Errorf("persistence: unknown write class %q", class)
	}
}

// PersistGame enqueues a debounced write of g. It always returns
// immediately; the write itself may happen synchronously on this
// goroutine (cooldown elapsed) or on a delayed background goroutine
// (cooldown still running) — callers that don't want to block on the
// immediate-write path should invoke this via `go`.
func (c *Coordinator) PersistGame(ctx context.Context, g model.Game) {
	c.persist(ctx, classGame, g.ID, func(ctx context.Context, rev string) (string, error) {
		return c.st.PutGame(ctx, g, rev)
	})
}

// PersistTeam enqueues a debounced write of t.
func (c *Coordinator) PersistTeam(ctx context.Context, t model.Team) {
	c.persist(ctx, classTeam, t.ID, func(ctx context.Context, rev string) (string, error) {
		return c.st.PutTeam(ctx, t, rev)
	})
}

// PersistPlaylist enqueues a debounced write of p. Playlist writes
// reuse the game-level lock (spec §4.6: "they are rare, at ingest").
func (c *Coordinator) PersistPlaylist(ctx context.Context, p model.Playlist) {
	c.persist(ctx, classPlaylist, p.ID, func(ctx context.Context, rev string) (string, error) {
		return c.st.PutPlaylist(ctx, p, rev)
	})
}

// DeleteGame deletes a game document. Deletes do not retry on
// Conflict (spec §4.6): a conflict is reported directly to the caller
// as "someone mutated concurrently, retry at the business layer".
func (c *Coordinator) DeleteGame(ctx context.Context, id, rev string) error {
	lock := c.lockFor(classGame, id)
	lock.Lock()
	defer lock.Unlock()
	return c.st.DeleteGame(ctx, id, rev)
}

// DeleteTeam deletes a team document, same no-retry contract as
// DeleteGame.
func (c *Coordinator) DeleteTeam(ctx context.Context, id, rev string) error {
	lock := c.lockFor(classTeam, id)
	lock.Lock()
	defer lock.Unlock()
	return c.st.DeleteTeam(ctx, id, rev)
}

// Degraded reports the coordinator's view of the shared degraded flag.
func (c *Coordinator) Degraded() bool {
	if s, ok := c.degraded.(interface{ Degraded() bool }); ok {
		return s.Degraded()
	}
	return false
}

// Shutdown stops accepting new persist calls and synchronously flushes
// every entity with pending or scheduled work, bypassing the cooldown
// (spec §4.6 graceful shutdown). Per-entity failures are logged but do
// not prevent the other entities from flushing.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.shutdownMu.Lock()
	c.shutdown = true
	c.shutdownMu.Unlock()

	c.recordsMu.Lock()
	pending := make([]*entityRecord, 0, len(c.records))
	keys := make([]string, 0, len(c.records))
	for key, rec := range c.records {
		pending = append(pending, rec)
		keys = append(keys, key)
	}
	c.recordsMu.Unlock()

	var g errgroup.Group
	for i := range pending {
		rec := pending[i]
		key := keys[i]
		g.Go(func() error {
			rec.lock.Lock()
			defer rec.lock.Unlock()

			if rec.pending == nil {
				return nil
			}
			wf := rec.pending
			err := c.writeWithRetry(ctx, rec, wf)
			if err != nil {
				c.log.Error().Err(err).Str("entity", key).Msg("shutdown flush failed")
				return err
			}
			c.log.Info().Str("entity", key).Msg("shutdown flush succeeded")
			rec.pending = nil
			rec.flushScheduled = false
			return nil
		})
	}

	return g.Wait()
}
