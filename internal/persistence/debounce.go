package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/neonbeat/back/internal/store"
)

// persist runs the debounce algorithm of spec §4.6 for one entity:
//
//  1. acquire the entity lock (the shared game mutex, or this team's
//     dedicated mutex — serializes writes within the same class/id)
//  2. if the cooldown has elapsed and no flush is scheduled, write now
//  3. otherwise overwrite the pending payload and, if no flush is
//     scheduled yet, schedule one for cooldown after the last write
func (c *Coordinator) persist(ctx context.Context, class writeClass, id string, wf writeFunc) {
	rec := c.recordFor(class, id)

	rec.lock.Lock()

	c.shutdownMu.Lock()
	down := c.shutdown
	c.shutdownMu.Unlock()
	if down {
		rec.lock.Unlock()
		c.log.Warn().Str("entity_id", id).Msg("dropped persist call, coordinator shutting down")
		return
	}

	now := time.Now()
	if now.Sub(rec.lastWriteAt) >= c.cooldown && !rec.flushScheduled {
		rec.lastWriteAt = now
		rec.pending = nil
		err := c.writeWithRetry(ctx, rec, wf)
		rec.lock.Unlock()
		c.recordOutcome(err)
		return
	}

	rec.pending = wf
	if rec.flushScheduled {
		rec.lock.Unlock()
		return
	}
	rec.flushScheduled = true
	delay := c.cooldown - now.Sub(rec.lastWriteAt)
	if delay < 0 {
		delay = 0
	}
	rec.lock.Unlock()

	time.AfterFunc(delay, func() { c.flush(rec) })
}

// flush performs one scheduled debounce write, swallowing the case
// where a concurrent shutdown already flushed and cleared pending.
func (c *Coordinator) flush(rec *entityRecord) {
	rec.lock.Lock()
	defer rec.lock.Unlock()

	rec.flushScheduled = false
	if rec.pending == nil {
		return
	}
	wf := rec.pending
	rec.pending = nil
	rec.lastWriteAt = time.Now()

	err := c.writeWithRetry(context.Background(), rec, wf)
	c.recordOutcome(err)
}

// writeWithRetry attempts wf once, then retries on store.ErrConflict
// using c.retryDelays. The in-memory payload inside wf is resubmitted
// as-is on every attempt (persistence never merges, only resubmits the
// latest in-memory state), but the revision it is submitted against is
// re-fetched from the store before each retry, per spec §4.6: "each
// attempt re-fetches the latest revision and re-applies the payload".
// Without this, a stale rec.rev (e.g. the zero-value left by LoadGame
// rehydrating a document this coordinator never wrote) would conflict
// forever, since rec.rev would never advance past the stale value that
// keeps losing. A re-fetch that comes back ErrNotFound means the
// document simply doesn't exist yet (this attempt is a create, not an
// update), so the retry keeps an empty rev rather than failing.
// Non-conflict, non-not-found errors are returned immediately without
// a retry loop; the payload stays in rec.pending so the next persist()
// call or a caller-driven retry can pick it up. rec.lock is held by the
// caller throughout.
func (c *Coordinator) writeWithRetry(ctx context.Context, rec *entityRecord, wf writeFunc) (err error) {
	defer func() {
		if err != nil && !errors.Is(err, store.ErrConflict) {
			rec.pending = wf
		}
	}()

	newRev, err := wf(ctx, rec.rev)
	if err == nil {
		rec.rev = newRev
		return nil
	}

	if !errors.Is(err, store.ErrConflict) {
		return err
	}

	for _, delay := range c.retryDelays {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		rev, ferr := c.currentRev(ctx, rec.class, rec.id)
		switch {
		case ferr == nil:
			rec.rev = rev
		case errors.Is(ferr, store.ErrNotFound):
			// Entity doesn't exist yet in the store (this is a create,
			// not an update): the correct "current" rev is still empty,
			// not a hard failure — keep retrying the create.
			rec.rev = ""
		default:
			return ferr
		}

		newRev, err = wf(ctx, rec.rev)
		if err == nil {
			rec.rev = newRev
			return nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return err
		}
	}

	return err
}

// recordOutcome flips the shared degraded flag after two consecutive
// non-conflict failures, and clears it on any success (spec §4.6:
// "repeated transport failures flip a shared degraded flag").
func (c *Coordinator) recordOutcome(err error) {
	c.failuresMu.Lock()
	defer c.failuresMu.Unlock()

	if err == nil {
		if c.failureStreak > 0 {
			c.failureStreak = 0
			c.degraded.SetDegraded(false)
		}
		return
	}

	if errors.Is(err, store.ErrConflict) {
		// retries already exhausted upstream; a conflict alone isn't a
		// transport problem and doesn't count toward degraded mode.
		return
	}

	c.failureStreak++
	if c.failureStreak >= 2 {
		c.degraded.SetDegraded(true)
	}
}
