// Package memstore is the one concrete store.Store implementation
// carried by this module: an in-memory, mutex-protected map per
// collection with monotonically increasing revision tokens. It exists
// so the Persistence Coordinator and the reference cmd/neonbeat
// bootstrap have something real to talk to; the two production-grade
// backends named in spec §6 are explicitly out of scope (spec §1).
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/neonbeat/back/internal/model"
	"github.com/neonbeat/back/internal/store"
)

type gameEntry struct {
	doc model.Game
	rev int
}

type teamEntry struct {
	doc model.Team
	rev int
}

type playlistEntry struct {
	doc model.Playlist
	rev int
}

// Store is a single in-memory document store covering all three
// collections. A real driver would split these across separate
// connections/tables; the in-memory reference keeps them in one
// struct behind one mutex since contention is never the point here.
type Store struct {
	mu        sync.Mutex
	games     map[string]gameEntry
	teams     map[string]teamEntry
	playlists map[string]playlistEntry
}

func New() *Store {
	return &Store{
		games:     make(map[string]gameEntry),
		teams:     make(map[string]teamEntry),
		playlists: make(map[string]playlistEntry),
	}
}

func revToken(rev int) string { return fmt.Sprintf("%d", rev) }

func (s *Store) GetGame(_ context.Context, id string) (model.Game, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.games[id]
	if !ok {
		return model.Game{}, "", store.ErrNotFound
	}
	return e.doc, revToken(e.rev), nil
}

func (s *Store) ListGames(_ context.Context) ([]store.GameListItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.GameListItem, 0, len(s.games))
	for _, e := range s.games {
		out = append(out, store.GameListItem{ID: e.doc.ID, Name: e.doc.Name, PlaylistID: e.doc.PlaylistID})
	}
	return out, nil
}

func (s *Store) PutGame(_ context.Context, g model.Game, rev string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, exists := s.games[g.ID]
	if exists && revToken(cur.rev) != rev {
		return "", store.ErrConflict
	}
	if !exists && rev != "" {
		return "", store.ErrConflict
	}

	newRev := cur.rev + 1
	s.games[g.ID] = gameEntry{doc: g, rev: newRev}
	return revToken(newRev), nil
}

func (s *Store) DeleteGame(_ context.Context, id string, rev string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, exists := s.games[id]
	if !exists {
		return store.ErrNotFound
	}
	if revToken(cur.rev) != rev {
		return store.ErrConflict
	}
	delete(s.games, id)
	return nil
}

func (s *Store) GetTeam(_ context.Context, id string) (model.Team, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.teams[id]
	if !ok {
		return model.Team{}, "", store.ErrNotFound
	}
	return e.doc, revToken(e.rev), nil
}

func (s *Store) PutTeam(_ context.Context, t model.Team, rev string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, exists := s.teams[t.ID]
	if exists && revToken(cur.rev) != rev {
		return "", store.ErrConflict
	}
	if !exists && rev != "" {
		return "", store.ErrConflict
	}

	newRev := cur.rev + 1
	s.teams[t.ID] = teamEntry{doc: t, rev: newRev}
	return revToken(newRev), nil
}

func (s *Store) DeleteTeam(_ context.Context, id string, rev string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, exists := s.teams[id]
	if !exists {
		return store.ErrNotFound
	}
	if revToken(cur.rev) != rev {
		return store.ErrConflict
	}
	delete(s.teams, id)
	return nil
}

func (s *Store) GetPlaylist(_ context.Context, id string) (model.Playlist, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.playlists[id]
	if !ok {
		return model.Playlist{}, "", store.ErrNotFound
	}
	return e.doc, revToken(e.rev), nil
}

func (s *Store) ListPlaylists(_ context.Context) ([]model.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Playlist, 0, len(s.playlists))
	for _, e := range s.playlists {
		out = append(out, e.doc)
	}
	return out, nil
}

func (s *Store) PutPlaylist(_ context.Context, p model.Playlist, rev string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, exists := s.playlists[p.ID]
	if exists && revToken(cur.rev) != rev {
		return "", store.ErrConflict
	}
	if !exists && rev != "" {
		return "", store.ErrConflict
	}

	newRev := cur.rev + 1
	s.playlists[p.ID] = playlistEntry{doc: p, rev: newRev}
	return revToken(newRev), nil
}

var _ store.Store = (*Store)(nil)
