// Package store defines the narrow document-store contract of spec §6.
// Only the abstract interface lives here: the two concrete backends
// (and the color-generation helper, the OpenAPI doc, etc.) are
// declared out of scope by spec §1 and are not implemented in this
// module. internal/store/memstore provides the one concrete, in-memory
// implementation this repo needs for tests and for running the server
// without an external dependency.
package store

import (
	"context"
	"errors"

	"github.com/neonbeat/back/internal/model"
)

// Sentinel errors the Persistence Coordinator (internal/persistence)
// switches on. A driver should return one of these, wrapped with
// fmt.Errorf("%w: ...") if it wants to add context.
var (
	ErrNotFound = errors.New("store: not found")
	ErrConflict = errors.New("store: revision conflict")
	ErrTransport = errors.New("store: transport failure")
)

// GameListItem is the summary row returned by ListGames; full Game
// documents are fetched individually via GetGame.
type GameListItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PlaylistID string `json:"playlist_id"`
}

// Store is the abstract CRUD contract every document collection
// implements. rev is an opaque per-document revision token; the first
// write for a given id supplies an empty rev.
type Store interface {
	GetGame(ctx context.Context, id string) (model.Game, string, error)
	ListGames(ctx context.Context) ([]GameListItem, error)
	PutGame(ctx context.Context, g model.Game, rev string) (string, error)
	DeleteGame(ctx context.Context, id string, rev string) error

	GetTeam(ctx context.Context, id string) (model.Team, string, error)
	PutTeam(ctx context.Context, t model.Team, rev string) (string, error)
	DeleteTeam(ctx context.Context, id string, rev string) error

	GetPlaylist(ctx context.Context, id string) (model.Playlist, string, error)
	ListPlaylists(ctx context.Context) ([]model.Playlist, error)
	PutPlaylist(ctx context.Context, p model.Playlist, rev string) (string, error)
}
