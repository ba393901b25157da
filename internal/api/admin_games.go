package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/neonbeat/back/internal/dispatch"
	"github.com/neonbeat/back/internal/model"
	"github.com/neonbeat/back/internal/store"
)

// teamInputWire is the JSON shape of one team in a create-game request.
type teamInputWire struct {
	Name     string    `json:"name"`
	Color    model.HSV `json:"color"`
	BuzzerID string    `json:"buzzer_id,omitempty"`
}

func (t teamInputWire) toDispatch() dispatch.TeamInput {
	return dispatch.TeamInput{Name: t.Name, Color: t.Color, BuzzerID: t.BuzzerID}
}

type createGameRequest struct {
	Name       string          `json:"name"`
	PlaylistID string          `json:"playlist_id"`
	Teams      []teamInputWire `json:"teams"`
	Shuffle    bool            `json:"shuffle"`
}

func (s *Server) serveCreateGame() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req createGameRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		teams := make([]dispatch.TeamInput, len(req.Teams))
		for i, t := range req.Teams {
			teams[i] = t.toDispatch()
		}
		game, err := s.d.CreateGame(r.Context(), req.Name, req.PlaylistID, teams, req.Shuffle)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, game)
	}
}

// createGameWithPlaylistRequest builds the playlist and the game in one
// call, convenient for a game master setting up from scratch.
type createGameWithPlaylistRequest struct {
	Name         string          `json:"name"`
	PlaylistName string          `json:"playlist_name"`
	Songs        []model.Song    `json:"songs"`
	Teams        []teamInputWire `json:"teams"`
	Shuffle      bool            `json:"shuffle"`
}

func (s *Server) serveCreateGameWithPlaylist() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req createGameWithPlaylistRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		playlist, err := s.d.CreatePlaylist(r.Context(), req.PlaylistName, req.Songs)
		if err != nil {
			writeError(w, err)
			return
		}
		teams := make([]dispatch.TeamInput, len(req.Teams))
		for i, t := range req.Teams {
			teams[i] = t.toDispatch()
		}
		game, err := s.d.CreateGame(r.Context(), req.Name, playlist.ID, teams, req.Shuffle)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, game)
	}
}

func (s *Server) serveListGames() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		games, err := s.d.ListGames(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Games []store.GameListItem `json:"games"`
		}{Games: games})
	}
}

func (s *Server) serveGetGame() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		game, err := s.d.GetGameDetail(r.Context(), p.ByName("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, game)
	}
}

func (s *Server) serveLoadGame() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		game, err := s.d.LoadGame(r.Context(), p.ByName("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, game)
	}
}

func (s *Server) serveDeleteGame() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		if err := s.d.DeleteGame(r.Context(), p.ByName("id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type createPlaylistRequest struct {
	Name  string       `json:"name"`
	Songs []model.Song `json:"songs"`
}

func (s *Server) serveCreatePlaylist() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req createPlaylistRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		playlist, err := s.d.CreatePlaylist(r.Context(), req.Name, req.Songs)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, playlist)
	}
}

func (s *Server) serveListPlaylists() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		playlists, err := s.d.ListPlaylists(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Playlists []model.Playlist `json:"playlists"`
		}{Playlists: playlists})
	}
}
