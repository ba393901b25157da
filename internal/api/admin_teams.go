package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/neonbeat/back/internal/dispatch"
	"github.com/neonbeat/back/internal/model"
)

func (s *Server) serveCreateTeam() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req teamInputWire
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		t, err := s.d.CreateTeam(r.Context(), req.toDispatch())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, t)
	}
}

type updateTeamRequest struct {
	Name     *string    `json:"name,omitempty"`
	Color    *model.HSV `json:"color,omitempty"`
	BuzzerID *string    `json:"buzzer_id,omitempty"`
	Score    *int       `json:"score,omitempty"`
}

func (s *Server) serveUpdateTeam() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		var req updateTeamRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		t, err := s.d.UpdateTeam(r.Context(), p.ByName("id"), dispatch.UpdateTeamFields{
			Name: req.Name, Color: req.Color, BuzzerID: req.BuzzerID, Score: req.Score,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func (s *Server) serveDeleteTeam() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		if err := s.d.RemoveTeam(r.Context(), p.ByName("id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type adjustScoreRequest struct {
	Delta int `json:"delta"`
}

func (s *Server) serveAdjustScore() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		var req adjustScoreRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		t, err := s.d.AdjustScore(r.Context(), p.ByName("id"), req.Delta)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

type enterPairingRequest struct {
	FirstTeamID string `json:"first_team_id,omitempty"`
}

func (s *Server) serveEnterPairing() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req enterPairingRequest
		if r.ContentLength > 0 {
			if err := decodeJSON(w, r, &req); err != nil {
				writeError(w, err)
				return
			}
		}
		game, err := s.d.EnterPairing(r.Context(), req.FirstTeamID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, game)
	}
}

func (s *Server) serveAbortPairing() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		game, err := s.d.AbortPairing(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, game)
	}
}
