package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/neonbeat/back/internal/model"
)

func (s *Server) serveHealthcheck() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(s, w)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}

// phaseView is the public shape of GET /public/phase (spec §6): the
// live phase, the active game id if any, the shared degraded flag, and
// the last-buzzed team id in Paused(Buzz).
type phaseView struct {
	Phase       string `json:"phase"`
	GameID      string `json:"game_id,omitempty"`
	Degraded    bool   `json:"degraded"`
	PauseTeamID string `json:"pause_team_id,omitempty"`
}

func (s *Server) servePublicPhase() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(s, w)
		game, err := s.d.CurrentGame(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, phaseView{
			Phase:       game.Phase.Name,
			GameID:      game.ID,
			Degraded:    s.admin.Degraded(),
			PauseTeamID: game.Phase.PauseTeamID,
		})
	}
}

func (s *Server) servePublicTeams() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(s, w)
		teams, err := s.d.LiveTeams(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Teams []model.Team `json:"teams"`
		}{Teams: teams})
	}
}

func (s *Server) servePublicSong() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(s, w)
		view, err := s.d.PublicSong(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func (s *Server) servePublicPairingStatus() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(s, w)
		teamID, err := s.d.PairingWaitingTeam(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			TeamID string `json:"team_id,omitempty"`
		}{TeamID: teamID})
	}
}
