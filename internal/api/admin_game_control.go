package api

import (
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/neonbeat/back/internal/fsm"
	"github.com/neonbeat/back/internal/model"
	"github.com/neonbeat/back/internal/session"
)

// gameControlKind enumerates the zero-body phase transitions of spec
// §6: pause, resume, reveal, next, stop, end.
type gameControlKind int

const (
	fsmPause gameControlKind = iota
	fsmResume
	fsmReveal
	fsmNext
	fsmStop
	fsmEnd
)

func (s *Server) serveStartGame() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		shuffle, _ := strconv.ParseBool(r.URL.Query().Get("shuffle"))
		game, err := s.d.StartGame(r.Context(), shuffle)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, game)
	}
}

func (s *Server) serveGameControl(kind gameControlKind) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		ctx := r.Context()

		if kind == fsmEnd {
			if err := s.d.EndGame(ctx); err != nil {
				writeError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		var game model.Game
		var err error
		switch kind {
		case fsmPause:
			game, err = s.d.PauseManual(ctx)
		case fsmResume:
			game, err = s.d.Continue(ctx)
		case fsmReveal:
			game, err = s.d.Reveal(ctx)
		case fsmNext:
			game, err = s.d.NextSong(ctx)
		case fsmStop:
			game, err = s.d.Finish(ctx, fsm.FinishManual)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, game)
	}
}

type answerRequest struct {
	Verdict string `json:"verdict"`
}

func (s *Server) serveAnswer() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req answerRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		verdict := session.AnswerVerdict(req.Verdict)
		if err := s.d.Answer(r.Context(), verdict); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type markFieldRequest struct {
	SongID string `json:"song_id"`
	Field  string `json:"field"`
	Bonus  bool   `json:"bonus"`
}

func (s *Server) serveMarkField() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req markFieldRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, err)
			return
		}
		fs, err := s.d.MarkField(r.Context(), req.SongID, req.Field, req.Bonus)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			PointsFound []string `json:"points_found"`
			BonusFound  []string `json:"bonus_found"`
		}{PointsFound: keys(fs.Points), BonusFound: keys(fs.Bonus)})
	}
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		if v {
			out = append(out, k)
		}
	}
	return out
}
