package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/neonbeat/back/internal/apperr"
)

const adminTokenHeader = "X-Admin-Token"

// adminOnly gates h behind a valid X-Admin-Token header matching the
// live admin hub token (spec §4.1, §6).
func (s *Server) adminOnly(h httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		securityHeaders(s, w)
		token := r.Header.Get(adminTokenHeader)
		if !s.admin.ValidateToken(token) {
			writeError(w, apperr.New(apperr.Unauthorized, "missing or invalid admin token"))
			return
		}
		h(w, r, p)
	}
}

// adminOnlyHandler is adminOnly's plain http.Handler counterpart, for
// wiring pre-built handlers (net/http/pprof) behind the same gate.
func (s *Server) adminOnlyHandler(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(adminTokenHeader)
		if !s.admin.ValidateToken(token) {
			writeError(w, apperr.New(apperr.Unauthorized, "missing or invalid admin token"))
			return
		}
		h.ServeHTTP(w, r)
	})
}
