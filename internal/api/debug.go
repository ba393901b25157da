package api

import (
	"net/http"
	"net/http/pprof"

	"github.com/julienschmidt/httprouter"
)

// registerProfileHandlers exposes net/http/pprof behind the admin token
// gate. Runtime profiles are operator-only information, so every route
// here goes through adminOnlyHandler rather than being left open.
func (s *Server) registerProfileHandlers(mux *httprouter.Router) {
	prefix := s.cfg.Prefix

	mux.Handler("GET", prefix+"/debug/pprof/allocs", s.adminOnlyHandler(pprof.Handler("allocs")))
	mux.Handler("GET", prefix+"/debug/pprof/block", s.adminOnlyHandler(pprof.Handler("block")))
	mux.Handler("GET", prefix+"/debug/pprof/goroutine", s.adminOnlyHandler(pprof.Handler("goroutine")))
	mux.Handler("GET", prefix+"/debug/pprof/heap", s.adminOnlyHandler(pprof.Handler("heap")))
	mux.Handler("GET", prefix+"/debug/pprof/mutex", s.adminOnlyHandler(pprof.Handler("mutex")))
	mux.Handler("GET", prefix+"/debug/pprof/threadcreate", s.adminOnlyHandler(pprof.Handler("threadcreate")))
	mux.Handler("GET", prefix+"/debug/pprof/cmdline", s.adminOnlyHandler(http.HandlerFunc(pprof.Cmdline)))
	mux.Handler("GET", prefix+"/debug/pprof/profile", s.adminOnlyHandler(http.HandlerFunc(pprof.Profile)))
	mux.Handler("GET", prefix+"/debug/pprof/symbol", s.adminOnlyHandler(http.HandlerFunc(pprof.Symbol)))
	mux.Handler("GET", prefix+"/debug/pprof/trace", s.adminOnlyHandler(http.HandlerFunc(pprof.Trace)))
}
