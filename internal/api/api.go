// Package api is the thin REST/SSE/WS edge wiring spec §6's external
// interfaces onto the Command Dispatcher. It is the one place outside
// internal/dispatch allowed to touch the Dispatcher's exported methods;
// routing itself follows the upstream party-game web.go's
// httprouter.Handle-closures-over-*Config style exactly, generalized
// from game-page routes to the REST/SSE/WS surface of spec §6.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"

	"github.com/neonbeat/back/internal/buzzer"
	"github.com/neonbeat/back/internal/config"
	"github.com/neonbeat/back/internal/dispatch"
	"github.com/neonbeat/back/internal/hubs"
)

const timeout = 10 * time.Second

// Server wires the Dispatcher, the two Hubs, and the Buzzer Registry to
// an http.Server.
type Server struct {
	cfg    *config.Config
	log    zerolog.Logger
	d      *dispatch.Dispatcher
	public *hubs.Hub
	admin  *hubs.Hub
	reg    *buzzer.Registry
}

// New builds a Server. Run SetRegistry on the dispatcher before calling
// Serve, since /ws routes raw connections straight into reg.
func New(cfg *config.Config, d *dispatch.Dispatcher, public, admin *hubs.Hub, reg *buzzer.Registry, log zerolog.Logger) *Server {
	return &Server{cfg: cfg, log: log, d: d, public: public, admin: admin, reg: reg}
}

func securityHeaders(s *Server, w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if s.cfg.Scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" && net.ParseIP(ip) != nil {
		return ip
	}
	return host
}

// accessLog wraps h, logging method/path/remote-ip/duration the way
// the upstream serveVersion handler logs a one-off SERVE line, but for
// every request instead of one hardcoded route.
func (s *Server) accessLog(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h.ServeHTTP(w, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_ip", realIP(r)).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

// Serve builds the router, starts the HTTP server, and blocks until ctx
// is cancelled, then gracefully shuts it down — the same
// listen/shutdown shape as the upstream ServePage.
func (s *Server) Serve(ctx context.Context) error {
	mux := httprouter.New()

	srv := &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Bind, strconv.Itoa(s.cfg.Port)),
		Handler:           s.accessLog(mux),
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		// WriteTimeout is deliberately unset: SSE and WS connections are
		// long-lived and a fixed write deadline would sever them.
	}

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		s.log.Error().Interface("panic", v).Str("path", r.URL.Path).Msg("handler panicked")
		writeError(w, errors.New("internal error"))
	}

	prefix := s.cfg.Prefix

	mux.GET(prefix+"/healthcheck", s.serveHealthcheck())

	mux.GET(prefix+"/public/phase", s.servePublicPhase())
	mux.GET(prefix+"/public/teams", s.servePublicTeams())
	mux.GET(prefix+"/public/song", s.servePublicSong())
	mux.GET(prefix+"/public/pairing-status", s.servePublicPairingStatus())

	mux.POST(prefix+"/admin/games", s.adminOnly(s.serveCreateGame()))
	mux.POST(prefix+"/admin/games/with-playlist", s.adminOnly(s.serveCreateGameWithPlaylist()))
	mux.GET(prefix+"/admin/games", s.adminOnly(s.serveListGames()))
	mux.GET(prefix+"/admin/games/:id", s.adminOnly(s.serveGetGame()))
	mux.POST(prefix+"/admin/games/:id/load", s.adminOnly(s.serveLoadGame()))
	mux.DELETE(prefix+"/admin/games/:id", s.adminOnly(s.serveDeleteGame()))

	mux.POST(prefix+"/admin/playlists", s.adminOnly(s.serveCreatePlaylist()))
	mux.GET(prefix+"/admin/playlists", s.adminOnly(s.serveListPlaylists()))

	mux.POST(prefix+"/admin/teams", s.adminOnly(s.serveCreateTeam()))
	mux.PUT(prefix+"/admin/teams/:id", s.adminOnly(s.serveUpdateTeam()))
	mux.DELETE(prefix+"/admin/teams/:id", s.adminOnly(s.serveDeleteTeam()))
	mux.POST(prefix+"/admin/teams/:id/score", s.adminOnly(s.serveAdjustScore()))
	mux.POST(prefix+"/admin/teams/pairing", s.adminOnly(s.serveEnterPairing()))
	mux.POST(prefix+"/admin/teams/pairing/abort", s.adminOnly(s.serveAbortPairing()))

	mux.POST(prefix+"/admin/game/start", s.adminOnly(s.serveStartGame()))
	mux.POST(prefix+"/admin/game/pause", s.adminOnly(s.serveGameControl(fsmPause)))
	mux.POST(prefix+"/admin/game/resume", s.adminOnly(s.serveGameControl(fsmResume)))
	mux.POST(prefix+"/admin/game/reveal", s.adminOnly(s.serveGameControl(fsmReveal)))
	mux.POST(prefix+"/admin/game/next", s.adminOnly(s.serveGameControl(fsmNext)))
	mux.POST(prefix+"/admin/game/stop", s.adminOnly(s.serveGameControl(fsmStop)))
	mux.POST(prefix+"/admin/game/end", s.adminOnly(s.serveGameControl(fsmEnd)))
	mux.POST(prefix+"/admin/game/answer", s.adminOnly(s.serveAnswer()))
	mux.POST(prefix+"/admin/game/field", s.adminOnly(s.serveMarkField()))

	mux.GET(prefix+"/sse/public", s.serveSSE(s.public))
	mux.GET(prefix+"/sse/admin", s.serveSSE(s.admin))

	mux.GET(prefix+"/ws", s.serveWS())

	s.registerProfileHandlers(mux)

	go func() {
		s.log.Info().Str("addr", srv.Addr).Str("scheme", s.cfg.Scheme()).Msg("listening")
		var err error
		if s.cfg.TLSCert != "" && s.cfg.TLSKey != "" {
			err = srv.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("server exited")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
