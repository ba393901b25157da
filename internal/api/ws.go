package api

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Buzzer devices are on the local network behind the reverse proxy
	// fronting this service; the origin check the upstream Client dial
	// performs client-side has no analogue to enforce here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// serveWS upgrades the connection and hands it to the Buzzer Registry,
// which owns its read/write pumps for the connection's lifetime (spec
// §4.2, §6 GET /ws).
func (s *Server) serveWS() httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Debug().Err(err).Msg("ws upgrade failed")
			return
		}
		s.reg.HandleConn(conn)
	}
}
