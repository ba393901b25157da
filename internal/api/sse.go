package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/neonbeat/back/internal/hubs"
)

// serveSSE streams hub's events to the client as Server-Sent Events,
// emitting a keep-alive comment every Config.HubKeepAlive so
// intermediary proxies don't time out the connection (spec §4.1).
func (s *Server) serveSSE(hub *hubs.Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(s, w)

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		sub := hub.Subscribe()
		defer hub.Unsubscribe(sub)

		keepAlive := time.NewTicker(s.cfg.HubKeepAlive)
		defer keepAlive.Stop()

		ctx := r.Context()
		for {
			select {
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				if err := writeSSEEvent(w, ev); err != nil {
					return
				}
				flusher.Flush()

			case <-keepAlive.C:
				if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
					return
				}
				flusher.Flush()

			case <-sub.Done():
				return

			case <-ctx.Done():
				return
			}
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, ev hubs.Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, payload)
	return err
}
