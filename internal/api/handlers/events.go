package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Fantasim/tokenidx/internal/config"
	"github.com/Fantasim/tokenidx/internal/events"
	"github.com/Fantasim/tokenidx/internal/session"
)

// SessionEvents handles GET /api/events, a Server-Sent Events stream. The current
// snapshot is sent on connect so a reloaded page resyncs.
func SessionEvents(hub *events.Hub, sess *session.Session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			slog.Error("SSE not supported: response writer does not implement http.Flusher")
			writeError(w, http.StatusInternalServerError, config.ErrorInternal, "streaming not supported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		// Subscribe before reading the snapshot so no transition is missed in between.
		ch := hub.Subscribe()
		defer hub.Unsubscribe(ch)

		slog.Info("SSE client connected",
			"remoteAddr", r.RemoteAddr,
			"totalClients", hub.ClientCount(),
		)

		writeEvent(w, events.Event{Type: events.TypeSessionState, Data: sess.Snapshot()})
		flusher.Flush()

		keepAlive := time.NewTicker(config.SSEKeepAliveInterval)
		defer keepAlive.Stop()

		for {
			select {
			case event, ok := <-ch:
				if !ok {
					slog.Info("SSE channel closed, ending stream", "remoteAddr", r.RemoteAddr)
					return
				}
				writeEvent(w, event)
				flusher.Flush()

			case <-keepAlive.C:
				fmt.Fprint(w, ": keepalive\n\n")
				flusher.Flush()

			case <-r.Context().Done():
				slog.Info("SSE client disconnected", "remoteAddr", r.RemoteAddr)
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, event events.Event) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		slog.Error("failed to marshal SSE event data",
			"type", event.Type,
			"error", err,
		)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
}
