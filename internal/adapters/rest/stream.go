package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// StreamDeltas handles GET /sessions/{userId}/stream
//
// Each connection gets its own streamer polling the playback device;
// the poll loop ends when the client goes away, auth expires, or the
// stream ages out.
func (h *Handler) StreamDeltas(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if _, err := h.sessions.Get(r.Context(), userID); err != nil {
		h.writeSessionError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Disable the server's WriteTimeout for this long-lived connection.
	// Without this, idle SSE connections are killed after WriteTimeout.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	s := h.newStream(userID)
	done := make(chan struct{})
	go func() {
		s.Run(r.Context())
		close(done)
	}()

	for {
		select {
		case ev := <-s.Events():
			payload, err := json.Marshal(ev)
			if err != nil {
				h.logger.Warn("failed to encode stream event", "type", ev.Type, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
				return
			}
			flusher.Flush()
		case <-done:
			// Drain whatever the poll loop buffered before it stopped.
			for {
				select {
				case ev := <-s.Events():
					payload, err := json.Marshal(ev)
					if err != nil {
						continue
					}
					if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
						return
					}
				default:
					flusher.Flush()
					return
				}
			}
		}
	}
}
