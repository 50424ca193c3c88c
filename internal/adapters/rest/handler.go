package rest

import (
	"log/slog"
	"net/http"

	"github.com/harmonia-labs/livemix/internal/core/services"
	"github.com/harmonia-labs/livemix/internal/stream"
)

// StreamFactory builds a fresh delta streamer for one SSE client.
type StreamFactory func(userID string) *stream.Streamer

// Handler manages the HTTP interface for the mix engine.
type Handler struct {
	sessions  *services.Sessions
	suggest   *services.Suggester
	newStream StreamFactory
	logger    *slog.Logger
	router    *http.ServeMux
}

// NewHandler initializes the HTTP adapter and sets up routes.
func NewHandler(sessions *services.Sessions, suggest *services.Suggester, newStream StreamFactory, logger *slog.Logger) *Handler {
	h := &Handler{
		sessions:  sessions,
		suggest:   suggest,
		newStream: newStream,
		logger:    logger,
		router:    http.NewServeMux(),
	}
	h.routes()
	return h
}

// ServeHTTP satisfies the http.Handler interface.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// routes defines the mapping between URLs and methods.
func (h *Handler) routes() {
	h.router.HandleFunc("GET /health", h.HealthCheck)

	// Session lifecycle
	h.router.HandleFunc("POST /sessions", h.StartSession)
	h.router.HandleFunc("GET /sessions/{userId}", h.GetSession)
	h.router.HandleFunc("DELETE /sessions/{userId}", h.EndSession)

	// Queue management
	h.router.HandleFunc("GET /sessions/{userId}/queue", h.GetQueue)
	h.router.HandleFunc("POST /sessions/{userId}/queue", h.AddToQueue)
	h.router.HandleFunc("PUT /sessions/{userId}/queue", h.ReorderQueue)
	h.router.HandleFunc("DELETE /sessions/{userId}/queue/{pos}", h.RemoveFromQueue)

	// Vibe control
	h.router.HandleFunc("GET /sessions/{userId}/vibe", h.GetVibe)
	h.router.HandleFunc("PUT /sessions/{userId}/vibe", h.UpdateVibe)
	h.router.HandleFunc("POST /sessions/{userId}/vibe/steer", h.SteerVibe)

	// Suggestions and playback
	h.router.HandleFunc("GET /sessions/{userId}/suggestions", h.GetSuggestions)
	h.router.HandleFunc("POST /sessions/{userId}/played", h.TrackPlayed)
	h.router.HandleFunc("GET /sessions/{userId}/stream", h.StreamDeltas)
}

// HealthCheck is a simple endpoint to verify the API is running.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Live mix engine is spinning 🎛️"})
}
