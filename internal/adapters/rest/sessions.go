package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/harmonia-labs/livemix/internal/core/domain"
	"github.com/harmonia-labs/livemix/internal/core/services"
)

const errCodeSessionNotFound = "SESSION_NOT_FOUND"

type startSessionRequest struct {
	UserID   string            `json:"userId"`
	AutoFill *bool             `json:"autoFill"`
	Seed     []domain.TrackRef `json:"seed"`
	Vibe     *vibePatchRequest `json:"vibe"`
}

// StartSession handles POST /sessions
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	opts := services.StartOptions{AutoFill: req.AutoFill, Seed: req.Seed}
	if req.Vibe != nil {
		patch := req.Vibe.toPatch()
		opts.Vibe = &patch
	}

	session, err := h.sessions.Start(r.Context(), req.UserID, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

// GetSession handles GET /sessions/{userId}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.Context(), r.PathValue("userId"))
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// EndSession handles DELETE /sessions/{userId}
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.End(r.Context(), r.PathValue("userId")); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type trackPlayedRequest struct {
	TrackID    string `json:"trackId"`
	TrackURI   string `json:"trackUri"`
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	DurationMs int    `json:"durationMs"`
	ListenMs   *int   `json:"listenMs"`
}

// TrackPlayed handles POST /sessions/{userId}/played
func (h *Handler) TrackPlayed(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	var req trackPlayedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TrackID == "" {
		writeError(w, http.StatusBadRequest, "trackId is required")
		return
	}

	// Listen time defaults to the full track (a normal completion).
	listenMs := req.DurationMs
	if req.ListenMs != nil {
		listenMs = *req.ListenMs
	}

	err := h.sessions.OnTrackFinished(r.Context(), r.PathValue("userId"), domain.FinishedTrack{
		TrackID:    req.TrackID,
		TrackURI:   req.TrackURI,
		Name:       req.Name,
		Artist:     req.Artist,
		Album:      req.Album,
		DurationMs: req.DurationMs,
		ListenMs:   listenMs,
	})
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// writeSessionError maps service errors onto HTTP statuses.
func (h *Handler) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		writeErrorWithCode(w, http.StatusNotFound, "no active session for this user", errCodeSessionNotFound)
	case errors.Is(err, domain.ErrInvalidPosition):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrQueueFull):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
