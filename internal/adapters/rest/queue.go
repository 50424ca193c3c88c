package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/harmonia-labs/livemix/internal/core/domain"
	"github.com/harmonia-labs/livemix/internal/core/ports"
)

const errCodeNoConfidentMatch = "NO_CONFIDENT_MATCH"

// GetQueue handles GET /sessions/{userId}/queue
func (h *Handler) GetQueue(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.Context(), r.PathValue("userId"))
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session.Queue)
}

type addToQueueRequest struct {
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	TrackID string `json:"trackId"`
}

// AddToQueue handles POST /sessions/{userId}/queue
func (h *Handler) AddToQueue(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	var req addToQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TrackID == "" && (req.Title == "" || req.Artist == "") {
		writeError(w, http.StatusBadRequest, "either trackId or title and artist are required")
		return
	}

	var (
		entry domain.QueuedTrack
		err   error
	)
	if req.TrackID != "" {
		entry, err = h.sessions.AddTrackByID(r.Context(), r.PathValue("userId"), req.TrackID)
	} else {
		entry, err = h.sessions.AddToQueue(r.Context(), r.PathValue("userId"), req.Title, req.Artist)
	}
	if err != nil {
		var matchErr ports.NoConfidentMatchError
		if errors.As(err, &matchErr) {
			writeErrorWithCode(w, http.StatusUnprocessableEntity, matchErr.Error(), errCodeNoConfidentMatch)
			return
		}
		h.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

type reorderQueueRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// ReorderQueue handles PUT /sessions/{userId}/queue
func (h *Handler) ReorderQueue(w http.ResponseWriter, r *http.Request) {
	var req reorderQueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.sessions.ReorderQueue(r.Context(), r.PathValue("userId"), req.From, req.To); err != nil {
		h.writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveFromQueue handles DELETE /sessions/{userId}/queue/{pos}
func (h *Handler) RemoveFromQueue(w http.ResponseWriter, r *http.Request) {
	pos, err := strconv.Atoi(r.PathValue("pos"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "position must be an integer")
		return
	}

	if err := h.sessions.RemoveFromQueue(r.Context(), r.PathValue("userId"), pos); err != nil {
		h.writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
