package rest

import (
	"net/http"
	"strconv"

	"github.com/harmonia-labs/livemix/internal/core/domain"
)

// GetSuggestions handles GET /sessions/{userId}/suggestions?count=
// It runs the pipeline read-only: nothing is enqueued or persisted.
func (h *Handler) GetSuggestions(w http.ResponseWriter, r *http.Request) {
	count := domain.TargetQueueDepth
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > domain.MaxQueue {
			writeError(w, http.StatusBadRequest, "count must be between 1 and 10")
			return
		}
		count = n
	}

	session, err := h.sessions.Get(r.Context(), r.PathValue("userId"))
	if err != nil {
		h.writeSessionError(w, err)
		return
	}

	picks, err := h.suggest.Generate(r.Context(), session, count)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if picks == nil {
		picks = []domain.QueuedTrack{} // "no ideas" is a valid answer, not a null
	}
	writeJSON(w, http.StatusOK, picks)
}
