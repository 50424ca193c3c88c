package rest

import (
	"encoding/json"
	"net/http"

	"github.com/harmonia-labs/livemix/internal/core/domain"
)

// vibePatchRequest is the wire form of a partial vibe edit. Absent
// fields leave the current vibe untouched.
type vibePatchRequest struct {
	Moods           []string `json:"moods"`
	Genres          []string `json:"genres"`
	EraStart        *int     `json:"eraStart"`
	EraEnd          *int     `json:"eraEnd"`
	BPMMin          *float64 `json:"bpmMin"`
	BPMMax          *float64 `json:"bpmMax"`
	EnergyLevel     *int     `json:"energyLevel"`
	EnergyDirection *string  `json:"energyDirection"`
	RangeUnion      bool     `json:"rangeUnion"`
}

func (req vibePatchRequest) toPatch() domain.VibePatch {
	patch := domain.VibePatch{
		Moods:       req.Moods,
		Genres:      req.Genres,
		EraStart:    req.EraStart,
		EraEnd:      req.EraEnd,
		BPMMin:      req.BPMMin,
		BPMMax:      req.BPMMax,
		EnergyLevel: req.EnergyLevel,
		RangeUnion:  req.RangeUnion,
	}
	if req.EnergyDirection != nil {
		dir := domain.EnergyDirection(*req.EnergyDirection)
		patch.EnergyDirection = &dir
	}
	return patch
}

func (req vibePatchRequest) validate() string {
	if req.EnergyLevel != nil && (*req.EnergyLevel < 1 || *req.EnergyLevel > 10) {
		return "energyLevel must be between 1 and 10"
	}
	if req.EnergyDirection != nil {
		switch domain.EnergyDirection(*req.EnergyDirection) {
		case domain.EnergyBuilding, domain.EnergySteady, domain.EnergyWindingDown:
		default:
			return "energyDirection must be building, steady or winding_down"
		}
	}
	if req.BPMMin != nil && req.BPMMax != nil && *req.BPMMin > *req.BPMMax {
		return "bpmMin must not exceed bpmMax"
	}
	return ""
}

type vibeResponse struct {
	Vibe    domain.VibeProfile `json:"vibe"`
	Changes []string           `json:"changes,omitempty"`
}

// GetVibe handles GET /sessions/{userId}/vibe
func (h *Handler) GetVibe(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.Get(r.Context(), r.PathValue("userId"))
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vibeResponse{Vibe: session.Vibe})
}

type updateVibeRequest struct {
	vibePatchRequest
	// Weight is the patch's share of the blend; zero or absent means
	// replace outright.
	Weight *float64 `json:"weight"`
}

// UpdateVibe handles PUT /sessions/{userId}/vibe
func (h *Handler) UpdateVibe(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	var req updateVibeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	weight := 1.0
	if req.Weight != nil {
		weight = *req.Weight
	}

	session, changes, err := h.sessions.UpdateVibe(r.Context(), r.PathValue("userId"), req.toPatch(), weight)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vibeResponse{Vibe: session.Vibe, Changes: changes})
}

type steerVibeRequest struct {
	Text string `json:"text"`
}

// SteerVibe handles POST /sessions/{userId}/vibe/steer
func (h *Handler) SteerVibe(w http.ResponseWriter, r *http.Request) {
	if !isJSONContentType(r) {
		writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	var req steerVibeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	session, changes, err := h.sessions.SteerVibe(r.Context(), r.PathValue("userId"), req.Text)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vibeResponse{Vibe: session.Vibe, Changes: changes})
}
