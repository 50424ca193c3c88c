package domain

import (
	"fmt"
	"math"
	"strings"
)

// EnergyDirection is where the session's energy is headed.
type EnergyDirection string

const (
	EnergyBuilding    EnergyDirection = "building"
	EnergySteady      EnergyDirection = "steady"
	EnergyWindingDown EnergyDirection = "winding_down"
)

const (
	// MaxMoods and MaxGenres cap the vibe tag lists, most-recent-kept.
	MaxMoods  = 5
	MaxGenres = 5

	MinEnergyLevel = 1
	MaxEnergyLevel = 10
)

// VibeProfile is the target musical character of a session.
type VibeProfile struct {
	Moods           []string        `json:"moods"`
	Genres          []string        `json:"genres"`
	EraStart        int             `json:"eraStart,omitempty"`
	EraEnd          int             `json:"eraEnd,omitempty"`
	BPMMin          float64         `json:"bpmMin,omitempty"`
	BPMMax          float64         `json:"bpmMax,omitempty"`
	EnergyLevel     int             `json:"energyLevel"`
	EnergyDirection EnergyDirection `json:"energyDirection"`
}

// DefaultVibe is the canonical starting vibe: mid energy, steady, no
// range constraints.
func DefaultVibe() VibeProfile {
	return VibeProfile{
		Moods:           []string{},
		Genres:          []string{},
		EnergyLevel:     5,
		EnergyDirection: EnergySteady,
	}
}

// VibePatch is a partial vibe edit. Nil fields are untouched. With
// RangeUnion set, era and bpm ranges widen to cover both instead of
// being replaced.
type VibePatch struct {
	Moods           []string
	Genres          []string
	EraStart        *int
	EraEnd          *int
	BPMMin          *float64
	BPMMax          *float64
	EnergyLevel     *int
	EnergyDirection *EnergyDirection
	RangeUnion      bool
}

// BlendVibes merges a patch into the current vibe. Energy level is a
// weighted average (weight is the patch's share, 1.0 meaning replace),
// rounded and clamped into [1,10]. Direction, era and bpm ranges are
// replaced outright unless RangeUnion asks for widening. Mood and genre
// lists union with the incoming values first, capped most-recent-kept.
// The returned change list is human-readable, one entry per field that
// actually moved.
func BlendVibes(current VibeProfile, patch VibePatch, weight float64) (VibeProfile, []string) {
	out := current
	var changes []string

	if weight < 0 {
		weight = 0
	}
	if weight > 1 {
		weight = 1
	}

	if patch.EnergyLevel != nil {
		blended := float64(current.EnergyLevel)*(1-weight) + float64(*patch.EnergyLevel)*weight
		level := ClampEnergy(int(math.Round(blended)))
		if level != current.EnergyLevel {
			changes = append(changes, fmt.Sprintf("energy level %d -> %d", current.EnergyLevel, level))
		}
		out.EnergyLevel = level
	}

	if patch.EnergyDirection != nil && *patch.EnergyDirection != current.EnergyDirection {
		out.EnergyDirection = *patch.EnergyDirection
		changes = append(changes, fmt.Sprintf("energy direction %s -> %s", current.EnergyDirection, out.EnergyDirection))
	}

	if patch.EraStart != nil || patch.EraEnd != nil {
		start, end := current.EraStart, current.EraEnd
		if patch.EraStart != nil {
			start = *patch.EraStart
		}
		if patch.EraEnd != nil {
			end = *patch.EraEnd
		}
		if patch.RangeUnion && current.EraStart != 0 {
			start = minInt(start, current.EraStart)
			end = maxInt(end, current.EraEnd)
		}
		if start != current.EraStart || end != current.EraEnd {
			changes = append(changes, fmt.Sprintf("era %d-%d", start, end))
		}
		out.EraStart, out.EraEnd = start, end
	}

	if patch.BPMMin != nil || patch.BPMMax != nil {
		lo, hi := current.BPMMin, current.BPMMax
		if patch.BPMMin != nil {
			lo = *patch.BPMMin
		}
		if patch.BPMMax != nil {
			hi = *patch.BPMMax
		}
		if patch.RangeUnion && current.BPMMax > 0 {
			lo = math.Min(lo, current.BPMMin)
			hi = math.Max(hi, current.BPMMax)
		}
		if lo != current.BPMMin || hi != current.BPMMax {
			changes = append(changes, fmt.Sprintf("bpm range %.0f-%.0f", lo, hi))
		}
		out.BPMMin, out.BPMMax = lo, hi
	}

	if len(patch.Moods) > 0 {
		out.Moods = mergeTags(patch.Moods, current.Moods, MaxMoods)
		changes = append(changes, "moods: "+strings.Join(out.Moods, ", "))
	}
	if len(patch.Genres) > 0 {
		out.Genres = mergeTags(patch.Genres, current.Genres, MaxGenres)
		changes = append(changes, "genres: "+strings.Join(out.Genres, ", "))
	}

	return out, changes
}

// NudgeVibeFromTrack blends a just-played track's attributes into the
// vibe: the bpm range widens to include the track, and the energy
// direction is re-derived from the three most recent history entries
// (newest vs oldest, a better-than-10% move flips the direction).
func NudgeVibeFromTrack(v VibeProfile, played PlayedTrack, history []PlayedTrack) VibeProfile {
	out := v

	if played.BPM != nil {
		bpm := *played.BPM
		if out.BPMMax == 0 {
			out.BPMMin, out.BPMMax = bpm-10, bpm+10
		} else {
			out.BPMMin = math.Min(out.BPMMin, bpm)
			out.BPMMax = math.Max(out.BPMMax, bpm)
		}
		if out.BPMMin < 0 {
			out.BPMMin = 0
		}
	}

	out.EnergyDirection = deriveDirection(history)
	return out
}

func deriveDirection(history []PlayedTrack) EnergyDirection {
	var energies []float64
	for _, h := range history {
		if h.Energy != nil {
			energies = append(energies, *h.Energy)
		}
		if len(energies) == 3 {
			break
		}
	}
	if len(energies) < 3 {
		return EnergySteady
	}
	newest, oldest := energies[0], energies[2]
	if oldest == 0 {
		return EnergySteady
	}
	delta := (newest - oldest) / oldest
	switch {
	case delta > 0.1:
		return EnergyBuilding
	case delta < -0.1:
		return EnergyWindingDown
	default:
		return EnergySteady
	}
}

// ClampEnergy bounds an energy level into [1,10].
func ClampEnergy(level int) int {
	if level < MinEnergyLevel {
		return MinEnergyLevel
	}
	if level > MaxEnergyLevel {
		return MaxEnergyLevel
	}
	return level
}

// mergeTags keeps incoming tags first, then surviving existing ones,
// case-insensitively deduplicated and capped.
func mergeTags(incoming, existing []string, limit int) []string {
	seen := make(map[string]struct{}, limit)
	out := make([]string, 0, limit)
	for _, list := range [][]string{incoming, existing} {
		for _, tag := range list {
			tag = strings.TrimSpace(tag)
			if tag == "" {
				continue
			}
			key := strings.ToLower(tag)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, tag)
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
