package scoring

import (
	"math"

	"github.com/harmonia-labs/livemix/internal/core/domain"
)

const (
	vibeWeightBPM    = 0.30
	vibeWeightGenre  = 0.30
	vibeWeightEnergy = 0.25
	vibeWeightEra    = 0.15
)

// VibeFit scores how well a track's profile matches the session vibe,
// 0..100. Every sub-score is independently neutral (0.5) when its data
// is missing, so sparsely-tagged tracks are never punished outright.
// All three suggestion tiers rank through this one contract.
func VibeFit(p domain.TrackProfile, vibe domain.VibeProfile) int {
	score := vibeWeightBPM*vibeBPMScore(p.BPM, vibe) +
		vibeWeightGenre*GenreBridge(p.Tags, vibe.Genres) +
		vibeWeightEnergy*EnergyFlow(p.Energy, float64(vibe.EnergyLevel)/10) +
		vibeWeightEra*vibeEraScore(p.ReleaseYear, vibe)
	return int(math.Round(score * 100))
}

// CombinedScore averages vibe fit with transition quality, both on the
// 0..100 scale, for history-aware ranking.
func CombinedScore(vibeFit int, transition TransitionScore) int {
	return int(math.Round((float64(vibeFit) + transition.Overall*100) / 2))
}

func vibeBPMScore(bpm *float64, vibe domain.VibeProfile) float64 {
	if bpm == nil || vibe.BPMMax == 0 {
		return 0.5
	}
	if *bpm >= vibe.BPMMin && *bpm <= vibe.BPMMax {
		return 1.0
	}
	var excess float64
	if *bpm < vibe.BPMMin {
		excess = vibe.BPMMin - *bpm
	} else {
		excess = *bpm - vibe.BPMMax
	}
	return math.Exp(-(excess * excess) / (2 * bpmSigma * bpmSigma))
}

func vibeEraScore(year *int, vibe domain.VibeProfile) float64 {
	if year == nil || vibe.EraStart == 0 {
		return 0.5
	}
	if *year >= vibe.EraStart && *year <= vibe.EraEnd {
		return 1.0
	}
	edge := vibe.EraStart
	if *year > vibe.EraEnd {
		edge = vibe.EraEnd
	}
	return EraProximity(year, &edge)
}
