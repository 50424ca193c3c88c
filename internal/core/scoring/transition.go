// Package scoring holds the pure track-transition and vibe-fit scoring
// functions. Everything here is stateless and deterministic; ties break
// on iteration order.
package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/harmonia-labs/livemix/internal/core/domain"
)

// ArcPhase is a named segment of a planned listening session with a
// target energy, bpm and duration share.
type ArcPhase struct {
	Name         string
	TargetEnergy float64 // 0..1
	TargetBPM    float64
	DurationMin  float64
}

// TransitionScore is the composite quality estimate for playing one
// track immediately after another.
type TransitionScore struct {
	BPM     float64
	Energy  float64
	Genre   float64
	Artist  float64
	Era     float64
	Overall float64
}

const (
	weightBPM    = 0.30
	weightEnergy = 0.25
	weightGenre  = 0.20
	weightArtist = 0.15
	weightEra    = 0.10

	bpmTolerance    = 10.0
	bpmSigma        = 15.0
	energyTolerance = 0.15
	energySigma     = 0.25

	recentArtistWindow = 5
)

// BPMCompatibility scores tempo adjacency: a perfect 1.0 inside a
// 10 bpm window, Gaussian decay on the excess beyond it. Unknown tempo
// on either side is neutral. Symmetric in its arguments.
func BPMCompatibility(a, b *float64) float64 {
	if a == nil || b == nil {
		return 0.5
	}
	diff := math.Abs(*a - *b)
	if diff <= bpmTolerance {
		return 1.0
	}
	excess := diff - bpmTolerance
	return math.Exp(-(excess * excess) / (2 * bpmSigma * bpmSigma))
}

// EnergyFlow scores a track's energy against a phase target: 1.0 within
// ±0.15, Gaussian decay beyond. Unknown energy is neutral.
func EnergyFlow(energy *float64, target float64) float64 {
	if energy == nil {
		return 0.5
	}
	diff := math.Abs(*energy - target)
	if diff <= energyTolerance {
		return 1.0
	}
	excess := diff - energyTolerance
	return math.Exp(-(excess * excess) / (2 * energySigma * energySigma))
}

// GenreBridge is the case-insensitive Jaccard similarity of two tag
// sets; neutral when either side carries no tags.
func GenreBridge(a, b []string) float64 {
	setA := tagSet(a)
	setB := tagSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0.5
	}
	intersection := 0
	for tag := range setA {
		if _, ok := setB[tag]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

// ArtistDiversity is 0 when the artist appeared in the last five picks,
// 1.0 otherwise. Case-insensitive.
func ArtistDiversity(artist string, recent []string) float64 {
	if len(recent) > recentArtistWindow {
		recent = recent[len(recent)-recentArtistWindow:]
	}
	for _, r := range recent {
		if strings.EqualFold(r, artist) {
			return 0
		}
	}
	return 1.0
}

// EraProximity scores by decade distance: same decade 1.0, adjacent
// 0.5, then a linear 1-0.2·decades floored at zero. Unknown years are
// neutral.
func EraProximity(a, b *int) float64 {
	if a == nil || b == nil {
		return 0.5
	}
	decades := math.Abs(float64(*a/10 - *b/10))
	switch {
	case decades == 0:
		return 1.0
	case decades == 1:
		return 0.5
	default:
		return math.Max(0, 1-0.2*decades)
	}
}

// Score computes the full component breakdown for playing next after
// prev inside the given phase.
func Score(prev, next domain.TrackProfile, phase ArcPhase, recentArtists []string) TransitionScore {
	s := TransitionScore{
		BPM:    BPMCompatibility(prev.BPM, next.BPM),
		Energy: EnergyFlow(next.Energy, phase.TargetEnergy),
		Genre:  GenreBridge(prev.Tags, next.Tags),
		Artist: ArtistDiversity(next.Artist, recentArtists),
		Era:    EraProximity(prev.ReleaseYear, next.ReleaseYear),
	}
	s.Overall = weightBPM*s.BPM + weightEnergy*s.Energy + weightGenre*s.Genre +
		weightArtist*s.Artist + weightEra*s.Era
	return s
}

// Candidate pairs a resolved catalog track with its scoring profile.
type Candidate struct {
	Track   domain.Track
	Profile domain.TrackProfile
}

// Sequenced is a candidate placed into the output ordering.
type Sequenced struct {
	Candidate
	Score    TransitionScore
	ArcPhase string
	Reason   string
}

// OrderByTransition sequences candidates across the arc phases.
// Candidates are partitioned proportionally to each phase's duration
// (remainder to the last phase), then a greedy walk picks the highest
// overall score against the evolving previous track at every step.
// First maximal score wins ties; no randomization. Quadratic in the
// candidate count, which stays in the tens here.
func OrderByTransition(candidates []Candidate, phases []ArcPhase, start *domain.TrackProfile) []Sequenced {
	if len(candidates) == 0 {
		return []Sequenced{}
	}
	if len(phases) == 0 {
		phases = []ArcPhase{{Name: "session", TargetEnergy: 0.6, DurationMin: 60}}
	}

	counts := partitionCounts(len(candidates), phases)

	remaining := make([]Candidate, len(candidates))
	copy(remaining, candidates)

	var prev domain.TrackProfile
	var recent []string
	if start != nil {
		prev = *start
		if start.Artist != "" {
			recent = append(recent, start.Artist)
		}
	}

	out := make([]Sequenced, 0, len(candidates))
	for pi, phase := range phases {
		for n := 0; n < counts[pi] && len(remaining) > 0; n++ {
			bestIdx := 0
			bestScore := Score(prev, remaining[0].Profile, phase, recent)
			for i := 1; i < len(remaining); i++ {
				s := Score(prev, remaining[i].Profile, phase, recent)
				if s.Overall > bestScore.Overall {
					bestIdx = i
					bestScore = s
				}
			}

			pick := remaining[bestIdx]
			out = append(out, Sequenced{
				Candidate: pick,
				Score:     bestScore,
				ArcPhase:  phase.Name,
				Reason:    transitionReason(bestScore, phase),
			})
			remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)

			prev = pick.Profile
			recent = append(recent, pick.Profile.Artist)
			if len(recent) > recentArtistWindow {
				recent = recent[len(recent)-recentArtistWindow:]
			}
		}
	}
	return out
}

// partitionCounts splits n candidates across phases proportionally to
// duration, assigning any remainder to the last phase. Shares are
// rounded so early phases keep their claim on small candidate sets;
// over-assignment is harmless because the walk stops when no
// candidates remain.
func partitionCounts(n int, phases []ArcPhase) []int {
	total := 0.0
	for _, p := range phases {
		total += p.DurationMin
	}
	counts := make([]int, len(phases))
	assigned := 0
	for i, p := range phases {
		if total > 0 {
			counts[i] = int(math.Round(float64(n) * p.DurationMin / total))
		}
		assigned += counts[i]
	}
	// The opening phase always seats at least one pick.
	if n > 0 && counts[0] == 0 {
		counts[0] = 1
		assigned++
	}
	if shortfall := n - assigned; shortfall > 0 {
		counts[len(counts)-1] += shortfall
	}
	return counts
}

func transitionReason(s TransitionScore, phase ArcPhase) string {
	var parts []string
	if s.BPM >= 0.9 {
		parts = append(parts, "tempo locks in")
	} else if s.BPM >= 0.6 {
		parts = append(parts, "workable tempo shift")
	}
	if s.Genre >= 0.5 {
		parts = append(parts, "shared genre ground")
	}
	if s.Energy >= 0.9 {
		parts = append(parts, "energy on target")
	}
	if s.Artist == 0 {
		parts = append(parts, "artist heard recently")
	}
	if len(parts) == 0 {
		parts = append(parts, "best available transition")
	}
	return fmt.Sprintf("%s for the %s phase", strings.Join(parts, ", "), phase.Name)
}

func tagSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			set[t] = struct{}{}
		}
	}
	return set
}
