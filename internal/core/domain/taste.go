package domain

import (
	"strings"
	"time"
)

const (
	tasteLikeStep     = 0.1
	tasteDislikeStep  = -0.15
	maxSkippedArtists = 5
)

// TasteModel is a per-session weighting of liked and disliked genres
// plus recently skipped artists, inferred from listener signals.
type TasteModel struct {
	GenreWeights   map[string]float64 `json:"genreWeights"`
	SkippedArtists []string           `json:"skippedArtists"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// NewTasteModel returns an empty model.
func NewTasteModel() *TasteModel {
	return &TasteModel{GenreWeights: map[string]float64{}}
}

// Observe folds one signal into the model. Completed plays nudge the
// track's genres up, skips push them down and remember the artist.
// Weights stay in [-1,1].
func (t *TasteModel) Observe(sig SignalType, artist string, genres []string) {
	if t.GenreWeights == nil {
		t.GenreWeights = map[string]float64{}
	}

	var step float64
	switch sig {
	case SignalCompleted:
		step = tasteLikeStep
	case SignalSkipped:
		step = tasteDislikeStep
	default:
		return
	}

	for _, g := range genres {
		key := strings.ToLower(strings.TrimSpace(g))
		if key == "" {
			continue
		}
		w := t.GenreWeights[key] + step
		if w > 1 {
			w = 1
		}
		if w < -1 {
			w = -1
		}
		t.GenreWeights[key] = w
	}

	if sig == SignalSkipped && artist != "" {
		t.rememberSkippedArtist(artist)
	}
	t.UpdatedAt = time.Now().UTC()
}

func (t *TasteModel) rememberSkippedArtist(artist string) {
	for _, a := range t.SkippedArtists {
		if strings.EqualFold(a, artist) {
			return
		}
	}
	t.SkippedArtists = append(t.SkippedArtists, artist)
	if len(t.SkippedArtists) > maxSkippedArtists {
		t.SkippedArtists = t.SkippedArtists[len(t.SkippedArtists)-maxSkippedArtists:]
	}
}

// Liked returns genres weighted above the threshold, Disliked below its
// negation. The suggester surfaces both in prompts.
func (t *TasteModel) Liked(threshold float64) []string {
	return t.filter(func(w float64) bool { return w > threshold })
}

// Disliked returns genres weighted below -threshold.
func (t *TasteModel) Disliked(threshold float64) []string {
	return t.filter(func(w float64) bool { return w < -threshold })
}

func (t *TasteModel) filter(keep func(float64) bool) []string {
	var out []string
	for g, w := range t.GenreWeights {
		if keep(w) {
			out = append(out, g)
		}
	}
	return out
}
