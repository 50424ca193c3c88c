package ports

import (
	"context"

	"github.com/harmonia-labs/livemix/internal/core/domain"
)

// SimilarityProvider is the crowd-tagging collaborator: similar tracks
// and community tags for a given track.
type SimilarityProvider interface {
	SimilarTracks(ctx context.Context, name, artist string, limit int) ([]domain.TrackRef, error)
	TrackTags(ctx context.Context, name, artist string) ([]string, error)
}

// TempoProvider enriches a track with its bpm. A zero return with a nil
// error is not used; unknown tempo is an error the caller degrades on.
type TempoProvider interface {
	TrackBPM(ctx context.Context, name, artist string) (float64, error)
}
