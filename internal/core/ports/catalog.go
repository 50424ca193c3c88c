package ports

import (
	"context"
	"errors"
	"fmt"

	"github.com/harmonia-labs/livemix/internal/core/domain"
)

// ErrNoConfidentMatch indicates search results did not meet the confidence threshold.
var ErrNoConfidentMatch = errors.New("no confident match")

// NoConfidentMatchError provides context for a failed track match.
type NoConfidentMatchError struct {
	Title  string
	Artist string
}

func (e NoConfidentMatchError) Error() string {
	if e.Title == "" && e.Artist == "" {
		return ErrNoConfidentMatch.Error()
	}
	return fmt.Sprintf("no confident match found for title %q artist %q", e.Title, e.Artist)
}

func (e NoConfidentMatchError) Is(target error) bool {
	return target == ErrNoConfidentMatch
}

// CatalogProvider resolves tracks against the streaming provider's
// catalog, by name/artist pair or by catalog ID.
type CatalogProvider interface {
	SearchTrack(ctx context.Context, title, artist string) (domain.Track, error)
	GetTrack(ctx context.Context, id string) (domain.Track, error)
}
