package ports

import (
	"context"
	"errors"

	"github.com/harmonia-labs/livemix/internal/core/domain"
)

var (
	// ErrNoActivePlayback means the device reported nothing playing
	// (an empty snapshot, not a failure).
	ErrNoActivePlayback = errors.New("no active playback")
	// ErrAuthExpired means the device rejected our credentials; fatal
	// to the current stream connection only.
	ErrAuthExpired = errors.New("playback auth expired")
)

// PlayerProvider is the external playback device: snapshots for the
// delta streamer and best-effort mirroring into its native queue.
type PlayerProvider interface {
	Snapshot(ctx context.Context) (domain.PlaybackState, error)
	QueueTrack(ctx context.Context, trackURI string) error
}
