package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/harmonia-labs/livemix/internal/core/domain"
	"github.com/harmonia-labs/livemix/internal/core/ports"
)

// deviceMirrorTimeout bounds the best-effort push of a pick onto the
// external device queue; it runs detached from the caller's context.
const deviceMirrorTimeout = 5 * time.Second

// AutoFill tops a session's queue up to the target depth using the
// suggestion pipeline, falling back to the session's seeded pool when
// the pipeline comes back empty. One Save at the end covers everything
// the fill changed.
type AutoFill struct {
	repo    ports.SessionRepository
	suggest *Suggester
	player  ports.PlayerProvider
	logger  *slog.Logger
}

// NewAutoFill constructs the coordinator.
func NewAutoFill(repo ports.SessionRepository, suggest *Suggester, player ports.PlayerProvider, logger *slog.Logger) *AutoFill {
	return &AutoFill{repo: repo, suggest: suggest, player: player, logger: logger}
}

// Fill tops the queue up to TargetQueueDepth and returns how many
// tracks were added. A no-op when auto-fill is off or the queue is
// already at target. The session is mutated in place and persisted.
func (a *AutoFill) Fill(ctx context.Context, session *domain.MixSession) (int, error) {
	if !session.Preferences.AutoFill {
		return 0, nil
	}
	needed := domain.TargetQueueDepth - len(session.Queue)
	if needed <= 0 {
		return 0, nil
	}

	// Over-ask slightly; duplicates against the live queue drop out below.
	picks, err := a.suggest.Generate(ctx, session, needed+3)
	if err != nil {
		return 0, err
	}

	added := a.enqueue(session, picks, needed)
	if added == 0 && len(session.FallbackPool) > 0 {
		pool := a.suggest.DrainPool(ctx, session, needed)
		added = a.enqueue(session, pool, needed)
		if added > 0 {
			a.logger.Info("queue filled from fallback pool", "user", session.UserID, "added", added)
		}
	}

	if added == 0 {
		return 0, nil
	}

	session.Touch()
	if err := a.repo.Save(ctx, session); err != nil {
		return added, err
	}
	a.logger.Info("queue topped up", "user", session.UserID, "added", added, "depth", len(session.Queue))
	return added, nil
}

func (a *AutoFill) enqueue(session *domain.MixSession, picks []domain.QueuedTrack, limit int) int {
	added := 0
	for _, pick := range picks {
		if added >= limit {
			break
		}
		if session.HasTrack(pick.TrackID) {
			continue
		}
		if avoided(session.Preferences, pick) {
			continue
		}
		if err := session.AddToQueue(pick); err != nil {
			break
		}
		added++
		a.mirror(pick)
	}
	return added
}

// mirror pushes a pick onto the device queue best-effort; the device
// may be offline or between tracks, which is fine.
func (a *AutoFill) mirror(pick domain.QueuedTrack) {
	if pick.TrackURI == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), deviceMirrorTimeout)
	defer cancel()
	if err := a.player.QueueTrack(ctx, pick.TrackURI); err != nil {
		a.logger.Debug("device queue mirror failed", "track", pick.Name, "error", err)
	}
}

func avoided(prefs domain.Preferences, pick domain.QueuedTrack) bool {
	for _, artist := range prefs.AvoidArtists {
		if strings.EqualFold(artist, pick.Artist) {
			return true
		}
	}
	for _, id := range prefs.AvoidTracks {
		if id == pick.TrackID {
			return true
		}
	}
	return false
}
