package ports

import (
	"context"

	"github.com/harmonia-labs/livemix/internal/core/domain"
)

// SessionRepository persists one MixSession per user with a fixed TTL
// refreshed on every save. Get returns domain.ErrSessionNotFound for a
// missing or expired record.
type SessionRepository interface {
	Get(ctx context.Context, userID string) (*domain.MixSession, error)
	Save(ctx context.Context, s *domain.MixSession) error
	Delete(ctx context.Context, userID string) error
}
