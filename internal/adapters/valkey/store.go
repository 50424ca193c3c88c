// Package valkey provides the primary SessionRepository backed by a
// Valkey instance, using native key TTLs so idle sessions expire on
// their own.
package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/harmonia-labs/livemix/internal/core/domain"
	"github.com/harmonia-labs/livemix/internal/core/ports"
)

const keyPrefix = "livemix:session:"

// Store implements ports.SessionRepository on Valkey.
type Store struct {
	client valkey.Client
	ttl    time.Duration
}

var _ ports.SessionRepository = (*Store)(nil)

// NewStore connects to the given address. The ttl is refreshed on every
// save.
func NewStore(addr string, ttl time.Duration) (*Store, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("valkey store: connect: %w", err)
	}
	if ttl <= 0 {
		ttl = domain.SessionTTL
	}
	return &Store{client: client, ttl: ttl}, nil
}

// Close releases the connection.
func (s *Store) Close() {
	s.client.Close()
}

func (s *Store) Get(ctx context.Context, userID string) (*domain.MixSession, error) {
	raw, err := s.client.Do(ctx, s.client.B().Get().Key(keyPrefix+userID).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("valkey store: get: %w", err)
	}

	session := new(domain.MixSession)
	if err := json.Unmarshal(raw, session); err != nil {
		return nil, fmt.Errorf("valkey store: decode session: %w", err)
	}
	return session, nil
}

func (s *Store) Save(ctx context.Context, session *domain.MixSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("valkey store: encode session: %w", err)
	}

	cmd := s.client.B().Set().Key(keyPrefix + session.UserID).Value(string(raw)).Ex(s.ttl).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("valkey store: save: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, userID string) error {
	if err := s.client.Do(ctx, s.client.B().Del().Key(keyPrefix+userID).Build()).Error(); err != nil {
		return fmt.Errorf("valkey store: delete: %w", err)
	}
	return nil
}
