// Package sqlite provides a SQLite-backed SessionRepository for
// single-node deployments without a Valkey instance. TTL semantics are
// emulated with an expires_at column checked on read and refreshed on
// write.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harmonia-labs/livemix/internal/core/domain"
	"github.com/harmonia-labs/livemix/internal/core/ports"
	_ "github.com/mattn/go-sqlite3" // driver
)

// Store implements ports.SessionRepository on SQLite.
type Store struct {
	db  *sql.DB
	ttl time.Duration
}

var _ ports.SessionRepository = (*Store)(nil)

// NewStore opens (or creates) the database at storagePath and runs the
// schema migration. The ttl is refreshed on every save.
func NewStore(storagePath string, ttl time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("sqlite store: ping: %w", err)
	}
	if ttl <= 0 {
		ttl = domain.SessionTTL
	}

	s := &Store{db: db, ttl: ttl}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("sqlite store: migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS mix_sessions (
			user_id    TEXT PRIMARY KEY,
			data       TEXT NOT NULL,
			expires_at INTEGER NOT NULL
		)
	`)
	return err
}

func (s *Store) Get(ctx context.Context, userID string) (*domain.MixSession, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT data, expires_at FROM mix_sessions WHERE user_id = ?", userID)

	var raw string
	var expiresAt int64
	if err := row.Scan(&raw, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("sqlite store: get: %w", err)
	}

	if time.Now().Unix() >= expiresAt {
		// Expired record: reap it lazily and report not-found.
		_, _ = s.db.ExecContext(ctx, "DELETE FROM mix_sessions WHERE user_id = ?", userID)
		return nil, domain.ErrSessionNotFound
	}

	session := new(domain.MixSession)
	if err := json.Unmarshal([]byte(raw), session); err != nil {
		return nil, fmt.Errorf("sqlite store: decode session: %w", err)
	}
	return session, nil
}

func (s *Store) Save(ctx context.Context, session *domain.MixSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("sqlite store: encode session: %w", err)
	}

	expiresAt := time.Now().Add(s.ttl).Unix()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO mix_sessions (user_id, data, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at
	`, session.UserID, string(raw), expiresAt)
	if err != nil {
		return fmt.Errorf("sqlite store: save: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM mix_sessions WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("sqlite store: delete: %w", err)
	}
	return nil
}
