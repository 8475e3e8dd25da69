package postgres

import (
	"context"
	"fmt"

	"github.com/MrGarbonzo/secretforge/internal/domain"
	"github.com/MrGarbonzo/secretforge/internal/storage"
)

// SessionStore implements storage.SessionStore using PostgreSQL.
type SessionStore struct {
	pool *Pool
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(pool *Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SessionStore = (*SessionStore)(nil)

// Upsert writes or overwrites the session record for rec.ProfileID.
func (s *SessionStore) Upsert(ctx context.Context, rec *domain.SessionRecord) error {
	if rec == nil || rec.ProfileID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO wallet_sessions (profile_id, address, connected, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (profile_id) DO UPDATE
		SET address = EXCLUDED.address,
		    connected = EXCLUDED.connected,
		    updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query, rec.ProfileID, rec.Address, rec.Connected, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert wallet session: %w", err)
	}
	return nil
}

// Get retrieves the session record. Returns ErrNotFound if none exists.
func (s *SessionStore) Get(ctx context.Context, profileID string) (*domain.SessionRecord, error) {
	query := `
		SELECT profile_id, address, connected, updated_at
		FROM wallet_sessions
		WHERE profile_id = $1
	`

	var rec domain.SessionRecord
	err := s.pool.QueryRow(ctx, query, profileID).Scan(
		&rec.ProfileID,
		&rec.Address,
		&rec.Connected,
		&rec.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get wallet session: %w", err)
	}
	return &rec, nil
}

// Delete removes the session record. Missing records are not an error.
func (s *SessionStore) Delete(ctx context.Context, profileID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM wallet_sessions WHERE profile_id = $1`, profileID)
	if err != nil {
		return fmt.Errorf("delete wallet session: %w", err)
	}
	return nil
}
