package credstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrGarbonzo/secretforge/internal/domain"
	"github.com/MrGarbonzo/secretforge/internal/storage"
)

// Store combines the in-memory viewing key cache with the durable
// session record. The key cache is process-local and never persisted;
// the session record survives restarts so auto-connect can find the
// last connected address.
type Store struct {
	Keys     *KeyCache
	sessions storage.SessionStore
}

// New creates a credential store backed by the given session store.
func New(sessions storage.SessionStore) *Store {
	return &Store{
		Keys:     NewKeyCache(),
		sessions: sessions,
	}
}

// PersistConnection records that the profile is connected with the
// given address.
func (s *Store) PersistConnection(ctx context.Context, profileID, address string) error {
	rec := &domain.SessionRecord{
		ProfileID: profileID,
		Address:   address,
		Connected: true,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.sessions.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("persist connection: %w", err)
	}
	return nil
}

// ClearConnection marks the profile as disconnected while keeping the
// last known address. Viewing keys stay cached.
func (s *Store) ClearConnection(ctx context.Context, profileID string) error {
	rec, err := s.sessions.Get(ctx, profileID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load session: %w", err)
	}

	rec.Connected = false
	rec.UpdatedAt = time.Now().UTC()
	if err := s.sessions.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("clear connection: %w", err)
	}
	return nil
}

// LoadPersistedConnection returns the session record for the profile.
// A missing record comes back as (zero record, false, nil).
func (s *Store) LoadPersistedConnection(ctx context.Context, profileID string) (domain.SessionRecord, bool, error) {
	rec, err := s.sessions.Get(ctx, profileID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.SessionRecord{}, false, nil
		}
		return domain.SessionRecord{}, false, fmt.Errorf("load session: %w", err)
	}
	return *rec, true, nil
}
