package memory

import (
	"context"
	"sync"

	"github.com/MrGarbonzo/secretforge/internal/domain"
	"github.com/MrGarbonzo/secretforge/internal/storage"
)

// SessionStore is an in-memory implementation of storage.SessionStore.
type SessionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SessionRecord // keyed by profile_id
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		data: make(map[string]*domain.SessionRecord),
	}
}

// Upsert writes or overwrites the record for rec.ProfileID.
func (s *SessionStore) Upsert(_ context.Context, rec *domain.SessionRecord) error {
	if rec == nil || rec.ProfileID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to prevent external mutation
	recCopy := *rec
	s.data[rec.ProfileID] = &recCopy
	return nil
}

// Get retrieves the record. Returns ErrNotFound if none exists.
func (s *SessionStore) Get(_ context.Context, profileID string) (*domain.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.data[profileID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	recCopy := *rec
	return &recCopy, nil
}

// Delete removes the record. Missing records are not an error.
func (s *SessionStore) Delete(_ context.Context, profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, profileID)
	return nil
}

// Verify interface compliance at compile time.
var _ storage.SessionStore = (*SessionStore)(nil)
