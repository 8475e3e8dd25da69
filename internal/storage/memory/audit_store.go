package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrGarbonzo/secretforge/internal/domain"
	"github.com/MrGarbonzo/secretforge/internal/storage"
)

// AuditStore is an in-memory implementation of storage.AuditStore.
type AuditStore struct {
	mu     sync.RWMutex
	events []*domain.AuditEvent
}

// NewAuditStore creates a new in-memory audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

// Insert appends one audit event.
func (s *AuditStore) Insert(_ context.Context, e *domain.AuditEvent) error {
	if e == nil || e.Kind == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	eventCopy := *e
	s.events = append(s.events, &eventCopy)
	return nil
}

// GetRecent retrieves up to limit events at or after since, newest first.
func (s *AuditStore) GetRecent(_ context.Context, since time.Time, limit int) ([]*domain.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AuditEvent
	for _, e := range s.events {
		if !e.At.Before(since) {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].At.After(result[j].At)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.AuditStore = (*AuditStore)(nil)
