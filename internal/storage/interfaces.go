package storage

import (
	"context"
	"time"

	"github.com/MrGarbonzo/secretforge/internal/domain"
)

// SessionStore persists the wallet connection record per profile.
// Absence of a record means "never connected".
type SessionStore interface {
	// Upsert writes or overwrites the record for rec.ProfileID.
	Upsert(ctx context.Context, rec *domain.SessionRecord) error

	// Get retrieves the record. Returns ErrNotFound if none exists.
	Get(ctx context.Context, profileID string) (*domain.SessionRecord, error)

	// Delete removes the record. Deleting a missing record is not an error.
	Delete(ctx context.Context, profileID string) error
}

// AuditStore is an append-only log of connection attempts and token query
// outcomes, consumed by the diagnostic endpoint.
type AuditStore interface {
	// Insert appends one event.
	Insert(ctx context.Context, e *domain.AuditEvent) error

	// GetRecent retrieves up to limit events at or after since, newest first.
	GetRecent(ctx context.Context, since time.Time, limit int) ([]*domain.AuditEvent, error)
}
