package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/MrGarbonzo/secretforge/internal/domain"
	"github.com/MrGarbonzo/secretforge/internal/storage"
)

// AuditStore implements storage.AuditStore using ClickHouse.
type AuditStore struct {
	conn *Conn
}

// NewAuditStore creates a new AuditStore.
func NewAuditStore(conn *Conn) *AuditStore {
	return &AuditStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AuditStore = (*AuditStore)(nil)

// Insert appends one audit event.
func (s *AuditStore) Insert(ctx context.Context, e *domain.AuditEvent) error {
	if e == nil || e.Kind == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO audit_events (
			kind, address, token, outcome, detail, latency_ms, at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		string(e.Kind), e.Address, e.Token, e.Outcome, e.Detail, e.LatencyMs, e.At,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// GetRecent retrieves up to limit events at or after since, newest first.
func (s *AuditStore) GetRecent(ctx context.Context, since time.Time, limit int) ([]*domain.AuditEvent, error) {
	query := `
		SELECT kind, address, token, outcome, detail, latency_ms, at
		FROM audit_events
		WHERE at >= ?
		ORDER BY at DESC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []*domain.AuditEvent
	for rows.Next() {
		var e domain.AuditEvent
		var kind string
		if err := rows.Scan(&kind, &e.Address, &e.Token, &e.Outcome, &e.Detail, &e.LatencyMs, &e.At); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Kind = domain.AuditKind(kind)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, nil
}
