package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrGarbonzo/secretforge/internal/domain"
	"github.com/MrGarbonzo/secretforge/internal/storage"
)

func TestAuditStore_InsertAndGetRecent(t *testing.T) {
	store := NewAuditStore()
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i := 0; i < 5; i++ {
		ev := &domain.AuditEvent{
			Kind:    domain.AuditConnectAttempt,
			Address: "secret1abc",
			Outcome: "ok",
			At:      base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Insert(ctx, ev); err != nil {
			t.Fatalf("Insert (%d) failed: %v", i, err)
		}
	}

	events, err := store.GetRecent(ctx, base.Add(2*time.Minute), 10)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}

	// Newest first
	for i := 1; i < len(events); i++ {
		if events[i].At.After(events[i-1].At) {
			t.Errorf("events out of order at %d: %v before %v", i, events[i-1].At, events[i].At)
		}
	}
}

func TestAuditStore_Limit(t *testing.T) {
	store := NewAuditStore()
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 10; i++ {
		if err := store.Insert(ctx, &domain.AuditEvent{
			Kind: domain.AuditBalanceQuery,
			At:   base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	events, err := store.GetRecent(ctx, base.Add(-time.Hour), 4)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	if !events[0].At.Equal(base.Add(9 * time.Second)) {
		t.Errorf("expected the newest event first, got %v", events[0].At)
	}
}

func TestAuditStore_InvalidInput(t *testing.T) {
	store := NewAuditStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for nil, got %v", err)
	}
	if err := store.Insert(ctx, &domain.AuditEvent{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty kind, got %v", err)
	}
}
