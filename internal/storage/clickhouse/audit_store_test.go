package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrGarbonzo/secretforge/internal/domain"
	"github.com/MrGarbonzo/secretforge/internal/storage"
)

func TestAuditStore_InsertAndGetRecent(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAuditStore(conn)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	kinds := []domain.AuditKind{
		domain.AuditConnectAttempt,
		domain.AuditKeyResolution,
		domain.AuditBalanceQuery,
	}
	for i, kind := range kinds {
		ev := &domain.AuditEvent{
			Kind:      kind,
			Address:   "secret1k0jntykt7e4g3y88ltc60czgjuqdy4c9e8fzek",
			Token:     "sSCRT",
			Outcome:   "ok",
			LatencyMs: int64(100 * (i + 1)),
			At:        base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.Insert(ctx, ev))
	}

	events, err := store.GetRecent(ctx, base.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, events, 3)

	// Newest first
	assert.Equal(t, domain.AuditBalanceQuery, events[0].Kind)
	assert.Equal(t, domain.AuditConnectAttempt, events[2].Kind)
	assert.Equal(t, "sSCRT", events[0].Token)
	assert.Equal(t, int64(300), events[0].LatencyMs)
}

func TestAuditStore_SinceFilterAndLimit(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAuditStore(conn)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i := 0; i < 10; i++ {
		require.NoError(t, store.Insert(ctx, &domain.AuditEvent{
			Kind:    domain.AuditBalanceQuery,
			Outcome: "ok",
			At:      base.Add(time.Duration(i) * time.Second),
		}))
	}

	events, err := store.GetRecent(ctx, base.Add(5*time.Second), 10)
	require.NoError(t, err)
	assert.Len(t, events, 5)

	events, err = store.GetRecent(ctx, base.Add(-time.Hour), 3)
	require.NoError(t, err)
	assert.Len(t, events, 3)
	assert.WithinDuration(t, base.Add(9*time.Second), events[0].At, time.Millisecond)
}

func TestAuditStore_InvalidInput(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewAuditStore(conn)
	ctx := context.Background()

	assert.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Insert(ctx, &domain.AuditEvent{}), storage.ErrInvalidInput)
}
