package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrGarbonzo/secretforge/internal/domain"
	"github.com/MrGarbonzo/secretforge/internal/storage"
)

func TestSessionStore_UpsertGetDelete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSessionStore(pool)
	ctx := context.Background()

	rec := &domain.SessionRecord{
		ProfileID: "p1",
		Address:   "secret1k0jntykt7e4g3y88ltc60czgjuqdy4c9e8fzek",
		Connected: true,
		UpdatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, store.Upsert(ctx, rec))

	got, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, rec.ProfileID, got.ProfileID)
	assert.Equal(t, rec.Address, got.Address)
	assert.True(t, got.Connected)
	assert.WithinDuration(t, rec.UpdatedAt, got.UpdatedAt, time.Millisecond)

	// Upsert overwrites in place.
	rec.Connected = false
	rec.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, store.Upsert(ctx, rec))

	got, err = store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, got.Connected)
	assert.Equal(t, rec.Address, got.Address)

	require.NoError(t, store.Delete(ctx, "p1"))

	_, err = store.Get(ctx, "p1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Deleting a missing record is not an error.
	require.NoError(t, store.Delete(ctx, "p1"))
}

func TestSessionStore_GetMissing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSessionStore(pool)

	_, err := store.Get(context.Background(), "never-connected")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSessionStore_ProfilesAreIndependent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSessionStore(pool)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &domain.SessionRecord{
		ProfileID: "p1", Address: "addr1", Connected: true, UpdatedAt: time.Now().UTC(),
	}))
	require.NoError(t, store.Upsert(ctx, &domain.SessionRecord{
		ProfileID: "p2", Address: "addr2", Connected: false, UpdatedAt: time.Now().UTC(),
	}))

	got1, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	got2, err := store.Get(ctx, "p2")
	require.NoError(t, err)

	assert.Equal(t, "addr1", got1.Address)
	assert.Equal(t, "addr2", got2.Address)
	assert.True(t, got1.Connected)
	assert.False(t, got2.Connected)
}

func TestSessionStore_InvalidInput(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSessionStore(pool)
	ctx := context.Background()

	assert.ErrorIs(t, store.Upsert(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Upsert(ctx, &domain.SessionRecord{}), storage.ErrInvalidInput)
}
