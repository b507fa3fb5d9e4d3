package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

func TestSyncStateStore_Advance_Monotonic(t *testing.T) {
	store := NewSyncStateStore()
	ctx := context.Background()

	t1 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	require.NoError(t, store.Advance(ctx, "jira", t2, t2))

	// Regressing to an earlier time is a no-op, not an error.
	require.NoError(t, store.Advance(ctx, "jira", t1, t1))

	status, err := store.Get(ctx, "jira")
	require.NoError(t, err)
	assert.Equal(t, t2, status.LastSync)

	// Equal timestamps are also a no-op.
	require.NoError(t, store.Advance(ctx, "jira", t2, t2))
	status, err = store.Get(ctx, "jira")
	require.NoError(t, err)
	assert.Equal(t, t2, status.LastSync)
}

func TestSyncStateStore_Get_NotFound(t *testing.T) {
	store := NewSyncStateStore()
	_, err := store.Get(context.Background(), "never-synced")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSyncStateStore_ListStale(t *testing.T) {
	store := NewSyncStateStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Advance(ctx, "fresh", now.Add(-1*time.Hour), now))
	require.NoError(t, store.Advance(ctx, "stale", now.Add(-48*time.Hour), now))

	stale, err := store.ListStale(ctx, 24*time.Hour, now)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "stale", stale[0].Source)
}

func TestSyncStateStore_AcquireLease_Conflict(t *testing.T) {
	store := NewSyncStateStore()
	ctx := context.Background()

	_, err := store.AcquireLease(ctx, "jira", "run-1", time.Minute)
	require.NoError(t, err)

	// Second owner cannot take an unexpired lease.
	_, err = store.AcquireLease(ctx, "jira", "run-2", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLeaseHeld)

	// Same owner can re-acquire (extends the lease).
	_, err = store.AcquireLease(ctx, "jira", "run-1", time.Minute)
	assert.NoError(t, err)
}

func TestSyncStateStore_AcquireLease_ReclaimsExpired(t *testing.T) {
	store := NewSyncStateStore()
	ctx := context.Background()

	_, err := store.AcquireLease(ctx, "jira", "crashed-run", -time.Second)
	require.NoError(t, err)

	lease, err := store.AcquireLease(ctx, "jira", "run-2", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "run-2", lease.Owner)
}

func TestSyncStateStore_ReleaseLease_OnlyOwner(t *testing.T) {
	store := NewSyncStateStore()
	ctx := context.Background()

	_, err := store.AcquireLease(ctx, "jira", "run-1", time.Minute)
	require.NoError(t, err)

	// A non-owner release is a no-op.
	require.NoError(t, store.ReleaseLease(ctx, "jira", "someone-else"))
	lease, err := store.GetLease(ctx, "jira")
	require.NoError(t, err)
	assert.Equal(t, "run-1", lease.Owner)

	require.NoError(t, store.ReleaseLease(ctx, "jira", "run-1"))
	_, err = store.GetLease(ctx, "jira")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
