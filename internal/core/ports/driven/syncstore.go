package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// SyncStateStore persists per-source sync progress and ingestion leases.
type SyncStateStore interface {
	// Get retrieves the sync status for a source.
	// Returns domain.ErrNotFound if the source has never synced.
	Get(ctx context.Context, sourceID string) (*domain.SyncStatus, error)

	// Advance moves the source's LastSync forward to newLastSync.
	// It only succeeds if newLastSync is strictly after the current
	// LastSync; otherwise it is a no-op. This enforces monotonicity.
	Advance(ctx context.Context, sourceID string, newLastSync, windowEnd time.Time) error

	// ListStale returns the statuses of sources whose LastSync is older
	// than threshold relative to now. Sources that have synced at least
	// once but are fresh are excluded.
	ListStale(ctx context.Context, threshold time.Duration, now time.Time) ([]domain.SyncStatus, error)

	// AcquireLease takes the per-source ingestion lease for owner with
	// the given ttl. Returns domain.ErrLeaseHeld if another owner holds
	// an unexpired lease. An expired lease is silently reclaimed.
	AcquireLease(ctx context.Context, sourceID, owner string, ttl time.Duration) (*domain.Lease, error)

	// ReleaseLease releases the lease if owner still holds it.
	// Releasing a lease held by someone else is a no-op.
	ReleaseLease(ctx context.Context, sourceID, owner string) error

	// GetLease returns the current lease for a source, or
	// domain.ErrNotFound if none exists.
	GetLease(ctx context.Context, sourceID string) (*domain.Lease, error)
}
