package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// syncStateStore implements driven.SyncStateStore.
type syncStateStore struct {
	store *Store
}

var _ driven.SyncStateStore = (*syncStateStore)(nil)

// Get retrieves the sync status for a source.
func (s *syncStateStore) Get(ctx context.Context, sourceID string) (*domain.SyncStatus, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT source_id, last_sync, last_window_end
		FROM sync_status WHERE source_id = ?
	`, sourceID)

	var (
		id                  string
		lastSync, windowEnd int64
	)
	if err := row.Scan(&id, &lastSync, &windowEnd); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sync status for %q: %w", sourceID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scanning sync status: %w", err)
	}

	return &domain.SyncStatus{
		Source:        id,
		LastSync:      time.Unix(0, lastSync),
		LastWindowEnd: time.Unix(0, windowEnd),
	}, nil
}

// Advance moves LastSync forward. The WHERE clause on the conflict
// update makes regressions a no-op, so the marker is monotonic even
// under concurrent writers.
func (s *syncStateStore) Advance(ctx context.Context, sourceID string, newLastSync, windowEnd time.Time) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sync_status (source_id, last_sync, last_window_end)
		VALUES (?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			last_sync = excluded.last_sync,
			last_window_end = excluded.last_window_end
		WHERE excluded.last_sync > sync_status.last_sync
	`, sourceID, newLastSync.UnixNano(), windowEnd.UnixNano())
	if err != nil {
		return fmt.Errorf("advancing sync status for %q: %w", sourceID, err)
	}
	return nil
}

// ListStale returns sources whose last sync is older than threshold.
func (s *syncStateStore) ListStale(ctx context.Context, threshold time.Duration, now time.Time) ([]domain.SyncStatus, error) {
	cutoff := now.Add(-threshold).UnixNano()
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT source_id, last_sync, last_window_end
		FROM sync_status WHERE last_sync < ?
		ORDER BY source_id
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("querying stale sources: %w", err)
	}
	defer rows.Close()

	var stale []domain.SyncStatus
	for rows.Next() {
		var (
			id                  string
			lastSync, windowEnd int64
		)
		if err := rows.Scan(&id, &lastSync, &windowEnd); err != nil {
			return nil, fmt.Errorf("scanning stale source: %w", err)
		}
		stale = append(stale, domain.SyncStatus{
			Source:        id,
			LastSync:      time.Unix(0, lastSync),
			LastWindowEnd: time.Unix(0, windowEnd),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stale sources: %w", err)
	}
	return stale, nil
}

// AcquireLease takes the per-source ingestion lease inside a write
// transaction so two processes can never both win.
func (s *syncStateStore) AcquireLease(ctx context.Context, sourceID, owner string, ttl time.Duration) (*domain.Lease, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning lease transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	row := tx.QueryRowContext(ctx, `
		SELECT owner, expires_at FROM sync_lease WHERE source_id = ?
	`, sourceID)

	var (
		holder    string
		expiresAt int64
	)
	err = row.Scan(&holder, &expiresAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// no lease yet
	case err != nil:
		return nil, fmt.Errorf("scanning lease: %w", err)
	default:
		held := time.Unix(0, expiresAt).After(now)
		if held && holder != owner {
			return nil, fmt.Errorf("lease for %q held by %s: %w", sourceID, holder, domain.ErrLeaseHeld)
		}
	}

	lease := &domain.Lease{
		Source:     sourceID,
		Owner:      owner,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sync_lease (source_id, owner, acquired_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			owner = excluded.owner,
			acquired_at = excluded.acquired_at,
			expires_at = excluded.expires_at
	`, sourceID, owner, lease.AcquiredAt.UnixNano(), lease.ExpiresAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("writing lease: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing lease: %w", err)
	}
	return lease, nil
}

// ReleaseLease releases the lease if owner still holds it.
func (s *syncStateStore) ReleaseLease(ctx context.Context, sourceID, owner string) error {
	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM sync_lease WHERE source_id = ? AND owner = ?
	`, sourceID, owner)
	if err != nil {
		return fmt.Errorf("releasing lease for %q: %w", sourceID, err)
	}
	return nil
}

// GetLease returns the current lease for a source.
func (s *syncStateStore) GetLease(ctx context.Context, sourceID string) (*domain.Lease, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT source_id, owner, acquired_at, expires_at
		FROM sync_lease WHERE source_id = ?
	`, sourceID)

	var (
		id, owner             string
		acquiredAt, expiresAt int64
	)
	if err := row.Scan(&id, &owner, &acquiredAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lease for %q: %w", sourceID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scanning lease: %w", err)
	}

	return &domain.Lease{
		Source:     id,
		Owner:      owner,
		AcquiredAt: time.Unix(0, acquiredAt),
		ExpiresAt:  time.Unix(0, expiresAt),
	}, nil
}
