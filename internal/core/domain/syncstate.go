package domain

import "time"

// SyncStatus tracks the synchronisation progress for a source.
// One row per source, mutated only after a batch's items are confirmed
// upserted. LastSync never regresses; updates are monotonic.
type SyncStatus struct {
	// Source is the id of the source this status belongs to.
	Source string

	// LastSync is when the last fully successful sync completed,
	// expressed as the end of the synced window.
	LastSync time.Time

	// LastWindowEnd is the end of the last completed batch window.
	LastWindowEnd time.Time
}

// Age returns the elapsed time since the last successful sync.
// A zero LastSync (never synced) yields a very large age.
func (s SyncStatus) Age(now time.Time) time.Duration {
	if s.LastSync.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	return now.Sub(s.LastSync)
}

// IsStale reports whether the source's last sync is older than threshold.
// A source that has never synced is always stale.
func (s SyncStatus) IsStale(now time.Time, threshold time.Duration) bool {
	if s.LastSync.IsZero() {
		return true
	}
	return now.Sub(s.LastSync) > threshold
}

// Lease is a per-source mutual-exclusion record acquired before an
// ingestion run starts and released when it completes. An expired lease
// is reclaimable, which covers crashed runs.
type Lease struct {
	// Source is the id of the source the lease guards.
	Source string

	// Owner identifies the process/run holding the lease.
	Owner string

	// AcquiredAt is when the lease was taken.
	AcquiredAt time.Time

	// ExpiresAt is when the lease becomes reclaimable.
	ExpiresAt time.Time
}

// Expired reports whether the lease has passed its expiry.
func (l Lease) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}
