package driving

import (
	"context"
	"time"
)

// StatusReporter exposes per-source freshness for operators and dashboards.
// A stale source is reported as a visible flag, never hidden.
type StatusReporter interface {
	// SourceStatuses returns the freshness of every configured source.
	SourceStatuses(ctx context.Context) ([]SourceStatus, error)
}

// SourceStatus is the operator-visible freshness of one source.
type SourceStatus struct {
	// Source is the source id.
	Source string

	// LastSync is when the source last completed a full sync.
	// Zero if it has never synced.
	LastSync time.Time

	// Age is the elapsed time since LastSync.
	Age time.Duration

	// IsStale indicates Age exceeds the source's staleness threshold.
	IsStale bool

	// Running indicates an ingestion run is in progress.
	Running bool

	// StuckSince is set when a run has exceeded the run timeout without
	// completing. The run is force-reported, not force-killed.
	StuckSince time.Time

	// PendingBatches is the number of cached batches awaiting ingestion.
	PendingBatches int
}
