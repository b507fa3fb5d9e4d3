package driven

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// RunStore persists ingestion run history for observability.
// Every run, scheduled or operator-triggered, is recorded here so long
// backfills remain tracked work with an identifier and an outcome.
type RunStore interface {
	// RecordRun logs a completed ingestion run.
	RecordRun(ctx context.Context, run domain.IngestRun) error

	// ListRuns returns recent runs for a source, most recent first.
	// An empty sourceID returns runs for all sources.
	ListRuns(ctx context.Context, sourceID string, limit int) ([]domain.IngestRun, error)

	// PruneHistory removes old runs beyond the retention limit.
	// Keeps the most recent 'keep' runs per source.
	PruneHistory(ctx context.Context, keep int) error
}
