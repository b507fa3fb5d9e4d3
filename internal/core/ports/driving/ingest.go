package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// Ingestor runs the ingestion pipeline for sources.
type Ingestor interface {
	// RunIngestion ingests one source over the given window. A zero
	// window means "compute from sync state": [last_sync, now], capped
	// to the source's maximum span. The report is returned even when
	// some batches failed; err is non-nil only when the run could not
	// proceed at all (unknown source, lease held, fetch unreachable).
	RunIngestion(ctx context.Context, sourceID string, window domain.Window) (*domain.IngestReport, error)

	// RunAll ingests every configured source sequentially, collecting
	// per-source errors. One source's failure never blocks another's run.
	RunAll(ctx context.Context) (map[string]*domain.IngestReport, error)

	// Status returns the live status of a source's ingestion, and false
	// when no run is in flight.
	Status(sourceID string) (IngestStatus, bool)
}

// IngestStatus is the live state of one source's ingestion.
type IngestStatus struct {
	// SourceID identifies the source.
	SourceID string

	// Running indicates an ingestion run is currently in progress.
	Running bool

	// StartedAt is when the current run started, if Running.
	StartedAt time.Time

	// Fetched and Upserted are live counters for the current run.
	Fetched  int
	Upserted int

	// ErrorCount is the number of errors encountered so far.
	ErrorCount int
}
