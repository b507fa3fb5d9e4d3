package driving

import "context"

// Scheduler periodically triggers ingestion runs for due sources,
// enforcing at most one concurrent run per source.
type Scheduler interface {
	// Start begins the scheduling loop.
	// Blocks until the context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops the scheduler, waiting for running
	// ingestions to complete.
	Stop() error
}
