package driven

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// BackfillCache is the durable staging area for fetched-but-not-ingested
// batches. Batches must survive process restart: after any crash,
// ListPending returns exactly the set of batches that still need
// embedding and upsert, so no batch is fetched twice and none is lost.
type BackfillCache interface {
	// Put durably stores a batch. Called immediately after fetch,
	// before any embedding or upsert attempt.
	Put(ctx context.Context, batch domain.BackfillBatch) error

	// ListPending returns the batches for a source that still need
	// embedding/upsert (status pending or failed), oldest window first.
	ListPending(ctx context.Context, sourceID string) ([]domain.BackfillBatch, error)

	// MarkIngested marks a batch fully upserted. Its items no longer
	// need to be retained.
	MarkIngested(ctx context.Context, batchID string) error

	// MarkFailed marks a batch failed with the given error, retaining
	// its items for retry, and increments its attempt count.
	MarkFailed(ctx context.Context, batchID string, cause error) error

	// ListCached returns all batches for a source regardless of status,
	// for inspection and debugging.
	ListCached(ctx context.Context, sourceID string) ([]domain.BackfillBatch, error)

	// Close releases resources.
	Close() error
}
