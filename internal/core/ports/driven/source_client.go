package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// SourceClient fetches raw items from one external source system.
// Implementations (issue tracker, chat, transcript, document and
// time-tracking APIs) live outside the retrieval core; the pipeline
// consumes them only through this uniform fetch contract.
type SourceClient interface {
	// Source returns the id of the source this client serves.
	Source() string

	// FetchWindow returns one page of items that occurred within
	// [start, end). An empty pageToken requests the first page; the
	// returned nextPage token is passed back to fetch the following
	// page, and is empty when no pages remain.
	FetchWindow(ctx context.Context, start, end time.Time, pageToken string) (items []domain.RawItem, nextPage string, err error)

	// Close releases resources.
	Close() error
}

// SourceClientFactory creates a client for a configured source.
type SourceClientFactory interface {
	// Create builds a SourceClient for the given source.
	Create(ctx context.Context, source domain.Source) (SourceClient, error)
}
