package driving

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// Retriever answers natural-language queries with ranked, attributable
// results reconstructed from the vector index.
type Retriever interface {
	// Search returns up to topK results ordered by relevance score
	// descending, ties broken by occurrence time (most recent first).
	// When the index service is unavailable it returns
	// domain.ErrRetrievalUnavailable, never a silent empty result set.
	Search(ctx context.Context, query string, filters domain.SearchFilters, topK int) ([]domain.SearchResult, error)
}
