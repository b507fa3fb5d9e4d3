package driven

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// ExpansionStore persists learned query expansion entries.
// Read-mostly at query time, write-light (counters) after each query.
type ExpansionStore interface {
	// Lookup returns the entry for a term, or domain.ErrNotFound.
	Lookup(ctx context.Context, term string) (*domain.ExpansionEntry, error)

	// Upsert stores or updates an entry keyed by term.
	Upsert(ctx context.Context, entry domain.ExpansionEntry) error

	// List returns all entries ordered by term.
	List(ctx context.Context) ([]domain.ExpansionEntry, error)

	// RecordUse increments the usage counter for a term.
	RecordUse(ctx context.Context, term string) error

	// RecordSuccess increments the success counter for a term.
	RecordSuccess(ctx context.Context, term string) error
}
