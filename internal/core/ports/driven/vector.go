package driven

import (
	"context"
	"time"
)

// VectorIndex is the external similarity index capability.
//
// The metadata stored with each entry MUST be a superset of every field a
// downstream consumer needs for display or ranking (status, priority,
// assignee, project key, URL, type identifiers). Any field omitted at
// upsert time is permanently invisible to retrieval.
type VectorIndex interface {
	// Upsert inserts or replaces the entry keyed by its id.
	Upsert(ctx context.Context, entry IndexEntry) error

	// UpsertBatch upserts multiple entries in one call.
	UpsertBatch(ctx context.Context, entries []IndexEntry) error

	// Query finds the topK nearest entries to the query vector that
	// satisfy the filter, ordered by similarity descending.
	Query(ctx context.Context, vector []float32, filter IndexFilter, topK int) ([]IndexHit, error)

	// Delete removes an entry from the index.
	Delete(ctx context.Context, id string) error

	// Close releases resources.
	Close() error
}

// IndexEntry is a record as stored in the vector index.
type IndexEntry struct {
	// ID is the source-qualified record id.
	ID string

	// Vector is the embedding of the record text.
	Vector []float32

	// Metadata is the full open metadata map for the record.
	Metadata map[string]any
}

// IndexFilter is the index's native filter predicate.
type IndexFilter struct {
	// Sources restricts hits to specific source ids.
	Sources []string

	// Project restricts hits to a project key.
	Project string

	// From and To bound the occurrence timestamp. Zero values are open.
	From time.Time
	To   time.Time
}

// IndexHit is a scored match returned by Query.
type IndexHit struct {
	// ID is the matched entry's id.
	ID string

	// Score is the raw similarity score (higher is more similar).
	Score float64

	// Metadata is the entry's stored metadata, returned in full.
	Metadata map[string]any
}
