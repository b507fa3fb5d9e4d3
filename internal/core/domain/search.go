package domain

import "time"

// SearchFilters narrows a search query to structured criteria.
// Filters are translated into the vector index's native predicate so
// filtering happens at the index, not only after the fact.
type SearchFilters struct {
	// Sources restricts results to specific source ids.
	Sources []string

	// Project restricts results to a project key (e.g. a Jira project).
	Project string

	// From and To bound the occurrence timestamp. Zero values are open.
	From time.Time
	To   time.Time
}

// SearchResult is a fully reconstructed record returned by retrieval.
//
// StructuredFields carries through ALL source-specific metadata verbatim.
// It is deliberately an open map, never narrowed to a fixed struct:
// narrowing is the class of bug that once silently dropped issue status
// between the index and the result object.
type SearchResult struct {
	// ID is the source-qualified record id.
	ID string

	// Source is the id of the source the record came from.
	Source string

	// Title is the human-readable title, when the source provides one.
	Title string

	// Snippet is a short excerpt of the record text.
	Snippet string

	// URL links back to the record in its source system, when known.
	URL string

	// Author is the record's author, when known.
	Author string

	// OccurredAt is when the record occurred in the source system.
	OccurredAt time.Time

	// Score is the final relevance score after boosting.
	Score float64

	// StructuredFields is every metadata field stored on the index entry,
	// copied verbatim with no allow-list pruning.
	StructuredFields map[string]any
}
