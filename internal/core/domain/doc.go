// Package domain defines the core business entities for Recall.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - IngestRecord: A canonical record produced by normalisation
//   - BackfillBatch: A durably staged page of fetched records
//   - SyncStatus: Per-source sync progress and staleness bookkeeping
//   - SearchResult: A fully reconstructed, metadata-complete search hit
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
