// Package normalise converts source-specific raw items into canonical
// ingest records.
//
// Normalisation is a pure function with no I/O. Heterogeneous metadata
// shapes are handled per source kind at this boundary, then stored as an
// open map downstream: known keys are canonicalised, unknown keys are
// passed through untouched. Nothing is dropped.
package normalise
