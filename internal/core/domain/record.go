package domain

import "time"

// RawItem is a single item fetched from a source system, before
// normalisation. It must carry a source-native stable id, free text,
// a structured metadata map, and an occurrence timestamp.
type RawItem struct {
	// NativeID is the source-native stable identifier (e.g. an issue key,
	// a message id). Required.
	NativeID string

	// Text is the free text content. Required.
	Text string

	// Metadata contains source-specific key-value pairs.
	Metadata map[string]any

	// OccurredAt is when the item occurred in the source system. Required.
	OccurredAt time.Time
}

// IngestRecord is the canonical representation of an item after
// normalisation, ready for embedding and upsert.
type IngestRecord struct {
	// ID is source-qualified and globally unique. It is deterministic
	// from source id + native id, so re-ingesting the same item is an
	// idempotent overwrite, never a duplicate.
	ID string

	// Source is the id of the source that produced this record.
	Source string

	// Text is the normalised text used for embedding.
	Text string

	// Metadata carries every field a downstream consumer needs for
	// display or ranking. Any field omitted here is permanently invisible
	// to retrieval.
	Metadata map[string]any

	// OccurredAt is when the record occurred in the source system.
	OccurredAt time.Time
}

// RecordID builds the deterministic, source-qualified record identifier.
func RecordID(sourceID, nativeID string) string {
	return sourceID + ":" + nativeID
}
