package domain

import "time"

// BatchStatus is the lifecycle state of a BackfillBatch.
type BatchStatus string

// Batch lifecycle states.
const (
	// BatchPending means the batch is fetched and durably cached but not
	// yet embedded and upserted.
	BatchPending BatchStatus = "pending"

	// BatchIngested means every item in the batch was upserted.
	BatchIngested BatchStatus = "ingested"

	// BatchFailed means embedding or upsert failed; the items are
	// retained for retry on the next run.
	BatchFailed BatchStatus = "failed"
)

// BackfillBatch is one durably staged page of fetched records.
//
// A batch is persisted to the backfill cache immediately after fetch,
// before any embedding or upsert attempt. This ordering is the
// crash-safety invariant: a crash after fetch but before upsert loses
// no fetched data, only wall-clock time.
type BackfillBatch struct {
	// ID is the unique batch identifier.
	ID string

	// Source is the id of the source the batch was fetched from.
	Source string

	// WindowStart and WindowEnd delimit the fetch window the batch
	// belongs to. Failed batches are retried over this original window,
	// never re-fetched.
	WindowStart time.Time
	WindowEnd   time.Time

	// Items are the normalised records in this batch.
	Items []IngestRecord

	// Status is the batch lifecycle state.
	Status BatchStatus

	// Attempts counts embed/upsert attempts so far.
	Attempts int

	// LastError holds the most recent failure message, if any.
	LastError string

	// FetchedAt is when the batch was fetched and cached.
	FetchedAt time.Time
}
