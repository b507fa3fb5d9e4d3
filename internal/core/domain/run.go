package domain

import "time"

// IngestReport summarises one ingestion run over one source window.
type IngestReport struct {
	// Source is the id of the source that was ingested.
	Source string

	// WindowStart and WindowEnd delimit the fetch window of the run.
	WindowStart time.Time
	WindowEnd   time.Time

	// Fetched is the number of items fetched from the source.
	Fetched int

	// Embedded is the number of records successfully embedded.
	Embedded int

	// Upserted is the number of records upserted into the index.
	Upserted int

	// Failed is the number of batches left in the failed state.
	Failed int

	// Skipped is the number of items dropped for schema violations.
	Skipped int

	// Errors holds per-batch error messages from this run.
	Errors []string
}

// IngestRun is the tracked record of one ingestion run. Every run has an
// identifier, a status, and a persisted report, so long backfills are
// observable work rather than fire-and-forget background threads.
type IngestRun struct {
	// ID is the unique run identifier.
	ID string

	// Source is the id of the source the run ingested.
	Source string

	// StartedAt is when the run started.
	StartedAt time.Time

	// EndedAt is when the run completed.
	EndedAt time.Time

	// Success indicates the run completed with no failed batches.
	Success bool

	// Error contains the failure message if Success is false.
	Error string

	// Report is the run's ingest report.
	Report IngestReport
}
