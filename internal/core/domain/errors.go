package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedKind indicates an unknown source kind.
	ErrUnsupportedKind = errors.New("unsupported source kind")

	// Ingestion Errors.

	// ErrSyncInProgress indicates an ingestion run for the source is
	// already running. The per-source lease was not acquired.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrFetchFailed indicates the source API was unreachable or rate
	// limited. The run retries with backoff and sync state is not advanced.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrEmbeddingFailed indicates the embedding service rejected a batch
	// after retries. The batch is marked failed and retried on the next run.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured or unreachable.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrIndexUnavailable indicates the vector index service is down.
	// Affects both ingestion upserts and retrieval queries; always surfaced,
	// never masked.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrRetrievalUnavailable indicates a search could not be executed.
	// Callers must distinguish this from an empty result set: an empty set
	// means nothing relevant was indexed, this error means retrieval failed.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrSchemaViolation indicates a fetched item is missing a required
	// field (stable id, text, or timestamp). The item is logged and
	// skipped; the batch is not failed.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrStaleSync indicates a source's last successful sync is older than
	// its staleness threshold. Informational: drives alerting, not a
	// hard failure.
	ErrStaleSync = errors.New("sync state is stale")

	// ErrLeaseHeld indicates another owner holds the ingestion lease for
	// the source and it has not expired.
	ErrLeaseHeld = errors.New("lease held by another owner")
)
