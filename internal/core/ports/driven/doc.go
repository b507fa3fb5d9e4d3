// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - SourceClient / SourceClientFactory: Fetches raw items from a source
//   - EmbeddingService: Generates vector embeddings
//   - VectorIndex: Upserts and queries the external similarity index
//   - BackfillCache: Durable staging for fetched-but-not-ingested batches
//   - SyncStateStore: Per-source sync progress and ingestion leases
//   - ExpansionStore: Learned query expansion entries
//   - RunStore: Tracked ingestion run history
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven
