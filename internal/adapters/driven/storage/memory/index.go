package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is an in-memory implementation of driven.VectorIndex using
// exact cosine similarity. It mirrors the external index's contract
// closely enough to verify idempotent upserts, native filtering, and
// metadata fidelity in tests.
type VectorIndex struct {
	mu      sync.RWMutex
	entries map[string]driven.IndexEntry

	// Upserts counts individual upsert operations, for crash-safety
	// tests that assert exactly-once resume behaviour.
	upserts int
}

// NewVectorIndex creates a new in-memory vector index.
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{entries: make(map[string]driven.IndexEntry)}
}

// Upsert inserts or replaces the entry keyed by its id.
func (x *VectorIndex) Upsert(_ context.Context, entry driven.IndexEntry) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries[entry.ID] = entry
	x.upserts++
	return nil
}

// UpsertBatch upserts multiple entries.
func (x *VectorIndex) UpsertBatch(ctx context.Context, entries []driven.IndexEntry) error {
	for _, e := range entries {
		if err := x.Upsert(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Query finds the topK nearest entries satisfying the filter.
func (x *VectorIndex) Query(_ context.Context, vector []float32, filter driven.IndexFilter, topK int) ([]driven.IndexHit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var hits []driven.IndexHit
	for _, entry := range x.entries {
		if !matchesFilter(entry.Metadata, filter) {
			continue
		}
		meta := make(map[string]any, len(entry.Metadata))
		for k, v := range entry.Metadata {
			meta[k] = v
		}
		hits = append(hits, driven.IndexHit{
			ID:       entry.ID,
			Score:    cosine(vector, entry.Vector),
			Metadata: meta,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Delete removes an entry.
func (x *VectorIndex) Delete(_ context.Context, id string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.entries, id)
	return nil
}

// Close releases resources.
func (x *VectorIndex) Close() error {
	return nil
}

// Len returns the number of indexed entries.
func (x *VectorIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// UpsertCount returns the total number of upsert operations performed.
func (x *VectorIndex) UpsertCount() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.upserts
}

// Get returns the stored entry for an id, or false.
func (x *VectorIndex) Get(id string) (driven.IndexEntry, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	entry, ok := x.entries[id]
	return entry, ok
}

// matchesFilter applies the index's native filter predicate to an
// entry's metadata.
func matchesFilter(meta map[string]any, filter driven.IndexFilter) bool {
	if len(filter.Sources) > 0 {
		source, _ := meta["source"].(string)
		found := false
		for _, s := range filter.Sources {
			if s == source {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if filter.Project != "" {
		project, _ := meta["project"].(string)
		if project != filter.Project {
			return false
		}
	}

	if !filter.From.IsZero() || !filter.To.IsZero() {
		raw, _ := meta["occurred_at"].(string)
		occurred, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return false
		}
		if !filter.From.IsZero() && occurred.Before(filter.From) {
			return false
		}
		if !filter.To.IsZero() && occurred.After(filter.To) {
			return false
		}
	}

	return true
}

// cosine returns the cosine similarity of two vectors.
func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
