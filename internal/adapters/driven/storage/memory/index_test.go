package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

func TestVectorIndex_Upsert_Idempotent(t *testing.T) {
	idx := NewVectorIndex()
	ctx := context.Background()

	first := driven.IndexEntry{
		ID:       "jira:TICKET-1",
		Vector:   []float32{1, 0},
		Metadata: map[string]any{"source": "jira", "status": "Open"},
	}
	second := driven.IndexEntry{
		ID:       "jira:TICKET-1",
		Vector:   []float32{0, 1},
		Metadata: map[string]any{"source": "jira", "status": "Closed"},
	}

	require.NoError(t, idx.Upsert(ctx, first))
	require.NoError(t, idx.Upsert(ctx, second))

	// Same id twice: exactly one entry, latest values win.
	assert.Equal(t, 1, idx.Len())
	entry, ok := idx.Get("jira:TICKET-1")
	require.True(t, ok)
	assert.Equal(t, "Closed", entry.Metadata["status"])
}

func TestVectorIndex_Query_SourceFilter(t *testing.T) {
	idx := NewVectorIndex()
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, driven.IndexEntry{
		ID: "jira:1", Vector: []float32{1, 0},
		Metadata: map[string]any{"source": "jira"},
	}))
	require.NoError(t, idx.Upsert(ctx, driven.IndexEntry{
		ID: "slack:1", Vector: []float32{1, 0},
		Metadata: map[string]any{"source": "slack"},
	}))

	hits, err := idx.Query(ctx, []float32{1, 0}, driven.IndexFilter{Sources: []string{"jira"}}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "jira:1", hits[0].ID)
}

func TestVectorIndex_Query_DateFilter(t *testing.T) {
	idx := NewVectorIndex()
	ctx := context.Background()

	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, idx.Upsert(ctx, driven.IndexEntry{
		ID: "a", Vector: []float32{1, 0},
		Metadata: map[string]any{"occurred_at": old.Format(time.RFC3339)},
	}))
	require.NoError(t, idx.Upsert(ctx, driven.IndexEntry{
		ID: "b", Vector: []float32{1, 0},
		Metadata: map[string]any{"occurred_at": recent.Format(time.RFC3339)},
	}))

	hits, err := idx.Query(ctx, []float32{1, 0}, driven.IndexFilter{From: recent.Add(-time.Hour)}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ID)
}

func TestVectorIndex_Query_ReturnsFullMetadata(t *testing.T) {
	idx := NewVectorIndex()
	ctx := context.Background()

	meta := map[string]any{
		"source":   "jira",
		"status":   "Closed",
		"priority": "Medium",
		"custom":   "kept",
	}
	require.NoError(t, idx.Upsert(ctx, driven.IndexEntry{ID: "jira:1", Vector: []float32{1}, Metadata: meta}))

	hits, err := idx.Query(ctx, []float32{1}, driven.IndexFilter{}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	// Every stored field comes back; mutating the hit must not touch the index.
	assert.Equal(t, meta, hits[0].Metadata)
	hits[0].Metadata["status"] = "mutated"
	again, _ := idx.Query(ctx, []float32{1}, driven.IndexFilter{}, 1)
	assert.Equal(t, "Closed", again[0].Metadata["status"])
}

func TestEmbedder_Deterministic(t *testing.T) {
	e := NewEmbedder()
	ctx := context.Background()

	a, err := e.Embed(ctx, "status of TICKET-623")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "status of TICKET-623")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// Shared tokens produce similar vectors; disjoint ones do not.
	c, err := e.Embed(ctx, "status of TICKET-999")
	require.NoError(t, err)
	d, err := e.Embed(ctx, "quarterly revenue forecast")
	require.NoError(t, err)
	assert.Greater(t, cosine(a, c), cosine(a, d))
}
