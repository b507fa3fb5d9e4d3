package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/normalise"
)

type failingIndex struct {
	driven.VectorIndex
}

func (f *failingIndex) Query(context.Context, []float32, driven.IndexFilter, int) ([]driven.IndexHit, error) {
	return nil, errors.New("connection refused")
}

// seedIndex normalises an item and writes it to the index with its
// full metadata, the way the ingestion pipeline does.
func seedIndex(t *testing.T, embedder *memory.Embedder, index *memory.VectorIndex, src domain.Source, item domain.RawItem) {
	t.Helper()
	record, err := normalise.Record(src, item)
	require.NoError(t, err)
	vec, err := embedder.Embed(context.Background(), record.Text)
	require.NoError(t, err)
	require.NoError(t, index.Upsert(context.Background(), driven.IndexEntry{
		ID:       record.ID,
		Vector:   vec,
		Metadata: record.Metadata,
	}))
}

func newTestRetriever(t *testing.T, cfg RetrievalConfig, expansions driven.ExpansionStore) (*RetrievalService, *memory.Embedder, *memory.VectorIndex) {
	t.Helper()
	embedder := memory.NewEmbedder()
	index := memory.NewVectorIndex()
	svc, err := NewRetrievalService(cfg, embedder, index, expansions)
	require.NoError(t, err)
	return svc, embedder, index
}

func TestSearch_ReconstructsFullStructuredFields(t *testing.T) {
	ctx := context.Background()
	svc, embedder, index := newTestRetriever(t, RetrievalConfig{}, nil)

	src := domain.Source{ID: "jira", Kind: domain.KindIssue}
	seedIndex(t, embedder, index, src, domain.RawItem{
		NativeID:   "TICKET-623",
		Text:       "Checkout intermittently drops the basket on retry",
		OccurredAt: time.Now().Add(-2 * time.Hour),
		Metadata: map[string]any{
			"key":      "TICKET-623",
			"summary":  "Checkout drops basket",
			"status":   "Closed",
			"priority": "High",
			"assignee": "ana",
		},
	})

	results, err := svc.Search(ctx, "status of TICKET-623 checkout basket", domain.SearchFilters{}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	top := results[0]
	assert.Equal(t, "jira:TICKET-623", top.ID)
	assert.Equal(t, "jira", top.Source)
	assert.False(t, top.OccurredAt.IsZero())

	// source-specific fields survive the index round trip untouched
	assert.Equal(t, "Closed", top.StructuredFields["status"])
	assert.Equal(t, "High", top.StructuredFields["priority"])
	assert.Equal(t, "ana", top.StructuredFields["assignee"])
	assert.Equal(t, "TICKET-623", top.StructuredFields["key"])
}

func TestSearch_SourceFilter(t *testing.T) {
	ctx := context.Background()
	svc, embedder, index := newTestRetriever(t, RetrievalConfig{}, nil)

	now := time.Now()
	jira := domain.Source{ID: "jira", Kind: domain.KindIssue}
	slack := domain.Source{ID: "slack", Kind: domain.KindChat}
	seedIndex(t, embedder, index, jira, domain.RawItem{
		NativeID:   "TICKET-1",
		Text:       "payment gateway timeout",
		OccurredAt: now.Add(-time.Hour),
		Metadata:   map[string]any{"key": "TICKET-1"},
	})
	seedIndex(t, embedder, index, slack, domain.RawItem{
		NativeID:   "msg-1",
		Text:       "payment gateway timeout discussion",
		OccurredAt: now.Add(-time.Hour),
		Metadata:   map[string]any{"channel": "ops", "author": "ana"},
	})

	results, err := svc.Search(ctx, "payment gateway timeout", domain.SearchFilters{Sources: []string{"slack"}}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "slack", results[0].Source)
}

func TestSearch_RecencyBoostOrdersEqualMatches(t *testing.T) {
	ctx := context.Background()
	svc, embedder, index := newTestRetriever(t, RetrievalConfig{}, nil)

	now := time.Now()
	src := domain.Source{ID: "jira", Kind: domain.KindIssue}
	// identical text so raw similarity is equal; recency must decide
	seedIndex(t, embedder, index, src, domain.RawItem{
		NativeID:   "TICKET-OLD",
		Text:       "database migration deadlock",
		OccurredAt: now.Add(-90 * 24 * time.Hour),
		Metadata:   map[string]any{"key": "TICKET-OLD"},
	})
	seedIndex(t, embedder, index, src, domain.RawItem{
		NativeID:   "TICKET-NEW",
		Text:       "database migration deadlock",
		OccurredAt: now.Add(-time.Hour),
		Metadata:   map[string]any{"key": "TICKET-NEW"},
	})

	results, err := svc.Search(ctx, "database migration deadlock", domain.SearchFilters{}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "jira:TICKET-NEW", results[0].ID)
	assert.Equal(t, "jira:TICKET-OLD", results[1].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSearch_DeterministicAcrossRuns(t *testing.T) {
	ctx := context.Background()
	svc, embedder, index := newTestRetriever(t, RetrievalConfig{}, nil)

	now := time.Now()
	src := domain.Source{ID: "jira", Kind: domain.KindIssue}
	for _, key := range []string{"TICKET-A", "TICKET-B", "TICKET-C", "TICKET-D"} {
		seedIndex(t, embedder, index, src, domain.RawItem{
			NativeID:   key,
			Text:       "flaky integration test suite",
			OccurredAt: now.Add(-time.Hour),
			Metadata:   map[string]any{"key": key},
		})
	}

	first, err := svc.Search(ctx, "flaky integration test", domain.SearchFilters{}, 10)
	require.NoError(t, err)
	for range 5 {
		again, err := svc.Search(ctx, "flaky integration test", domain.SearchFilters{}, 10)
		require.NoError(t, err)
		require.Equal(t, len(first), len(again))
		for i := range first {
			assert.Equal(t, first[i].ID, again[i].ID)
		}
	}
}

func TestSearch_ExpansionWidensRecall(t *testing.T) {
	ctx := context.Background()
	expansions := memory.NewExpansionStore()
	require.NoError(t, expansions.Upsert(ctx, domain.ExpansionEntry{
		Term:       "cbp",
		Expanded:   "customs broker portal",
		Confidence: 0.9,
	}))
	svc, embedder, index := newTestRetriever(t, RetrievalConfig{}, expansions)

	src := domain.Source{ID: "confluence", Kind: domain.KindDocument}
	seedIndex(t, embedder, index, src, domain.RawItem{
		NativeID:   "doc-1",
		Text:       "customs broker portal release checklist and rollout plan",
		OccurredAt: time.Now().Add(-time.Hour),
		Metadata:   map[string]any{"title": "Release checklist"},
	})

	results, err := svc.Search(ctx, "cbp rollout", domain.SearchFilters{}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results, "expansion variant should reach the document")
	assert.Equal(t, "confluence:doc-1", results[0].ID)

	// usage counters recorded for the applied expansion
	entry, err := expansions.Lookup(ctx, "cbp")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.UsageCount)
	assert.Equal(t, 1, entry.SuccessCount)
}

func TestSearch_LowConfidenceExpansionIgnored(t *testing.T) {
	ctx := context.Background()
	expansions := memory.NewExpansionStore()
	require.NoError(t, expansions.Upsert(ctx, domain.ExpansionEntry{
		Term:       "cbp",
		Expanded:   "customs broker portal",
		Confidence: 0.2,
	}))
	svc, _, _ := newTestRetriever(t, RetrievalConfig{}, expansions)

	variants, used := svc.expandQuery(ctx, "cbp rollout")
	assert.Equal(t, []string{"cbp rollout"}, variants)
	assert.Empty(t, used)
}

func TestSearch_IndexUnavailableIsTyped(t *testing.T) {
	embedder := memory.NewEmbedder()
	svc, err := NewRetrievalService(RetrievalConfig{}, embedder, &failingIndex{}, nil)
	require.NoError(t, err)

	_, err = svc.Search(context.Background(), "anything", domain.SearchFilters{}, 5)
	assert.ErrorIs(t, err, domain.ErrRetrievalUnavailable)
}

func TestSearch_EmptyQuery(t *testing.T) {
	svc, _, _ := newTestRetriever(t, RetrievalConfig{}, nil)
	_, err := svc.Search(context.Background(), "   ", domain.SearchFilters{}, 5)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRecencyDecay(t *testing.T) {
	svc, _, _ := newTestRetriever(t, RetrievalConfig{RecencyHalfLife: 30 * 24 * time.Hour}, nil)
	now := time.Now()

	assert.Equal(t, 1.0, svc.recencyDecay(time.Time{}, now), "zero timestamp is not penalised")
	assert.Equal(t, 1.0, svc.recencyDecay(now.Add(time.Hour), now), "future timestamp is not penalised")
	assert.InDelta(t, 0.5, svc.recencyDecay(now.Add(-30*24*time.Hour), now), 0.01)
	assert.Equal(t, 0.1, svc.recencyDecay(now.Add(-10*365*24*time.Hour), now), "decay floors out")
}

func TestReplaceToken(t *testing.T) {
	assert.Equal(t, "customs broker portal rollout", replaceToken("cbp rollout", "cbp", "customs broker portal"))
	assert.Equal(t, "CBP rollout", replaceToken("CBP rollout", "xyz", "unused"))
}
