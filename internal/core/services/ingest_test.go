package services

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/normalise"
)

type fakeClient struct {
	source string
	pages  [][]domain.RawItem
	err    error

	mu    sync.Mutex
	calls int
}

func (c *fakeClient) Source() string { return c.source }

func (c *fakeClient) FetchWindow(_ context.Context, _, _ time.Time, pageToken string) ([]domain.RawItem, string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return nil, "", c.err
	}
	idx := 0
	if pageToken != "" {
		idx, _ = strconv.Atoi(pageToken)
	}
	if idx >= len(c.pages) {
		return nil, "", nil
	}
	next := ""
	if idx+1 < len(c.pages) {
		next = strconv.Itoa(idx + 1)
	}
	return c.pages[idx], next, nil
}

func (c *fakeClient) Close() error { return nil }

type fakeFactory struct {
	client driven.SourceClient
}

func (f *fakeFactory) Create(context.Context, domain.Source) (driven.SourceClient, error) {
	return f.client, nil
}

// failEmbedder wraps the in-memory embedder and fails the first
// failures calls to EmbedBatch.
type failEmbedder struct {
	*memory.Embedder

	mu       sync.Mutex
	failures int
}

func (e *failEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	if e.failures > 0 {
		e.failures--
		e.mu.Unlock()
		return nil, errors.New("embedding service overloaded")
	}
	e.mu.Unlock()
	return e.Embedder.EmbedBatch(ctx, texts)
}

func recordFor(src domain.Source, item domain.RawItem) (domain.IngestRecord, error) {
	return normalise.Record(src, item)
}

func issueItem(key, summary string, occurred time.Time) domain.RawItem {
	return domain.RawItem{
		NativeID:   key,
		Text:       summary,
		OccurredAt: occurred,
		Metadata:   map[string]any{"key": key, "summary": summary, "status": "Open"},
	}
}

type ingestDeps struct {
	cache     *memory.BackfillCache
	syncStore *memory.SyncStateStore
	index     *memory.VectorIndex
	runs      *memory.RunStore
}

func newTestIngestor(t *testing.T, src domain.Source, client driven.SourceClient, embedder driven.EmbeddingService) (*IngestionService, *ingestDeps) {
	t.Helper()
	deps := &ingestDeps{
		cache:     memory.NewBackfillCache(),
		syncStore: memory.NewSyncStateStore(),
		index:     memory.NewVectorIndex(),
		runs:      memory.NewRunStore(),
	}
	if embedder == nil {
		embedder = memory.NewEmbedder()
	}
	svc, err := NewIngestionService(
		IngestionConfig{Sources: []domain.Source{src}, Workers: 2},
		&fakeFactory{client: client},
		deps.cache,
		deps.syncStore,
		embedder,
		deps.index,
		deps.runs,
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, deps
}

func TestRunIngestion_FetchesCachesAndAdvances(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	src := domain.Source{ID: "jira", Kind: domain.KindIssue}
	client := &fakeClient{source: "jira", pages: [][]domain.RawItem{
		{issueItem("TICKET-1", "Login fails on retry", now.Add(-2 * time.Hour))},
		{issueItem("TICKET-2", "Search latency regression", now.Add(-1 * time.Hour))},
	}}
	svc, deps := newTestIngestor(t, src, client, nil)

	window := domain.Window{Start: now.Add(-24 * time.Hour), End: now}
	report, err := svc.RunIngestion(ctx, "jira", window)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 2, report.Upserted)
	assert.Zero(t, report.Failed)
	assert.Equal(t, 2, deps.index.Len())

	// every batch ended up ingested
	cached, err := deps.cache.ListCached(ctx, "jira")
	require.NoError(t, err)
	require.Len(t, cached, 2)
	for _, b := range cached {
		assert.Equal(t, domain.BatchIngested, b.Status)
	}

	// sync state advanced to the window end
	st, err := deps.syncStore.Get(ctx, "jira")
	require.NoError(t, err)
	assert.True(t, st.LastSync.Equal(window.End))

	// run recorded
	runs, err := deps.runs.ListRuns(ctx, "jira", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Success)
}

func TestRunIngestion_IdempotentReingest(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	src := domain.Source{ID: "jira", Kind: domain.KindIssue}
	client := &fakeClient{source: "jira", pages: [][]domain.RawItem{
		{issueItem("TICKET-7", "Flaky deploy pipeline", now.Add(-time.Hour))},
	}}
	svc, deps := newTestIngestor(t, src, client, nil)

	window := domain.Window{Start: now.Add(-24 * time.Hour), End: now}
	_, err := svc.RunIngestion(ctx, "jira", window)
	require.NoError(t, err)
	_, err = svc.RunIngestion(ctx, "jira", window)
	require.NoError(t, err)

	// same record twice overwrites, never duplicates
	assert.Equal(t, 1, deps.index.Len())
	assert.Equal(t, 2, deps.index.UpsertCount())
}

func TestRunIngestion_ResumesCachedBatchAfterCrash(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	src := domain.Source{ID: "jira", Kind: domain.KindIssue}

	// empty fetch: everything this run ingests must come from the cache
	client := &fakeClient{source: "jira"}
	svc, deps := newTestIngestor(t, src, client, nil)

	// a batch cached by a previous run that died before indexing
	record, err := recordFor(src, issueItem("TICKET-9", "Orphaned after crash", now.Add(-3*time.Hour)))
	require.NoError(t, err)
	require.NoError(t, deps.cache.Put(ctx, domain.BackfillBatch{
		ID:          "crashed-batch",
		Source:      "jira",
		WindowStart: now.Add(-4 * time.Hour),
		WindowEnd:   now.Add(-2 * time.Hour),
		Items:       []domain.IngestRecord{record},
		Status:      domain.BatchPending,
		FetchedAt:   now.Add(-3 * time.Hour),
	}))

	report, err := svc.RunIngestion(ctx, "jira", domain.Window{Start: now.Add(-time.Hour), End: now})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Upserted)
	assert.Equal(t, 1, deps.index.Len())
	assert.Equal(t, 1, deps.index.UpsertCount(), "cached batch ingested exactly once")

	cached, err := deps.cache.ListCached(ctx, "jira")
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, domain.BatchIngested, cached[0].Status)
}

func TestRunIngestion_EmbedFailureMarksBatchAndHoldsSyncState(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	src := domain.Source{ID: "jira", Kind: domain.KindIssue}
	client := &fakeClient{source: "jira", pages: [][]domain.RawItem{
		{issueItem("TICKET-3", "Cache stampede on cold start", now.Add(-time.Hour))},
	}}
	// more failures than the retry budget
	embedder := &failEmbedder{Embedder: memory.NewEmbedder(), failures: 10}
	svc, deps := newTestIngestor(t, src, client, embedder)

	window := domain.Window{Start: now.Add(-24 * time.Hour), End: now}
	report, err := svc.RunIngestion(ctx, "jira", window)
	require.NoError(t, err, "batch failure is reported, not fatal")

	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, report.Upserted)
	assert.Zero(t, deps.index.Len())

	// batch retained for retry with its items
	pending, err := deps.cache.ListPending(ctx, "jira")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.BatchFailed, pending[0].Status)
	assert.Len(t, pending[0].Items, 1)

	// sync state must not advance past unprocessed data
	_, err = deps.syncStore.Get(ctx, "jira")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// the next run ingests the cached batch once embedding recovers;
	// an empty window keeps it from re-fetching the same page
	embedder.mu.Lock()
	embedder.failures = 0
	embedder.mu.Unlock()
	report, err = svc.RunIngestion(ctx, "jira", domain.Window{Start: window.End, End: window.End})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Upserted)
	assert.Equal(t, 1, deps.index.Len())

	st, err := deps.syncStore.Get(ctx, "jira")
	require.NoError(t, err)
	assert.True(t, st.LastSync.Equal(window.End))
}

func TestRunIngestion_ExhaustedBatchBlocksAdvance(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	src := domain.Source{ID: "jira", Kind: domain.KindIssue}
	client := &fakeClient{source: "jira"}
	svc, deps := newTestIngestor(t, src, client, nil)

	record, err := recordFor(src, issueItem("TICKET-4", "Poisoned payload", now.Add(-time.Hour)))
	require.NoError(t, err)
	require.NoError(t, deps.cache.Put(ctx, domain.BackfillBatch{
		ID:        "poisoned",
		Source:    "jira",
		Items:     []domain.IngestRecord{record},
		Status:    domain.BatchFailed,
		Attempts:  3,
		LastError: "embedding service overloaded",
		FetchedAt: now.Add(-time.Hour),
	}))

	window := domain.Window{Start: now.Add(-time.Hour), End: now}
	report, err := svc.RunIngestion(ctx, "jira", window)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	require.NotEmpty(t, report.Errors)
	assert.Contains(t, report.Errors[0], "retries exhausted")

	_, err = deps.syncStore.Get(ctx, "jira")
	assert.ErrorIs(t, err, domain.ErrNotFound, "exhausted batch must hold the sync marker")
}

func TestRunIngestion_SchemaViolationSkipsItemNotBatch(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	src := domain.Source{ID: "jira", Kind: domain.KindIssue}
	bad := domain.RawItem{NativeID: "TICKET-5", Text: "missing the key field", OccurredAt: now.Add(-time.Hour)}
	client := &fakeClient{source: "jira", pages: [][]domain.RawItem{
		{issueItem("TICKET-6", "Good item", now.Add(-time.Hour)), bad},
	}}
	svc, deps := newTestIngestor(t, src, client, nil)

	report, err := svc.RunIngestion(ctx, "jira", domain.Window{Start: now.Add(-2 * time.Hour), End: now})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Upserted)
	assert.Equal(t, 1, deps.index.Len())

	st, err := deps.syncStore.Get(ctx, "jira")
	require.NoError(t, err)
	assert.False(t, st.LastSync.IsZero(), "skipped items do not block advancement")
}

func TestRunIngestion_LeaseHeldBySomeoneElse(t *testing.T) {
	ctx := context.Background()
	src := domain.Source{ID: "jira", Kind: domain.KindIssue}
	client := &fakeClient{source: "jira"}
	svc, deps := newTestIngestor(t, src, client, nil)

	_, err := deps.syncStore.AcquireLease(ctx, "jira", "other-process", time.Hour)
	require.NoError(t, err)

	_, err = svc.RunIngestion(ctx, "jira", domain.Window{})
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)
	assert.Equal(t, 0, client.calls, "no fetch while another run holds the lease")
}

func TestRunIngestion_UnknownSource(t *testing.T) {
	src := domain.Source{ID: "jira", Kind: domain.KindIssue}
	svc, _ := newTestIngestor(t, src, &fakeClient{source: "jira"}, nil)

	_, err := svc.RunIngestion(context.Background(), "nope", domain.Window{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunIngestion_NeverSyncedUsesLookbackWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	src := domain.Source{ID: "jira", Kind: domain.KindIssue, MaxWindow: 48 * time.Hour}
	client := &fakeClient{source: "jira", pages: [][]domain.RawItem{
		{issueItem("TICKET-8", "First ever sync", now.Add(-time.Hour))},
	}}
	svc, deps := newTestIngestor(t, src, client, nil)

	report, err := svc.RunIngestion(ctx, "jira", domain.Window{})
	require.NoError(t, err)

	// window capped by the source's maximum span
	span := report.WindowEnd.Sub(report.WindowStart)
	assert.LessOrEqual(t, span, 48*time.Hour)
	assert.Equal(t, 1, report.Upserted)

	st, err := deps.syncStore.Get(ctx, "jira")
	require.NoError(t, err)
	assert.True(t, st.LastSync.Equal(report.WindowEnd))
}

func TestStatus_LiveDuringRun(t *testing.T) {
	src := domain.Source{ID: "jira", Kind: domain.KindIssue}
	svc, _ := newTestIngestor(t, src, &fakeClient{source: "jira"}, nil)

	_, ok := svc.Status("jira")
	assert.False(t, ok, "no run in flight")

	_, err := svc.RunIngestion(context.Background(), "jira", domain.Window{})
	require.NoError(t, err)

	_, ok = svc.Status("jira")
	assert.False(t, ok, "status cleared after the run")
}
