package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
	"github.com/custodia-labs/recall/internal/normalise"
)

const (
	defaultLookback    = 30 * 24 * time.Hour
	defaultLeaseTTL    = 15 * time.Minute
	defaultMaxAttempts = 3
	defaultWorkers     = 4
	defaultCallTimeout = 30 * time.Second
)

// IngestionConfig tunes the ingestion pipeline. Zero values fall back
// to sensible defaults.
type IngestionConfig struct {
	Sources []domain.Source

	// MaxAttempts bounds how often a cached batch is retried before it
	// is reported as exhausted.
	MaxAttempts int

	// LeaseTTL is how long a sync lease is held before a crashed run's
	// lease becomes reclaimable.
	LeaseTTL time.Duration

	// DefaultLookback is the window used for a source that has never
	// synchronised, unless the source caps it further.
	DefaultLookback time.Duration

	// Workers bounds concurrent index upserts within a batch.
	Workers int

	// FetchRate limits source page fetches per second. Zero means
	// unlimited.
	FetchRate float64

	// CallTimeout bounds each embedding or index call attempt.
	CallTimeout time.Duration
}

// IngestionService pulls records from sources through the
// cache-then-embed pipeline and into the vector index.
type IngestionService struct {
	sources   map[string]domain.Source
	factory   driven.SourceClientFactory
	cache     driven.BackfillCache
	syncStore driven.SyncStateStore
	embedder  driven.EmbeddingService
	index     driven.VectorIndex
	runs      driven.RunStore

	pool    *ants.Pool
	limiter *rate.Limiter

	owner       string
	leaseTTL    time.Duration
	maxAttempts int
	lookback    time.Duration
	callTimeout time.Duration
	now         func() time.Time

	mu     sync.RWMutex
	active map[string]*driving.IngestStatus
}

var _ driving.Ingestor = (*IngestionService)(nil)

// NewIngestionService wires the pipeline. The run store is optional;
// pass nil to skip run history.
func NewIngestionService(
	cfg IngestionConfig,
	factory driven.SourceClientFactory,
	cache driven.BackfillCache,
	syncStore driven.SyncStateStore,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	runs driven.RunStore,
) (*IngestionService, error) {
	if factory == nil || cache == nil || syncStore == nil || embedder == nil || index == nil {
		return nil, fmt.Errorf("ingestion service: %w: missing dependency", domain.ErrInvalidInput)
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = defaultLeaseTTL
	}
	if cfg.DefaultLookback <= 0 {
		cfg.DefaultLookback = defaultLookback
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}

	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	limit := rate.Inf
	if cfg.FetchRate > 0 {
		limit = rate.Limit(cfg.FetchRate)
	}

	sources := make(map[string]domain.Source, len(cfg.Sources))
	for _, src := range cfg.Sources {
		sources[src.ID] = src
	}

	return &IngestionService{
		sources:     sources,
		factory:     factory,
		cache:       cache,
		syncStore:   syncStore,
		embedder:    embedder,
		index:       index,
		runs:        runs,
		pool:        pool,
		limiter:     rate.NewLimiter(limit, 1),
		owner:       uuid.NewString(),
		leaseTTL:    cfg.LeaseTTL,
		maxAttempts: cfg.MaxAttempts,
		lookback:    cfg.DefaultLookback,
		callTimeout: cfg.CallTimeout,
		now:         time.Now,
		active:      make(map[string]*driving.IngestStatus),
	}, nil
}

// Close releases the worker pool.
func (s *IngestionService) Close() error {
	s.pool.Release()
	return nil
}

// RunIngestion synchronises a single source over the given window. A
// zero window means "since the last successful sync". The sync state
// only advances when every batch in the window was ingested.
func (s *IngestionService) RunIngestion(ctx context.Context, sourceID string, window domain.Window) (*domain.IngestReport, error) {
	src, ok := s.sources[sourceID]
	if !ok {
		return nil, fmt.Errorf("source %q: %w", sourceID, domain.ErrNotFound)
	}

	if _, err := s.syncStore.AcquireLease(ctx, sourceID, s.owner, s.leaseTTL); err != nil {
		if errors.Is(err, domain.ErrLeaseHeld) {
			return nil, fmt.Errorf("source %q: %w", sourceID, domain.ErrSyncInProgress)
		}
		return nil, fmt.Errorf("acquire lease for %q: %w", sourceID, err)
	}
	defer func() {
		if err := s.syncStore.ReleaseLease(context.WithoutCancel(ctx), sourceID, s.owner); err != nil {
			logger.Warn("release lease for %s: %v", sourceID, err)
		}
	}()

	started := s.now()
	s.setStatus(sourceID, &driving.IngestStatus{SourceID: sourceID, Running: true, StartedAt: started})
	defer s.clearStatus(sourceID)

	report := &domain.IngestReport{Source: sourceID}
	runErr := s.run(ctx, src, window, report)

	run := domain.IngestRun{
		ID:        uuid.NewString(),
		Source:    sourceID,
		StartedAt: started,
		EndedAt:   s.now(),
		Success:   runErr == nil,
		Report:    *report,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if s.runs != nil {
		if err := s.runs.RecordRun(context.WithoutCancel(ctx), run); err != nil {
			logger.Warn("record run for %s: %v", sourceID, err)
		}
	}

	if runErr != nil {
		return report, runErr
	}
	return report, nil
}

func (s *IngestionService) run(ctx context.Context, src domain.Source, window domain.Window, report *domain.IngestReport) error {
	// Cached batches from earlier runs go first so a crash between
	// caching and indexing never loses data.
	if err := s.retryPending(ctx, src, report); err != nil {
		return err
	}

	w, err := s.resolveWindow(ctx, src, window)
	if err != nil {
		return err
	}
	report.WindowStart = w.Start
	report.WindowEnd = w.End

	if !w.End.After(w.Start) {
		logger.Debug("source %s: window empty, nothing to fetch", src.ID)
		return s.maybeAdvance(ctx, src.ID, w.End, report)
	}

	client, err := s.factory.Create(ctx, src)
	if err != nil {
		return fmt.Errorf("create client for %q: %w", src.ID, err)
	}
	defer client.Close()

	logger.Info("source %s: ingesting %s to %s", src.ID, w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))

	pageToken := ""
	for {
		items, next, err := s.fetchPage(ctx, client, w, pageToken)
		if err != nil {
			report.Errors = append(report.Errors, err.Error())
			return fmt.Errorf("source %q: %w: %v", src.ID, domain.ErrFetchFailed, err)
		}
		report.Fetched += len(items)
		s.updateStatus(src.ID, func(st *driving.IngestStatus) { st.Fetched += len(items) })

		batch, skipped := s.buildBatch(src, w, items)
		report.Skipped += skipped
		if len(batch.Items) > 0 {
			// Durable before any embedding or index write.
			if err := s.cache.Put(ctx, batch); err != nil {
				return fmt.Errorf("cache batch for %q: %w", src.ID, err)
			}
			s.processBatch(ctx, batch, report)
		}

		if next == "" {
			break
		}
		pageToken = next
	}

	return s.maybeAdvance(ctx, src.ID, w.End, report)
}

// retryPending re-processes batches cached by earlier runs that never
// made it into the index. Batches past the attempt budget are reported
// and left in place so the window cannot silently advance past them.
func (s *IngestionService) retryPending(ctx context.Context, src domain.Source, report *domain.IngestReport) error {
	pending, err := s.cache.ListPending(ctx, src.ID)
	if err != nil {
		return fmt.Errorf("list pending batches for %q: %w", src.ID, err)
	}
	for _, batch := range pending {
		if batch.Attempts >= s.maxAttempts {
			report.Failed += len(batch.Items)
			report.Errors = append(report.Errors, fmt.Sprintf("batch %s: retries exhausted after %d attempts: %s", batch.ID, batch.Attempts, batch.LastError))
			continue
		}
		logger.Info("source %s: retrying cached batch %s (%d items, attempt %d)", src.ID, batch.ID, len(batch.Items), batch.Attempts+1)
		s.processBatch(ctx, batch, report)
	}
	return nil
}

func (s *IngestionService) resolveWindow(ctx context.Context, src domain.Source, window domain.Window) (domain.Window, error) {
	if !window.IsZero() {
		return window.Clamp(src.MaxWindow), nil
	}

	end := s.now()
	st, err := s.syncStore.Get(ctx, src.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		lookback := s.lookback
		if src.MaxWindow > 0 && src.MaxWindow < lookback {
			lookback = src.MaxWindow
		}
		return domain.Window{Start: end.Add(-lookback), End: end}, nil
	case err != nil:
		return domain.Window{}, fmt.Errorf("get sync state for %q: %w", src.ID, err)
	}
	return domain.Window{Start: st.LastSync, End: end}.Clamp(src.MaxWindow), nil
}

func (s *IngestionService) fetchPage(ctx context.Context, client driven.SourceClient, w domain.Window, pageToken string) ([]domain.RawItem, string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, "", err
	}

	var (
		items []domain.RawItem
		next  string
	)
	op := func() error {
		var err error
		items, next, err = client.FetchWindow(ctx, w.Start, w.End, pageToken)
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, "", err
	}
	return items, next, nil
}

// buildBatch normalises a fetched page into a pending batch. Items
// that violate the source schema are skipped, not the whole page.
func (s *IngestionService) buildBatch(src domain.Source, w domain.Window, items []domain.RawItem) (domain.BackfillBatch, int) {
	batch := domain.BackfillBatch{
		ID:          uuid.NewString(),
		Source:      src.ID,
		WindowStart: w.Start,
		WindowEnd:   w.End,
		Status:      domain.BatchPending,
		FetchedAt:   s.now(),
	}
	skipped := 0
	for _, item := range items {
		record, err := normalise.Record(src, item)
		if err != nil {
			skipped++
			logger.Warn("source %s: skipping item %q: %v", src.ID, item.NativeID, err)
			continue
		}
		batch.Items = append(batch.Items, record)
	}
	return batch, skipped
}

// processBatch embeds and upserts one cached batch. Failures mark the
// batch for retry on a later run; they never fail the whole window.
func (s *IngestionService) processBatch(ctx context.Context, batch domain.BackfillBatch, report *domain.IngestReport) {
	if err := s.indexBatch(ctx, batch); err != nil {
		report.Failed += len(batch.Items)
		report.Errors = append(report.Errors, fmt.Sprintf("batch %s: %v", batch.ID, err))
		s.updateStatus(batch.Source, func(st *driving.IngestStatus) { st.ErrorCount++ })
		logger.Warn("source %s: batch %s failed: %v", batch.Source, batch.ID, err)
		if markErr := s.cache.MarkFailed(ctx, batch.ID, err); markErr != nil {
			logger.Error("mark batch %s failed: %v", batch.ID, markErr)
		}
		return
	}

	report.Embedded += len(batch.Items)
	report.Upserted += len(batch.Items)
	s.updateStatus(batch.Source, func(st *driving.IngestStatus) { st.Upserted += len(batch.Items) })
	if err := s.cache.MarkIngested(ctx, batch.ID); err != nil {
		logger.Error("mark batch %s ingested: %v", batch.ID, err)
	}
}

func (s *IngestionService) indexBatch(ctx context.Context, batch domain.BackfillBatch) error {
	texts := make([]string, len(batch.Items))
	for i, item := range batch.Items {
		texts[i] = item.Text
	}

	var vectors [][]float32
	embed := func() error {
		embedCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
		var err error
		vectors, err = s.embedder.EmbedBatch(embedCtx, texts)
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(embed, policy); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(batch.Items) {
		return fmt.Errorf("%w: got %d vectors for %d items", domain.ErrEmbeddingFailed, len(vectors), len(batch.Items))
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for i, item := range batch.Items {
		entry := driven.IndexEntry{ID: item.ID, Vector: vectors[i], Metadata: item.Metadata}
		wg.Add(1)
		task := func() {
			defer wg.Done()
			upCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
			defer cancel()
			if err := s.index.Upsert(upCtx, entry); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}
		if err := s.pool.Submit(task); err != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
		}
	}
	wg.Wait()

	if firstErr != nil {
		return fmt.Errorf("upsert: %w", firstErr)
	}
	return nil
}

// maybeAdvance moves the sync marker only when nothing in the window
// failed. Staleness is preferred over silently skipping records.
func (s *IngestionService) maybeAdvance(ctx context.Context, sourceID string, windowEnd time.Time, report *domain.IngestReport) error {
	if report.Failed > 0 {
		logger.Warn("source %s: %d items failed, sync state not advanced", sourceID, report.Failed)
		return nil
	}
	if err := s.syncStore.Advance(ctx, sourceID, windowEnd, windowEnd); err != nil {
		return fmt.Errorf("advance sync state for %q: %w", sourceID, err)
	}
	return nil
}

// RunAll synchronises every configured source sequentially and joins
// the per-source failures.
func (s *IngestionService) RunAll(ctx context.Context) (map[string]*domain.IngestReport, error) {
	ids := make([]string, 0, len(s.sources))
	for id := range s.sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	reports := make(map[string]*domain.IngestReport, len(ids))
	var errs []error
	for _, id := range ids {
		report, err := s.RunIngestion(ctx, id, domain.Window{})
		if report != nil {
			reports[id] = report
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return reports, errors.Join(errs...)
}

// Status reports the live state of an in-flight ingestion, if any.
func (s *IngestionService) Status(sourceID string) (driving.IngestStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.active[sourceID]
	if !ok {
		return driving.IngestStatus{}, false
	}
	return *st, true
}

func (s *IngestionService) setStatus(sourceID string, st *driving.IngestStatus) {
	s.mu.Lock()
	s.active[sourceID] = st
	s.mu.Unlock()
}

func (s *IngestionService) updateStatus(sourceID string, fn func(*driving.IngestStatus)) {
	s.mu.Lock()
	if st, ok := s.active[sourceID]; ok {
		fn(st)
	}
	s.mu.Unlock()
}

func (s *IngestionService) clearStatus(sourceID string) {
	s.mu.Lock()
	delete(s.active, sourceID)
	s.mu.Unlock()
}
