package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

const (
	defaultTick       = time.Minute
	defaultInterval   = time.Hour
	defaultRunTimeout = 30 * time.Minute
	defaultStaleAfter = 24 * time.Hour
)

// SchedulerConfig tunes the scheduling loop. Zero values use defaults.
type SchedulerConfig struct {
	Sources []domain.Source

	// Tick is how often due sources are checked.
	Tick time.Duration

	// RunTimeout is how long a run may take before it is reported as
	// stuck. Stuck runs are surfaced, never killed.
	RunTimeout time.Duration

	// StaleAfter is the default staleness threshold for sources that do
	// not set their own.
	StaleAfter time.Duration
}

// SchedulerService triggers ingestion for sources whose interval has
// elapsed, at most one run per source at a time.
type SchedulerService struct {
	sources    []domain.Source
	syncStore  driven.SyncStateStore
	ingestor   driving.Ingestor
	tick       time.Duration
	runTimeout time.Duration
	staleAfter time.Duration
	now        func() time.Time

	mu      sync.Mutex
	running map[string]time.Time
	stop    chan struct{}
	started bool
	wg      sync.WaitGroup
}

var _ driving.Scheduler = (*SchedulerService)(nil)

// NewSchedulerService builds the scheduler around an ingestor.
func NewSchedulerService(cfg SchedulerConfig, syncStore driven.SyncStateStore, ingestor driving.Ingestor) (*SchedulerService, error) {
	if syncStore == nil || ingestor == nil {
		return nil, fmt.Errorf("scheduler: %w: missing dependency", domain.ErrInvalidInput)
	}
	if cfg.Tick <= 0 {
		cfg.Tick = defaultTick
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = defaultRunTimeout
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}
	return &SchedulerService{
		sources:    cfg.Sources,
		syncStore:  syncStore,
		ingestor:   ingestor,
		tick:       cfg.Tick,
		runTimeout: cfg.RunTimeout,
		staleAfter: cfg.StaleAfter,
		now:        time.Now,
		running:    make(map[string]time.Time),
		stop:       make(chan struct{}),
	}, nil
}

// Start runs the scheduling loop until the context is cancelled or
// Stop is called. The first check happens immediately.
func (s *SchedulerService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("scheduler: %w: already started", domain.ErrInvalidInput)
	}
	s.started = true
	s.mu.Unlock()

	logger.Info("scheduler started, tick %s", s.tick)
	s.checkDue(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-s.stop:
			s.wg.Wait()
			return nil
		case <-ticker.C:
			s.checkDue(ctx)
			s.reportStale(ctx)
		}
	}
}

// Stop signals the loop to exit and waits for in-flight runs.
func (s *SchedulerService) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// checkDue launches a run for every source whose interval has elapsed
// since its last sync. A source already running is skipped; if it has
// been running past the timeout it is reported as stuck.
func (s *SchedulerService) checkDue(ctx context.Context) {
	now := s.now()
	for _, src := range s.sources {
		if startedAt, running := s.runningSince(src.ID); running {
			if now.Sub(startedAt) > s.runTimeout {
				logger.Warn("source %s: run started %s still in progress, exceeds %s timeout", src.ID, startedAt.Format(time.RFC3339), s.runTimeout)
			}
			continue
		}

		interval := src.Interval
		if interval <= 0 {
			interval = defaultInterval
		}

		var lastSync time.Time
		st, err := s.syncStore.Get(ctx, src.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			// never synced, due now
		case err != nil:
			logger.Error("source %s: read sync state: %v", src.ID, err)
			continue
		default:
			lastSync = st.LastSync
		}

		if !lastSync.IsZero() && now.Sub(lastSync) < interval {
			continue
		}
		s.launch(ctx, src.ID)
	}
}

func (s *SchedulerService) launch(ctx context.Context, sourceID string) {
	s.mu.Lock()
	if _, already := s.running[sourceID]; already {
		s.mu.Unlock()
		return
	}
	s.running[sourceID] = s.now()
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.running, sourceID)
			s.mu.Unlock()
		}()

		report, err := s.ingestor.RunIngestion(ctx, sourceID, domain.Window{})
		switch {
		case errors.Is(err, domain.ErrSyncInProgress):
			logger.Debug("source %s: already syncing elsewhere, skipped", sourceID)
		case err != nil:
			logger.Error("source %s: scheduled run failed: %v", sourceID, err)
		default:
			logger.Info("source %s: scheduled run done, %d fetched, %d upserted, %d failed", sourceID, report.Fetched, report.Upserted, report.Failed)
		}
	}()
}

// reportStale surfaces sources whose last sync is older than their
// staleness threshold. Visibility only; the due check handles catch-up.
func (s *SchedulerService) reportStale(ctx context.Context) {
	now := s.now()

	// List against the tightest configured threshold, then apply each
	// source's own before warning.
	lowest := s.staleAfter
	thresholds := make(map[string]time.Duration, len(s.sources))
	for _, src := range s.sources {
		if src.StaleAfter > 0 {
			thresholds[src.ID] = src.StaleAfter
			if src.StaleAfter < lowest {
				lowest = src.StaleAfter
			}
		}
	}

	stale, err := s.syncStore.ListStale(ctx, lowest, now)
	if err != nil {
		logger.Error("list stale sources: %v", err)
		return
	}
	for _, st := range stale {
		threshold, ok := thresholds[st.Source]
		if !ok {
			threshold = s.staleAfter
		}
		if !st.IsStale(now, threshold) {
			continue
		}
		logger.Warn("source %s: stale, last synced %s", st.Source, st.LastSync.Format(time.RFC3339))
	}
}

func (s *SchedulerService) runningSince(sourceID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.running[sourceID]
	return at, ok
}
