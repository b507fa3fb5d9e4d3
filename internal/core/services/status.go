package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// StatusConfig tunes freshness reporting.
type StatusConfig struct {
	Sources []domain.Source

	// StaleAfter is the default staleness threshold for sources that do
	// not set their own.
	StaleAfter time.Duration

	// RunTimeout is the age past which a running ingestion is reported
	// as stuck.
	RunTimeout time.Duration
}

// StatusService combines sync state, live ingestion status and cache
// depth into one operator view.
type StatusService struct {
	sources    []domain.Source
	syncStore  driven.SyncStateStore
	cache      driven.BackfillCache
	ingestor   driving.Ingestor
	staleAfter time.Duration
	runTimeout time.Duration
	now        func() time.Time
}

var _ driving.StatusReporter = (*StatusService)(nil)

// NewStatusService builds the reporter. The cache and ingestor are
// optional; without them pending-batch counts and run liveness are
// omitted.
func NewStatusService(cfg StatusConfig, syncStore driven.SyncStateStore, cache driven.BackfillCache, ingestor driving.Ingestor) (*StatusService, error) {
	if syncStore == nil {
		return nil, fmt.Errorf("status service: %w: missing sync store", domain.ErrInvalidInput)
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = defaultRunTimeout
	}
	return &StatusService{
		sources:    cfg.Sources,
		syncStore:  syncStore,
		cache:      cache,
		ingestor:   ingestor,
		staleAfter: cfg.StaleAfter,
		runTimeout: cfg.RunTimeout,
		now:        time.Now,
	}, nil
}

// SourceStatuses reports every configured source, including ones that
// have never synchronised. Staleness is always computed, never hidden.
func (s *StatusService) SourceStatuses(ctx context.Context) ([]driving.SourceStatus, error) {
	now := s.now()
	statuses := make([]driving.SourceStatus, 0, len(s.sources))
	for _, src := range s.sources {
		status := driving.SourceStatus{Source: src.ID}

		st, err := s.syncStore.Get(ctx, src.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			status.IsStale = true
		case err != nil:
			return nil, fmt.Errorf("read sync state for %q: %w", src.ID, err)
		default:
			status.LastSync = st.LastSync
			status.Age = st.Age(now)
			threshold := src.StaleAfter
			if threshold <= 0 {
				threshold = s.staleAfter
			}
			status.IsStale = st.IsStale(now, threshold)
		}

		if s.ingestor != nil {
			if live, ok := s.ingestor.Status(src.ID); ok && live.Running {
				status.Running = true
				if now.Sub(live.StartedAt) > s.runTimeout {
					status.StuckSince = live.StartedAt
				}
			}
		}

		if s.cache != nil {
			pending, err := s.cache.ListPending(ctx, src.ID)
			if err != nil {
				logger.Warn("list pending batches for %s: %v", src.ID, err)
			} else {
				status.PendingBatches = len(pending)
			}
		}

		statuses = append(statuses, status)
	}
	return statuses, nil
}
