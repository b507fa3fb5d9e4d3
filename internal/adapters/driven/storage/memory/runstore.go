package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure RunStore implements the interface.
var _ driven.RunStore = (*RunStore)(nil)

// RunStore is an in-memory implementation of driven.RunStore.
type RunStore struct {
	mu   sync.RWMutex
	runs []domain.IngestRun
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{}
}

// RecordRun logs a completed ingestion run.
func (s *RunStore) RecordRun(_ context.Context, run domain.IngestRun) error {
	if run.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

// ListRuns returns recent runs, most recent first.
func (s *RunStore) ListRuns(_ context.Context, sourceID string, limit int) ([]domain.IngestRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []domain.IngestRun
	for _, r := range s.runs {
		if sourceID == "" || r.Source == sourceID {
			runs = append(runs, r)
		}
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// PruneHistory keeps only the most recent 'keep' runs per source.
func (s *RunStore) PruneHistory(_ context.Context, keep int) error {
	if keep <= 0 {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sort.Slice(s.runs, func(i, j int) bool { return s.runs[i].StartedAt.After(s.runs[j].StartedAt) })
	counts := make(map[string]int)
	kept := s.runs[:0]
	for _, r := range s.runs {
		if counts[r.Source] < keep {
			kept = append(kept, r)
			counts[r.Source]++
		}
	}
	s.runs = kept
	return nil
}
