package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure BackfillCache implements the interface.
var _ driven.BackfillCache = (*BackfillCache)(nil)

// BackfillCache is an in-memory implementation of driven.BackfillCache.
// It does NOT survive restarts; production uses the bolt adapter.
type BackfillCache struct {
	mu      sync.RWMutex
	batches map[string]domain.BackfillBatch
}

// NewBackfillCache creates a new in-memory backfill cache.
func NewBackfillCache() *BackfillCache {
	return &BackfillCache{batches: make(map[string]domain.BackfillBatch)}
}

// Put stores a batch.
func (c *BackfillCache) Put(_ context.Context, batch domain.BackfillBatch) error {
	if batch.ID == "" {
		return domain.ErrInvalidInput
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches[batch.ID] = batch
	return nil
}

// ListPending returns pending and failed batches, oldest window first.
func (c *BackfillCache) ListPending(_ context.Context, sourceID string) ([]domain.BackfillBatch, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var pending []domain.BackfillBatch
	for _, b := range c.batches {
		if b.Source == sourceID && b.Status != domain.BatchIngested {
			pending = append(pending, b)
		}
	}
	sortBatches(pending)
	return pending, nil
}

// MarkIngested marks a batch fully upserted and drops its items.
func (c *BackfillCache) MarkIngested(_ context.Context, batchID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.batches[batchID]
	if !ok {
		return domain.ErrNotFound
	}
	b.Status = domain.BatchIngested
	b.Items = nil
	b.LastError = ""
	c.batches[batchID] = b
	return nil
}

// MarkFailed marks a batch failed, retaining its items for retry.
func (c *BackfillCache) MarkFailed(_ context.Context, batchID string, cause error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.batches[batchID]
	if !ok {
		return domain.ErrNotFound
	}
	b.Status = domain.BatchFailed
	b.Attempts++
	if cause != nil {
		b.LastError = cause.Error()
	}
	c.batches[batchID] = b
	return nil
}

// ListCached returns all batches for a source regardless of status.
func (c *BackfillCache) ListCached(_ context.Context, sourceID string) ([]domain.BackfillBatch, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var all []domain.BackfillBatch
	for _, b := range c.batches {
		if b.Source == sourceID {
			all = append(all, b)
		}
	}
	sortBatches(all)
	return all, nil
}

// Close releases resources.
func (c *BackfillCache) Close() error {
	return nil
}

// sortBatches orders batches by window start, then fetch time, then id,
// so replay order is deterministic.
func sortBatches(batches []domain.BackfillBatch) {
	sort.Slice(batches, func(i, j int) bool {
		if !batches[i].WindowStart.Equal(batches[j].WindowStart) {
			return batches[i].WindowStart.Before(batches[j].WindowStart)
		}
		if !batches[i].FetchedAt.Equal(batches[j].FetchedAt) {
			return batches[i].FetchedAt.Before(batches[j].FetchedAt)
		}
		return batches[i].ID < batches[j].ID
	})
}
