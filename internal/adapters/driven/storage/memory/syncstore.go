package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure SyncStateStore implements the interface.
var _ driven.SyncStateStore = (*SyncStateStore)(nil)

// SyncStateStore is an in-memory implementation of driven.SyncStateStore.
type SyncStateStore struct {
	mu     sync.RWMutex
	states map[string]domain.SyncStatus
	leases map[string]domain.Lease
}

// NewSyncStateStore creates a new in-memory sync state store.
func NewSyncStateStore() *SyncStateStore {
	return &SyncStateStore{
		states: make(map[string]domain.SyncStatus),
		leases: make(map[string]domain.Lease),
	}
}

// Get retrieves the sync status for a source.
func (s *SyncStateStore) Get(_ context.Context, sourceID string) (*domain.SyncStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.states[sourceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &status, nil
}

// Advance moves LastSync forward monotonically.
func (s *SyncStateStore) Advance(_ context.Context, sourceID string, newLastSync, windowEnd time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.states[sourceID]
	if ok && !newLastSync.After(current.LastSync) {
		return nil // Monotonic: regressions are a no-op
	}
	s.states[sourceID] = domain.SyncStatus{
		Source:        sourceID,
		LastSync:      newLastSync,
		LastWindowEnd: windowEnd,
	}
	return nil
}

// ListStale returns sources whose LastSync is older than threshold.
func (s *SyncStateStore) ListStale(_ context.Context, threshold time.Duration, now time.Time) ([]domain.SyncStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stale []domain.SyncStatus
	for _, status := range s.states {
		if status.IsStale(now, threshold) {
			stale = append(stale, status)
		}
	}
	return stale, nil
}

// AcquireLease takes the per-source ingestion lease.
func (s *SyncStateStore) AcquireLease(_ context.Context, sourceID, owner string, ttl time.Duration) (*domain.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.leases[sourceID]; ok {
		if existing.Owner != owner && !existing.Expired(now) {
			return nil, domain.ErrLeaseHeld
		}
	}

	lease := domain.Lease{
		Source:     sourceID,
		Owner:      owner,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}
	s.leases[sourceID] = lease
	return &lease, nil
}

// ReleaseLease releases the lease if owner still holds it.
func (s *SyncStateStore) ReleaseLease(_ context.Context, sourceID, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.leases[sourceID]; ok && existing.Owner == owner {
		delete(s.leases, sourceID)
	}
	return nil
}

// GetLease returns the current lease for a source.
func (s *SyncStateStore) GetLease(_ context.Context, sourceID string) (*domain.Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lease, ok := s.leases[sourceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &lease, nil
}
