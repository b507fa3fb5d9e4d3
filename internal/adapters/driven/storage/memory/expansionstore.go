package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure ExpansionStore implements the interface.
var _ driven.ExpansionStore = (*ExpansionStore)(nil)

// ExpansionStore is an in-memory implementation of driven.ExpansionStore.
type ExpansionStore struct {
	mu      sync.RWMutex
	entries map[string]domain.ExpansionEntry
}

// NewExpansionStore creates a new in-memory expansion store.
func NewExpansionStore() *ExpansionStore {
	return &ExpansionStore{entries: make(map[string]domain.ExpansionEntry)}
}

// Lookup returns the entry for a term.
func (s *ExpansionStore) Lookup(_ context.Context, term string) (*domain.ExpansionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[strings.ToLower(term)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &entry, nil
}

// Upsert stores or updates an entry keyed by term.
func (s *ExpansionStore) Upsert(_ context.Context, entry domain.ExpansionEntry) error {
	if entry.Term == "" || entry.Expanded == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.Term = strings.ToLower(entry.Term)
	s.entries[entry.Term] = entry
	return nil
}

// List returns all entries ordered by term.
func (s *ExpansionStore) List(_ context.Context) ([]domain.ExpansionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.ExpansionEntry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Term < entries[j].Term })
	return entries, nil
}

// RecordUse increments the usage counter for a term.
func (s *ExpansionStore) RecordUse(_ context.Context, term string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[strings.ToLower(term)]; ok {
		entry.UsageCount++
		s.entries[entry.Term] = entry
	}
	return nil
}

// RecordSuccess increments the success counter for a term.
func (s *ExpansionStore) RecordSuccess(_ context.Context, term string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[strings.ToLower(term)]; ok {
		entry.SuccessCount++
		s.entries[entry.Term] = entry
	}
	return nil
}
