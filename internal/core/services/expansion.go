package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// ExpansionService manages the learned query expansion vocabulary:
// project codenames, team shorthand and ticket prefixes mapped to the
// longer phrases that actually appear in indexed text.
type ExpansionService struct {
	store driven.ExpansionStore
}

// NewExpansionService wraps an expansion store.
func NewExpansionService(store driven.ExpansionStore) (*ExpansionService, error) {
	if store == nil {
		return nil, fmt.Errorf("expansion service: %w: missing store", domain.ErrInvalidInput)
	}
	return &ExpansionService{store: store}, nil
}

// Seed stores or replaces an expansion entry. Terms are matched
// case-insensitively at query time, so they are stored lowercased.
func (s *ExpansionService) Seed(ctx context.Context, term, expanded string, confidence float64) error {
	term = strings.ToLower(strings.TrimSpace(term))
	expanded = strings.TrimSpace(expanded)
	if term == "" || expanded == "" {
		return fmt.Errorf("seed expansion: %w: term and expansion required", domain.ErrInvalidInput)
	}
	if confidence < 0 || confidence > 1 {
		return fmt.Errorf("seed expansion: %w: confidence %.2f out of range", domain.ErrInvalidInput, confidence)
	}
	entry := domain.ExpansionEntry{
		Term:       term,
		Expanded:   expanded,
		Confidence: confidence,
	}
	if err := s.store.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("seed expansion %q: %w", term, err)
	}
	return nil
}

// List returns the full vocabulary ordered by term.
func (s *ExpansionService) List(ctx context.Context) ([]domain.ExpansionEntry, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expansions: %w", err)
	}
	return entries, nil
}
