package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// expansionStore implements driven.ExpansionStore.
type expansionStore struct {
	store *Store
}

var _ driven.ExpansionStore = (*expansionStore)(nil)

// Lookup returns the entry for a term, matched case-insensitively.
func (s *expansionStore) Lookup(ctx context.Context, term string) (*domain.ExpansionEntry, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT term, expanded, confidence, usage_count, success_count
		FROM query_expansion WHERE term = ?
	`, strings.ToLower(term))

	entry, err := scanExpansion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("expansion for %q: %w", term, domain.ErrNotFound)
		}
		return nil, err
	}
	return entry, nil
}

// Upsert stores or updates an entry keyed by term.
func (s *expansionStore) Upsert(ctx context.Context, entry domain.ExpansionEntry) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO query_expansion (term, expanded, confidence, usage_count, success_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(term) DO UPDATE SET
			expanded = excluded.expanded,
			confidence = excluded.confidence
	`, strings.ToLower(entry.Term), entry.Expanded, entry.Confidence, entry.UsageCount, entry.SuccessCount)
	if err != nil {
		return fmt.Errorf("upserting expansion %q: %w", entry.Term, err)
	}
	return nil
}

// List returns all entries ordered by term.
func (s *expansionStore) List(ctx context.Context) ([]domain.ExpansionEntry, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT term, expanded, confidence, usage_count, success_count
		FROM query_expansion ORDER BY term
	`)
	if err != nil {
		return nil, fmt.Errorf("querying expansions: %w", err)
	}
	defer rows.Close()

	var entries []domain.ExpansionEntry
	for rows.Next() {
		var entry domain.ExpansionEntry
		if err := rows.Scan(&entry.Term, &entry.Expanded, &entry.Confidence, &entry.UsageCount, &entry.SuccessCount); err != nil {
			return nil, fmt.Errorf("scanning expansion: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating expansions: %w", err)
	}
	return entries, nil
}

// RecordUse increments the usage counter for a term.
func (s *expansionStore) RecordUse(ctx context.Context, term string) error {
	return s.bump(ctx, term, "usage_count")
}

// RecordSuccess increments the success counter for a term.
func (s *expansionStore) RecordSuccess(ctx context.Context, term string) error {
	return s.bump(ctx, term, "success_count")
}

func (s *expansionStore) bump(ctx context.Context, term, column string) error {
	// column is one of two fixed names, never user input
	res, err := s.store.db.ExecContext(ctx,
		"UPDATE query_expansion SET "+column+" = "+column+" + 1 WHERE term = ?",
		strings.ToLower(term))
	if err != nil {
		return fmt.Errorf("incrementing %s for %q: %w", column, term, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking %s update for %q: %w", column, term, err)
	}
	if affected == 0 {
		return fmt.Errorf("expansion for %q: %w", term, domain.ErrNotFound)
	}
	return nil
}

func scanExpansion(row *sql.Row) (*domain.ExpansionEntry, error) {
	var entry domain.ExpansionEntry
	if err := row.Scan(&entry.Term, &entry.Expanded, &entry.Confidence, &entry.UsageCount, &entry.SuccessCount); err != nil {
		return nil, err
	}
	return &entry, nil
}
