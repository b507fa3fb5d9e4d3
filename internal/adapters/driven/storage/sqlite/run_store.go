package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// runStore implements driven.RunStore.
type runStore struct {
	store *Store
}

var _ driven.RunStore = (*runStore)(nil)

// RecordRun logs a completed ingestion run. The report is stored as
// JSON; the indexed columns carry everything list queries need.
func (s *runStore) RecordRun(ctx context.Context, run domain.IngestRun) error {
	report, err := json.Marshal(run.Report)
	if err != nil {
		return fmt.Errorf("marshalling run report: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO ingest_run (id, source_id, started_at, ended_at, success, error, report)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Source, run.StartedAt.UnixNano(), run.EndedAt.UnixNano(), boolToInt(run.Success), run.Error, string(report))
	if err != nil {
		return fmt.Errorf("recording run %q: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns recent runs, most recent first. An empty sourceID
// returns runs across all sources.
func (s *runStore) ListRuns(ctx context.Context, sourceID string, limit int) ([]domain.IngestRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, source_id, started_at, ended_at, success, error, report
		FROM ingest_run
	`
	args := []any{}
	if sourceID != "" {
		query += " WHERE source_id = ?"
		args = append(args, sourceID)
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.IngestRun
	for rows.Next() {
		var (
			run                domain.IngestRun
			startedAt, endedAt int64
			success            int
			report             string
		)
		if err := rows.Scan(&run.ID, &run.Source, &startedAt, &endedAt, &success, &run.Error, &report); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		run.StartedAt = time.Unix(0, startedAt)
		run.EndedAt = time.Unix(0, endedAt)
		run.Success = success != 0
		if err := json.Unmarshal([]byte(report), &run.Report); err != nil {
			return nil, fmt.Errorf("unmarshalling run report %q: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// PruneHistory keeps the most recent 'keep' runs per source and
// deletes the rest.
func (s *runStore) PruneHistory(ctx context.Context, keep int) error {
	if keep <= 0 {
		return fmt.Errorf("prune history: %w: keep must be positive", domain.ErrInvalidInput)
	}

	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM ingest_run WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (
					PARTITION BY source_id ORDER BY started_at DESC
				) AS rank
				FROM ingest_run
			) WHERE rank > ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning run history: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
