package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/domain"
)

var (
	statusHistory       bool
	statusHistoryLimit  int
	statusHistorySource string
	statusCheck         bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-source sync freshness",
	Long: `Shows the freshness of every configured source: when it last
synchronised, whether it is stale, whether a run is in progress, and
how many cached batches still await ingestion.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusHistory, "history", false, "show recent ingestion runs")
	statusCmd.Flags().IntVar(&statusHistoryLimit, "limit", 10, "number of runs to show with --history")
	statusCmd.Flags().StringVar(&statusHistorySource, "source", "", "restrict --history to one source")
	statusCmd.Flags().BoolVar(&statusCheck, "check", false, "exit non-zero when any source is stale or stuck")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if statusService == nil {
		return errors.New("status service not configured")
	}

	ctx := cmd.Context()
	statuses, err := statusService.SourceStatuses(ctx)
	if err != nil {
		return fmt.Errorf("reading source statuses: %w", err)
	}

	var staleSources []string

	cmd.Println("Sources:")
	for _, st := range statuses {
		marker := "ok"
		switch {
		case !st.StuckSince.IsZero():
			marker = fmt.Sprintf("STUCK since %s", st.StuckSince.Format(time.RFC3339))
		case st.Running:
			marker = "running"
		case st.IsStale:
			marker = "STALE"
		}

		last := "never"
		if !st.LastSync.IsZero() {
			last = fmt.Sprintf("%s (%s ago)", st.LastSync.Format(time.RFC3339), st.Age.Truncate(time.Second))
		}

		cmd.Printf("  %-12s %-8s last sync: %s", st.Source, marker, last)
		if st.PendingBatches > 0 {
			cmd.Printf("  pending batches: %d", st.PendingBatches)
		}
		cmd.Println()

		if st.IsStale || !st.StuckSince.IsZero() {
			staleSources = append(staleSources, st.Source)
		}
	}

	if statusCheck && len(staleSources) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrStaleSync, strings.Join(staleSources, ", "))
	}

	if !statusHistory {
		return nil
	}
	if runStore == nil {
		return errors.New("run history not configured")
	}

	runs, err := runStore.ListRuns(ctx, statusHistorySource, statusHistoryLimit)
	if err != nil {
		return fmt.Errorf("reading run history: %w", err)
	}

	cmd.Println()
	cmd.Println("Recent runs:")
	if len(runs) == 0 {
		cmd.Println("  none recorded")
		return nil
	}
	for _, run := range runs {
		outcome := "ok"
		if !run.Success {
			outcome = "FAILED: " + run.Error
		}
		cmd.Printf("  %s  %-12s %d upserted in %s  %s\n",
			run.StartedAt.Format(time.RFC3339),
			run.Source,
			run.Report.Upserted,
			run.EndedAt.Sub(run.StartedAt).Truncate(time.Second),
			outcome)
	}
	return nil
}
