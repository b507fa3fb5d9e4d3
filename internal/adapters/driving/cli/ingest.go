package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/domain"
)

var ingestDays int

var ingestCmd = &cobra.Command{
	Use:   "ingest [source-id]",
	Short: "Ingest records from sources",
	Long: `Runs the ingestion pipeline for configured sources.
If a source ID is provided, only that source is ingested.
Otherwise, all sources are ingested sequentially.

By default each run picks up from the source's last successful sync.
Use --days to backfill a wider window.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().IntVar(&ingestDays, "days", 0, "backfill this many days instead of resuming from sync state")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingestion service not configured")
	}

	ctx := cmd.Context()

	var window domain.Window
	if ingestDays > 0 {
		now := time.Now()
		window = domain.Window{Start: now.AddDate(0, 0, -ingestDays), End: now}
	}

	if len(args) > 0 {
		sourceID := args[0]
		cmd.Printf("Ingesting source: %s...\n", sourceID)

		report, err := ingestService.RunIngestion(ctx, sourceID, window)
		if err != nil {
			return fmt.Errorf("ingestion failed: %w", err)
		}
		printReport(cmd, report)
		return nil
	}

	cmd.Println("Ingesting all sources...")
	reports, err := ingestService.RunAll(ctx)
	for _, report := range reports {
		printReport(cmd, report)
	}
	if err != nil {
		return fmt.Errorf("ingestion finished with errors: %w", err)
	}
	cmd.Println("All sources ingested successfully.")
	return nil
}

func printReport(cmd *cobra.Command, report *domain.IngestReport) {
	cmd.Printf("%s: %d fetched, %d upserted, %d failed, %d skipped\n",
		report.Source, report.Fetched, report.Upserted, report.Failed, report.Skipped)
	for _, e := range report.Errors {
		cmd.Printf("  error: %s\n", e)
	}
}
