package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/domain"
)

var (
	searchLimit   int
	searchJSON    bool
	searchSources []string
	searchProject string
	searchSince   string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search ingested records",
	Long: `Answers a natural-language query against the vector index.
Results are ranked by semantic relevance with recency and per-source
boosts, and carry the full structured fields of each record.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().StringSliceVar(&searchSources, "source", nil, "restrict to these source ids")
	searchCmd.Flags().StringVar(&searchProject, "project", "", "restrict to one project")
	searchCmd.Flags().StringVar(&searchSince, "since", "", "restrict to records after this duration ago, e.g. 720h")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if retrievalService == nil {
		return errors.New("retrieval service not configured")
	}

	filters := domain.SearchFilters{
		Sources: searchSources,
		Project: searchProject,
	}
	if searchSince != "" {
		d, err := time.ParseDuration(searchSince)
		if err != nil {
			return fmt.Errorf("bad --since value %q: %w", searchSince, err)
		}
		filters.From = time.Now().Add(-d)
	}

	results, err := retrievalService.Search(cmd.Context(), query, filters, searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, results)
	}
	return outputSearchText(cmd, results)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchText(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		r := &results[i]
		title := r.Title
		if title == "" {
			title = r.ID
		}
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, title, r.Score)
		cmd.Printf("      Source: %s", r.Source)
		if !r.OccurredAt.IsZero() {
			cmd.Printf("  %s", r.OccurredAt.Format("2006-01-02"))
		}
		cmd.Println()
		if r.Snippet != "" {
			cmd.Printf("      %s\n", r.Snippet)
		}
		if r.URL != "" {
			cmd.Printf("      %s\n", r.URL)
		}
		cmd.Println()
	}
	return nil
}
