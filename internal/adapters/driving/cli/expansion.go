package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var expansionCmd = &cobra.Command{
	Use:   "expansion",
	Short: "Manage the query expansion vocabulary",
	Long: `Manages learned query expansions: project codenames, team
shorthand and ticket prefixes mapped to the longer phrases that appear
in indexed text. Confident expansions widen searches automatically.`,
}

var expansionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all expansion entries",
	RunE:  runExpansionList,
}

var expansionSeedCmd = &cobra.Command{
	Use:   "seed [term] [expansion] [confidence]",
	Short: "Add or update an expansion entry",
	Args:  cobra.ExactArgs(3),
	RunE:  runExpansionSeed,
}

func init() {
	expansionCmd.AddCommand(expansionListCmd)
	expansionCmd.AddCommand(expansionSeedCmd)
	rootCmd.AddCommand(expansionCmd)
}

func runExpansionList(cmd *cobra.Command, _ []string) error {
	if expansionService == nil {
		return errors.New("expansion service not configured")
	}

	entries, err := expansionService.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		cmd.Println("No expansion entries.")
		return nil
	}

	for _, e := range entries {
		cmd.Printf("  %-16s -> %-40s confidence %.2f  used %d  hits %d\n",
			e.Term, e.Expanded, e.Confidence, e.UsageCount, e.SuccessCount)
	}
	return nil
}

func runExpansionSeed(cmd *cobra.Command, args []string) error {
	if expansionService == nil {
		return errors.New("expansion service not configured")
	}

	confidence, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("bad confidence %q: %w", args[2], err)
	}

	if err := expansionService.Seed(cmd.Context(), args[0], args[1], confidence); err != nil {
		return err
	}
	cmd.Printf("Seeded expansion %q -> %q\n", args[0], args[1])
	return nil
}
