package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/adapters/driving/ops"
	"github.com/custodia-labs/recall/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and operator endpoints",
	Long: `Runs recall as a long-lived process: the scheduler triggers
ingestion for due sources, and the operator HTTP surface exposes
source freshness and a manual ingestion trigger.

The process stops cleanly on SIGINT or SIGTERM, waiting for in-flight
ingestion runs to finish.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if schedulerService == nil || statusService == nil || ingestService == nil {
		return errors.New("services not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := ops.NewServer(appConfig.Ops.Token, statusService, ingestService, runStore)
	if err != nil {
		return err
	}
	if err := server.Start(appConfig.OpsListen()); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("ops server shutdown: %v", err)
		}
	}()

	cmd.Println("recall serving; press Ctrl+C to stop")
	if err := schedulerService.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	cmd.Println("shutting down")
	return schedulerService.Stop()
}
