// Package cli provides the recall command-line interface.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/adapters/driven/cache/bolt"
	configfile "github.com/custodia-labs/recall/internal/adapters/driven/config/file"
	"github.com/custodia-labs/recall/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/recall/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/recall/internal/adapters/driven/index/httpindex"
	"github.com/custodia-labs/recall/internal/adapters/driven/sourceclient/httpsource"
	"github.com/custodia-labs/recall/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/core/services"
	"github.com/custodia-labs/recall/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Services wired by initServices, consumed by the subcommands.
var (
	appConfig        *configfile.Config
	ingestService    driving.Ingestor
	retrievalService driving.Retriever
	statusService    driving.StatusReporter
	schedulerService driving.Scheduler
	expansionService *services.ExpansionService
	runStore         driven.RunStore

	closers []func() error
)

var (
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Team knowledge retrieval across issue trackers, chat and documents",
	Long: `recall continuously ingests records from configured work systems
(issue trackers, chat exports, meeting transcripts, documents, time logs)
into a vector index and answers natural-language queries against it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(flagVerbose)
		// version never needs wiring
		if cmd.Name() == "version" {
			return nil
		}
		return initServices()
	},
	PersistentPostRunE: func(*cobra.Command, []string) error {
		return closeServices()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (default ~/.recall/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose output")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		closeServices()
		os.Exit(1)
	}
}

// initServices loads the configuration and wires every service. Safe
// to call more than once; wiring only happens on the first call.
func initServices() error {
	if appConfig != nil {
		return nil
	}

	cfg, err := configfile.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	store, err := sqlite.NewStore("")
	if err != nil {
		return fmt.Errorf("opening metadata store: %w", err)
	}
	closers = append(closers, store.Close)

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("getting home directory: %w", err)
	}
	cache, err := bolt.Open(filepath.Join(home, ".recall", "data", "backfill.db"))
	if err != nil {
		return fmt.Errorf("opening backfill cache: %w", err)
	}
	closers = append(closers, cache.Close)

	embedder, err := newEmbedder(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("creating embedding service: %w", err)
	}
	closers = append(closers, embedder.Close)

	index, err := httpindex.NewIndex(httpindex.Config{
		BaseURL:    cfg.Index.BaseURL,
		APIKey:     cfg.Index.APIKey,
		Collection: cfg.Index.Collection,
	})
	if err != nil {
		return fmt.Errorf("creating index client: %w", err)
	}
	closers = append(closers, index.Close)

	sources := cfg.DomainSources()
	syncStore := store.SyncStateStore()
	runStore = store.RunStore()

	ingestor, err := services.NewIngestionService(
		services.IngestionConfig{Sources: sources},
		httpsource.NewFactory(),
		cache,
		syncStore,
		embedder,
		index,
		runStore,
	)
	if err != nil {
		return fmt.Errorf("creating ingestion service: %w", err)
	}
	closers = append(closers, ingestor.Close)
	ingestService = ingestor

	retrievalService, err = services.NewRetrievalService(
		services.RetrievalConfig{Sources: sources},
		embedder,
		index,
		store.ExpansionStore(),
	)
	if err != nil {
		return fmt.Errorf("creating retrieval service: %w", err)
	}

	schedulerService, err = services.NewSchedulerService(services.SchedulerConfig{
		Sources:    sources,
		Tick:       cfg.Tick(),
		RunTimeout: cfg.RunTimeout(),
		StaleAfter: cfg.StaleAfter(),
	}, syncStore, ingestService)
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}

	statusService, err = services.NewStatusService(services.StatusConfig{
		Sources:    sources,
		StaleAfter: cfg.StaleAfter(),
		RunTimeout: cfg.RunTimeout(),
	}, syncStore, cache, ingestService)
	if err != nil {
		return fmt.Errorf("creating status service: %w", err)
	}

	expansionService, err = services.NewExpansionService(store.ExpansionStore())
	if err != nil {
		return fmt.Errorf("creating expansion service: %w", err)
	}

	appConfig = cfg
	return nil
}

// newEmbedder selects the embedding backend from configuration.
func newEmbedder(cfg configfile.EmbeddingConfig) (driven.EmbeddingService, error) {
	if cfg.Provider == "ollama" {
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}), nil
	}
	return openai.NewEmbeddingService(openai.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	})
}

func closeServices() error {
	var firstErr error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	closers = nil
	return firstErr
}
