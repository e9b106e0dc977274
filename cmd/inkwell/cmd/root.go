// Package cmd provides the CLI commands for inkwell.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inkwell-tools/inkwell/internal/config"
	"github.com/inkwell-tools/inkwell/internal/gateway"
	"github.com/inkwell-tools/inkwell/internal/kb"
	"github.com/inkwell-tools/inkwell/internal/logging"
	"github.com/inkwell-tools/inkwell/internal/search"
	"github.com/inkwell-tools/inkwell/pkg/version"
)

var (
	cfg            *config.Config
	debugMode      bool
	logFile        string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the inkwell CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inkwell",
		Short: "Knowledge base retrieval for long-form writing",
		Long: `Inkwell manages knowledge bases built from story material (history,
outlines, character sheets) and retrieves the fragments most relevant to
the text being written, using hybrid BM25 + embedding search.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.SetVersionTemplate("inkwell version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr only")

	cmd.PersistentPreRunE = setup
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
	}

	cmd.AddCommand(newKBCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func setup(*cobra.Command, []string) error {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	cfg, err = config.Load(wd)
	if err != nil {
		return err
	}

	logCfg := logging.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
	}
	if debugMode {
		logCfg.Level = "debug"
	}
	if logFile != "" {
		logCfg.File = logFile
	}
	loggingCleanup, err = logging.Setup(logCfg)
	return err
}

// openStore opens the knowledge base catalog from the configured path.
func openStore() (*kb.Store, error) {
	store, err := kb.Open(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open catalog at %s: %w", cfg.Storage.Path, err)
	}
	return store, nil
}

// newEmbedder builds the embedding gateway from config. The API key comes
// from INKWELL_API_KEY.
func newEmbedder() *gateway.HTTPEmbedder {
	return gateway.NewHTTPEmbedder(gateway.EmbedConfig{
		Endpoint:   cfg.Embedding.Endpoint,
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		BatchSize:  cfg.Embedding.BatchSize,
	})
}

// newEngine builds the retrieval engine with the configured gateways.
func newEngine() (*search.Engine, error) {
	var opts []search.EngineOption
	if cfg.Rerank.Enabled {
		opts = append(opts, search.WithReranker(gateway.NewHTTPReranker(gateway.RerankConfig{
			Endpoint: cfg.Rerank.Endpoint,
			APIKey:   cfg.Embedding.APIKey,
			Model:    cfg.Rerank.Model,
		})))
	}
	return search.New(newEmbedder(), opts...)
}

// searchOptions maps the config defaults onto engine options.
func searchOptions() search.Options {
	opts := search.DefaultOptions()
	opts.Alpha = cfg.Search.Alpha
	if cfg.Search.TopK > 0 {
		opts.VectorTopK = cfg.Search.TopK
		opts.BM25TopK = cfg.Search.TopK
	}
	if cfg.Search.FinalTopN > 0 {
		opts.FinalTopN = cfg.Search.FinalTopN
	}
	if cfg.Search.MinRelevanceThreshold > 0 {
		opts.MinRelevanceThreshold = cfg.Search.MinRelevanceThreshold
	}
	opts.UseMMR = cfg.Search.UseMMR
	if cfg.Search.MMRLambda > 0 {
		opts.MMRLambda = cfg.Search.MMRLambda
	}
	opts.RecencyBoost = cfg.Search.RecencyBoost
	opts.RecencyBoostSet = true
	if cfg.Search.ContextWindow > 0 {
		opts.ContextWindow = cfg.Search.ContextWindow
	}
	return opts
}
