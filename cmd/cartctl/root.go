package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"cart-analytics/internal/app"
	"cart-analytics/internal/config"
	"cart-analytics/internal/observability"
	"cart-analytics/internal/pipeline"
	"cart-analytics/internal/services"
	"cart-analytics/internal/source"
)

// cli carries what every subcommand needs once flags are parsed.
type cli struct {
	cfg    *config.Config
	logger *slog.Logger

	source   string
	csvDir   string
	logLevel string
	noCache  bool
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "cartctl",
		Short: "Build and query the cart abandonment fact table",
		Long: `cartctl runs the cart abandonment pipeline in batch mode.

It reads the raw order tables from CSV files or Postgres, assembles one fact
per order, and prints or exports the named reports built on top of it.
Settings come from the environment (and an optional .env file); flags
override them.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	root.PersistentFlags().StringVar(&c.source, "source", "", "Source kind: csv or postgres (default from SOURCE_KIND)")
	root.PersistentFlags().StringVar(&c.csvDir, "csv-dir", "", "Directory holding the raw CSV files (default from CSV_DIR)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&c.noCache, "no-cache", false, "Always rebuild facts instead of reading the cache")

	root.AddCommand(
		newBuildCmd(c),
		newReportCmd(c),
		newReportsCmd(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if c.source != "" {
		cfg.Source.Kind = c.source
	}
	if c.csvDir != "" {
		cfg.Source.CSVDir = c.csvDir
	}
	if c.logLevel != "" {
		cfg.Logger.Level = c.logLevel
	}
	if c.noCache {
		cfg.Pipeline.CacheEnabled = false
	}

	c.cfg = cfg
	// Logs go to stderr so report output stays pipeable.
	c.logger = observability.NewLoggerTo(cmd.ErrOrStderr(), cfg.Logger)
	slog.SetDefault(c.logger)
	return nil
}

// load opens the configured source and assembles the fact set.
func (c *cli) load(ctx context.Context) (*services.Analytics, *pipeline.FactSet, source.Source, error) {
	src, closeSource, err := app.OpenSource(c.cfg.Source)
	if err != nil {
		return nil, nil, nil, err
	}
	defer closeSource()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Server.LoadTimeout)
	defer cancel()

	analytics := app.NewAnalytics(c.cfg, nil, c.logger)
	fs, err := analytics.Load(ctx, src)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build fact set: %w", err)
	}
	return analytics, fs, src, nil
}
