package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nexconsult/pan-api/internal/config"
	"github.com/nexconsult/pan-api/internal/logger"
	"github.com/nexconsult/pan-api/internal/services"
	"github.com/nexconsult/pan-api/internal/sheet"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type searchOptions struct {
	input    string
	output   string
	column   string
	workers  int
	noCache  bool
	headed   bool
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "pansearch",
		Short: "Look up every PAN in a spreadsheet on the IRD portal",
		Long: `pansearch reads PAN numbers from a column of an xlsx workbook, looks each
one up on the IRD Nepal PAN search portal and writes one row per PAN to an
output workbook.

Examples:
  pansearch
  pansearch --input clients.xlsx --output clients_pan.xlsx
  pansearch --column "PAN No" --workers 2`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSearch(ctx, cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "pan.xlsx", "Input workbook")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "pan_results.xlsx", "Output workbook")
	cmd.Flags().StringVarP(&opts.column, "column", "c", sheet.DefaultColumn, "Header of the PAN column")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Parallel browser sessions (default from PAN_WORKERS)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "Skip the record cache")
	cmd.Flags().BoolVar(&opts.headed, "headed", false, "Show the browser window")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level (default from LOG_LEVEL)")

	return cmd
}

// applyFlags overrides configuration with the flags the user actually set
func applyFlags(cmd *cobra.Command, cfg *config.Config, opts *searchOptions) error {
	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Lookup.Workers = opts.workers
		cfg.Browser.PoolSize = opts.workers
	}
	if opts.noCache {
		cfg.Lookup.CacheEnabled = false
	}
	if opts.headed {
		cfg.Browser.Headless = false
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if cfg.Browser.PoolSize < cfg.Lookup.Workers {
		cfg.Browser.PoolSize = cfg.Lookup.Workers
	}
	return cfg.Validate()
}

func runSearch(ctx context.Context, cmd *cobra.Command, opts *searchOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := applyFlags(cmd, cfg, opts); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	// Input problems abort before any browser starts
	pans, err := sheet.ReadIdentifiers(opts.input, opts.column)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"input":   opts.input,
		"column":  opts.column,
		"pans":    len(pans),
		"workers": cfg.Lookup.Workers,
	}).Info("Starting PAN search")

	container, err := services.NewContainer(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := container.Close(); err != nil {
			log.WithError(err).Warn("Failed to close services")
		}
	}()

	start := time.Now()
	results, err := container.PANService.LookupBatch(ctx, pans)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Interrupted, no output written")
		}
		return fmt.Errorf("lookup aborted: %w", err)
	}

	if err := sheet.WriteResults(opts.output, results); err != nil {
		return err
	}

	success, failed := results.Summary()
	log.WithFields(logrus.Fields{
		"output":   opts.output,
		"total":    len(results),
		"success":  success,
		"errors":   failed,
		"duration": time.Since(start),
	}).Info("PAN search completed")

	fmt.Fprintf(cmd.OutOrStdout(), "Saved %d records to %s (%d failed)\n", len(results), opts.output, failed)
	return nil
}
