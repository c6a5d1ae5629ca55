// Package cmd defines and implements the CLI commands for the
// catalog-scraper executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oemdata/catalog-scraper/internal/config"
	"github.com/oemdata/catalog-scraper/internal/logging"
)

var cfgFile string

// appKeyType is the key for storing the app context value.
type appKeyType string

const appKey appKeyType = "app"

// appContext carries the loaded configuration and logger into subcommands.
type appContext struct {
	cfg    config.Config
	logger *zap.Logger
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog-scraper",
		Short: "Acquires structured product records from a vendor web catalog.",
		Long: `catalog-scraper fetches a page of catalog products from the vendor's
listing API and runs each product through a concurrent acquisition
pipeline: a fresh headless browser session per product extracts the
specifications and parts table, downloads the manual, image, and CAD
drawing, and persists one self-contained JSON document per product.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := os.MkdirAll(cfg.Scrape.OutputRoot, 0o750); err != nil {
				return fmt.Errorf("create output root: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development, filepath.Join(cfg.Scrape.OutputRoot, "scraper.log"))
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, &appContext{cfg: cfg, logger: logger})
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if app, ok := cmd.Context().Value(appKey).(*appContext); ok && app != nil {
				_ = app.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default uses built-in defaults and SCRAPER_* env vars)")
	cmd.AddCommand(newScrapeCmd())
	return cmd
}

func resolveApp(ctx context.Context) (*appContext, error) {
	app, ok := ctx.Value(appKey).(*appContext)
	if !ok || app == nil {
		return nil, errors.New("application services not initialized")
	}
	return app, nil
}

// Execute runs the CLI. It terminates the process with a non-zero status on
// error; cancellation is signal-driven only.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
