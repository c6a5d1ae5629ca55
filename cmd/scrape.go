package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oemdata/catalog-scraper/internal/assets"
	"github.com/oemdata/catalog-scraper/internal/browser"
	"github.com/oemdata/catalog-scraper/internal/catalog"
	"github.com/oemdata/catalog-scraper/internal/config"
	"github.com/oemdata/catalog-scraper/internal/extract"
	"github.com/oemdata/catalog-scraper/internal/persist"
	"github.com/oemdata/catalog-scraper/internal/progress"
	"github.com/oemdata/catalog-scraper/internal/progress/sinks"
	"github.com/oemdata/catalog-scraper/internal/ratelimit"
	"github.com/oemdata/catalog-scraper/internal/worker"
)

// newScrapeCmd creates the 'scrape' subcommand, which lists the configured
// catalog page and runs every product through the acquisition pipeline.
func newScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Scrapes the configured catalog page",
		Long: `Fetches one page of products from the listing API and processes each
product under the bounded worker pool. Every product yields a JSON
document even under partial failure; missing fields are reported as
warnings, not errors.`,

		RunE: runScrapeCommand,
	}
}

func runScrapeCommand(cmd *cobra.Command, _ []string) error {
	app, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg, logger := app.cfg, app.logger

	limiter := ratelimit.New(ratelimit.Config{
		RPS:   cfg.RateLimit.RPS,
		Burst: cfg.RateLimit.Burst,
	})

	lister := catalog.NewLister(catalog.ListerConfig{
		UserAgent:      cfg.Browser.UserAgent,
		RequestTimeout: cfg.API.Timeout(),
	}, limiter, logger)

	logger.Info("getting catalog page",
		zap.Int("category", cfg.API.Category),
		zap.Int("page_size", cfg.API.PageSize),
	)
	summaries, err := lister.List(cmd.Context(), cfg.API.ListingURL())
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}
	logger.Info("products listed", zap.Int("count", len(summaries)))

	orchestrator, hub, store, err := buildPipeline(cfg, logger, limiter)
	if err != nil {
		return err
	}

	summary := orchestrator.Run(cmd.Context(), summaries)

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if cerr := hub.Close(closeCtx); cerr != nil {
		logger.Warn("progress hub close failed", zap.Error(cerr))
	}

	_, completed, failed, missing := store.Totals()
	logger.Info("run finished",
		zap.String("run_id", summary.RunID.String()),
		zap.Int("processed", completed),
		zap.Int("failed", failed),
		zap.Int("missing_fields", missing),
		zap.Duration("duration", summary.Duration),
	)
	return nil
}

func buildPipeline(cfg config.Config, logger *zap.Logger, limiter *ratelimit.Limiter) (*worker.Orchestrator, *progress.Hub, *sinks.StoreSink, error) {
	manager := browser.NewManager(browser.Config{
		UserAgent:         cfg.Browser.UserAgent,
		OpenTimeout:       time.Duration(cfg.Browser.OpenTimeoutSeconds) * time.Second,
		NavigationTimeout: time.Duration(cfg.Browser.NavigationTimeoutSeconds) * time.Second,
	}, logger)

	extractor := extract.New(extract.Config{
		Selectors:    cfg.Selectors,
		ReadyTimeout: time.Duration(cfg.Browser.ReadyTimeoutSeconds) * time.Second,
		ViewURL:      cfg.API.ProductViewURL,
	}, logger)

	acquirer := assets.New(assets.Config{
		Selectors:           cfg.Selectors,
		OutputRoot:          cfg.Scrape.OutputRoot,
		UserAgent:           cfg.Browser.UserAgent,
		ConnectTimeout:      time.Duration(cfg.Assets.ConnectTimeoutSeconds) * time.Second,
		ReadTimeout:         time.Duration(cfg.Assets.ReadTimeoutSeconds) * time.Second,
		ReadyTimeout:        time.Duration(cfg.Browser.ReadyTimeoutSeconds) * time.Second,
		AffordanceTimeout:   time.Duration(cfg.Browser.AffordanceTimeoutSeconds) * time.Second,
		PollInterval:        time.Duration(cfg.Assets.PollIntervalMs) * time.Millisecond,
		PollTicks:           cfg.Assets.PollTicks,
		SettleDelay:         time.Duration(cfg.Assets.SettleDelayMs) * time.Millisecond,
		InProgressSuffixes:  cfg.Assets.InProgressSuffixes,
		CADExtension:        cfg.Assets.CADExtension,
		PlaceholderImageURL: cfg.Assets.PlaceholderImageURL,
		ManualURL:           cfg.API.InfopacketURL,
		ViewURL:             cfg.API.ProductViewURL,
	}, limiter, logger)

	persister, err := persist.New(cfg.Scrape.OutputRoot, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init persister: %w", err)
	}

	store := sinks.NewStoreSink()
	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init prometheus sink: %w", err)
	}
	hub := progress.NewHub(
		progress.Config{Logger: logger},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
		store,
	)

	orchestrator := worker.New(manager, extractor, acquirer, persister, hub, worker.Config{
		Workers:    cfg.Scrape.Workers,
		OutputRoot: cfg.Scrape.OutputRoot,
	}, logger)
	return orchestrator, hub, store, nil
}
