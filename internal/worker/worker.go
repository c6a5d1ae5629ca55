// Package worker implements the per-product acquisition pipeline and its
// bounded concurrent orchestration.
package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oemdata/catalog-scraper/internal/catalog"
	"github.com/oemdata/catalog-scraper/internal/progress"
)

// Config controls Orchestrator behavior.
type Config struct {
	Workers    int
	OutputRoot string
}

// RunSummary aggregates per-product outcomes for one pipeline invocation.
type RunSummary struct {
	RunID     uuid.UUID
	Processed int
	Failed    int
	Duration  time.Duration
	Outcomes  []catalog.ProductOutcome
}

// Orchestrator owns the worker pool. Each worker runs one product end-to-end
// through session open, extraction, asset acquisition, and persistence
// before accepting the next; workers share nothing mutable beyond the
// immutable configuration.
type Orchestrator struct {
	sessions  catalog.SessionFactory
	extractor catalog.Extractor
	acquirer  catalog.Acquirer
	persister catalog.Persister
	emitter   progress.Emitter
	cfg       Config
	logger    *zap.Logger
}

// New constructs an Orchestrator.
func New(
	sessions catalog.SessionFactory,
	extractor catalog.Extractor,
	acquirer catalog.Acquirer,
	persister catalog.Persister,
	emitter progress.Emitter,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.OutputRoot == "" {
		cfg.OutputRoot = "output"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		sessions:  sessions,
		extractor: extractor,
		acquirer:  acquirer,
		persister: persister,
		emitter:   emitter,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run processes every summary under the bounded pool and returns the
// aggregated run summary. Results may complete in any order across
// products; within one product the stage order is strict.
func (o *Orchestrator) Run(ctx context.Context, products []catalog.ProductSummary) RunSummary {
	runID := newRunID()
	start := time.Now()
	o.emit(progress.Event{RunID: runID, TS: start.UTC(), Stage: progress.StageRunStart})

	jobs := make(chan catalog.ProductSummary)
	results := make(chan catalog.ProductOutcome, len(products))

	var wg sync.WaitGroup
	for i := 0; i < o.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for product := range jobs {
				results <- o.processProduct(ctx, runID, product)
			}
		}()
	}

feed:
	for _, product := range products {
		select {
		case jobs <- product:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	summary := RunSummary{RunID: runID, Duration: time.Since(start)}
	for outcome := range results {
		summary.Outcomes = append(summary.Outcomes, outcome)
		if outcome.Failed() {
			summary.Failed++
		} else {
			summary.Processed++
		}
	}
	o.emit(progress.Event{
		RunID: runID,
		TS:    time.Now().UTC(),
		Stage: progress.StageRunDone,
		Dur:   summary.Duration,
	})
	return summary
}

// processProduct runs one product through the pipeline. Extraction and asset
// failures degrade to missing data; only session-open and persist failures
// abandon the product.
func (o *Orchestrator) processProduct(ctx context.Context, runID uuid.UUID, product catalog.ProductSummary) catalog.ProductOutcome {
	start := time.Now()
	log := o.logger.With(zap.String("product_id", product.ProductID))
	log.Info("processing product")
	o.emit(progress.Event{
		RunID:     runID,
		TS:        start.UTC(),
		Stage:     progress.StageProductStart,
		ProductID: product.ProductID,
	})

	outcome := catalog.ProductOutcome{ProductID: product.ProductID}
	fail := func(err error) catalog.ProductOutcome {
		outcome.Err = err
		outcome.Duration = time.Since(start)
		log.Error("product abandoned", zap.Error(err))
		o.emit(progress.Event{
			RunID:     runID,
			TS:        time.Now().UTC(),
			Stage:     progress.StageProductError,
			ProductID: product.ProductID,
			Dur:       outcome.Duration,
			Note:      err.Error(),
		})
		return outcome
	}

	// The arena: the product's exclusive download and asset directory,
	// keyed by the unique product id so no two workers ever share one.
	arena := filepath.Join(o.cfg.OutputRoot, "assets", product.ProductID)
	if err := os.MkdirAll(arena, 0o750); err != nil {
		return fail(fmt.Errorf("allocate download dir: %w", err))
	}

	session, err := o.sessions.Open(ctx, arena)
	if err != nil {
		return fail(err)
	}
	defer session.Close()
	drv := session.Driver()

	if specs, err := o.extractor.Specs(ctx, drv, product.ProductID); err != nil {
		log.Warn("specs unavailable", zap.Error(err))
	} else {
		product.Specs = mergeSpecs(product.Specs, specs)
	}

	bom, err := o.extractor.BOM(ctx, drv, product.ProductID)
	if err != nil {
		log.Warn("bom unavailable", zap.Error(err))
		bom = nil
	}

	assets := o.acquirer.Acquire(ctx, drv, product.ProductID)
	o.emitAssets(runID, product.ProductID, assets)

	detail := catalog.ProductDetail{
		ProductSummary: product,
		BOM:            bom,
		Assets:         assets,
	}
	result, err := o.persister.Finalize(ctx, detail)
	if err != nil {
		return fail(fmt.Errorf("persist document: %w", err))
	}

	outcome.Path = result.Path
	outcome.Missing = result.Missing
	outcome.Duration = time.Since(start)
	if len(result.Missing) > 0 {
		log.Warn("information acquired with missing fields", zap.Strings("missing", result.Missing))
	} else {
		log.Info("information acquired")
	}
	o.emit(progress.Event{
		RunID:     runID,
		TS:        time.Now().UTC(),
		Stage:     progress.StageProductDone,
		ProductID: product.ProductID,
		Missing:   len(result.Missing),
		Dur:       outcome.Duration,
	})
	return outcome
}

func (o *Orchestrator) emitAssets(runID uuid.UUID, productID string, assets catalog.AssetSet) {
	for kind, rel := range map[string]string{
		"manual": assets.Manual,
		"image":  assets.Image,
		"cad":    assets.CAD,
	} {
		if rel == "" {
			continue
		}
		o.emit(progress.Event{
			RunID:     runID,
			TS:        time.Now().UTC(),
			Stage:     progress.StageAssetDone,
			ProductID: productID,
			Asset:     kind,
		})
	}
}

func (o *Orchestrator) emit(evt progress.Event) {
	if o.emitter == nil {
		return
	}
	o.emitter.Emit(evt)
}

// mergeSpecs keeps listing-derived values and fills only the fields the
// listing left empty; the two sources are authoritative for disjoint fields.
func mergeSpecs(listing, extracted catalog.Specs) catalog.Specs {
	if strings.TrimSpace(listing.HP) == "" {
		listing.HP = extracted.HP
	}
	if strings.TrimSpace(listing.Voltage) == "" {
		listing.Voltage = extracted.Voltage
	}
	if strings.TrimSpace(listing.RPM) == "" {
		listing.RPM = extracted.RPM
	}
	if strings.TrimSpace(listing.Frame) == "" {
		listing.Frame = extracted.Frame
	}
	return listing
}

func newRunID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
