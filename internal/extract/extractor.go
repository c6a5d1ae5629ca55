// Package extract reads specifications and the parts table from rendered
// product views.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/oemdata/catalog-scraper/internal/catalog"
	"github.com/oemdata/catalog-scraper/internal/config"
)

// Config controls extraction timeouts and the selector contract.
type Config struct {
	Selectors    config.Selectors
	ReadyTimeout time.Duration
	ViewURL      func(productID, tab string) string
}

// Extractor navigates deep-linked product tabs and parses their defining
// tables out of the rendered DOM.
type Extractor struct {
	cfg    Config
	logger *zap.Logger
}

// New constructs an Extractor.
func New(cfg Config, logger *zap.Logger) *Extractor {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{cfg: cfg, logger: logger}
}

// Spec row labels matched case-insensitively against the first cell of each
// rendered spec table row.
var specLabels = map[string]func(*catalog.Specs, string){
	"output @ frequency":            func(s *catalog.Specs, v string) { s.HP = strings.ReplaceAll(v, "hp", "") },
	"voltage @ frequency":           func(s *catalog.Specs, v string) { s.Voltage = strings.ReplaceAll(v, "V", "") },
	"synchronous speed @ frequency": func(s *catalog.Specs, v string) { s.RPM = strings.ReplaceAll(v, "rpm", "") },
	"frame":                         func(s *catalog.Specs, v string) { s.Frame = v },
}

// Specs extracts the ratings table from the specs tab. A readiness timeout
// yields catalog.ErrExtractionTimeout; callers treat any failure as "fields
// unavailable" for the product, never as fatal.
func (e *Extractor) Specs(ctx context.Context, drv catalog.Driver, productID string) (catalog.Specs, error) {
	html, err := e.renderTab(ctx, drv, productID, "specs", e.cfg.Selectors.SpecRows)
	if err != nil {
		return catalog.Specs{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return catalog.Specs{}, fmt.Errorf("%w: parse specs html: %v", catalog.ErrExtraction, err)
	}

	var specs catalog.Specs
	doc.Find(e.cfg.Selectors.SpecRows).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		label := strings.ToLower(strings.TrimSpace(cells.Eq(0).Text()))
		value := strings.TrimSpace(cells.Eq(1).Text())
		if assign, ok := specLabels[label]; ok && value != "" {
			assign(&specs, value)
		}
	})
	return specs, nil
}

// BOM extracts the parts table from the parts tab, one BomEntry per row.
// Rows whose three cells are all blank are discarded.
func (e *Extractor) BOM(ctx context.Context, drv catalog.Driver, productID string) ([]catalog.BomEntry, error) {
	html, err := e.renderTab(ctx, drv, productID, "parts", e.cfg.Selectors.BomRows)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: parse bom html: %v", catalog.ErrExtraction, err)
	}

	var entries []catalog.BomEntry
	doc.Find(e.cfg.Selectors.BomRows).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		partNumber := strings.TrimSpace(cells.Eq(0).Text())
		description := strings.TrimSpace(cells.Eq(1).Text())
		quantity := strings.TrimSpace(cells.Eq(2).Text())
		if partNumber == "" && description == "" && quantity == "" {
			return
		}
		entries = append(entries, catalog.BomEntry{
			PartNumber:  partNumber,
			Description: description,
			Quantity:    parseQuantity(quantity),
		})
	})
	e.logger.Debug("bom extracted", zap.String("product_id", productID), zap.Int("rows", len(entries)))
	return entries, nil
}

func (e *Extractor) renderTab(ctx context.Context, drv catalog.Driver, productID, tab, readySelector string) (string, error) {
	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.ReadyTimeout)
	defer cancel()

	url := e.cfg.ViewURL(productID, tab)
	if err := drv.Navigate(waitCtx, url); err != nil {
		return "", classify(err, tab)
	}
	if err := drv.WaitReady(waitCtx, readySelector); err != nil {
		return "", classify(err, tab)
	}
	html, err := drv.OuterHTML(waitCtx, "html")
	if err != nil {
		return "", classify(err, tab)
	}
	return html, nil
}

func classify(err error, tab string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s tab", catalog.ErrExtractionTimeout, tab)
	}
	return fmt.Errorf("%w: %s tab: %v", catalog.ErrExtraction, tab, err)
}

// parseQuantity truncates the quantity string at its fractional separator,
// so "2.0" becomes 2. Anything unparseable counts as zero.
func parseQuantity(raw string) int {
	whole, _, _ := strings.Cut(raw, ".")
	n, err := strconv.Atoi(strings.TrimSpace(whole))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
