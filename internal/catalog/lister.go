package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/oemdata/catalog-scraper/internal/ratelimit"
)

// Listing attribute names carrying the headline ratings.
const (
	attrOutput  = "output_at_frequency"
	attrVoltage = "voltage_at_frequency"
	attrSpeed   = "synchronous_speed_at_freq"
	attrFrame   = "frame"
)

// ListerConfig controls the listing API fetch.
type ListerConfig struct {
	UserAgent      string
	RequestTimeout time.Duration
}

// Lister fetches one page of the vendor listing API and normalizes its
// entries into ProductSummary records.
type Lister struct {
	baseCollector *colly.Collector
	limiter       *ratelimit.Limiter
	logger        *zap.Logger
}

// NewLister constructs a configured Colly-based Lister.
func NewLister(cfg ListerConfig, limiter *ratelimit.Limiter, logger *zap.Logger) *Lister {
	opts := []colly.CollectorOption{
		colly.UserAgent(cfg.UserAgent),
		colly.IgnoreRobotsTxt(),
	}
	base := colly.NewCollector(opts...)
	base.AllowURLRevisit = true
	if cfg.RequestTimeout > 0 {
		base.SetRequestTimeout(cfg.RequestTimeout)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lister{
		baseCollector: base,
		limiter:       limiter,
		logger:        logger,
	}
}

// List fetches the listing URL and returns normalized product summaries.
// A bad status or a body without the expected structure yields ErrListing,
// which is fatal to the whole run.
func (l *Lister) List(ctx context.Context, rawURL string) ([]ProductSummary, error) {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx, rawURL); err != nil {
			return nil, fmt.Errorf("listing rate limit: %w", err)
		}
	}

	body, err := l.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return l.parse(body)
}

func (l *Lister) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	collector := l.baseCollector.Clone()
	type fetchResult struct {
		body []byte
		err  error
	}
	resultCh := make(chan fetchResult, 1)

	collector.OnResponse(func(r *colly.Response) {
		if r.StatusCode != http.StatusOK {
			resultCh <- fetchResult{err: fmt.Errorf("%w: status %d", ErrListing, r.StatusCode)}
			return
		}
		resultCh <- fetchResult{body: append([]byte{}, r.Body...)}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			resultCh <- fetchResult{err: fmt.Errorf("%w: status %d", ErrListing, r.StatusCode)}
			return
		}
		if err == nil {
			err = errors.New("unknown colly error")
		}
		resultCh <- fetchResult{err: fmt.Errorf("%w: %v", ErrListing, err)}
	})

	if err := collector.Visit(rawURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrListing, err)
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return res.body, res.err
	default:
		return nil, fmt.Errorf("%w: no response", ErrListing)
	}
}

type listingEntry struct {
	Code        string  `json:"code"`
	Description *string `json:"description"`
	Categories  []struct {
		Text string `json:"text"`
	} `json:"categories"`
	Attributes []struct {
		Name   string `json:"name"`
		Values []struct {
			Value string `json:"value"`
		} `json:"values"`
	} `json:"attributes"`
}

type listingResponse struct {
	Results *struct {
		Matches []listingEntry `json:"matches"`
	} `json:"results"`
}

func (l *Lister) parse(body []byte) ([]ProductSummary, error) {
	var payload listingResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode body: %v", ErrListing, err)
	}
	if payload.Results == nil {
		return nil, fmt.Errorf("%w: body lacks results", ErrListing)
	}

	summaries := make([]ProductSummary, 0, len(payload.Results.Matches))
	seen := make(map[string]struct{}, len(payload.Results.Matches))
	for _, entry := range payload.Results.Matches {
		if entry.Code == "" {
			l.logger.Warn("listing entry without product code skipped")
			continue
		}
		if _, dup := seen[entry.Code]; dup {
			l.logger.Warn("duplicate product code skipped", zap.String("product_id", entry.Code))
			continue
		}
		seen[entry.Code] = struct{}{}

		summary := normalizeEntry(entry)
		summaries = append(summaries, summary)
		l.logger.Info("basic information extracted", zap.String("product_id", summary.ProductID))
	}
	return summaries, nil
}

func normalizeEntry(entry listingEntry) ProductSummary {
	var specs Specs
	for _, attribute := range entry.Attributes {
		if len(attribute.Values) == 0 {
			continue
		}
		switch attribute.Name {
		case attrOutput:
			specs.HP = strings.ReplaceAll(attribute.Values[0].Value, "hp", "")
		case attrVoltage:
			values := make([]string, 0, len(attribute.Values))
			for _, v := range attribute.Values {
				values = append(values, strings.ReplaceAll(v.Value, "V", ""))
			}
			specs.Voltage = strings.Join(values, "/")
		case attrSpeed:
			specs.RPM = strings.ReplaceAll(attribute.Values[0].Value, "rpm", "")
		case attrFrame:
			specs.Frame = attribute.Values[0].Value
		}
	}

	category := ""
	if len(entry.Categories) > 0 {
		category = entry.Categories[0].Text
	}

	return ProductSummary{
		ProductID:   entry.Code,
		Name:        deriveName(category),
		Description: entry.Description,
		Specs:       specs,
	}
}

// deriveName encodes the business naming policy: a category already naming
// "Motors" is singularized, anything else has " Motor" appended, and a
// missing category yields an empty name.
func deriveName(category string) string {
	if category == "" {
		return ""
	}
	if strings.Contains(category, "Motors") {
		return strings.ReplaceAll(category, "Motors", "Motor")
	}
	return category + " Motor"
}
