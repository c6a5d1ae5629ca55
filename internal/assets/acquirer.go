// Package assets downloads the manual, image, and CAD drawing for a product.
// The CAD drawing is produced by an in-browser export whose completion is
// detected by polling the session's exclusive download directory.
package assets

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/oemdata/catalog-scraper/internal/catalog"
	"github.com/oemdata/catalog-scraper/internal/config"
	"github.com/oemdata/catalog-scraper/internal/ratelimit"
)

// Config controls asset acquisition.
type Config struct {
	Selectors           config.Selectors
	OutputRoot          string
	UserAgent           string
	ConnectTimeout      time.Duration
	ReadTimeout         time.Duration
	ReadyTimeout        time.Duration
	AffordanceTimeout   time.Duration
	PollInterval        time.Duration
	PollTicks           int
	SettleDelay         time.Duration
	InProgressSuffixes  []string
	CADExtension        string
	PlaceholderImageURL string
	ManualURL           func(productID string) string
	ViewURL             func(productID, tab string) string
}

// Acquirer fetches the three asset types for one product. Per-asset failures
// are logged and leave the corresponding AssetSet field empty; they never
// abort sibling assets.
type Acquirer struct {
	cfg     Config
	client  *http.Client
	limiter *ratelimit.Limiter
	logger  *zap.Logger

	// Injected for deterministic polling tests.
	sleep   func(time.Duration)
	listDir func(string) ([]string, error)
	rename  func(oldpath, newpath string) error
}

// New constructs an Acquirer with a streaming HTTP client.
func New(cfg Config, limiter *ratelimit.Limiter, logger *zap.Logger) *Acquirer {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 30 * time.Second
	}
	if cfg.AffordanceTimeout <= 0 {
		cfg.AffordanceTimeout = 10 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.PollTicks <= 0 {
		cfg.PollTicks = 60
	}
	if cfg.CADExtension == "" {
		cfg.CADExtension = ".dwg"
	}
	if len(cfg.InProgressSuffixes) == 0 {
		cfg.InProgressSuffixes = []string{".crdownload", ".tmp"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := &http.Client{
		Timeout: cfg.ReadTimeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: cfg.ConnectTimeout,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: cfg.ReadTimeout,
			ForceAttemptHTTP2:     true,
		},
	}
	return &Acquirer{
		cfg:     cfg,
		client:  client,
		limiter: limiter,
		logger:  logger,
		sleep:   time.Sleep,
		listDir: listDirNames,
		rename:  os.Rename,
	}
}

// Acquire downloads all assets for productID into the product's arena
// directory and returns the set of relative paths that succeeded.
func (a *Acquirer) Acquire(ctx context.Context, drv catalog.Driver, productID string) catalog.AssetSet {
	var assets catalog.AssetSet
	dir := filepath.Join(a.cfg.OutputRoot, "assets", productID)
	rel := path.Join("assets", productID)

	if err := a.download(ctx, a.cfg.ManualURL(productID), filepath.Join(dir, "manual.pdf")); err != nil {
		a.logger.Warn("manual unavailable", zap.String("product_id", productID), zap.Error(err))
	} else {
		assets.Manual = path.Join(rel, "manual.pdf")
	}

	if imgURL := a.imageURL(ctx, drv, productID); imgURL != "" {
		if err := a.download(ctx, imgURL, filepath.Join(dir, "img.jpg")); err != nil {
			a.logger.Warn("image unavailable", zap.String("product_id", productID), zap.Error(err))
		} else {
			assets.Image = path.Join(rel, "img.jpg")
		}
	}

	if err := a.acquireCAD(ctx, drv, productID, dir); err != nil {
		a.logger.Warn("cad unavailable", zap.String("product_id", productID), zap.Error(err))
	} else {
		assets.CAD = path.Join(rel, "cad.dwg")
	}

	return assets
}

// imageURL reads the product image source from the rendered page. The site's
// "no image" placeholder counts as absent, not as an error.
func (a *Acquirer) imageURL(ctx context.Context, drv catalog.Driver, productID string) string {
	readCtx, cancel := context.WithTimeout(ctx, a.cfg.AffordanceTimeout)
	defer cancel()

	src, ok, err := drv.AttributeValue(readCtx, a.cfg.Selectors.ProductImage, "src")
	if err != nil || !ok || src == "" {
		a.logger.Info("no image available", zap.String("product_id", productID))
		return ""
	}
	if a.cfg.PlaceholderImageURL != "" && src == a.cfg.PlaceholderImageURL {
		a.logger.Info("placeholder image skipped", zap.String("product_id", productID))
		return ""
	}
	return src
}

// download streams a GET response body to dest.
func (a *Acquirer) download(ctx context.Context, rawURL, dest string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: no url", catalog.ErrAssetUnavailable)
	}
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx, rawURL); err != nil {
			return fmt.Errorf("asset rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", catalog.ErrAssetUnavailable, err)
	}
	req.Header.Set("User-Agent", a.cfg.UserAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", catalog.ErrAssetUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", catalog.ErrAssetUnavailable, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("create asset dir: %w", err)
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create asset file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("%w: stream body: %v", catalog.ErrAssetUnavailable, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close asset file: %w", err)
	}
	return nil
}

func listDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}
