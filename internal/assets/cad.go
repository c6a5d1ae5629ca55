package assets

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/oemdata/catalog-scraper/internal/catalog"
)

// acquireCAD drives the in-browser export workflow and waits for the
// resulting file to land in the session's download directory.
func (a *Acquirer) acquireCAD(ctx context.Context, drv catalog.Driver, productID, dir string) error {
	if err := a.exportCAD(ctx, drv, productID); err != nil {
		return err
	}

	// The download is triggered out-of-band; give the browser a moment to
	// start writing before the first poll.
	a.sleep(a.cfg.SettleDelay)

	name, err := a.awaitDownload(ctx, dir)
	if err != nil {
		return err
	}
	final := filepath.Join(dir, "cad"+a.cfg.CADExtension)
	if err := a.rename(filepath.Join(dir, name), final); err != nil {
		return fmt.Errorf("move cad file: %w", err)
	}
	a.logger.Debug("cad download complete", zap.String("product_id", productID), zap.String("path", final))
	return nil
}

// exportCAD walks the drawings view: select the 2D format, pick the AutoCAD
// DWG entry from the format dropdown, and invoke the download action. The
// consent overlay is dismissed if present; failure to do so is non-fatal.
func (a *Acquirer) exportCAD(ctx context.Context, drv catalog.Driver, productID string) error {
	readyCtx, cancel := context.WithTimeout(ctx, a.cfg.ReadyTimeout)
	defer cancel()

	if err := drv.Navigate(readyCtx, a.cfg.ViewURL(productID, "drawings")); err != nil {
		return fmt.Errorf("%w: drawings view: %v", catalog.ErrAssetUnavailable, err)
	}
	a.withAffordance(ctx, func(c context.Context) error {
		return drv.ScrollIntoView(c, a.cfg.Selectors.Format2D)
	})
	if err := drv.WaitReady(readyCtx, a.cfg.Selectors.Format2D); err != nil {
		return fmt.Errorf("%w: 2d format control: %v", catalog.ErrAssetUnavailable, err)
	}

	if err := a.withAffordance(ctx, func(c context.Context) error {
		return drv.Evaluate(c, hideExpr(a.cfg.Selectors.ConsentBanner))
	}); err != nil {
		a.logger.Warn("consent banner not dismissed", zap.String("product_id", productID), zap.Error(err))
	}

	clicks := []string{
		a.cfg.Selectors.Format2D,
		a.cfg.Selectors.FormatDropdown,
		a.cfg.Selectors.DWGOption,
		a.cfg.Selectors.DownloadButton,
	}
	for _, selector := range clicks {
		if err := a.withAffordance(ctx, func(c context.Context) error {
			return drv.Click(c, selector)
		}); err != nil {
			return fmt.Errorf("%w: click %s: %v", catalog.ErrAssetUnavailable, selector, err)
		}
	}
	return nil
}

// awaitDownload polls the download directory once per tick. While any name
// carries an in-progress suffix the download is still being written; once
// the markers clear, the first file with the CAD extension is the result.
func (a *Acquirer) awaitDownload(ctx context.Context, dir string) (string, error) {
	for tick := 0; tick < a.cfg.PollTicks; tick++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("cad poll canceled: %w", err)
		}
		names, err := a.listDir(dir)
		if err != nil {
			return "", fmt.Errorf("list download dir: %w", err)
		}
		if !a.inProgress(names) {
			for _, name := range names {
				if strings.HasSuffix(strings.ToLower(name), a.cfg.CADExtension) {
					return name, nil
				}
			}
			return "", fmt.Errorf("%w: download settled without a %s file", catalog.ErrAssetUnavailable, a.cfg.CADExtension)
		}
		a.sleep(a.cfg.PollInterval)
	}
	return "", fmt.Errorf("%w: after %d ticks", catalog.ErrDownloadTimeout, a.cfg.PollTicks)
}

func (a *Acquirer) inProgress(names []string) bool {
	for _, name := range names {
		lower := strings.ToLower(name)
		for _, suffix := range a.cfg.InProgressSuffixes {
			if strings.HasSuffix(lower, suffix) {
				return true
			}
		}
	}
	return false
}

func (a *Acquirer) withAffordance(ctx context.Context, fn func(context.Context) error) error {
	affCtx, cancel := context.WithTimeout(ctx, a.cfg.AffordanceTimeout)
	defer cancel()
	return fn(affCtx)
}

func hideExpr(selector string) string {
	return fmt.Sprintf("document.querySelector(%q).style.display = 'none'", selector)
}
