// Package browser manages per-product headless Chrome sessions via chromedp.
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/oemdata/catalog-scraper/internal/catalog"
)

// Config controls session creation.
type Config struct {
	UserAgent         string
	OpenTimeout       time.Duration
	NavigationTimeout time.Duration
}

// Manager opens isolated sessions, each bound to one download directory.
type Manager struct {
	cfg    Config
	logger *zap.Logger
}

// NewManager creates a session factory using the provided configuration.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{cfg: cfg, logger: logger}
}

// Open starts a fresh headless browser whose downloads land in downloadDir.
// Failures carry catalog.ErrSessionInit; the caller abandons the product but
// keeps the pool running.
func (m *Manager) Open(ctx context.Context, downloadDir string) (catalog.Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-web-security", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("start-maximized", true),
		chromedp.UserAgent(m.cfg.UserAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		downloadDir: downloadDir,
		navTimeout:  m.cfg.NavigationTimeout,
		logger:      m.logger,
	}

	warmupCtx, cancel := context.WithTimeout(tabCtx, m.cfg.OpenTimeout)
	defer cancel()

	err := chromedp.Run(warmupCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(downloadDir).
			WithEventsEnabled(true),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: chromedp warmup: %v", catalog.ErrSessionInit, err)
	}
	if err := ctx.Err(); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %v", catalog.ErrSessionInit, err)
	}
	return s, nil
}

// Session is one running browser bound to an exclusive download directory.
// It implements catalog.Driver; all operations honor the caller's deadline.
type Session struct {
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	downloadDir string
	navTimeout  time.Duration
	logger      *zap.Logger
}

// Driver exposes the session's interaction surface.
func (s *Session) Driver() catalog.Driver {
	return s
}

// DownloadDir returns the directory the browser writes downloads into.
func (s *Session) DownloadDir() string {
	return s.downloadDir
}

// Close tears down the browser. It is best-effort and never returns an
// error; the defunct process is reaped by the canceled allocator.
func (s *Session) Close() {
	s.tabCancel()
	s.allocCancel()
	s.logger.Debug("session closed", zap.String("download_dir", s.downloadDir))
}

// Navigate loads the URL and waits for the document body.
func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// WaitReady blocks until the selector is present in the DOM.
func (s *Session) WaitReady(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.WaitReady(selector, queryOption(selector)))
}

// WaitVisible blocks until the selector is rendered.
func (s *Session) WaitVisible(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.WaitVisible(selector, queryOption(selector)))
}

// Click waits for the element and clicks it.
func (s *Session) Click(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.Click(selector, queryOption(selector)))
}

// ScrollIntoView brings the element into the viewport.
func (s *Session) ScrollIntoView(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.ScrollIntoView(selector, queryOption(selector)))
}

// Evaluate runs a JavaScript expression, discarding its result.
func (s *Session) Evaluate(ctx context.Context, expr string) error {
	return s.run(ctx, chromedp.Evaluate(expr, nil))
}

// OuterHTML returns the rendered markup of the first match.
func (s *Session) OuterHTML(ctx context.Context, selector string) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML(selector, &html, queryOption(selector))); err != nil {
		return "", err
	}
	return html, nil
}

// AttributeValue reads an attribute of the first match.
func (s *Session) AttributeValue(ctx context.Context, selector, attr string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	if err := s.run(ctx, chromedp.AttributeValue(selector, attr, &value, &ok, queryOption(selector))); err != nil {
		return "", false, err
	}
	return value, ok, nil
}

func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(s.tabCtx, deadline)
	} else {
		runCtx, cancel = context.WithTimeout(s.tabCtx, s.navTimeout)
	}
	defer cancel()

	stop := forwardCancel(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return fmt.Errorf("chromedp run: %w", err)
	}
	return nil
}

func queryOption(selector string) chromedp.QueryOption {
	if strings.HasPrefix(selector, "//") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
