// Package chromedp_browser drives Chrome through chromedp for the capture and
// search flows. It owns exactly one browser process at a time: either the
// visible login profile or the headless scraping profile, both backed by the
// same user-data directory.
package chromedp_browser

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/stealth"
	"github.com/user/lead-scraper/internal/repository"
	"go.uber.org/zap"
)

type mode int

const (
	modeClosed mode = iota
	modeVisible
	modeHeadless
)

func (m mode) String() string {
	switch m {
	case modeVisible:
		return "visible"
	case modeHeadless:
		return "headless"
	default:
		return "closed"
	}
}

const userAgent = `Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36`

// Config configures the browser profiles.
type Config struct {
	// ProfileDir is the user-data directory shared by both profiles.
	ProfileDir string
	// ExecPath overrides the Chrome binary. Empty uses chromedp's lookup.
	ExecPath string
	Logger   *zap.Logger
}

// Browser implements repository.Browser.
type Browser struct {
	cfg    Config
	logger *zap.Logger

	mu            sync.Mutex
	mode          mode
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

var _ repository.Browser = (*Browser)(nil)

// New creates a Browser. No process is started until a profile is opened.
func New(cfg Config) *Browser {
	l := cfg.Logger
	if l == nil {
		l = zap.NewNop()
	}
	return &Browser{cfg: cfg, logger: l}
}

// OpenVisible closes any headless profile and starts the visible one. The
// returned session's main tab already has the redirect interceptor installed.
func (b *Browser) OpenVisible(ctx context.Context) (repository.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.openLocked(modeVisible); err != nil {
		return nil, err
	}

	main := newPage(b.browserCtx, nil, b.logger)
	if err := installInterceptor(main.ctx, b.logger); err != nil {
		b.closeLocked()
		return nil, fmt.Errorf("browser: install interceptor: %w", err)
	}
	return &session{browser: b, main: main}, nil
}

// NewHeadlessPage closes any visible profile, starts the headless one if
// needed, and opens a fresh tab in it.
func (b *Browser) NewHeadlessPage(ctx context.Context) (repository.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.openLocked(modeHeadless); err != nil {
		return nil, err
	}

	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	err := chromedp.Run(tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(stealth.JS).Do(ctx)
		return err
	}))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("browser: open headless tab: %w", err)
	}
	return newPage(tabCtx, cancel, b.logger), nil
}

// Close shuts the active profile down. It is safe to call repeatedly.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeLocked()
	return nil
}

func (b *Browser) openLocked(want mode) error {
	if b.mode == want && b.browserCtx != nil && b.browserCtx.Err() == nil {
		return nil
	}
	if b.mode != modeClosed {
		b.logger.Info("closing browser profile", zap.Stringer("mode", b.mode), zap.Stringer("next", want))
	}
	b.closeLocked()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(b.cfg.ProfileDir),
		chromedp.Flag("headless", want == modeHeadless),
		chromedp.Flag("disable-gpu", want == modeHeadless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
		chromedp.WindowSize(1440, 900),
	)
	if b.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.cfg.ExecPath))
	}

	// The browser outlives any single request, so it hangs off Background.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(b.logger.Sugar().Debugf),
		chromedp.WithErrorf(b.logger.Sugar().Debugf),
	)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("browser: start %s profile: %w", want, err)
	}

	b.mode = want
	b.allocCancel = allocCancel
	b.browserCtx = browserCtx
	b.browserCancel = browserCancel
	b.logger.Info("browser profile opened", zap.Stringer("mode", want), zap.String("dir", b.cfg.ProfileDir))
	return nil
}

func (b *Browser) closeLocked() {
	if b.browserCtx != nil {
		if err := chromedp.Cancel(b.browserCtx); err != nil && !errors.Is(err, context.Canceled) {
			b.logger.Debug("graceful browser close failed", zap.Error(err))
		}
	}
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	b.browserCtx, b.browserCancel, b.allocCancel = nil, nil, nil
	b.mode = modeClosed
}

// closeIfCurrent closes the browser only if ctx still belongs to it, so a
// stale session cannot tear down a newer profile.
func (b *Browser) closeIfCurrent(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browserCtx == ctx {
		b.closeLocked()
	}
}
