// Package pw drives a browser through playwright-go. It is the alternative
// to the cdp driver for environments where Playwright manages the browsers.
package pw

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagemapper/api/schemas"
	"github.com/xkilldash9x/pagemapper/internal/config"
)

// Factory shares one Playwright driver and browser; each session gets its
// own browser context so cookies never leak between targets.
type Factory struct {
	cfg            config.BrowserConfig
	pollInterval   time.Duration
	defaultTimeout time.Duration
	logger         *zap.Logger

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
}

var _ schemas.SessionFactory = (*Factory)(nil)

// NewFactory returns a factory. Playwright starts on the first session.
func NewFactory(cfg config.BrowserConfig, navigationTimeout, pollInterval time.Duration, logger *zap.Logger) *Factory {
	return &Factory{
		cfg:            cfg,
		pollInterval:   pollInterval,
		defaultTimeout: navigationTimeout,
		logger:         logger.Named("playwright"),
	}
}

// Name identifies the driver in run metadata.
func (f *Factory) Name() string { return config.DriverPlaywright }

func (f *Factory) ensureBrowser() (playwright.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser != nil {
		return f.browser, nil
	}

	opts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   io.Discard,
		Stderr:   io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return nil, fmt.Errorf("failed to install playwright: %w", err)
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(f.cfg.Headless),
		Args:     f.cfg.Args,
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	f.pw, f.browser = pw, b
	f.logger.Debug("Playwright browser launched.")
	return b, nil
}

// NewSession opens a fresh browser context with a single page.
func (f *Factory) NewSession(ctx context.Context) (schemas.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := f.ensureBrowser()
	if err != nil {
		return nil, err
	}

	contextOpts := playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(f.cfg.IgnoreTLSErrors),
	}
	if f.cfg.UserAgent != "" {
		contextOpts.UserAgent = playwright.String(f.cfg.UserAgent)
	}
	if w, h := f.cfg.Viewport["width"], f.cfg.Viewport["height"]; w > 0 && h > 0 {
		contextOpts.Viewport = &playwright.Size{Width: w, Height: h}
	}

	bctx, err := b.NewContext(contextOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(float64(f.defaultTimeout.Milliseconds()))

	return &Session{
		bctx:           bctx,
		page:           page,
		pollInterval:   f.pollInterval,
		defaultTimeout: f.defaultTimeout,
		logger:         f.logger,
	}, nil
}

// Close stops the browser and the Playwright driver.
func (f *Factory) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser != nil {
		if err := f.browser.Close(); err != nil {
			f.logger.Debug("Browser close failed.", zap.Error(err))
		}
		f.browser = nil
	}
	if f.pw != nil {
		if err := f.pw.Stop(); err != nil {
			f.logger.Debug("Playwright stop failed.", zap.Error(err))
		}
		f.pw = nil
	}
}
