// Package cdp drives Chromium over the DevTools protocol with chromedp.
package cdp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagemapper/api/schemas"
	"github.com/xkilldash9x/pagemapper/internal/browser"
	"github.com/xkilldash9x/pagemapper/internal/config"
)

const launchTimeout = 30 * time.Second

// Factory launches one isolated browser per session from a shared allocator.
type Factory struct {
	cfg          config.BrowserConfig
	pollInterval time.Duration
	logger       *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	closeOnce   sync.Once
}

var _ schemas.SessionFactory = (*Factory)(nil)

// NewFactory prepares the exec allocator. No browser starts until the first
// session is requested.
func NewFactory(ctx context.Context, cfg config.BrowserConfig, pollInterval time.Duration, logger *zap.Logger) *Factory {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, execOptions(cfg)...)
	return &Factory{
		cfg:          cfg,
		pollInterval: pollInterval,
		logger:       logger.Named("cdp"),
		allocCtx:     allocCtx,
		allocCancel:  allocCancel,
	}
}

// Name identifies the driver in run metadata.
func (f *Factory) Name() string { return config.DriverCDP }

// NewSession starts a browser and returns a handle bound to its first tab.
func (f *Factory) NewSession(ctx context.Context) (schemas.SessionHandle, error) {
	sugar := f.logger.Sugar()
	sessCtx, cancel := chromedp.NewContext(f.allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	)

	launchCtx, cancelLaunch := context.WithTimeout(ctx, launchTimeout)
	defer cancelLaunch()
	runCtx, cancelRun := browser.CombineContext(sessCtx, launchCtx)
	defer cancelRun()

	actions := []chromedp.Action{chromedp.Navigate("about:blank")}
	if w, h := f.cfg.Viewport["width"], f.cfg.Viewport["height"]; w > 0 && h > 0 {
		actions = append(actions, emulation.SetDeviceMetricsOverride(int64(w), int64(h), 1, false))
	}
	if err := chromedp.Run(runCtx, actions...); err != nil {
		cancel()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	f.logger.Debug("Browser session started.")
	return newSession(sessCtx, cancel, f.pollInterval, f.logger), nil
}

// Close shuts down every browser started by the factory.
func (f *Factory) Close() {
	f.closeOnce.Do(f.allocCancel)
}

// execOptions translates the browser config into chromedp allocator options.
func execOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", cfg.Headless),
		chromedp.Flag("ignore-certificate-errors", cfg.IgnoreTLSErrors),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if w, h := cfg.Viewport["width"], cfg.Viewport["height"]; w > 0 && h > 0 {
		opts = append(opts, chromedp.WindowSize(w, h))
	}

	for _, arg := range cfg.Args {
		key, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if key == "" {
			continue
		}
		if hasValue {
			opts = append(opts, chromedp.Flag(key, value))
		} else {
			opts = append(opts, chromedp.Flag(key, true))
		}
	}
	return opts
}
