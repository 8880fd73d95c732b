package htmlsession

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagemapper/api/schemas"
	"github.com/xkilldash9x/pagemapper/internal/config"
)

// Factory opens HTTP sessions with independent cookie jars.
type Factory struct {
	opts   Options
	logger *zap.Logger
}

var _ schemas.SessionFactory = (*Factory)(nil)

// NewFactory derives session options from the browser config.
func NewFactory(cfg config.BrowserConfig, pollInterval time.Duration, logger *zap.Logger) *Factory {
	return &Factory{
		opts: Options{
			UserAgent:       cfg.UserAgent,
			IgnoreTLSErrors: cfg.IgnoreTLSErrors,
			RequestTimeout:  cfg.RequestTimeout,
			MaxRedirects:    cfg.MaxRedirects,
			PollInterval:    pollInterval,
		},
		logger: logger,
	}
}

// Name identifies the driver in run metadata.
func (f *Factory) Name() string { return config.DriverHTTP }

// NewSession returns a fresh session.
func (f *Factory) NewSession(ctx context.Context) (schemas.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewSession(f.opts, f.logger)
}

// Close is a no-op; sessions release their own connections.
func (f *Factory) Close() {}

// DriverFile names sessions that were loaded from a saved document.
const DriverFile = "file"

// DocumentFactory opens sessions already holding a saved page, for offline scans.
type DocumentFactory struct {
	pageURL string
	markup  []byte
	opts    Options
	logger  *zap.Logger
}

var _ schemas.SessionFactory = (*DocumentFactory)(nil)

// NewDocumentFactory serves markup as if it had been fetched from pageURL.
func NewDocumentFactory(pageURL string, markup []byte, pollInterval time.Duration, logger *zap.Logger) *DocumentFactory {
	return &DocumentFactory{
		pageURL: pageURL,
		markup:  markup,
		opts:    Options{PollInterval: pollInterval},
		logger:  logger,
	}
}

// Name identifies the driver in run metadata.
func (f *DocumentFactory) Name() string { return DriverFile }

// NewSession returns a session with the document loaded.
func (f *DocumentFactory) NewSession(ctx context.Context) (schemas.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := NewSession(f.opts, f.logger)
	if err != nil {
		return nil, err
	}
	if err := s.Load(f.pageURL, bytes.NewReader(f.markup)); err != nil {
		_ = s.Close(ctx)
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return s, nil
}

// Close is a no-op.
func (f *DocumentFactory) Close() {}
