// Package pipeline runs navigation, scanning and catalog building for one
// target per session and assembles the typed result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/pagemapper/api/schemas"
	"github.com/xkilldash9x/pagemapper/internal/browser"
	"github.com/xkilldash9x/pagemapper/internal/catalog"
	"github.com/xkilldash9x/pagemapper/internal/config"
	"github.com/xkilldash9x/pagemapper/internal/navigator"
	"github.com/xkilldash9x/pagemapper/internal/scanner"
)

// Failure codes raised by the pipeline itself. Navigation failures carry
// the navigator's reason as their code.
const (
	ReasonSessionUnavailable = "SessionUnavailable"
	ReasonScanFailure        = "ScanFailure"
)

const closeTimeout = 5 * time.Second

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithoutNavigation scans whatever document a fresh session already holds.
// Used with pre-loaded sessions such as saved HTML files.
func WithoutNavigation() Option {
	return func(p *Pipeline) { p.skipNavigation = true }
}

// WithNavigatorOptions forwards options to every navigator the pipeline creates.
func WithNavigatorOptions(opts ...navigator.Option) Option {
	return func(p *Pipeline) { p.navOpts = append(p.navOpts, opts...) }
}

// Pipeline runs Navigator, Scanner and catalog Builder in sequence on a
// session of its own per target.
type Pipeline struct {
	cfg            *config.Config
	factory        schemas.SessionFactory
	logger         *zap.Logger
	skipNavigation bool
	navOpts        []navigator.Option
	now            func() time.Time
}

// New creates a Pipeline.
func New(cfg *config.Config, factory schemas.SessionFactory, logger *zap.Logger, opts ...Option) (*Pipeline, error) {
	if cfg == nil || factory == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize pipeline with nil dependencies")
	}
	p := &Pipeline{
		cfg:     cfg,
		factory: factory,
		logger:  logger.Named("pipeline"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run maps one target. Fatal navigation and scan problems are reported in
// the returned result with StatusFailed; the error is non nil only when ctx
// ends the run.
func (p *Pipeline) Run(ctx context.Context, target string) (*schemas.ScanResult, error) {
	started := p.now()
	result := &schemas.ScanResult{
		Metadata: schemas.RunMetadata{
			RunID:     uuid.NewString(),
			Driver:    p.factory.Name(),
			TargetURL: target,
			StartedAt: started.UTC(),
		},
		Elements: []schemas.DetectedElement{},
		Methods:  []schemas.MethodDescriptor{},
	}
	logger := p.logger.With(zap.String("run_id", result.Metadata.RunID), zap.String("target", target))
	logger.Info("Run starting.", zap.String("driver", result.Metadata.Driver))

	defer func() {
		result.Metadata.Duration = p.now().Sub(started)
		result.Finalize()
	}()

	session, err := p.factory.NewSession(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Error("Could not open a session.", zap.Error(err))
		result.Failures = append(result.Failures, schemas.FailureReason{
			Code:    ReasonSessionUnavailable,
			Message: err.Error(),
			URL:     target,
		})
		return result, nil
	}
	defer p.closeSession(ctx, session, logger)

	if err := p.navigate(ctx, session, target, result, logger); err != nil {
		return nil, err
	}
	if len(result.Failures) > 0 {
		return result, nil
	}

	if title, err := session.Title(ctx); err != nil {
		logger.Warn("Could not read page title.", zap.Error(err))
	} else {
		result.Metadata.PageTitle = title
	}

	scanned, err := scanner.New(session, p.cfg.Scanner, logger).Scan(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Error("Scan failed.", zap.Error(err))
		result.Failures = append(result.Failures, schemas.FailureReason{
			Code:    ReasonScanFailure,
			Message: err.Error(),
			URL:     result.Metadata.FinalURL,
		})
		return result, nil
	}
	result.Elements = append(result.Elements, scanned.Elements...)
	result.Warnings = scanned.Warnings
	result.Methods = append(result.Methods, catalog.NewBuilder(p.cfg.Scanner.TestIDAttributes, logger).Build(scanned.Elements)...)

	logger.Info("Run finished.",
		zap.Int("elements", len(result.Elements)),
		zap.Int("methods", len(result.Methods)),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

// navigate fills the navigation metadata, or records the navigator failure.
// Only a context error is returned.
func (p *Pipeline) navigate(ctx context.Context, session schemas.SessionHandle, target string, result *schemas.ScanResult, logger *zap.Logger) error {
	if p.skipNavigation {
		current, err := session.CurrentURL(ctx)
		if err != nil {
			return p.recordNavError(ctx, logger, result, target, err)
		}
		result.Metadata.FinalURL = current
		return nil
	}

	nav := navigator.New(session, p.cfg.Navigator, &p.cfg.Login, logger, p.navOpts...)
	navResult, err := nav.Run(ctx, target)
	if err != nil {
		logger.Debug("Navigator trace.", zap.Any("transitions", nav.Trace()))
		return p.recordNavError(ctx, logger, result, target, err)
	}
	result.Metadata.FinalURL = navResult.FinalURL
	result.Metadata.AuthenticationUsed = navResult.AuthenticationUsed
	return nil
}

func (p *Pipeline) recordNavError(ctx context.Context, logger *zap.Logger, result *schemas.ScanResult, target string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	reason := schemas.FailureReason{
		Code:    string(navigator.ReasonNavigationFailure),
		Message: err.Error(),
		URL:     target,
	}
	var failure *navigator.Failure
	if errors.As(err, &failure) {
		reason.Code = string(failure.Reason)
		if failure.URL != "" {
			reason.URL = failure.URL
		}
	}
	logger.Error("Navigation failed.", zap.String("reason", reason.Code), zap.Error(err))
	result.Failures = append(result.Failures, reason)
	return nil
}

func (p *Pipeline) closeSession(ctx context.Context, session schemas.SessionHandle, logger *zap.Logger) {
	closeCtx, cancel := context.WithTimeout(browser.Detach(ctx), closeTimeout)
	defer cancel()
	if err := session.Close(closeCtx); err != nil {
		logger.Warn("Failed to close session cleanly.", zap.Error(err))
	}
}

// RunBatch maps every target, each on its own session, with at most
// scan.concurrency runs in flight. Results are returned in target order.
func (p *Pipeline) RunBatch(ctx context.Context, targets []string) ([]*schemas.ScanResult, error) {
	results := make([]*schemas.ScanResult, len(targets))
	g, gCtx := errgroup.WithContext(ctx)
	limit := p.cfg.Scan.Concurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i, target := range targets {
		g.Go(func() error {
			res, err := p.Run(gCtx, target)
			if err != nil {
				return fmt.Errorf("run for %s aborted: %w", target, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
