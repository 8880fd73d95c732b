// Package driver selects the session implementation named by the config.
package driver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagemapper/api/schemas"
	"github.com/xkilldash9x/pagemapper/internal/browser/cdp"
	"github.com/xkilldash9x/pagemapper/internal/browser/htmlsession"
	"github.com/xkilldash9x/pagemapper/internal/browser/pw"
	"github.com/xkilldash9x/pagemapper/internal/config"
)

// Factory is a session factory that owns driver level resources.
type Factory interface {
	schemas.SessionFactory
	Close()
}

// New builds the factory for cfg.Browser.Driver. The caller must Close it.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Factory, error) {
	poll := cfg.Navigator.PollInterval
	switch cfg.Browser.Driver {
	case config.DriverCDP:
		return cdp.NewFactory(ctx, cfg.Browser, poll, logger), nil
	case config.DriverPlaywright:
		return pw.NewFactory(cfg.Browser, cfg.Navigator.NavigationTimeout, poll, logger), nil
	case config.DriverHTTP:
		return htmlsession.NewFactory(cfg.Browser, poll, logger), nil
	default:
		return nil, fmt.Errorf("unknown browser driver %q", cfg.Browser.Driver)
	}
}
