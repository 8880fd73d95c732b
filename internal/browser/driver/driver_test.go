package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pagemapper/internal/config"
)

func TestNew(t *testing.T) {
	for _, name := range []string{config.DriverCDP, config.DriverPlaywright, config.DriverHTTP} {
		t.Run(name, func(t *testing.T) {
			cfg := config.NewDefaultConfig()
			cfg.Browser.Driver = name
			f, err := New(context.Background(), cfg, zaptest.NewLogger(t))
			require.NoError(t, err)
			defer f.Close()
			assert.Equal(t, name, f.Name())
		})
	}

	cfg := config.NewDefaultConfig()
	cfg.Browser.Driver = "selenium"
	_, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestHTTPFactoryOpensIndependentSessions(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Browser.Driver = config.DriverHTTP
	f, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer f.Close()

	a, err := f.NewSession(context.Background())
	require.NoError(t, err)
	b, err := f.NewSession(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	require.NoError(t, a.Close(context.Background()))
	require.NoError(t, b.Close(context.Background()))
}
