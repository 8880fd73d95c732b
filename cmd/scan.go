package cmd

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagemapper/api/schemas"
	"github.com/xkilldash9x/pagemapper/internal/browser/driver"
	"github.com/xkilldash9x/pagemapper/internal/browser/htmlsession"
	"github.com/xkilldash9x/pagemapper/internal/config"
	"github.com/xkilldash9x/pagemapper/internal/observability"
	"github.com/xkilldash9x/pagemapper/internal/pipeline"
	"github.com/xkilldash9x/pagemapper/internal/reporting"
)

// scanFlagBindings maps viper keys to the scan flags overriding them.
var scanFlagBindings = map[string]string{
	"scan.output":             "output",
	"scan.format":             "format",
	"scan.concurrency":        "concurrency",
	"scan.file":               "file",
	"browser.driver":          "driver",
	"browser.headless":        "headless",
	"login.login_url":         "login-url",
	"login.username":          "username",
	"login.username_selector": "username-selector",
	"login.password_selector": "password-selector",
	"login.submit_selector":   "submit-selector",
	"login.wait_for_login":    "wait-for-login",
	"login.force":             "force-login",
}

// newScanCmd creates and configures the `scan` command.
func newScanCmd(v *viper.Viper) *cobra.Command {
	scanCmd := &cobra.Command{
		Use:   "scan [urls...]",
		Short: "Navigate to each URL, authenticating when redirected, and emit its element and method catalog",
		Long: `Navigate to each URL, authenticating when redirected to a login page, and emit
its detected elements and method catalog as a JSON or YAML hand-off document.

The login password is never taken from a flag. Set PAGEMAPPER_LOGIN_PASSWORD
in the environment or in the --env-file.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if file, _ := cmd.Flags().GetString("file"); file != "" {
				return cobra.MaximumNArgs(1)(cmd, args)
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Flags override the config file and environment only when set.
			for key, flag := range scanFlagBindings {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return fmt.Errorf("failed to bind flag --%s: %w", flag, err)
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return err
			}
			cfg.Scan.Targets = normalizeTargets(args)
			return runScan(cmd.Context(), cfg, observability.GetLogger(), cmd.ErrOrStderr())
		},
	}

	defaults := config.NewDefaultConfig()

	// Output flags
	scanCmd.Flags().StringP("output", "o", "", "Output file for the catalog document (default stdout)")
	scanCmd.Flags().StringP("format", "f", defaults.Scan.Format, "Catalog document format: 'json' or 'yaml'")
	scanCmd.Flags().IntP("concurrency", "j", defaults.Scan.Concurrency, "Targets mapped in parallel, each in its own session")
	scanCmd.Flags().String("file", "", "Scan a saved HTML file instead of navigating; the optional URL argument is its origin")

	// Browser flags
	scanCmd.Flags().String("driver", defaults.Browser.Driver, "Browser driver: 'cdp', 'playwright' or 'http'")
	scanCmd.Flags().Bool("headless", defaults.Browser.Headless, "Run the browser without a window")

	// Login flags
	scanCmd.Flags().String("login-url", "", "Login page URL")
	scanCmd.Flags().String("username", "", "Login username")
	scanCmd.Flags().String("username-selector", "", "CSS selector of the username field, tried before the built-in fallbacks")
	scanCmd.Flags().String("password-selector", "", "CSS selector of the password field, tried before the built-in fallbacks")
	scanCmd.Flags().String("submit-selector", "", "CSS selector of the submit control, tried before the built-in fallbacks")
	scanCmd.Flags().String("wait-for-login", "", "Substring the URL contains once login completed")
	scanCmd.Flags().Bool("force-login", false, "Log in through --login-url even when the target does not redirect")

	return scanCmd
}

// runScan maps every target and writes one catalog document. It returns an
// error when any run failed, after the document was written.
func runScan(ctx context.Context, cfg *config.Config, logger *zap.Logger, summary io.Writer) error {
	targets := cfg.Scan.Targets
	var (
		factory driver.Factory
		opts    []pipeline.Option
	)

	if cfg.Scan.File != "" {
		markup, err := os.ReadFile(cfg.Scan.File)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", cfg.Scan.File, err)
		}
		pageURL, err := documentURL(cfg.Scan.File, targets)
		if err != nil {
			return err
		}
		factory = htmlsession.NewDocumentFactory(pageURL, markup, cfg.Navigator.PollInterval, logger)
		opts = append(opts, pipeline.WithoutNavigation())
		targets = []string{pageURL}
	} else {
		f, err := driver.New(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize browser driver: %w", err)
		}
		factory = f
	}
	defer factory.Close()

	p, err := pipeline.New(cfg, factory, logger, opts...)
	if err != nil {
		return err
	}

	logger.Info("Starting scan",
		zap.Strings("targets", targets),
		zap.String("driver", factory.Name()),
		zap.Int("concurrency", cfg.Scan.Concurrency),
	)
	results, err := p.RunBatch(ctx, targets)
	if err != nil {
		return err
	}

	if err := writeReport(cfg, results, logger); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Status == schemas.StatusFailed {
			failed++
			for _, f := range r.Failures {
				fmt.Fprintf(summary, "FAILED %s: %s (%s)\n", r.Metadata.TargetURL, f.Code, f.Message)
			}
			continue
		}
		fmt.Fprintf(summary, "%-22s %s: %d elements, %d methods, %d warnings\n",
			r.Status, r.Metadata.TargetURL, r.Metadata.ElementCount, r.Metadata.MethodCount, len(r.Warnings))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(results))
	}
	return nil
}

func writeReport(cfg *config.Config, results []*schemas.ScanResult, logger *zap.Logger) error {
	reporter, err := reporting.New(cfg.Scan.Format, cfg.Scan.Output, Version, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize reporter: %w", err)
	}
	for _, r := range results {
		if err := reporter.Write(r); err != nil {
			_ = reporter.Close()
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	if err := reporter.Close(); err != nil {
		return err
	}
	if cfg.Scan.Output != "" {
		logger.Info("Catalog written.", zap.String("path", cfg.Scan.Output))
	}
	return nil
}

// normalizeTargets adds https:// to targets given without a scheme.
func normalizeTargets(args []string) []string {
	targets := make([]string, 0, len(args))
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" {
			continue
		}
		if !strings.Contains(arg, "://") {
			arg = "https://" + arg
		}
		targets = append(targets, arg)
	}
	return targets
}

// documentURL is the origin recorded for a saved page: the explicit target
// when given, the file URL otherwise.
func documentURL(path string, targets []string) (string, error) {
	if len(targets) > 0 {
		return targets[0], nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}
