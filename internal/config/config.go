package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Navigator NavigatorConfig `mapstructure:"navigator" yaml:"navigator"`
	Login     LoginConfig     `mapstructure:"login" yaml:"login"`
	Scanner   ScannerConfig   `mapstructure:"scanner" yaml:"scanner"`
	Scan      ScanConfig      `mapstructure:"scan" yaml:"scan"`
}

// LoggerConfig defines all the settings for the logging system.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// Supported browser drivers.
const (
	DriverCDP        = "cdp"
	DriverPlaywright = "playwright"
	DriverHTTP       = "http"
)

// BrowserConfig selects and tunes the session driver.
type BrowserConfig struct {
	Driver          string         `mapstructure:"driver" yaml:"driver"`
	Headless        bool           `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	UserAgent       string         `mapstructure:"user_agent" yaml:"user_agent"`
	Args            []string       `mapstructure:"args" yaml:"args"`
	Viewport        map[string]int `mapstructure:"viewport" yaml:"viewport"`
	// RequestTimeout bounds a single HTTP exchange of the http driver.
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	// MaxRedirects bounds server side redirects followed by the http driver per navigation.
	MaxRedirects int `mapstructure:"max_redirects" yaml:"max_redirects"`
}

// NavigatorConfig bounds every wait of the authentication state machine.
type NavigatorConfig struct {
	NavigationTimeout  time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	LoginTimeout       time.Duration `mapstructure:"login_timeout" yaml:"login_timeout"`
	SettleDelay        time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	PollInterval       time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	MaxHops            int           `mapstructure:"max_hops" yaml:"max_hops"`
	MaxURLObservations int           `mapstructure:"max_url_observations" yaml:"max_url_observations"`
}

// LoginConfig describes how to authenticate when the target redirects to a login page.
type LoginConfig struct {
	LoginURL         string `mapstructure:"login_url" yaml:"login_url"`
	Username         string `mapstructure:"username" yaml:"username"`
	Password         string `mapstructure:"password" yaml:"-"`
	UsernameSelector string `mapstructure:"username_selector" yaml:"username_selector"`
	PasswordSelector string `mapstructure:"password_selector" yaml:"password_selector"`
	SubmitSelector   string `mapstructure:"submit_selector" yaml:"submit_selector"`
	// WaitForLogin is a substring the URL must contain once login completed.
	WaitForLogin string `mapstructure:"wait_for_login" yaml:"wait_for_login"`
	// Force authenticates via LoginURL even when the target did not redirect.
	Force bool `mapstructure:"force" yaml:"force"`
}

// Enabled reports whether enough login information is present to attempt authentication.
func (l LoginConfig) Enabled() bool {
	return l.Username != "" || l.Password != ""
}

// ScannerConfig tunes element enumeration and selector synthesis.
type ScannerConfig struct {
	SettleDelay      time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
	MaxElements      int           `mapstructure:"max_elements" yaml:"max_elements"`
	TestIDAttributes []string      `mapstructure:"test_id_attributes" yaml:"test_id_attributes"`
	TextLimit        int           `mapstructure:"text_limit" yaml:"text_limit"`
}

// ScanConfig gets its marching orders mostly from CLI flags.
type ScanConfig struct {
	Targets     []string `mapstructure:"-" yaml:"-"`
	File        string   `mapstructure:"file" yaml:"file"`
	Output      string   `mapstructure:"output" yaml:"output"`
	Format      string   `mapstructure:"format" yaml:"format"`
	Concurrency int      `mapstructure:"concurrency" yaml:"concurrency"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pagemapper")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.driver", DriverCDP)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.viewport", map[string]int{"width": 1366, "height": 768})
	v.SetDefault("browser.request_timeout", "30s")
	v.SetDefault("browser.max_redirects", 10)

	// -- Navigator --
	v.SetDefault("navigator.navigation_timeout", "30s")
	v.SetDefault("navigator.login_timeout", "20s")
	v.SetDefault("navigator.settle_delay", "500ms")
	v.SetDefault("navigator.poll_interval", "100ms")
	v.SetDefault("navigator.max_hops", 8)
	v.SetDefault("navigator.max_url_observations", 3)

	// -- Login --
	v.SetDefault("login.force", false)

	// -- Scanner --
	v.SetDefault("scanner.settle_delay", "250ms")
	v.SetDefault("scanner.max_elements", 500)
	v.SetDefault("scanner.test_id_attributes", []string{"data-test-id", "data-testid", "data-test", "data-qa", "data-cy"})
	v.SetDefault("scanner.text_limit", 64)

	// -- Scan --
	v.SetDefault("scan.format", "json")
	v.SetDefault("scan.concurrency", 1)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Credentials are commonly supplied through the environment only.
	_ = v.BindEnv("login.username", "PAGEMAPPER_LOGIN_USERNAME")
	_ = v.BindEnv("login.password", "PAGEMAPPER_LOGIN_PASSWORD")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.ExpandPaths(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ExpandPaths resolves a leading ~ in every file system path of the config.
func (c *Config) ExpandPaths() error {
	for _, p := range []*string{&c.Logger.LogFile, &c.Scan.Output, &c.Scan.File} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("failed to expand path %q: %w", *p, err)
		}
		*p = expanded
	}
	return nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Browser.Validate(); err != nil {
		return fmt.Errorf("browser configuration invalid: %w", err)
	}
	if err := c.Navigator.Validate(); err != nil {
		return fmt.Errorf("navigator configuration invalid: %w", err)
	}
	if err := c.Login.Validate(); err != nil {
		return fmt.Errorf("login configuration invalid: %w", err)
	}
	if c.Scanner.MaxElements <= 0 {
		return fmt.Errorf("scanner.max_elements must be a positive integer")
	}
	if len(c.Scanner.TestIDAttributes) == 0 {
		return fmt.Errorf("scanner.test_id_attributes must name at least one attribute")
	}
	switch strings.ToLower(c.Scan.Format) {
	case "json", "yaml":
	default:
		return fmt.Errorf("scan.format must be 'json' or 'yaml', got %q", c.Scan.Format)
	}
	if c.Scan.Concurrency <= 0 {
		return fmt.Errorf("scan.concurrency must be a positive integer")
	}
	return nil
}

// Validate checks the browser settings.
func (b *BrowserConfig) Validate() error {
	switch b.Driver {
	case DriverCDP, DriverPlaywright, DriverHTTP:
	default:
		return fmt.Errorf("driver must be one of %q, %q, %q; got %q", DriverCDP, DriverPlaywright, DriverHTTP, b.Driver)
	}
	if b.Driver == DriverHTTP && b.MaxRedirects < 0 {
		return fmt.Errorf("max_redirects must not be negative")
	}
	return nil
}

// Validate checks that every navigator wait is bounded.
func (n *NavigatorConfig) Validate() error {
	if n.NavigationTimeout <= 0 {
		return fmt.Errorf("navigation_timeout must be a positive duration")
	}
	if n.LoginTimeout <= 0 {
		return fmt.Errorf("login_timeout must be a positive duration")
	}
	if n.SettleDelay < 0 {
		return fmt.Errorf("settle_delay must not be negative")
	}
	if n.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be a positive duration")
	}
	if n.MaxHops <= 0 {
		return fmt.Errorf("max_hops must be a positive integer")
	}
	if n.MaxURLObservations <= 0 {
		return fmt.Errorf("max_url_observations must be a positive integer")
	}
	return nil
}

// Validate checks the login settings. An empty LoginConfig is valid.
func (l *LoginConfig) Validate() error {
	if !l.Enabled() {
		if l.Force {
			return fmt.Errorf("force requires credentials")
		}
		return nil
	}
	if l.Username == "" || l.Password == "" {
		return fmt.Errorf("username and password are both required. Ensure PAGEMAPPER_LOGIN_PASSWORD is set")
	}
	if l.Force && l.LoginURL == "" {
		return fmt.Errorf("force requires login_url")
	}
	return nil
}
