// Package navigator drives a browser session to a target URL through any
// number of login redirects before the page is scanned.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pagemapper/api/schemas"
	"github.com/xkilldash9x/pagemapper/internal/browser"
	"github.com/xkilldash9x/pagemapper/internal/config"
)

// State is a node of the navigation state machine.
type State string

const (
	StateStart                     State = "Start"
	StateNavigating                State = "Navigating"
	StateRedirectedToLogin         State = "RedirectedToLogin"
	StateAuthenticating            State = "Authenticating"
	StateAwaitingPostLoginRedirect State = "AwaitingPostLoginRedirect"
	StateRenavigating              State = "Renavigating"
	StateArrived                   State = "Arrived"
	StateFailed                    State = "Failed"
)

// Transition is one recorded state change.
type Transition struct {
	From State     `json:"from" yaml:"from"`
	To   State     `json:"to" yaml:"to"`
	URL  string    `json:"url,omitempty" yaml:"url,omitempty"`
	At   time.Time `json:"at" yaml:"at"`
}

// Result describes a successful arrival.
type Result struct {
	FinalURL           string
	AuthenticationUsed bool
	Hops               int
}

// Fallback selectors tried after an explicitly configured one.
var (
	UsernameSelectors = []string{
		`input[type="email"]`,
		`input[autocomplete="username"]`,
		`input[name="username"]`,
		`input[name="email"]`,
		`input[name="login"]`,
		`input[id="username"]`,
		`input[id="email"]`,
		`input[type="text"]`,
	}
	PasswordSelectors = []string{
		`input[type="password"]`,
		`input[name="password"]`,
		`input[id="password"]`,
	}
	SubmitSelectors = []string{
		`button[type="submit"]`,
		`input[type="submit"]`,
		`form button`,
		`button`,
	}
)

// Option customizes a Navigator.
type Option func(*Navigator)

// WithRedirectDetector replaces DefaultRedirectDetector.
func WithRedirectDetector(d RedirectDetector) Option {
	return func(n *Navigator) { n.detect = d }
}

// Navigator is single use: construct one per pipeline run.
type Navigator struct {
	session schemas.SessionHandle
	cfg     config.NavigatorConfig
	login   *config.LoginConfig
	detect  RedirectDetector
	logger  *zap.Logger

	state         State
	trace         []Transition
	observations  map[string]int
	hops          int
	authenticated bool
}

// New creates a navigator for session. login may be nil; a login config
// without credentials is treated as absent.
func New(session schemas.SessionHandle, cfg config.NavigatorConfig, login *config.LoginConfig, logger *zap.Logger, opts ...Option) *Navigator {
	if login != nil && !login.Enabled() {
		login = nil
	}
	n := &Navigator{
		session:      session,
		cfg:          cfg,
		login:        login,
		detect:       DefaultRedirectDetector,
		logger:       logger.Named("navigator"),
		state:        StateStart,
		observations: make(map[string]int),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// State returns the current state.
func (n *Navigator) State() State { return n.state }

// Trace returns the recorded transitions in order.
func (n *Navigator) Trace() []Transition {
	out := make([]Transition, len(n.trace))
	copy(out, n.trace)
	return out
}

func (n *Navigator) transition(to State, at string) {
	n.logger.Debug("Navigator transition",
		zap.String("from", string(n.state)),
		zap.String("to", string(to)),
		zap.String("url", at))
	n.trace = append(n.trace, Transition{From: n.state, To: to, URL: at, At: time.Now()})
	n.state = to
}

func (n *Navigator) fail(reason Reason, at, msg string, err error) *Failure {
	f := &Failure{Reason: reason, State: n.state, URL: at, Message: msg, Err: err}
	n.transition(StateFailed, at)
	return f
}

// Run drives the session to targetURL. It returns a *Failure for every
// navigation outcome other than arrival, or the context error on cancellation.
func (n *Navigator) Run(ctx context.Context, targetURL string) (Result, error) {
	if n.state != StateStart {
		return Result{}, errors.New("navigator already ran")
	}
	target, err := url.Parse(targetURL)
	if err != nil || !target.IsAbs() {
		n.transition(StateNavigating, targetURL)
		return Result{}, n.fail(ReasonNavigationFailure, targetURL, "target must be an absolute URL", err)
	}

	n.transition(StateNavigating, targetURL)
	if err := n.navigate(ctx, targetURL); err != nil {
		return Result{}, err
	}

	forced := n.login != nil && n.login.Force
	for {
		current, err := n.currentURL(ctx)
		if err != nil {
			return Result{}, err
		}
		if err := n.observe(current); err != nil {
			return Result{}, err
		}

		redirected := n.detect(target, current, n.login)
		if !redirected && !(forced && !n.authenticated) {
			n.transition(StateArrived, current.String())
			return Result{FinalURL: current.String(), AuthenticationUsed: n.authenticated, Hops: n.hops}, nil
		}

		if redirected {
			n.transition(StateRedirectedToLogin, current.String())
			if n.login == nil {
				return Result{}, n.fail(ReasonNavigationFailure, current.String(), "authentication required but no login is configured", nil)
			}
		} else {
			// Already past any login wall but a login was requested anyway.
			n.logger.Debug("Forcing login", zap.String("login_url", n.login.LoginURL))
			if err := n.navigate(ctx, n.login.LoginURL); err != nil {
				return Result{}, err
			}
		}

		if err := n.authenticate(ctx); err != nil {
			return Result{}, err
		}
		if err := n.awaitPostLogin(ctx, target); err != nil {
			return Result{}, err
		}

		// The post-login landing page is usually not the target, so the
		// destination is always requested again.
		n.transition(StateRenavigating, targetURL)
		if err := n.navigate(ctx, targetURL); err != nil {
			return Result{}, err
		}
	}
}

// navigate issues one bounded navigation followed by the settle delay.
func (n *Navigator) navigate(ctx context.Context, to string) error {
	if err := n.countHop(to); err != nil {
		return err
	}
	navCtx, cancel := context.WithTimeout(ctx, n.cfg.NavigationTimeout)
	defer cancel()

	if err := n.session.Navigate(navCtx, to); err != nil {
		return n.classifyNavError(ctx, navCtx, to, err)
	}
	return n.settle(ctx)
}

func (n *Navigator) classifyNavError(ctx, navCtx context.Context, to string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(navCtx.Err(), context.DeadlineExceeded) {
		return n.fail(ReasonNavigationTimeout, to, fmt.Sprintf("page did not load within %s", n.cfg.NavigationTimeout), err)
	}
	return n.fail(ReasonNavigationFailure, to, "", err)
}

func (n *Navigator) settle(ctx context.Context) error {
	return browser.Sleep(ctx, n.cfg.SettleDelay)
}

func (n *Navigator) countHop(to string) error {
	n.hops++
	if n.hops > n.cfg.MaxHops {
		return n.fail(ReasonUnexpectedRedirectLoop, to, fmt.Sprintf("exceeded %d navigation hops", n.cfg.MaxHops), nil)
	}
	return nil
}

// observe counts visits per scheme, host and path.
func (n *Navigator) observe(u *url.URL) error {
	key := strings.ToLower(u.Scheme+"://"+u.Host) + cleanPath(u.Path)
	n.observations[key]++
	if count := n.observations[key]; count > n.cfg.MaxURLObservations {
		return n.fail(ReasonUnexpectedRedirectLoop, u.String(),
			fmt.Sprintf("%s observed %d times", key, count), nil)
	}
	return nil
}

func (n *Navigator) currentURL(ctx context.Context) (*url.URL, error) {
	raw, err := n.session.CurrentURL(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, n.fail(ReasonNavigationFailure, "", "could not read current URL", err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, n.fail(ReasonNavigationFailure, raw, "current URL is not parseable", err)
	}
	return u, nil
}

type loginControls struct {
	username, password, submit schemas.NodeRef
}

// authenticate fills and submits the login form.
func (n *Navigator) authenticate(ctx context.Context) error {
	here, _ := n.session.CurrentURL(ctx)
	n.transition(StateAuthenticating, here)

	controls, missing, err := n.resolveControls(ctx)
	if err != nil {
		return err
	}
	if missing != "" {
		f := n.fail(ReasonLoginFieldNotFound, here, "no fallback selector matched", nil)
		f.Field = missing
		return f
	}

	if err := n.fill(ctx, here, "username", controls.username, n.login.Username); err != nil {
		return err
	}
	if err := n.fill(ctx, here, "password", controls.password, n.login.Password); err != nil {
		return err
	}
	if err := n.countHop(here); err != nil {
		return err
	}

	clickCtx, cancel := context.WithTimeout(ctx, n.cfg.NavigationTimeout)
	defer cancel()
	if err := n.session.Click(clickCtx, controls.submit); err != nil {
		if errors.Is(err, schemas.ErrNodeVanished) {
			return n.interactionError(ctx, here, "submit", err)
		}
		return n.classifyNavError(ctx, clickCtx, here, err)
	}
	n.authenticated = true
	return n.settle(ctx)
}

// resolveControls waits up to the login timeout for all three controls and
// names the first one still missing when time runs out.
func (n *Navigator) resolveControls(ctx context.Context) (loginControls, string, error) {
	var (
		controls loginControls
		missing  string
	)
	fields := []struct {
		name string
		dst  *schemas.NodeRef
		list []string
	}{
		{"username", &controls.username, withExplicit(n.login.UsernameSelector, UsernameSelectors)},
		{"password", &controls.password, withExplicit(n.login.PasswordSelector, PasswordSelectors)},
		{"submit", &controls.submit, withExplicit(n.login.SubmitSelector, SubmitSelectors)},
	}

	resolveAll := func(ctx context.Context) (bool, error) {
		for _, f := range fields {
			ref, err := n.firstMatch(ctx, f.list)
			if err != nil {
				return false, err
			}
			if ref == nil {
				missing = f.name
				return false, nil
			}
			*f.dst = ref
		}
		missing = ""
		return true, nil
	}

	ok, err := n.session.WaitUntil(ctx, resolveAll, n.cfg.LoginTimeout)
	if err != nil {
		return controls, "", err
	}
	if ok {
		return controls, "", nil
	}
	if missing == "" {
		missing = fields[0].name
	}
	return controls, missing, nil
}

func (n *Navigator) firstMatch(ctx context.Context, selectors []string) (schemas.NodeRef, error) {
	for _, sel := range selectors {
		refs, err := n.session.FindAll(ctx, sel)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			n.logger.Debug("Login selector failed", zap.String("selector", sel), zap.Error(err))
			continue
		}
		if len(refs) > 0 {
			n.logger.Debug("Login control resolved", zap.String("selector", sel), zap.Int("matches", len(refs)))
			return refs[0], nil
		}
	}
	return nil, nil
}

func withExplicit(explicit string, fallbacks []string) []string {
	if explicit == "" {
		return fallbacks
	}
	return append([]string{explicit}, fallbacks...)
}

// fill types value into a resolved login control. Drivers may wait for the
// control to become usable, so typing is bounded by the login timeout.
func (n *Navigator) fill(ctx context.Context, at, field string, ref schemas.NodeRef, value string) error {
	typeCtx, cancel := context.WithTimeout(ctx, n.cfg.LoginTimeout)
	defer cancel()
	err := n.session.Type(typeCtx, ref, value)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(typeCtx.Err(), context.DeadlineExceeded) {
		f := n.fail(ReasonLoginFieldNotFound, at,
			fmt.Sprintf("control did not accept input within %s", n.cfg.LoginTimeout), err)
		f.Field = field
		return f
	}
	return n.interactionError(ctx, at, field, err)
}

func (n *Navigator) interactionError(ctx context.Context, at, field string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f := n.fail(ReasonLoginFieldNotFound, at, "login control could not be used", err)
	f.Field = field
	return f
}

// awaitPostLogin blocks until the session leaves the login page.
func (n *Navigator) awaitPostLogin(ctx context.Context, target *url.URL) error {
	here, _ := n.session.CurrentURL(ctx)
	n.transition(StateAwaitingPostLoginRedirect, here)

	want := n.login.WaitForLogin
	landed := func(ctx context.Context) (bool, error) {
		raw, err := n.session.CurrentURL(ctx)
		if err != nil {
			return false, err
		}
		if want != "" {
			return strings.Contains(raw, want), nil
		}
		u, err := url.Parse(raw)
		if err != nil {
			return false, err
		}
		return !n.detect(target, u, n.login), nil
	}

	ok, err := n.session.WaitUntil(ctx, landed, n.cfg.LoginTimeout)
	if err != nil {
		return err
	}
	if !ok {
		last, _ := n.session.CurrentURL(ctx)
		msg := "session did not leave the login page"
		if want != "" {
			msg = fmt.Sprintf("current URL never contained %q", want)
		}
		return n.fail(ReasonLoginTimeout, last, fmt.Sprintf("%s within %s", msg, n.cfg.LoginTimeout), nil)
	}
	return n.settle(ctx)
}
