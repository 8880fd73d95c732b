// Package htmlsession is a browser session without a browser: pages are
// fetched over HTTP with a cookie jar and the DOM is the parsed HTML. It
// executes no JavaScript, which makes it suitable for server rendered
// pages, saved HTML files and tests.
package htmlsession

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/publicsuffix"

	"github.com/xkilldash9x/pagemapper/api/schemas"
	"github.com/xkilldash9x/pagemapper/internal/browser"
	"github.com/xkilldash9x/pagemapper/internal/browser/selector"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Options tunes a Session.
type Options struct {
	UserAgent       string
	IgnoreTLSErrors bool
	RequestTimeout  time.Duration
	MaxRedirects    int
	PollInterval    time.Duration
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// RedirectLimitError is returned when a navigation follows more server side
// redirects than allowed.
type RedirectLimitError struct {
	Limit int
	URL   string
}

func (e *RedirectLimitError) Error() string {
	return fmt.Sprintf("maximum number of redirects (%d) exceeded at %s", e.Limit, e.URL)
}

// Session implements schemas.SessionHandle over net/http and x/net/html.
type Session struct {
	id     string
	logger *zap.Logger
	opts   Options
	client *http.Client

	mu         sync.RWMutex
	currentURL *url.URL
	doc        *html.Node
	// generation increments every time the document is replaced, so refs
	// from an earlier page are recognized as vanished.
	generation uint64
	closed     bool
}

var _ schemas.SessionHandle = (*Session)(nil)

// nodeRef points at a node of one specific document generation.
type nodeRef struct {
	node       *html.Node
	generation uint64
	query      string
	index      int
}

func (r nodeRef) String() string {
	return fmt.Sprintf("%s[%d]@%d", r.query, r.index, r.generation)
}

// NewSession creates a session with an empty cookie jar.
func NewSession(opts Options, logger *zap.Logger) (*Session, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = 10
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	transport := opts.Transport
	if transport == nil {
		base := http.DefaultTransport.(*http.Transport).Clone()
		if opts.IgnoreTLSErrors {
			base.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via browser.ignore_tls_errors
		}
		transport = base
	}

	id := uuid.New().String()
	return &Session{
		id:     id,
		logger: logger.Named("htmlsession").With(zap.String("session_id", id)),
		opts:   opts,
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.RequestTimeout,
			Jar:       jar,
			// Redirects are followed manually so every hop is visible and bounded.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Load replaces the current document with markup, as if it had been served
// from pageURL. Used for scanning saved pages.
func (s *Session) Load(pageURL string, markup io.Reader) error {
	u, err := url.Parse(pageURL)
	if err != nil {
		return fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}
	doc, err := htmlquery.Parse(markup)
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}
	s.updateState(u, doc)
	return nil
}

// Navigate loads targetURL, following server side redirects.
func (s *Session) Navigate(ctx context.Context, targetURL string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	resolved, err := s.resolveURL(targetURL)
	if err != nil {
		return fmt.Errorf("failed to resolve URL '%s': %w", targetURL, err)
	}

	s.logger.Debug("Navigating", zap.String("url", resolved.String()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resolved.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request for '%s': %w", resolved, err)
	}
	return s.executeRequest(ctx, req)
}

func (s *Session) executeRequest(ctx context.Context, req *http.Request) error {
	current := req
	for i := 0; i <= s.opts.MaxRedirects; i++ {
		s.prepareRequestHeaders(current)
		resp, err := s.client.Do(current)
		if err != nil {
			return fmt.Errorf("request to %s failed: %w", current.URL, err)
		}

		if resp.StatusCode >= 300 && resp.StatusCode < 400 && resp.Header.Get("Location") != "" {
			next, err := s.redirectRequest(ctx, resp, current)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("failed to handle redirect: %w", err)
			}
			s.logger.Debug("Following redirect",
				zap.Int("status", resp.StatusCode),
				zap.String("from", current.URL.String()),
				zap.String("to", next.URL.String()))
			current = next
			continue
		}
		return s.processResponse(resp)
	}
	return &RedirectLimitError{Limit: s.opts.MaxRedirects, URL: current.URL.String()}
}

// redirectRequest builds the follow up request for a 3xx response.
func (s *Session) redirectRequest(ctx context.Context, resp *http.Response, original *http.Request) (*http.Request, error) {
	location := resp.Header.Get("Location")
	nextURL, err := original.URL.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redirect Location '%s': %w", location, err)
	}

	method := original.Method
	var body io.ReadCloser
	switch resp.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther:
		if method != http.MethodHead {
			method = http.MethodGet
		}
	default:
		if original.GetBody != nil {
			if body, err = original.GetBody(); err != nil {
				return nil, fmt.Errorf("failed to replay body for redirect: %w", err)
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, nextURL.String(), body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", original.Header.Get("Content-Type"))
	}
	req.Header.Set("Referer", original.URL.String())
	return req, nil
}

func (s *Session) processResponse(resp *http.Response) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		s.logger.Warn("Request resulted in error status code",
			zap.Int("status", resp.StatusCode),
			zap.String("url", resp.Request.URL.String()))
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if contentType != "" && !strings.Contains(contentType, "html") {
		s.logger.Debug("Response is not HTML, using an empty document.", zap.String("content_type", contentType))
		s.updateState(resp.Request.URL, emptyDocument())
		return nil
	}

	doc, err := htmlquery.Parse(resp.Body)
	if err != nil {
		s.updateState(resp.Request.URL, emptyDocument())
		return fmt.Errorf("failed to parse HTML response from '%s': %w", resp.Request.URL, err)
	}
	s.updateState(resp.Request.URL, doc)
	return nil
}

func (s *Session) updateState(newURL *url.URL, doc *html.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentURL = newURL
	s.doc = doc
	s.generation++
	s.logger.Debug("Document replaced", zap.String("url", newURL.String()), zap.Uint64("generation", s.generation))
}

func emptyDocument() *html.Node {
	doc, _ := html.Parse(strings.NewReader("<html><head></head><body></body></html>"))
	return doc
}

// FindAll evaluates a CSS selector against the current document.
func (s *Session) FindAll(ctx context.Context, query string) ([]schemas.NodeRef, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	doc, gen := s.doc, s.generation
	s.mu.RUnlock()
	if doc == nil {
		return nil, nil
	}

	nodes, err := selector.QueryAll(doc, query)
	if err != nil {
		return nil, fmt.Errorf("query %q failed: %w", query, err)
	}
	refs := make([]schemas.NodeRef, 0, len(nodes))
	for i, n := range nodes {
		refs = append(refs, nodeRef{node: n, generation: gen, query: query, index: i})
	}
	return refs, nil
}

// resolve checks that ref still points into the live document.
func (s *Session) resolve(ref schemas.NodeRef) (*html.Node, error) {
	r, ok := ref.(nodeRef)
	if !ok {
		return nil, fmt.Errorf("foreign node reference %T", ref)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r.generation != s.generation || !attached(r.node, s.doc) {
		return nil, schemas.ErrNodeVanished
	}
	return r.node, nil
}

func attached(n, doc *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == doc {
			return true
		}
	}
	return false
}

// ReadAttribute returns an attribute of a live node.
func (s *Session) ReadAttribute(ctx context.Context, ref schemas.NodeRef, name string) (string, bool, error) {
	n, err := s.resolve(ref)
	if err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := getAttr(n, name)
	return v, ok, nil
}

// Text returns the whitespace normalized text content of a node.
func (s *Session) Text(ctx context.Context, ref schemas.NodeRef) (string, error) {
	n, err := s.resolve(ref)
	if err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return normalizeSpace(htmlquery.InnerText(n)), nil
}

// Describe batches tag, attributes, structural path and text of a node.
func (s *Session) Describe(ctx context.Context, ref schemas.NodeRef) (schemas.NodeDescription, error) {
	n, err := s.resolve(ref)
	if err != nil {
		return schemas.NodeDescription{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	attrs := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		attrs[strings.ToLower(a.Key)] = a.Val
	}
	return schemas.NodeDescription{
		Tag:        strings.ToLower(n.Data),
		Attributes: attrs,
		Path:       selector.StructuralPath(n),
		Text:       normalizeSpace(htmlquery.InnerText(n)),
	}, nil
}

// CurrentURL returns the URL of the current document.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentURL == nil {
		return "", nil
	}
	return s.currentURL.String(), nil
}

// Title returns the document title.
func (s *Session) Title(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return "", nil
	}
	if t := htmlquery.FindOne(s.doc, "//title"); t != nil {
		return normalizeSpace(htmlquery.InnerText(t)), nil
	}
	return "", nil
}

// WaitUntil polls predicate with the session's poll interval.
func (s *Session) WaitUntil(ctx context.Context, predicate schemas.Predicate, timeout time.Duration) (bool, error) {
	return browser.WaitUntil(ctx, predicate, timeout, s.opts.PollInterval)
}

// Close releases idle connections. Further navigation fails.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.client.CloseIdleConnections()
	s.logger.Debug("Session closed")
	return nil
}

var errSessionClosed = errors.New("session is closed")

func (s *Session) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errSessionClosed
	}
	return nil
}

// resolveURL resolves a potentially relative URL against the current URL.
func (s *Session) resolveURL(target string) (*url.URL, error) {
	s.mu.RLock()
	current := s.currentURL
	s.mu.RUnlock()

	parsed, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	if current != nil && !parsed.IsAbs() {
		return current.ResolveReference(parsed), nil
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("initial navigation target must be an absolute URL: '%s'", target)
	}
	return parsed, nil
}

func (s *Session) prepareRequestHeaders(req *http.Request) {
	req.Header.Set("User-Agent", s.opts.UserAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	}
	if req.Header.Get("Referer") == "" {
		s.mu.RLock()
		if s.currentURL != nil {
			req.Header.Set("Referer", s.currentURL.String())
		}
		s.mu.RUnlock()
	}
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
