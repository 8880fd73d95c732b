package pw

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagemapper/api/schemas"
	"github.com/xkilldash9x/pagemapper/internal/browser"
)

// Session is a schemas.SessionHandle over one Playwright page.
type Session struct {
	bctx           playwright.BrowserContext
	page           playwright.Page
	pollInterval   time.Duration
	defaultTimeout time.Duration
	logger         *zap.Logger
}

var _ schemas.SessionHandle = (*Session)(nil)

type nodeRef struct {
	handle playwright.ElementHandle
	query  string
	index  int
}

func (r nodeRef) String() string { return fmt.Sprintf("%s[%d]", r.query, r.index) }

// timeoutMs converts the remaining time of ctx into a Playwright timeout.
func (s *Session) timeoutMs(ctx context.Context) *float64 {
	d := s.defaultTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < d {
			d = remaining
		}
	}
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return playwright.Float(float64(d.Milliseconds()))
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Debug("Navigating", zap.String("url", url))
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   s.timeoutMs(ctx),
	})
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// FindAll queries the page. Playwright selector syntax, including
// `>> nth=k`, is understood natively.
func (s *Session) FindAll(ctx context.Context, query string) ([]schemas.NodeRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	handles, err := s.page.QuerySelectorAll(query)
	if err != nil {
		return nil, fmt.Errorf("selector query failed: %w", err)
	}
	refs := make([]schemas.NodeRef, 0, len(handles))
	for i, h := range handles {
		refs = append(refs, nodeRef{handle: h, query: query, index: i})
	}
	return refs, nil
}

func (s *Session) evaluate(ctx context.Context, ref schemas.NodeRef, fn string, arg ...any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, ok := ref.(nodeRef)
	if !ok {
		return nil, fmt.Errorf("foreign node reference %T", ref)
	}
	res, err := r.handle.Evaluate(fn, arg...)
	if err != nil {
		return nil, vanishedOr(err)
	}
	if res == nil {
		return nil, schemas.ErrNodeVanished
	}
	return res, nil
}

// Describe reads tag, attributes, path and text in one evaluation.
func (s *Session) Describe(ctx context.Context, ref schemas.NodeRef) (schemas.NodeDescription, error) {
	res, err := s.evaluate(ctx, ref, browser.DescribeNodeJS)
	if err != nil {
		return schemas.NodeDescription{}, err
	}
	raw, err := jsoniter.Marshal(res)
	if err != nil {
		return schemas.NodeDescription{}, fmt.Errorf("failed to encode node description: %w", err)
	}
	return browser.DecodeDescription(raw)
}

// Text returns the normalized visible text of the node.
func (s *Session) Text(ctx context.Context, ref schemas.NodeRef) (string, error) {
	res, err := s.evaluate(ctx, ref, browser.NodeTextJS)
	if err != nil {
		return "", err
	}
	text, _ := res.(string)
	return text, nil
}

// ReadAttribute returns the attribute value and whether it is present.
func (s *Session) ReadAttribute(ctx context.Context, ref schemas.NodeRef, name string) (string, bool, error) {
	res, err := s.evaluate(ctx, ref, browser.ReadAttributeJS, name)
	if err != nil {
		return "", false, err
	}
	pair, ok := res.([]any)
	if !ok || len(pair) != 2 {
		return "", false, fmt.Errorf("unexpected attribute result %T", res)
	}
	present, _ := pair[0].(bool)
	value, _ := pair[1].(string)
	return value, present, nil
}

// Click performs an actionable click on the node.
func (s *Session) Click(ctx context.Context, ref schemas.NodeRef) error {
	r, ok := ref.(nodeRef)
	if !ok {
		return fmt.Errorf("foreign node reference %T", ref)
	}
	err := r.handle.Click(playwright.ElementHandleClickOptions{Timeout: s.timeoutMs(ctx)})
	return vanishedOr(err)
}

// Type fills the control. A trailing newline presses Enter.
func (s *Session) Type(ctx context.Context, ref schemas.NodeRef, value string) error {
	r, ok := ref.(nodeRef)
	if !ok {
		return fmt.Errorf("foreign node reference %T", ref)
	}
	text := strings.TrimRight(value, "\r\n")
	if err := r.handle.Fill(text, playwright.ElementHandleFillOptions{Timeout: s.timeoutMs(ctx)}); err != nil {
		return vanishedOr(err)
	}
	if text != value {
		return vanishedOr(r.handle.Press("Enter", playwright.ElementHandlePressOptions{Timeout: s.timeoutMs(ctx)}))
	}
	return nil
}

// CurrentURL returns the page URL.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	return s.page.URL(), nil
}

// Title returns the document title.
func (s *Session) Title(ctx context.Context) (string, error) {
	title, err := s.page.Title()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(title), nil
}

// WaitUntil polls predicate at the configured interval.
func (s *Session) WaitUntil(ctx context.Context, predicate schemas.Predicate, timeout time.Duration) (bool, error) {
	return browser.WaitUntil(ctx, predicate, timeout, s.pollInterval)
}

// Close discards the browser context and its cookies.
func (s *Session) Close(ctx context.Context) error {
	if err := s.bctx.Close(); err != nil && !errors.Is(err, playwright.ErrTargetClosed) {
		return fmt.Errorf("failed to close browser context: %w", err)
	}
	return nil
}

func vanishedOr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "not attached") || strings.Contains(msg, "disposed") || strings.Contains(msg, "detached") {
		return fmt.Errorf("%w: %v", schemas.ErrNodeVanished, err)
	}
	return err
}
