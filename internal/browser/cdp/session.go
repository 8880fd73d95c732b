package cdp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/pagemapper/api/schemas"
	"github.com/xkilldash9x/pagemapper/internal/browser"
	"github.com/xkilldash9x/pagemapper/internal/browser/selector"
)

const closeTimeout = 5 * time.Second

// Session is a schemas.SessionHandle backed by one chromedp tab.
type Session struct {
	ctx          context.Context
	cancel       context.CancelFunc
	pollInterval time.Duration
	logger       *zap.Logger
}

var _ schemas.SessionHandle = (*Session)(nil)

type nodeRef struct {
	query   string
	index   int
	nodeID  cdp.NodeID
	backend cdp.BackendNodeID
}

func (r nodeRef) String() string {
	return fmt.Sprintf("%s[%d]#%d", r.query, r.index, r.backend)
}

func newSession(ctx context.Context, cancel context.CancelFunc, pollInterval time.Duration, logger *zap.Logger) *Session {
	return &Session{ctx: ctx, cancel: cancel, pollInterval: pollInterval, logger: logger}
}

// run executes actions in the tab, bounded by the caller's context.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := browser.CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(opCtx, actions...)
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating", zap.String("url", url))
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// FindAll resolves a CSS selector, honoring a trailing `>> nth=k`.
func (s *Session) FindAll(ctx context.Context, query string) ([]schemas.NodeRef, error) {
	base, nth, hasNth := selector.SplitNth(query)

	var nodes []*cdp.Node
	err := s.run(ctx, chromedp.Nodes(base, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("query %q failed: %w", query, err)
	}

	refs := make([]schemas.NodeRef, 0, len(nodes))
	for i, n := range nodes {
		if hasNth && i != nth {
			continue
		}
		refs = append(refs, nodeRef{query: query, index: i, nodeID: n.NodeID, backend: n.BackendNodeID})
	}
	return refs, nil
}

// callOn runs fn with the referenced element as its first argument and
// decodes the by-value result into res.
func (s *Session) callOn(ctx context.Context, ref schemas.NodeRef, fn string, res any, args ...any) error {
	r, ok := ref.(nodeRef)
	if !ok {
		return fmt.Errorf("foreign node reference %T", ref)
	}

	return s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(r.backend).Do(ctx)
		if err != nil {
			return fmt.Errorf("%w: %v", schemas.ErrNodeVanished, err)
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()

		wrapped := "function(...args) { return (" + fn + ")(this, ...args); }"
		return chromedp.CallFunctionOn(wrapped, res,
			func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
				return p.WithObjectID(obj.ObjectID)
			},
			args...,
		).Do(ctx)
	}))
}

// Describe reads tag, attributes, path and text in one round trip.
func (s *Session) Describe(ctx context.Context, ref schemas.NodeRef) (schemas.NodeDescription, error) {
	var raw []byte
	if err := s.callOn(ctx, ref, browser.DescribeNodeJS, &raw); err != nil {
		return schemas.NodeDescription{}, err
	}
	return browser.DecodeDescription(raw)
}

// Text returns the normalized visible text of the node.
func (s *Session) Text(ctx context.Context, ref schemas.NodeRef) (string, error) {
	var raw []byte
	if err := s.callOn(ctx, ref, browser.NodeTextJS, &raw); err != nil {
		return "", err
	}
	if isNull(raw) {
		return "", schemas.ErrNodeVanished
	}
	var text string
	if err := jsoniter.Unmarshal(raw, &text); err != nil {
		return "", fmt.Errorf("failed to decode node text: %w", err)
	}
	return text, nil
}

// ReadAttribute returns the attribute value and whether it is present.
func (s *Session) ReadAttribute(ctx context.Context, ref schemas.NodeRef, name string) (string, bool, error) {
	var raw []byte
	if err := s.callOn(ctx, ref, browser.ReadAttributeJS, &raw, name); err != nil {
		return "", false, err
	}
	if isNull(raw) {
		return "", false, schemas.ErrNodeVanished
	}
	var pair [2]any
	if err := jsoniter.Unmarshal(raw, &pair); err != nil {
		return "", false, fmt.Errorf("failed to decode attribute: %w", err)
	}
	present, _ := pair[0].(bool)
	value, _ := pair[1].(string)
	return value, present, nil
}

// Click dispatches a trusted mouse click at the node's center.
func (s *Session) Click(ctx context.Context, ref schemas.NodeRef) error {
	r, ok := ref.(nodeRef)
	if !ok {
		return fmt.Errorf("foreign node reference %T", ref)
	}
	err := s.run(ctx, chromedp.Click([]cdp.NodeID{r.nodeID}, chromedp.ByNodeID))
	return vanishedOr(err)
}

// Type clears the control and sends value as key events. A trailing newline
// presses Enter.
func (s *Session) Type(ctx context.Context, ref schemas.NodeRef, value string) error {
	r, ok := ref.(nodeRef)
	if !ok {
		return fmt.Errorf("foreign node reference %T", ref)
	}
	ids := []cdp.NodeID{r.nodeID}
	err := s.run(ctx,
		chromedp.Focus(ids, chromedp.ByNodeID),
		chromedp.Clear(ids, chromedp.ByNodeID),
		chromedp.SendKeys(ids, value, chromedp.ByNodeID),
	)
	return vanishedOr(err)
}

// CurrentURL returns the tab's location.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// Title returns the document title.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return strings.TrimSpace(title), nil
}

// WaitUntil polls predicate at the configured interval.
func (s *Session) WaitUntil(ctx context.Context, predicate schemas.Predicate, timeout time.Duration) (bool, error) {
	return browser.WaitUntil(ctx, predicate, timeout, s.pollInterval)
}

// Close closes the browser gracefully, even when the scan was canceled.
func (s *Session) Close(ctx context.Context) error {
	closeCtx, cancel := context.WithTimeout(browser.Detach(ctx), closeTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(s.ctx) }()

	var err error
	select {
	case err = <-done:
	case <-closeCtx.Done():
		err = closeCtx.Err()
	}
	s.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("Browser did not close cleanly.", zap.Error(err))
		return err
	}
	return nil
}

func isNull(raw []byte) bool {
	t := strings.TrimSpace(string(raw))
	return t == "" || t == "null"
}

// vanishedOr maps protocol errors about missing nodes to ErrNodeVanished.
func vanishedOr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "could not find node") || strings.Contains(msg, "node with given id") {
		return fmt.Errorf("%w: %v", schemas.ErrNodeVanished, err)
	}
	return err
}
