package chromedp_browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/user/lead-scraper/internal/repository"
	"go.uber.org/zap"
)

// ErrNotNode is returned when an element did not come from this adapter.
var ErrNotNode = errors.New("browser: element is not a DOM node")

// visibleJS reports whether the selector matches a rendered element.
const visibleJS = `(() => {
	const el = document.querySelector(%s);
	if (!el) return false;
	const style = window.getComputedStyle(el);
	return style.visibility !== "hidden" && style.display !== "none" && el.getClientRects().length > 0;
})()`

// inputTimeout bounds the single-shot input actions that take no timeout
// from the caller.
const inputTimeout = 10 * time.Second

// Page implements repository.Page on a single chromedp tab.
type Page struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

var _ repository.Page = (*Page)(nil)

func newPage(tabCtx context.Context, cancel context.CancelFunc, logger *zap.Logger) *Page {
	return &Page{ctx: tabCtx, cancel: cancel, logger: logger}
}

// scoped derives an action context from the tab that also ends when the
// caller's ctx does. Cancelling it never closes the tab.
func (p *Page) scoped(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var (
		c      context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		c, cancel = context.WithTimeout(p.ctx, timeout)
	} else {
		c, cancel = context.WithCancel(p.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return c, func() {
		stop()
		cancel()
	}
}

func (p *Page) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	c, cancel := p.scoped(ctx, timeout)
	defer cancel()
	return chromedp.Run(c, actions...)
}

func (p *Page) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := p.run(ctx, timeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (p *Page) WaitLoad(ctx context.Context, timeout time.Duration) error {
	return p.run(ctx, timeout, chromedp.WaitReady("body", chromedp.ByQuery))
}

func (p *Page) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	return p.run(ctx, timeout, chromedp.WaitVisible(sel, chromedp.ByQuery))
}

func (p *Page) WaitHidden(ctx context.Context, sel string, timeout time.Duration) error {
	return p.run(ctx, timeout, chromedp.WaitNotPresent(sel, chromedp.ByQuery))
}

func (p *Page) Visible(ctx context.Context, sel string) bool {
	quoted, err := json.Marshal(sel)
	if err != nil {
		return false
	}
	var ok bool
	if err := p.run(ctx, 5*time.Second, chromedp.Evaluate(fmt.Sprintf(visibleJS, quoted), &ok)); err != nil {
		p.logger.Debug("visibility check failed", zap.String("selector", sel), zap.Error(err))
		return false
	}
	return ok
}

func (p *Page) Click(ctx context.Context, sel string, timeout time.Duration) error {
	return p.run(ctx, timeout, chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible))
}

func (p *Page) ClickElement(ctx context.Context, el repository.Element) error {
	node, ok := el.(*cdp.Node)
	if !ok {
		return ErrNotNode
	}
	return p.run(ctx, inputTimeout, chromedp.MouseClickNode(node))
}

// Type and PressEnter query sel until it matches, so a node that detaches
// and never returns fails after timeout instead of polling forever. A
// timeout <= 0 means inputTimeout.
func (p *Page) Type(ctx context.Context, sel, text string, timeout time.Duration) error {
	return p.run(ctx, inputBound(timeout),
		chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.SendKeys(sel, text, chromedp.ByQuery),
	)
}

func (p *Page) PressEnter(ctx context.Context, sel string, timeout time.Duration) error {
	return p.run(ctx, inputBound(timeout), chromedp.SendKeys(sel, kb.Enter, chromedp.ByQuery))
}

func inputBound(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return inputTimeout
	}
	return timeout
}

func (p *Page) PressEscape(ctx context.Context) error {
	return p.run(ctx, inputTimeout, chromedp.KeyEvent(kb.Escape))
}

func (p *Page) Text(ctx context.Context, sel string, timeout time.Duration) (string, error) {
	var text string
	if err := p.run(ctx, timeout, chromedp.Text(sel, &text, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return text, nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, 5*time.Second, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// Elements returns up to limit matches in document order. A limit <= 0
// returns every match. No matches is not an error.
func (p *Page) Elements(ctx context.Context, sel string, limit int) ([]repository.Element, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx, 10*time.Second, chromedp.Nodes(sel, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, err
	}
	if limit > 0 && len(nodes) > limit {
		nodes = nodes[:limit]
	}
	out := make([]repository.Element, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	return out, nil
}

func (p *Page) OuterHTML(ctx context.Context, el repository.Element) (string, error) {
	node, ok := el.(*cdp.Node)
	if !ok {
		return "", ErrNotNode
	}
	var html string
	err := p.run(ctx, 10*time.Second, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
		return err
	}))
	return html, err
}

// ExpandAll clicks every descendant of el matching sel, scrolling each into
// view first, and pauses for settle after each click. A control that cannot
// be clicked is skipped.
func (p *Page) ExpandAll(ctx context.Context, el repository.Element, sel string, settle time.Duration) (int, error) {
	parent, ok := el.(*cdp.Node)
	if !ok {
		return 0, ErrNotNode
	}

	var controls []*cdp.Node
	err := p.run(ctx, 5*time.Second, chromedp.Nodes(sel, &controls, chromedp.ByQueryAll, chromedp.AtLeast(0), chromedp.FromNode(parent)))
	if err != nil {
		return 0, err
	}

	clicked := 0
	for _, c := range controls {
		err := p.run(ctx, 5*time.Second, chromedp.ActionFunc(func(ctx context.Context) error {
			if err := dom.ScrollIntoViewIfNeeded().WithNodeID(c.NodeID).Do(ctx); err != nil {
				return err
			}
			return chromedp.MouseClickNode(c).Do(ctx)
		}))
		if err != nil {
			p.logger.Debug("expand control not clickable", zap.Error(err))
			continue
		}
		clicked++
		if settle > 0 {
			select {
			case <-time.After(settle):
			case <-ctx.Done():
				return clicked, ctx.Err()
			}
		}
	}
	return clicked, nil
}

// Close closes the tab. The visible profile's main tab is closed with its
// session instead.
func (p *Page) Close() error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}
