package repository

import (
	"context"
	"time"
)

// Element is an opaque handle to a DOM node owned by a Page implementation.
type Element any

// Page is the set of DOM interactions the capture and search flows need.
// Every wait takes an explicit timeout.
type Page interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	// WaitLoad waits for the document to reach the loaded state.
	WaitLoad(ctx context.Context, timeout time.Duration) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	WaitHidden(ctx context.Context, selector string, timeout time.Duration) error
	// Visible reports whether selector currently matches a visible element.
	// It never blocks for long and treats any error as "not visible".
	Visible(ctx context.Context, selector string) bool
	Click(ctx context.Context, selector string, timeout time.Duration) error
	ClickElement(ctx context.Context, el Element) error
	// Type focuses the element matched by selector and types text into it.
	Type(ctx context.Context, selector, text string, timeout time.Duration) error
	// PressEnter sends the activate key to the element matched by selector.
	PressEnter(ctx context.Context, selector string, timeout time.Duration) error
	// PressEscape sends Escape to the page.
	PressEscape(ctx context.Context) error
	Text(ctx context.Context, selector string, timeout time.Duration) (string, error)
	URL(ctx context.Context) (string, error)
	// Elements returns up to limit nodes matching selector in DOM order.
	// A limit <= 0 returns all of them.
	Elements(ctx context.Context, selector string, limit int) ([]Element, error)
	OuterHTML(ctx context.Context, el Element) (string, error)
	// ExpandAll scrolls into view and clicks every descendant of el matching
	// selector, pausing settle after each click. It returns the click count.
	ExpandAll(ctx context.Context, el Element, selector string, settle time.Duration) (int, error)
	Close() error
}

// Session is an interactive (visible) browser session used for login.
type Session interface {
	// Page returns the session's main tab.
	Page(ctx context.Context) (Page, error)
	// WaitNewPage runs trigger and returns the first tab opened by the
	// browser afterwards, or an error if none appears within timeout.
	WaitNewPage(ctx context.Context, trigger func(ctx context.Context) error, timeout time.Duration) (Page, error)
	Close() error
}

// Browser owns the visible and headless profiles. Opening one closes the other.
type Browser interface {
	OpenVisible(ctx context.Context) (Session, error)
	NewHeadlessPage(ctx context.Context) (Page, error)
	Close() error
}
