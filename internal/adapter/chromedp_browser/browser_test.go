package chromedp_browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedirectFulfillment(t *testing.T) {
	body, origin, ok := redirectFulfillment("https://acme.slack.com/ssb/redirect?entry_point=signin")
	require.True(t, ok)
	assert.Equal(t, "https://acme.slack.com/", origin)
	assert.Contains(t, string(body), `window.location.replace("https://acme.slack.com/")`)

	_, _, ok = redirectFulfillment("https://acme.slack.com/messages")
	assert.False(t, ok)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "visible", modeVisible.String())
	assert.Equal(t, "headless", modeHeadless.String())
	assert.Equal(t, "closed", modeClosed.String())
}

func TestBrowser_CloseWithoutOpenIsNoop(t *testing.T) {
	b := New(Config{ProfileDir: t.TempDir()})
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.Equal(t, modeClosed, b.mode)
}

func TestPage_RejectsForeignElements(t *testing.T) {
	p := newPage(context.Background(), nil, nil)

	_, err := p.OuterHTML(context.Background(), "not a node")
	assert.ErrorIs(t, err, ErrNotNode)

	_, err = p.ExpandAll(context.Background(), 42, "button", 0)
	assert.ErrorIs(t, err, ErrNotNode)

	assert.ErrorIs(t, p.ClickElement(context.Background(), struct{}{}), ErrNotNode)
	assert.NoError(t, p.Close())
}

// chromeForTest returns the Chrome binary for tests that drive a real
// browser, or skips the test.
func chromeForTest(t *testing.T) string {
	t.Helper()
	path := os.Getenv("CHROME_PATH")
	if path == "" {
		t.Skip("CHROME_PATH not set")
	}
	return path
}

// slackLikeServer serves a workspace list whose link opens the native-app
// redirect in a new tab. Requests that reach the redirect path are counted.
func slackLikeServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var redirectHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "/ssb/redirect"):
			redirectHits.Add(1)
			http.Error(w, "open the desktop app", http.StatusTeapot)
		case r.URL.Path == "/plain":
			fmt.Fprint(w, `<html><body><p id="plain">plain</p></body></html>`)
		default:
			fmt.Fprint(w, `<html><body><p id="home">home</p>
<a id="open" href="/ssb/redirect?entry_point=workspace_list" target="_blank">Open</a></body></html>`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &redirectHits
}

func TestInterceptor_FulfillsRedirectAndContinuesOthers(t *testing.T) {
	chrome := chromeForTest(t)
	srv, redirectHits := slackLikeServer(t)

	b := New(Config{ProfileDir: t.TempDir(), ExecPath: chrome, Logger: zap.NewNop()})
	defer b.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	p, err := b.NewHeadlessPage(ctx)
	require.NoError(t, err)
	defer p.Close()
	page := p.(*Page)
	require.NoError(t, installInterceptor(page.ctx, zap.NewNop()))

	// Matches the Fetch pattern but is not a redirect, so it goes through.
	require.NoError(t, page.Navigate(ctx, srv.URL+"/plain?next=/ssb/redirect", 10*time.Second))
	require.NoError(t, page.WaitVisible(ctx, "#plain", 10*time.Second))

	require.NoError(t, page.Navigate(ctx, srv.URL+"/ssb/redirect?entry_point=signin", 10*time.Second))
	require.NoError(t, page.WaitVisible(ctx, "#home", 10*time.Second))
	current, err := page.URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/", current)
	assert.Zero(t, redirectHits.Load(), "redirect must be answered in the browser")
}

func TestPage_InputActionsFailAfterTimeout(t *testing.T) {
	chrome := chromeForTest(t)
	srv, _ := slackLikeServer(t)

	b := New(Config{ProfileDir: t.TempDir(), ExecPath: chrome})
	defer b.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	p, err := b.NewHeadlessPage(ctx)
	require.NoError(t, err)
	defer p.Close()
	require.NoError(t, p.Navigate(ctx, srv.URL+"/plain", 10*time.Second))

	start := time.Now()
	err = p.Type(ctx, "#missing-input", "hiring", 300*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	err = p.PressEnter(ctx, "#missing-input", 300*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)

	// The tab survives an action timeout.
	require.NoError(t, p.WaitVisible(ctx, "#plain", 5*time.Second))
}

func TestSession_WaitNewPage(t *testing.T) {
	chrome := chromeForTest(t)
	if runtime.GOOS == "linux" && os.Getenv("DISPLAY") == "" {
		t.Skip("the visible profile needs a display")
	}
	srv, redirectHits := slackLikeServer(t)

	b := New(Config{ProfileDir: t.TempDir(), ExecPath: chrome})
	defer b.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	sess, err := b.OpenVisible(ctx)
	require.NoError(t, err)
	defer sess.Close()
	main, err := sess.Page(ctx)
	require.NoError(t, err)
	require.NoError(t, main.Navigate(ctx, srv.URL+"/", 10*time.Second))

	t.Run("no tab times out", func(t *testing.T) {
		start := time.Now()
		_, err := sess.WaitNewPage(ctx, func(context.Context) error { return nil }, 300*time.Millisecond)
		assert.ErrorIs(t, err, ErrNewPageTimeout)
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("trigger error is returned", func(t *testing.T) {
		boom := errors.New("click failed")
		_, err := sess.WaitNewPage(ctx, func(context.Context) error { return boom }, time.Second)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("popup redirect is intercepted from its first request", func(t *testing.T) {
		tab, err := sess.WaitNewPage(ctx, func(ctx context.Context) error {
			return main.Click(ctx, "#open", 5*time.Second)
		}, 10*time.Second)
		require.NoError(t, err)
		defer tab.Close()

		require.NoError(t, tab.WaitVisible(ctx, "#home", 10*time.Second))
		current, err := tab.URL(ctx)
		require.NoError(t, err)
		assert.Equal(t, srv.URL+"/", current)
		assert.Zero(t, redirectHits.Load())
	})

	t.Run("later tabs are not held", func(t *testing.T) {
		tabCtx, tabCancel := chromedp.NewContext(main.(*Page).ctx)
		defer tabCancel()
		require.NoError(t, newPage(tabCtx, tabCancel, zap.NewNop()).Navigate(ctx, srv.URL+"/plain", 10*time.Second))
	})
}
