package chromedp_browser

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/chromedp"
	"github.com/user/lead-scraper/internal/slackdom"
	"go.uber.org/zap"
)

// installInterceptor pauses native-app redirect requests on the tab and
// answers them with a page that bounces to the workspace origin.
func installInterceptor(tabCtx context.Context, logger *zap.Logger) error {
	chromedp.ListenTarget(tabCtx, func(ev any) {
		paused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		// Handlers must not block the event loop.
		go handlePaused(tabCtx, paused, logger)
	})

	return chromedp.Run(tabCtx, fetch.Enable().WithPatterns([]*fetch.RequestPattern{{
		URLPattern:   slackdom.RedirectURLPattern,
		RequestStage: fetch.RequestStageRequest,
	}}))
}

func handlePaused(tabCtx context.Context, ev *fetch.EventRequestPaused, logger *zap.Logger) {
	c := chromedp.FromContext(tabCtx)
	if c == nil || c.Target == nil {
		return
	}
	ctx := cdp.WithExecutor(tabCtx, c.Target)

	body, origin, ok := redirectFulfillment(ev.Request.URL)
	if !ok {
		if err := fetch.ContinueRequest(ev.RequestID).Do(ctx); err != nil {
			logger.Debug("continue request failed", zap.String("url", ev.Request.URL), zap.Error(err))
		}
		return
	}

	err := fetch.FulfillRequest(ev.RequestID, http.StatusOK).
		WithResponseHeaders([]*fetch.HeaderEntry{{Name: "Content-Type", Value: "text/html; charset=utf-8"}}).
		WithBody(base64.StdEncoding.EncodeToString(body)).
		Do(ctx)
	if err != nil {
		logger.Warn("fulfill redirect failed", zap.String("url", ev.Request.URL), zap.Error(err))
		return
	}
	logger.Debug("redirect intercepted", zap.String("origin", origin))
}

// redirectFulfillment returns the synthetic body for a native-app redirect
// URL. ok is false for anything else.
func redirectFulfillment(rawURL string) (body []byte, origin string, ok bool) {
	if !slackdom.IsRedirectURL(rawURL) {
		return nil, "", false
	}
	origin, err := slackdom.WorkspaceOrigin(rawURL)
	if err != nil {
		return nil, "", false
	}
	return slackdom.RedirectPage(origin), origin, true
}
