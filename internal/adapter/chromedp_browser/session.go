package chromedp_browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/user/lead-scraper/internal/repository"
	"go.uber.org/zap"
)

// ErrNewPageTimeout is returned when no tab opens after the trigger.
var ErrNewPageTimeout = errors.New("browser: no new page opened")

type session struct {
	browser *Browser
	main    *Page
}

func (s *session) Page(context.Context) (repository.Page, error) {
	return s.main, nil
}

// WaitNewPage subscribes to the next page target before running trigger, so
// a tab opened by the trigger cannot be missed. While the trigger runs the
// browser holds new targets before their first navigation, and the tab is
// only released once the redirect interceptor is installed on it. The
// subscription is dropped on every exit path.
func (s *session) WaitNewPage(ctx context.Context, trigger func(context.Context) error, timeout time.Duration) (repository.Page, error) {
	c := chromedp.FromContext(s.main.ctx)
	mainID := c.Target.TargetID
	browserCtx := cdp.WithExecutor(s.main.ctx, c.Browser)

	waitCtx, cancel := context.WithCancel(s.main.ctx)
	defer cancel()
	ch := chromedp.WaitNewTarget(waitCtx, func(info *target.Info) bool {
		return info.Type == "page" && info.TargetID != mainID
	})

	held := &heldTargets{}
	chromedp.ListenBrowser(waitCtx, held.record)
	if err := target.SetAutoAttach(true, true).WithFlatten(true).Do(browserCtx); err != nil {
		s.browser.logger.Debug("hold new pages", zap.Error(err))
	}
	defer s.release(browserCtx, held)

	if err := trigger(ctx); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var id target.ID
	select {
	case id = <-ch:
	case <-timer.C:
		return nil, ErrNewPageTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	tabCtx, tabCancel := chromedp.NewContext(s.main.ctx, chromedp.WithTargetID(id))
	if err := installInterceptor(tabCtx, s.browser.logger); err != nil {
		tabCancel()
		return nil, fmt.Errorf("browser: attach new page: %w", err)
	}
	if err := chromedp.Run(tabCtx, cdpruntime.RunIfWaitingForDebugger()); err != nil {
		s.browser.logger.Debug("resume new page", zap.Error(err))
	}
	s.browser.logger.Debug("attached new page", zap.String("target", string(id)))
	return newPage(tabCtx, tabCancel, s.browser.logger), nil
}

// release turns auto-attach off and detaches every held session. A held
// target resumes when its session detaches.
func (s *session) release(browserCtx context.Context, held *heldTargets) {
	ctx := context.WithoutCancel(browserCtx)
	if err := target.SetAutoAttach(false, false).Do(ctx); err != nil {
		s.browser.logger.Debug("stop holding new pages", zap.Error(err))
	}
	for _, sid := range held.sessions() {
		if err := target.DetachFromTarget().WithSessionID(sid).Do(ctx); err != nil {
			s.browser.logger.Debug("detach held page", zap.String("session", string(sid)), zap.Error(err))
		}
	}
}

// heldTargets collects the sessions of targets the browser auto-attached
// while they wait for a debugger.
type heldTargets struct {
	mu  sync.Mutex
	ids []target.SessionID
}

func (h *heldTargets) record(ev any) {
	attached, ok := ev.(*target.EventAttachedToTarget)
	if !ok || !attached.WaitingForDebugger {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ids = append(h.ids, attached.SessionID)
}

func (h *heldTargets) sessions() []target.SessionID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]target.SessionID(nil), h.ids...)
}

// Close closes the visible profile.
func (s *session) Close() error {
	s.browser.closeIfCurrent(s.main.ctx)
	return nil
}
