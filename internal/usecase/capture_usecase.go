package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/user/lead-scraper/internal/entity"
	"github.com/user/lead-scraper/internal/repository"
	"github.com/user/lead-scraper/internal/slackdom"
	"github.com/user/lead-scraper/pkg/metrics"
	"github.com/user/lead-scraper/pkg/utils"
	"go.uber.org/zap"
)

// maxExpandClicks bounds the "show more workspaces" loop.
const maxExpandClicks = 50

// WorkspaceCapturer signs a human in and enumerates their workspaces.
type WorkspaceCapturer interface {
	Capture(ctx context.Context, creds entity.Credentials) ([]entity.Workspace, error)
}

type captureUseCase struct {
	browser   repository.Browser
	conns     repository.ConnectionRepository
	signinURL string
	timings   Timings
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewCaptureUseCase creates a WorkspaceCapturer. conns may be nil, in which
// case captured workspaces are not persisted.
func NewCaptureUseCase(browser repository.Browser, conns repository.ConnectionRepository, signinURL string, t Timings, logger *zap.Logger, m *metrics.Metrics) WorkspaceCapturer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &captureUseCase{
		browser:   browser,
		conns:     conns,
		signinURL: signinURL,
		timings:   t,
		logger:    logger,
		metrics:   m,
	}
}

// Capture returns every workspace it managed to open. Individual workspace
// failures are logged and skipped.
func (uc *captureUseCase) Capture(ctx context.Context, creds entity.Credentials) ([]entity.Workspace, error) {
	t := uc.timings

	sess, err := uc.browser.OpenVisible(ctx)
	if err != nil {
		return nil, fmt.Errorf("open login session: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			uc.logger.Debug("close login session", zap.Error(err))
		}
	}()

	page, err := sess.Page(ctx)
	if err != nil {
		return nil, fmt.Errorf("login page: %w", err)
	}
	if err := page.Navigate(ctx, uc.signinURL, t.Navigation); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNavigation, err)
	}

	uc.logger.Info("waiting for sign-in", zap.String("url", uc.signinURL), zap.Duration("timeout", t.Login))
	if err := page.WaitVisible(ctx, slackdom.WorkspaceList, t.Login); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoginTimeout, err)
	}

	uc.expandWorkspaceList(ctx, page)

	links, err := page.Elements(ctx, slackdom.WorkspaceLink, 0)
	if err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	uc.logger.Info("workspace links found", zap.Int("count", len(links)))

	workspaces := make([]entity.Workspace, 0, len(links))
	for i, link := range links {
		ws, err := uc.captureOne(ctx, sess, page, link)
		if err != nil {
			if ctx.Err() != nil {
				return workspaces, ctx.Err()
			}
			uc.logger.Warn("skipping workspace", zap.Int("index", i), zap.Error(err))
			continue
		}
		uc.logger.Info("workspace captured", zap.String("name", ws.Name), zap.String("url", ws.URL))
		workspaces = append(workspaces, ws)

		if i < len(links)-1 {
			if err := pause(ctx, t.WorkspacePause); err != nil {
				return workspaces, err
			}
		}
	}

	uc.metrics.SetWorkspaces(len(workspaces))
	uc.persist(ctx, creds, workspaces)
	return workspaces, nil
}

func (uc *captureUseCase) expandWorkspaceList(ctx context.Context, page repository.Page) {
	for i := 0; i < maxExpandClicks && page.Visible(ctx, slackdom.ShowMoreWorkspaces); i++ {
		if err := page.Click(ctx, slackdom.ShowMoreWorkspaces, uc.timings.Short); err != nil {
			uc.logger.Debug("expand workspace list", zap.Error(err))
			return
		}
		if err := pause(ctx, uc.timings.PostClick); err != nil {
			return
		}
	}
}

func (uc *captureUseCase) captureOne(ctx context.Context, sess repository.Session, page repository.Page, link repository.Element) (entity.Workspace, error) {
	t := uc.timings

	var listName, href string
	if html, err := page.OuterHTML(ctx, link); err == nil {
		listName, href = slackdom.WorkspaceListEntry(html)
	}

	tab, err := sess.WaitNewPage(ctx, func(ctx context.Context) error {
		return page.ClickElement(ctx, link)
	}, t.NewPage)
	if err != nil {
		return entity.Workspace{}, fmt.Errorf("open workspace %q: %w", listName, err)
	}
	defer func() {
		if err := tab.Close(); err != nil {
			uc.logger.Debug("close workspace tab", zap.Error(err))
		}
	}()

	if err := tab.WaitLoad(ctx, t.Navigation); err != nil {
		uc.logger.Debug("workspace tab load", zap.String("workspace", listName), zap.Error(err))
	}
	if err := pause(ctx, t.PostClick); err != nil {
		return entity.Workspace{}, err
	}

	if current, err := tab.URL(ctx); err == nil && slackdom.IsRedirectURL(current) {
		origin, err := slackdom.WorkspaceOrigin(current)
		if err != nil {
			return entity.Workspace{}, err
		}
		uc.logger.Info("redirect not intercepted, navigating to workspace", zap.String("origin", origin))
		if err := tab.Navigate(ctx, origin, t.Navigation); err != nil {
			return entity.Workspace{}, fmt.Errorf("%w: %w", ErrNavigation, err)
		}
	}

	final, err := uc.waitClientURL(ctx, tab)
	if err != nil {
		return entity.Workspace{}, err
	}

	name := listName
	if text, err := tab.Text(ctx, slackdom.ClientTeamName, t.Short); err == nil && strings.TrimSpace(text) != "" {
		name = strings.TrimSpace(text)
	}
	if name == "" {
		name = utils.Hostname(href)
	}

	return entity.Workspace{Name: name, URL: final}, nil
}

func (uc *captureUseCase) waitClientURL(ctx context.Context, tab repository.Page) (string, error) {
	deadline := time.Now().Add(uc.timings.ClientURL)
	for {
		current, err := tab.URL(ctx)
		if err == nil && slackdom.IsClientURL(current) {
			return current, nil
		}
		if !time.Now().Before(deadline) {
			return "", fmt.Errorf("%w: last url %q", ErrClientNotReached, current)
		}
		if err := pause(ctx, uc.timings.PollInterval); err != nil {
			return "", err
		}
	}
}

func (uc *captureUseCase) persist(ctx context.Context, creds entity.Credentials, workspaces []entity.Workspace) {
	if uc.conns == nil || len(workspaces) == 0 {
		return
	}
	// LastCheckedAt stays untouched so the first scrape is a full one.
	conn := entity.Connection{
		Platform: entity.PlatformSlack,
		Status:   entity.ConnectionConnected,
		Metadata: entity.ConnectionMetadata{Workspaces: workspaces},
	}
	if err := uc.conns.UpsertConnection(context.WithoutCancel(ctx), creds, conn); err != nil {
		uc.logger.Warn("failed to store workspaces", zap.Error(err))
	}
}
