package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/user/lead-scraper/internal/entity"
	"github.com/user/lead-scraper/internal/repository"
	"github.com/user/lead-scraper/internal/slackdom"
	"github.com/user/lead-scraper/pkg/metrics"
	"go.uber.org/zap"
)

// DefaultMaxResults caps how many result items one search reads.
const DefaultMaxResults = 10

// WorkspaceSearcher runs one keyword search in one workspace.
type WorkspaceSearcher interface {
	// SearchWorkspace returns the newest matches for keyword. When
	// lastScrapeDate is set, enumeration stops at the first item older
	// than it.
	SearchWorkspace(ctx context.Context, ws entity.Workspace, keyword string, lastScrapeDate *int64) ([]entity.SearchResultItem, error)
}

type searchUseCase struct {
	browser    repository.Browser
	timings    Timings
	maxResults int
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// NewSearchUseCase creates a WorkspaceSearcher driving headless pages.
func NewSearchUseCase(browser repository.Browser, t Timings, maxResults int, logger *zap.Logger, m *metrics.Metrics) WorkspaceSearcher {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &searchUseCase{
		browser:    browser,
		timings:    t,
		maxResults: maxResults,
		logger:     logger,
		metrics:    m,
	}
}

func (uc *searchUseCase) SearchWorkspace(ctx context.Context, ws entity.Workspace, keyword string, lastScrapeDate *int64) ([]entity.SearchResultItem, error) {
	start := time.Now()
	defer func() { uc.metrics.ObserveSearch(ws.Name, time.Since(start).Seconds()) }()

	log := uc.logger.With(zap.String("workspace", ws.Name), zap.String("keyword", keyword))

	page, err := uc.browser.NewHeadlessPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("open headless page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			log.Debug("close search page", zap.Error(err))
		}
	}()

	if err := uc.openSearch(ctx, page, ws, keyword, log); err != nil {
		return nil, err
	}

	if err := page.WaitVisible(ctx, slackdom.ResultsContainer, uc.timings.Element); err != nil {
		return nil, fmt.Errorf("search results did not load: %w", err)
	}

	if page.Visible(ctx, slackdom.EmptyState) {
		text, err := page.Text(ctx, slackdom.EmptyState, uc.timings.Short)
		if err == nil && slackdom.IsEmptyState(text) {
			log.Info("search returned no results")
			return []entity.SearchResultItem{}, nil
		}
	}

	uc.sortNewestFirst(ctx, page, log)

	elements, err := page.Elements(ctx, slackdom.ResultItem, uc.maxResults)
	if err != nil {
		return nil, fmt.Errorf("list search results: %w", err)
	}

	items := make([]entity.SearchResultItem, 0, len(elements))
	for i, el := range elements {
		if err := ctx.Err(); err != nil {
			return items, err
		}

		item, stop, err := uc.extract(ctx, page, el, ws.URL, lastScrapeDate)
		if stop {
			log.Info("reached previously scraped results", zap.Int("index", i), zap.Int64p("last_scrape_date", lastScrapeDate))
			uc.metrics.IncItemSkipped("early_stop")
			break
		}
		if err != nil {
			log.Warn("skipping result item", zap.Int("index", i), zap.Error(err))
			uc.metrics.IncItemSkipped("extract_error")
			continue
		}
		items = append(items, item)
	}

	log.Info("search finished", zap.Int("items", len(items)), zap.Duration("duration", time.Since(start)))
	return items, nil
}

// openSearch brings a fresh tab from Idle to a submitted query.
func (uc *searchUseCase) openSearch(ctx context.Context, page repository.Page, ws entity.Workspace, keyword string, log *zap.Logger) error {
	t := uc.timings

	if err := page.Navigate(ctx, ws.URL, t.Navigation); err != nil {
		return fmt.Errorf("%w: %w", ErrNavigation, err)
	}
	if err := page.WaitVisible(ctx, slackdom.SearchButton, t.Element); err != nil {
		return fmt.Errorf("%w: %w", ErrInterfaceNotReady, err)
	}

	// Leftovers from a previous query in the same profile.
	if page.Visible(ctx, slackdom.ClearSearch) {
		if err := page.Click(ctx, slackdom.ClearSearch, t.Short); err != nil {
			log.Debug("clear previous search", zap.Error(err))
		}
	}
	if page.Visible(ctx, slackdom.SearchModal) {
		if err := page.PressEscape(ctx); err != nil {
			log.Debug("close leftover search modal", zap.Error(err))
		}
		if err := page.WaitHidden(ctx, slackdom.SearchModal, t.Short); err != nil {
			log.Warn("leftover search modal still open", zap.Error(err))
		}
	}

	if err := page.Click(ctx, slackdom.SearchButton, t.Element); err != nil {
		return fmt.Errorf("open search modal: %w", err)
	}
	if err := page.WaitVisible(ctx, slackdom.QueryInput, t.Element); err != nil {
		return fmt.Errorf("query input not visible: %w", err)
	}
	if err := page.Type(ctx, slackdom.QueryInput, keyword, t.Element); err != nil {
		return fmt.Errorf("type query: %w", err)
	}

	if err := page.Click(ctx, slackdom.QuerySuggestion, t.Short); err != nil {
		log.Debug("no query suggestion, submitting with enter", zap.Error(err))
		if err := page.PressEnter(ctx, slackdom.QueryInput, t.Element); err != nil {
			return fmt.Errorf("submit query: %w", err)
		}
	}
	return nil
}

// sortNewestFirst is best-effort. Without it early-stop may under- or
// over-collect.
func (uc *searchUseCase) sortNewestFirst(ctx context.Context, page repository.Page, log *zap.Logger) {
	t := uc.timings
	if err := page.Click(ctx, slackdom.SortButton, t.Short); err != nil {
		log.Warn("sort control not found, keeping default order", zap.Error(err))
		return
	}
	if err := page.Click(ctx, slackdom.SortNewest, t.Short); err != nil {
		log.Warn("newest-first option not found, keeping default order", zap.Error(err))
		if err := page.PressEscape(ctx); err != nil {
			log.Debug("close sort menu", zap.Error(err))
		}
		return
	}
	if err := page.WaitVisible(ctx, slackdom.ResultsContainer, t.Element); err != nil {
		log.Warn("results not visible after sorting", zap.Error(err))
	}
	if err := pause(ctx, t.PostClick); err != nil {
		log.Debug("sort settle interrupted", zap.Error(err))
	}
}

// extract reads the timestamp before touching the item so that early-stop
// never expands an item it will discard.
func (uc *searchUseCase) extract(ctx context.Context, page repository.Page, el repository.Element, workspaceURL string, lastScrapeDate *int64) (item entity.SearchResultItem, stop bool, err error) {
	html, err := page.OuterHTML(ctx, el)
	if err != nil {
		return item, false, fmt.Errorf("read item: %w", err)
	}

	if ts, ok := slackdom.ItemTimestamp(html); ok && lastScrapeDate != nil && ts < *lastScrapeDate {
		return item, true, nil
	}

	if n, err := page.ExpandAll(ctx, el, slackdom.ShowMore, uc.timings.PostClick); err != nil {
		uc.logger.Debug("expand truncated message", zap.Int("expanded", n), zap.Error(err))
	}

	html, err = page.OuterHTML(ctx, el)
	if err != nil {
		return item, false, fmt.Errorf("read expanded item: %w", err)
	}

	item, err = slackdom.ExtractItem(html, workspaceURL)
	return item, false, err
}
