package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/user/lead-scraper/internal/entity"
	"github.com/user/lead-scraper/internal/repository"
	"github.com/user/lead-scraper/pkg/metrics"
	"go.uber.org/zap"
)

// ErrLoginInProgress is returned when a login flow is already running.
var ErrLoginInProgress = errors.New("login already in progress")

// EngineDeps are the collaborators of an Engine.
type EngineDeps struct {
	Browser   repository.Browser
	Capture   WorkspaceCapturer
	Searcher  WorkspaceSearcher
	Scraper   Scraper
	API       repository.CollaboratorAPI
	Scheduler SchedulerConfig
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// Engine is the host-facing API. It owns the workspace cache and serialises
// all browser work, so only one profile is ever in use.
type Engine struct {
	browser   repository.Browser
	capture   WorkspaceCapturer
	searcher  WorkspaceSearcher
	scraper   Scraper
	api       repository.CollaboratorAPI
	scheduler *Scheduler
	logger    *zap.Logger
	metrics   *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	browserMu sync.Mutex

	mu         sync.RWMutex
	workspaces []entity.Workspace
	loggingIn  bool
	loginWG    sync.WaitGroup
}

// NewEngine wires an Engine and its scheduler. Call Close when done.
func NewEngine(deps EngineDeps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		browser:  deps.Browser,
		capture:  deps.Capture,
		searcher: deps.Searcher,
		scraper:  deps.Scraper,
		api:      deps.API,
		logger:   logger,
		metrics:  deps.Metrics,
		ctx:      ctx,
		cancel:   cancel,
	}

	schedCfg := deps.Scheduler
	if schedCfg.Health == nil {
		schedCfg.Health = deps.API
	}
	if schedCfg.Logger == nil {
		schedCfg.Logger = logger.Named("scheduler")
	}
	e.scheduler = NewScheduler(e.ManualScrape, schedCfg)
	return e
}

// OpenLogin runs the capture flow, caches the result and starts the
// scheduler. A capture that yields nothing leaves the cache untouched.
func (e *Engine) OpenLogin(ctx context.Context, creds entity.Credentials) ([]entity.Workspace, error) {
	e.browserMu.Lock()
	workspaces, err := e.capture.Capture(ctx, creds)
	e.browserMu.Unlock()

	if len(workspaces) > 0 {
		e.setWorkspaces(workspaces)
		e.scheduler.Start(e.ctx, creds)
	}
	if err != nil {
		return workspaces, fmt.Errorf("capture workspaces: %w", err)
	}
	if len(workspaces) == 0 {
		return nil, ErrNoWorkspaces
	}
	return workspaces, nil
}

// StartLogin runs OpenLogin in the background, bound to the engine's
// lifetime instead of a request.
func (e *Engine) StartLogin(creds entity.Credentials) error {
	e.mu.Lock()
	if e.loggingIn {
		e.mu.Unlock()
		return ErrLoginInProgress
	}
	e.loggingIn = true
	e.loginWG.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.loginWG.Done()
		defer func() {
			e.mu.Lock()
			e.loggingIn = false
			e.mu.Unlock()
		}()
		workspaces, err := e.OpenLogin(e.ctx, creds)
		if err != nil {
			e.logger.Error("login failed", zap.Int("workspaces", len(workspaces)), zap.Error(err))
			return
		}
		e.logger.Info("login finished", zap.Int("workspaces", len(workspaces)))
	}()
	return nil
}

// LoginInProgress reports whether a background login is running.
func (e *Engine) LoginInProgress() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loggingIn
}

// Logout stops the scheduler, forgets the workspaces and closes the browser.
func (e *Engine) Logout(ctx context.Context) error {
	e.scheduler.Stop()
	e.setWorkspaces(nil)

	e.browserMu.Lock()
	defer e.browserMu.Unlock()
	if err := e.browser.Close(); err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

// GetWorkspaces returns the cached workspaces, refilling the cache from the
// stored connections when it is empty.
func (e *Engine) GetWorkspaces(ctx context.Context, creds entity.Credentials) ([]entity.Workspace, error) {
	if cached := e.cachedWorkspaces(); len(cached) > 0 {
		return cached, nil
	}

	conns, err := e.api.ListConnections(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}

	seen := make(map[string]bool)
	var workspaces []entity.Workspace
	for _, c := range conns {
		if c.Platform != entity.PlatformSlack {
			continue
		}
		for _, ws := range c.Metadata.Workspaces {
			if ws.URL == "" || seen[ws.URL] {
				continue
			}
			seen[ws.URL] = true
			workspaces = append(workspaces, ws)
		}
	}
	if len(workspaces) > 0 {
		e.setWorkspaces(workspaces)
	}
	return workspaces, nil
}

// Search runs keyword in every workspace. A failing workspace is logged and
// left out of the result.
func (e *Engine) Search(ctx context.Context, creds entity.Credentials, keyword string, lastScrapeDate *int64) ([]entity.SearchResult, error) {
	workspaces, err := e.GetWorkspaces(ctx, creds)
	if err != nil {
		return nil, err
	}
	if len(workspaces) == 0 {
		return nil, ErrNoWorkspaces
	}

	e.browserMu.Lock()
	defer e.browserMu.Unlock()

	results := make([]entity.SearchResult, 0, len(workspaces))
	for _, ws := range workspaces {
		items, err := e.searcher.SearchWorkspace(ctx, ws, keyword, lastScrapeDate)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			e.logger.Warn("workspace search failed", zap.String("workspace", ws.Name), zap.Error(err))
			continue
		}
		results = append(results, entity.SearchResult{
			WorkspaceName: ws.Name,
			WorkspaceURL:  ws.URL,
			Results:       items,
		})
	}
	return results, nil
}

// ManualScrape scrapes every workspace for every active keyword. Failures
// are reported in the summary.
func (e *Engine) ManualScrape(ctx context.Context, creds entity.Credentials) entity.ScrapeSummary {
	summary := e.scrape(ctx, creds)
	e.metrics.IncScrapeRun(summary.Success)
	return summary
}

func (e *Engine) scrape(ctx context.Context, creds entity.Credentials) entity.ScrapeSummary {
	keywords, err := e.activeKeywords(ctx, creds)
	if err != nil {
		return entity.ScrapeSummary{Error: err.Error()}
	}
	workspaces, err := e.GetWorkspaces(ctx, creds)
	if err != nil {
		return entity.ScrapeSummary{Error: err.Error()}
	}

	e.browserMu.Lock()
	defer e.browserMu.Unlock()
	return e.scraper.ScrapeAll(ctx, workspaces, keywords, creds)
}

func (e *Engine) activeKeywords(ctx context.Context, creds entity.Credentials) ([]string, error) {
	all, err := e.api.ListKeywords(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("list keywords: %w", err)
	}
	keywords := make([]string, 0, len(all))
	for _, k := range all {
		if k.IsActive() && k.Keyword != "" {
			keywords = append(keywords, k.Keyword)
		}
	}
	return keywords, nil
}

// SchedulerState returns a scheduler snapshot.
func (e *Engine) SchedulerState() entity.SchedulerState {
	return e.scheduler.State()
}

// StartScheduler arms the scheduler. It returns false if it was already armed.
func (e *Engine) StartScheduler(creds entity.Credentials) bool {
	return e.scheduler.Start(e.ctx, creds)
}

// StopScheduler disarms the scheduler. It returns false if it was not armed.
func (e *Engine) StopScheduler() bool {
	return e.scheduler.Stop()
}

// Close stops the scheduler, aborts background work and closes the browser.
func (e *Engine) Close() error {
	e.scheduler.Stop()
	e.cancel()
	e.loginWG.Wait()
	e.scheduler.Wait()

	e.browserMu.Lock()
	defer e.browserMu.Unlock()
	return e.browser.Close()
}

func (e *Engine) cachedWorkspaces() []entity.Workspace {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.workspaces) == 0 {
		return nil
	}
	out := make([]entity.Workspace, len(e.workspaces))
	copy(out, e.workspaces)
	return out
}

func (e *Engine) setWorkspaces(ws []entity.Workspace) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.workspaces = append([]entity.Workspace(nil), ws...)
	e.metrics.SetWorkspaces(len(ws))
}
