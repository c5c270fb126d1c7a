package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/lead-scraper/internal/entity"
	"github.com/user/lead-scraper/internal/repository"
	"github.com/user/lead-scraper/pkg/metrics"
	"github.com/user/lead-scraper/pkg/retry"
	"go.uber.org/zap"
)

const attemptSaveTimeout = 5 * time.Second

// Scraper runs keyword searches across workspaces and turns every match
// into a lead.
type Scraper interface {
	// ScrapeWorkspace never panics. Failures are reported in the result.
	ScrapeWorkspace(ctx context.Context, ws entity.Workspace, keywords []string, creds entity.Credentials) entity.WorkspaceScrapeResult
	// ScrapeAll scrapes workspaces one after another and aggregates totals.
	ScrapeAll(ctx context.Context, workspaces []entity.Workspace, keywords []string, creds entity.Credentials) entity.ScrapeSummary
}

// ScrapeConfig holds the retry policy applied to each search.
type ScrapeConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	// DedupTTL is how long a submitted keyword match is remembered by the
	// optional seen repository.
	DedupTTL time.Duration
	// Sleep replaces the backoff delay. Optional.
	Sleep retry.SleepFunc
}

// ScrapeOption configures optional collaborators of the scraper.
type ScrapeOption func(*scrapeUseCase)

// WithSeenRepository skips keyword matches that were submitted recently.
func WithSeenRepository(seen repository.SeenRepository) ScrapeOption {
	return func(uc *scrapeUseCase) { uc.seen = seen }
}

// WithAttemptRepository persists every retry attempt.
func WithAttemptRepository(attempts repository.AttemptRepository) ScrapeOption {
	return func(uc *scrapeUseCase) { uc.attempts = attempts }
}

// WithScrapeLogger sets a custom logger.
func WithScrapeLogger(l *zap.Logger) ScrapeOption {
	return func(uc *scrapeUseCase) {
		if l != nil {
			uc.logger = l
		}
	}
}

// WithScrapeMetrics records scrape metrics.
func WithScrapeMetrics(m *metrics.Metrics) ScrapeOption {
	return func(uc *scrapeUseCase) { uc.metrics = m }
}

type scrapeUseCase struct {
	searcher WorkspaceSearcher
	api      repository.CollaboratorAPI
	cfg      ScrapeConfig
	seen     repository.SeenRepository
	attempts repository.AttemptRepository
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewScrapeUseCase creates a Scraper.
func NewScrapeUseCase(searcher WorkspaceSearcher, api repository.CollaboratorAPI, cfg ScrapeConfig, opts ...ScrapeOption) Scraper {
	uc := &scrapeUseCase{
		searcher: searcher,
		api:      api,
		cfg:      cfg,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(uc)
	}
	return uc
}

// workspaceRun carries what the failure path needs to close out a run.
type workspaceRun struct {
	conn  *entity.Connection
	logID string
}

// connectionSnapshot is the connection list read once at the start of a
// pass. Success reports move last_checked_at forward, so every workspace in
// the pass must read its cutoff from this copy rather than from the API.
type connectionSnapshot struct {
	conns     []entity.Connection
	err       error
	checkedAt time.Time
}

func (uc *scrapeUseCase) takeSnapshot(ctx context.Context, creds entity.Credentials) *connectionSnapshot {
	snap := &connectionSnapshot{checkedAt: uc.now().UTC()}
	conns, err := uc.api.ListConnections(ctx, creds)
	if err != nil {
		snap.err = err
		return snap
	}
	snap.conns = make([]entity.Connection, len(conns))
	for i, c := range conns {
		if c.LastCheckedAt != nil {
			t := *c.LastCheckedAt
			c.LastCheckedAt = &t
		}
		snap.conns[i] = c
	}
	return snap
}

func (uc *scrapeUseCase) ScrapeWorkspace(ctx context.Context, ws entity.Workspace, keywords []string, creds entity.Credentials) entity.WorkspaceScrapeResult {
	return uc.scrapeWorkspace(ctx, ws, keywords, creds, nil)
}

// scrapeWorkspace takes its own snapshot when snap is nil.
func (uc *scrapeUseCase) scrapeWorkspace(ctx context.Context, ws entity.Workspace, keywords []string, creds entity.Credentials, snap *connectionSnapshot) (res entity.WorkspaceScrapeResult) {
	res = entity.WorkspaceScrapeResult{
		WorkspaceName: ws.Name,
		WorkspaceURL:  ws.URL,
		Keywords:      keywords,
	}
	run := &workspaceRun{}
	checkedAt := uc.now().UTC()
	if snap != nil {
		checkedAt = snap.checkedAt
	}
	log := uc.logger.With(zap.String("workspace", ws.Name))

	defer func() {
		if r := recover(); r != nil {
			log.Error("workspace scrape panicked", zap.Any("panic", r), zap.Stack("stack"))
			res.Success = false
			res.Error = fmt.Sprintf("panic: %v", r)
			uc.finishFailed(ctx, creds, ws, run, res, checkedAt)
		}
	}()

	log.Info("scraping workspace", zap.Strings("keywords", keywords))
	if err := uc.scrapeKeywords(ctx, ws, keywords, creds, snap, run, &res); err != nil {
		log.Error("workspace scrape failed", zap.Error(err))
		res.Success = false
		res.Error = err.Error()
		uc.finishFailed(ctx, creds, ws, run, res, checkedAt)
		return res
	}

	res.Success = true
	uc.finishCompleted(ctx, creds, ws, run, res, checkedAt)
	log.Info("workspace scraped",
		zap.Int("messages", res.MessagesFound),
		zap.Int("leads", res.LeadsCreated),
		zap.Int("retries", res.RetryAttempts),
	)
	return res
}

func (uc *scrapeUseCase) scrapeKeywords(ctx context.Context, ws entity.Workspace, keywords []string, creds entity.Credentials, snap *connectionSnapshot, run *workspaceRun, res *entity.WorkspaceScrapeResult) error {
	if snap == nil {
		snap = uc.takeSnapshot(ctx, creds)
	}
	if snap.err != nil {
		return fmt.Errorf("resolve connection: %w", snap.err)
	}
	conn := resolveConnection(snap.conns, ws)
	run.conn = conn

	logID, err := uc.api.CreateScrapeLog(ctx, creds, entity.ScrapeLog{
		ConnectionID: connectionID(conn),
		Platform:     entity.PlatformSlack,
		Workspace:    ws.Name,
		Keywords:     keywords,
		Status:       entity.ScrapeLogRunning,
	})
	if err != nil {
		return fmt.Errorf("create scrape log: %w", err)
	}
	run.logID = logID

	hwm := conn.HighWaterMark()
	for _, kw := range keywords {
		if err := ctx.Err(); err != nil {
			return err
		}

		op := fmt.Sprintf("search:%s:%s", ws.Name, kw)
		outcome := retry.Execute(ctx, func(ctx context.Context) ([]entity.SearchResultItem, error) {
			return uc.searcher.SearchWorkspace(ctx, ws, kw, hwm)
		}, uc.policy(op))

		res.RetryAttempts += outcome.Attempts - 1
		if !outcome.Success {
			return fmt.Errorf("search %q after %d attempts: %w", kw, outcome.Attempts, outcome.Err)
		}

		res.MessagesFound += len(outcome.Data)
		uc.metrics.AddMessages(len(outcome.Data))
		for _, item := range outcome.Data {
			if uc.submitLead(ctx, creds, ws, kw, item) {
				res.LeadsCreated++
			}
		}
	}
	return nil
}

// resolveConnection prefers the connection whose metadata names this
// workspace and falls back to any connection of the platform. A nil
// connection means a full, uncorrelated scrape.
func resolveConnection(conns []entity.Connection, ws entity.Workspace) *entity.Connection {
	var fallback *entity.Connection
	for i := range conns {
		c := &conns[i]
		if c.Platform != entity.PlatformSlack {
			continue
		}
		if servesWorkspace(c, ws) {
			return c
		}
		if fallback == nil {
			fallback = c
		}
	}
	return fallback
}

func servesWorkspace(c *entity.Connection, ws entity.Workspace) bool {
	if c.Metadata.WorkspaceURL != "" && c.Metadata.WorkspaceURL == ws.URL {
		return true
	}
	for _, w := range c.Metadata.Workspaces {
		if w.URL == ws.URL {
			return true
		}
	}
	return false
}

func connectionID(c *entity.Connection) string {
	if c == nil {
		return ""
	}
	return c.ID
}

// submitLead reports whether a new lead was created. Failures are logged and
// never abort the keyword loop.
func (uc *scrapeUseCase) submitLead(ctx context.Context, creds entity.Credentials, ws entity.Workspace, keyword string, item entity.SearchResultItem) bool {
	log := uc.logger.With(zap.String("workspace", ws.Name), zap.String("permalink", item.Permalink))

	if uc.seen != nil {
		seen, err := uc.seen.IsSeen(ctx, keyword, item.Permalink)
		if err != nil {
			log.Debug("seen lookup failed", zap.Error(err))
		} else if seen {
			uc.metrics.IncItemSkipped("seen")
			return false
		}
	}

	lead := entity.Lead{
		Platform:  entity.PlatformSlack,
		Channel:   item.Channel,
		Sender:    item.Sender,
		Keywords:  []string{keyword},
		Permalink: item.Permalink,
		Message:   item.Message,
		PostedAt:  item.TimestampUnix,
		Workspace: ws.Name,
	}
	err := uc.api.CreateLead(ctx, creds, lead)
	switch {
	case errors.Is(err, repository.ErrDuplicateLead):
		log.Debug("lead already exists")
		uc.metrics.IncItemSkipped("duplicate")
		uc.markSeen(ctx, keyword, item.Permalink)
		return false
	case err != nil:
		log.Warn("failed to create lead", zap.Error(err))
		return false
	}

	uc.markSeen(ctx, keyword, item.Permalink)
	uc.metrics.AddLeads(1)
	return true
}

func (uc *scrapeUseCase) markSeen(ctx context.Context, keyword, permalink string) {
	if uc.seen == nil || uc.cfg.DedupTTL <= 0 {
		return
	}
	if err := uc.seen.MarkSeen(ctx, keyword, permalink, uc.cfg.DedupTTL); err != nil {
		uc.logger.Debug("mark seen failed", zap.String("keyword", keyword), zap.String("permalink", permalink), zap.Error(err))
	}
}

func (uc *scrapeUseCase) policy(operation string) retry.Policy {
	return retry.Policy{
		MaxRetries:     uc.cfg.MaxRetries,
		InitialBackoff: uc.cfg.InitialBackoff,
		Sleep:          uc.cfg.Sleep,
		Log: func(a retry.Attempt) {
			uc.recordAttempt(operation, a)
		},
	}
}

func (uc *scrapeUseCase) recordAttempt(operation string, a retry.Attempt) {
	uc.metrics.IncRetryAttempt(a.Success)

	fields := []zap.Field{
		zap.String("operation", operation),
		zap.Int("attempt", a.Attempt),
		zap.Duration("duration", a.Duration),
	}
	if a.Success {
		uc.logger.Debug("attempt succeeded", fields...)
	} else {
		uc.logger.Warn("attempt failed", append(fields, zap.String("error", a.Error))...)
	}

	if uc.attempts == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), attemptSaveTimeout)
	defer cancel()
	err := uc.attempts.Save(ctx, &entity.RetryAttempt{
		Operation:  operation,
		Attempt:    a.Attempt,
		Success:    a.Success,
		Error:      a.Error,
		DurationMS: a.Duration.Milliseconds(),
		AttemptAt:  a.Timestamp,
	})
	if err != nil {
		uc.logger.Warn("failed to store retry attempt", zap.Error(err))
	}
}

// finishCompleted and finishFailed are best-effort: the outcome is already
// decided, so reporting failures are only logged.
func (uc *scrapeUseCase) finishCompleted(ctx context.Context, creds entity.Credentials, ws entity.Workspace, run *workspaceRun, res entity.WorkspaceScrapeResult, checkedAt time.Time) {
	ctx = context.WithoutCancel(ctx)
	if err := uc.api.UpdateScrapeLog(ctx, creds, run.logID, uc.scrapeLog(ws, run, res, entity.ScrapeLogCompleted)); err != nil {
		uc.logger.Warn("failed to complete scrape log", zap.String("log_id", run.logID), zap.Error(err))
	}
	report := entity.HealthReport{ConnectionID: connectionID(run.conn), Platform: entity.PlatformSlack, CheckedAt: checkedAt}
	if err := uc.api.ReportSuccess(ctx, creds, report); err != nil {
		uc.logger.Warn("failed to report success", zap.Error(err))
	}
}

func (uc *scrapeUseCase) finishFailed(ctx context.Context, creds entity.Credentials, ws entity.Workspace, run *workspaceRun, res entity.WorkspaceScrapeResult, checkedAt time.Time) {
	ctx = context.WithoutCancel(ctx)
	if run.logID != "" {
		if err := uc.api.UpdateScrapeLog(ctx, creds, run.logID, uc.scrapeLog(ws, run, res, entity.ScrapeLogFailed)); err != nil {
			uc.logger.Warn("failed to fail scrape log", zap.String("log_id", run.logID), zap.Error(err))
		}
	}
	report := entity.HealthReport{ConnectionID: connectionID(run.conn), Platform: entity.PlatformSlack, Error: res.Error, CheckedAt: checkedAt}
	if err := uc.api.ReportError(ctx, creds, report); err != nil {
		uc.logger.Warn("failed to report error", zap.Error(err))
	}
}

func (uc *scrapeUseCase) scrapeLog(ws entity.Workspace, run *workspaceRun, res entity.WorkspaceScrapeResult, status string) entity.ScrapeLog {
	return entity.ScrapeLog{
		ID:            run.logID,
		ConnectionID:  connectionID(run.conn),
		Platform:      entity.PlatformSlack,
		Workspace:     ws.Name,
		Keywords:      res.Keywords,
		Status:        status,
		MessagesFound: res.MessagesFound,
		LeadsCreated:  res.LeadsCreated,
		Error:         res.Error,
	}
}

func (uc *scrapeUseCase) ScrapeAll(ctx context.Context, workspaces []entity.Workspace, keywords []string, creds entity.Credentials) entity.ScrapeSummary {
	summary := entity.ScrapeSummary{Success: true, Workspaces: make([]entity.WorkspaceScrapeResult, 0, len(workspaces))}
	switch {
	case len(workspaces) == 0:
		return entity.ScrapeSummary{Error: ErrNoWorkspaces.Error(), Workspaces: summary.Workspaces}
	case len(keywords) == 0:
		return entity.ScrapeSummary{Error: ErrNoKeywords.Error(), Workspaces: summary.Workspaces}
	}

	snap := uc.takeSnapshot(ctx, creds)
	failed := 0
	for _, ws := range workspaces {
		if err := ctx.Err(); err != nil {
			summary.Success = false
			summary.Error = err.Error()
			break
		}
		r := uc.scrapeWorkspace(ctx, ws, keywords, creds, snap)
		summary.Workspaces = append(summary.Workspaces, r)
		summary.TotalMessages += r.MessagesFound
		summary.TotalLeads += r.LeadsCreated
		summary.RetryAttempts += r.RetryAttempts
		if !r.Success {
			failed++
		}
	}

	if failed > 0 {
		summary.Success = false
		if summary.Error == "" {
			summary.Error = fmt.Sprintf("%d of %d workspaces failed", failed, len(workspaces))
		}
	}
	return summary
}
