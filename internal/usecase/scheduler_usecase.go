package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/user/lead-scraper/internal/entity"
	"github.com/user/lead-scraper/internal/repository"
	"go.uber.org/zap"
)

// DefaultInterval is the scheduler period when none is configured.
const DefaultInterval = time.Hour

// RunFunc performs one full scrape pass.
type RunFunc func(ctx context.Context, creds entity.Credentials) entity.ScrapeSummary

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Interval time.Duration
	// RunTimeout cancels a run that takes longer. Zero means no bound.
	RunTimeout time.Duration
	// Health receives a platform-level report after every run. Optional.
	Health repository.HealthReporter
	// History stores finished runs. Optional.
	History repository.RunHistoryRepository
	Logger  *zap.Logger
}

// Scheduler fires RunFunc on a fixed interval. At most one run is in flight;
// firings that land during a run are dropped.
type Scheduler struct {
	run        RunFunc
	interval   time.Duration
	runTimeout time.Duration
	health     repository.HealthReporter
	history    repository.RunHistoryRepository
	logger     *zap.Logger
	now        func() time.Time

	mu        sync.Mutex
	armed     bool
	isRunning bool
	creds     entity.Credentials
	runCtx    context.Context
	stopLoop  context.CancelFunc
	last      *entity.ScrapeRunResult
	next      *time.Time

	wg sync.WaitGroup
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(run RunFunc, cfg SchedulerConfig) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		run:        run,
		interval:   interval,
		runTimeout: cfg.RunTimeout,
		health:     cfg.Health,
		history:    cfg.History,
		logger:     logger,
		now:        time.Now,
	}
}

// Start arms the timer and fires one run immediately. Runs use ctx, so
// cancelling it aborts an in-flight run; Stop does not. Start on an armed
// scheduler does nothing and returns false.
func (s *Scheduler) Start(ctx context.Context, creds entity.Credentials) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.armed {
		s.logger.Debug("scheduler already started")
		return false
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.armed = true
	s.creds = creds
	s.runCtx = ctx
	s.stopLoop = cancel
	next := s.now().Add(s.interval)
	s.next = &next

	ticker := time.NewTicker(s.interval)
	s.wg.Add(1)
	go s.loop(loopCtx, ticker)

	s.logger.Info("scheduler started", zap.Duration("interval", s.interval))
	s.fireLocked()
	return true
}

// Stop disarms the timer. An in-flight run is allowed to finish. Stop on a
// stopped scheduler does nothing and returns false.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.armed {
		return false
	}
	s.armed = false
	s.next = nil
	s.stopLoop()
	s.logger.Info("scheduler stopped")
	return true
}

// Wait blocks until the timer loop and any in-flight run have exited. Call
// it after Stop.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// State returns a snapshot.
func (s *Scheduler) State() entity.SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := entity.SchedulerState{
		IsRunning:  s.isRunning,
		IntervalMs: s.interval.Milliseconds(),
	}
	if s.last != nil {
		last := *s.last
		st.LastRunResult = &last
	}
	if s.next != nil {
		next := *s.next
		st.NextScheduledRun = &next
	}
	return st
}

func (s *Scheduler) loop(ctx context.Context, ticker *time.Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.armed {
		return
	}
	s.fireLocked()
}

func (s *Scheduler) fireLocked() {
	if s.isRunning {
		s.logger.Info("previous run still in progress, skipping")
		return
	}
	s.isRunning = true
	s.wg.Add(1)
	go s.execute(s.runCtx, s.creds)
}

func (s *Scheduler) execute(ctx context.Context, creds entity.Credentials) {
	defer s.wg.Done()
	defer s.finish()

	result := s.runOnce(ctx, creds)

	s.mu.Lock()
	s.last = &result
	s.mu.Unlock()

	s.contain("report", func() { s.report(ctx, creds, result) })
	s.contain("history", func() { s.saveHistory(ctx, result) })
}

// contain keeps a panic in a post-run step from killing the process. The
// run result is already recorded.
func (s *Scheduler) contain(step string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled run step panicked", zap.String("step", step), zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn()
}

// runOnce converts a panic inside the run into a failed result.
func (s *Scheduler) runOnce(ctx context.Context, creds entity.Credentials) (result entity.ScrapeRunResult) {
	result = entity.ScrapeRunResult{ID: uuid.NewString(), Platform: entity.PlatformSlack, StartTime: s.now()}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled run panicked", zap.Any("panic", r), zap.Stack("stack"))
			result.Success = false
			result.Error = fmt.Sprintf("panic: %v", r)
		}
		result.EndTime = s.now()
	}()

	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	log := s.logger.With(zap.String("run_id", result.ID))
	log.Info("scheduled run started")
	summary := s.run(ctx, creds)
	result.Success = summary.Success
	result.LeadsFound = summary.TotalLeads
	result.Error = summary.Error
	result.RetryAttempts = summary.RetryAttempts
	log.Info("scheduled run finished",
		zap.Bool("success", result.Success),
		zap.Int("leads", result.LeadsFound),
		zap.String("error", result.Error),
	)
	return result
}

func (s *Scheduler) report(ctx context.Context, creds entity.Credentials, result entity.ScrapeRunResult) {
	if s.health == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	report := entity.HealthReport{Platform: result.Platform, CheckedAt: result.StartTime.UTC()}

	var err error
	if result.Success {
		err = s.health.ReportSuccess(ctx, creds, report)
	} else {
		report.Error = result.Error
		err = s.health.ReportError(ctx, creds, report)
	}
	if err != nil {
		s.logger.Warn("failed to report run health", zap.Error(err))
	}
}

func (s *Scheduler) saveHistory(ctx context.Context, result entity.ScrapeRunResult) {
	if s.history == nil {
		return
	}
	if err := s.history.Save(context.WithoutCancel(ctx), &result); err != nil {
		s.logger.Warn("failed to store run history", zap.Error(err))
	}
}

func (s *Scheduler) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isRunning = false
	if s.armed {
		next := s.now().Add(s.interval)
		s.next = &next
	}
}
