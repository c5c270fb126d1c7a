package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/user/lead-scraper/internal/adapter/api"
	"github.com/user/lead-scraper/internal/adapter/chromedp_browser"
	"github.com/user/lead-scraper/internal/adapter/postgres"
	redis_adapter "github.com/user/lead-scraper/internal/adapter/redis"
	"github.com/user/lead-scraper/internal/delivery/http/handler"
	"github.com/user/lead-scraper/internal/entity"
	"github.com/user/lead-scraper/internal/usecase"
	"github.com/user/lead-scraper/pkg/config"
	"github.com/user/lead-scraper/pkg/logger"
	"github.com/user/lead-scraper/pkg/metrics"
	"go.uber.org/zap"
)

// app holds everything a command needs. close releases it in reverse order.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	engine   *usecase.Engine
	capture  usecase.WorkspaceCapturer
	checks   map[string]handler.HealthCheck
	creds    entity.Credentials

	// Set only when PostgreSQL is configured.
	history  *postgres.RunHistoryRepoImpl
	attempts *postgres.AttemptRepoImpl

	closers []func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadFile(envFile)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}

	a := &app{
		cfg:      cfg,
		logger:   logger.New(os.Stdout, level),
		registry: prometheus.NewRegistry(),
		checks:   make(map[string]handler.HealthCheck),
		creds:    entity.Credentials(cfg.APICredential),
	}
	if credential != "" {
		a.creds = entity.Credentials(credential)
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	client := api.NewClient(cfg.APIBaseURL,
		api.WithTimeout(cfg.APITimeout()),
		api.WithLogger(a.logger.Named("api")),
	)

	scrapeOpts := []usecase.ScrapeOption{
		usecase.WithScrapeLogger(a.logger.Named("scrape")),
		usecase.WithScrapeMetrics(a.metrics),
	}
	schedCfg := usecase.SchedulerConfig{
		Interval:   cfg.ScrapeInterval(),
		RunTimeout: cfg.RunTimeout(),
		Logger:     a.logger.Named("scheduler"),
	}

	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("unable to connect to database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			a.close()
			return nil, fmt.Errorf("could not prepare schema: %w", err)
		}
		a.attempts = postgres.NewAttemptRepo(pool)
		a.history = postgres.NewRunHistoryRepo(pool)
		scrapeOpts = append(scrapeOpts, usecase.WithAttemptRepository(a.attempts))
		schedCfg.History = a.history
		a.checks["postgres"] = pool.Ping
		a.logger.Info("PostgreSQL connection pool established")
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		seen := redis_adapter.NewSeenRepo(rdb)
		if err := seen.Ping(ctx); err != nil {
			a.logger.Warn("redis unreachable, permalink dedup relies on the collaborator API", zap.Error(err))
		}
		scrapeOpts = append(scrapeOpts, usecase.WithSeenRepository(seen))
		a.checks["redis"] = seen.Ping
	}

	browser := chromedp_browser.New(chromedp_browser.Config{
		ProfileDir: cfg.ProfileDir,
		ExecPath:   cfg.ChromePath,
		Logger:     a.logger.Named("browser"),
	})
	timings := usecase.TimingsFromConfig(cfg)

	searcher := usecase.NewSearchUseCase(browser, timings, cfg.MaxResults, a.logger.Named("search"), a.metrics)
	capture := usecase.NewCaptureUseCase(browser, client, cfg.SigninURL, timings, a.logger.Named("capture"), a.metrics)
	scraper := usecase.NewScrapeUseCase(searcher, client, usecase.ScrapeConfig{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff(),
		DedupTTL:       cfg.DedupTTL(),
	}, scrapeOpts...)

	a.capture = capture
	a.engine = usecase.NewEngine(usecase.EngineDeps{
		Browser:   browser,
		Capture:   capture,
		Searcher:  searcher,
		Scraper:   scraper,
		API:       client,
		Scheduler: schedCfg,
		Logger:    a.logger.Named("engine"),
		Metrics:   a.metrics,
	})
	// Stores close after the engine has drained in-flight runs.
	a.closers = append(a.closers, func() {
		if err := a.engine.Close(); err != nil {
			a.logger.Warn("engine close failed", zap.Error(err))
		}
	})
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	_ = a.logger.Sync()
}

// withApp runs fn with a fully wired app and releases it afterwards.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}
