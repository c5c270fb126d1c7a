package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/lead-scraper/internal/delivery/http/handler"
	"github.com/user/lead-scraper/internal/delivery/http/router"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var startScheduler bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control API and the scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return withApp(ctx, serve)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&startScheduler, "scheduler", false, "Arm the scheduler on startup instead of after the first login")
}

func serve(ctx context.Context, a *app) error {
	var opts []handler.Option
	if a.history != nil {
		opts = append(opts, handler.WithRunHistory(a.history), handler.WithAttemptLog(a.attempts))
	}
	h := handler.NewHandler(a.engine, a.creds, a.checks, a.logger.Named("http"), opts...)
	server := &http.Server{
		Addr:        ":" + a.cfg.ServerPort,
		Handler:     router.New(h, a.metrics, a.registry, a.logger.Named("http")),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	if startScheduler {
		a.engine.StartScheduler(a.creds)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("server started", zap.String("port", a.cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server forced to shutdown", zap.Error(err))
			return err
		}
		a.logger.Info("server exiting")
		return nil
	})
	return g.Wait()
}
