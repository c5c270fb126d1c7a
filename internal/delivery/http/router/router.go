package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/user/lead-scraper/internal/delivery/http/handler"
	"github.com/user/lead-scraper/internal/delivery/http/middleware"
	"github.com/user/lead-scraper/pkg/metrics"
	"go.uber.org/zap"
)

// New builds the control API. Search and scrape can run for minutes, so only
// the quick routes get a request timeout.
func New(h *handler.Handler, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(m))
	r.Use(chimw.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(10 * time.Second))
			r.Get("/health", h.HandleHealthCheck)
			r.Post("/login", h.HandleLogin)
			r.Post("/logout", h.HandleLogout)
			r.Get("/workspaces", h.HandleGetWorkspaces)
			r.Get("/scheduler", h.HandleSchedulerState)
			r.Post("/scheduler/start", h.HandleSchedulerStart)
			r.Post("/scheduler/stop", h.HandleSchedulerStop)
			r.Get("/runs", h.HandleRecentRuns)
			r.Get("/failures", h.HandleRecentFailures)
		})
		r.Post("/search", h.HandleSearch)
		r.Post("/scrape", h.HandleScrape)
	})

	return r
}
