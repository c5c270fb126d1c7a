package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors of the scraper. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ScrapeRunsTotal     *prometheus.CounterVec
	LeadsCreatedTotal   prometheus.Counter
	MessagesFoundTotal  prometheus.Counter
	RetryAttemptsTotal  *prometheus.CounterVec
	SearchDuration      *prometheus.HistogramVec
	ItemsSkippedTotal   *prometheus.CounterVec
	WorkspacesCaptured  prometheus.Gauge
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		ScrapeRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "scrape_runs_total",
			Help: "Total number of workspace scrapes.",
		}, []string{"status"}), // success, failure
		LeadsCreatedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "leads_created_total",
			Help: "Total number of leads submitted to the API.",
		}),
		MessagesFoundTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "messages_found_total",
			Help: "Total number of matching messages extracted.",
		}),
		RetryAttemptsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retried operation attempts.",
		}, []string{"outcome"}),
		SearchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "search_duration_seconds",
			Help:    "Duration of one keyword search in one workspace.",
			Buckets: []float64{1, 5, 10, 15, 30, 60, 120},
		}, []string{"workspace"}),
		ItemsSkippedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "search_items_skipped_total",
			Help: "Result items dropped during extraction.",
		}, []string{"reason"}),
		WorkspacesCaptured: f.NewGauge(prometheus.GaugeOpts{
			Name: "workspaces_captured",
			Help: "Number of workspaces captured at the last login.",
		}),
	}
}

func (m *Metrics) ObserveHTTP(method, path, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(seconds)
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
}

func (m *Metrics) IncScrapeRun(success bool) {
	if m == nil {
		return
	}
	status := "failure"
	if success {
		status = "success"
	}
	m.ScrapeRunsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) AddLeads(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.LeadsCreatedTotal.Add(float64(n))
}

func (m *Metrics) AddMessages(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.MessagesFoundTotal.Add(float64(n))
}

func (m *Metrics) IncRetryAttempt(success bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.RetryAttemptsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveSearch(workspace string, seconds float64) {
	if m == nil {
		return
	}
	m.SearchDuration.WithLabelValues(workspace).Observe(seconds)
}

func (m *Metrics) IncItemSkipped(reason string) {
	if m == nil {
		return
	}
	m.ItemsSkippedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetWorkspaces(n int) {
	if m == nil {
		return
	}
	m.WorkspacesCaptured.Set(float64(n))
}
