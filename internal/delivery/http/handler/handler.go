package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/user/lead-scraper/internal/delivery/http/request"
	"github.com/user/lead-scraper/internal/delivery/http/response"
	"github.com/user/lead-scraper/internal/entity"
	"github.com/user/lead-scraper/internal/usecase"
	"github.com/user/lead-scraper/pkg/logger"
	"go.uber.org/zap"
)

// CredentialHeader carries the caller's collaborator API credential. When it
// is absent the configured default is used.
const CredentialHeader = "X-Api-Credential"

// Engine is the part of usecase.Engine the control API drives.
type Engine interface {
	StartLogin(creds entity.Credentials) error
	LoginInProgress() bool
	Logout(ctx context.Context) error
	GetWorkspaces(ctx context.Context, creds entity.Credentials) ([]entity.Workspace, error)
	Search(ctx context.Context, creds entity.Credentials, keyword string, lastScrapeDate *int64) ([]entity.SearchResult, error)
	ManualScrape(ctx context.Context, creds entity.Credentials) entity.ScrapeSummary
	SchedulerState() entity.SchedulerState
	StartScheduler(creds entity.Credentials) bool
	StopScheduler() bool
}

// HealthCheck pings one optional dependency.
type HealthCheck func(ctx context.Context) error

// RunHistory lists finished scheduler runs.
type RunHistory interface {
	Recent(ctx context.Context, limit int) ([]*entity.ScrapeRunResult, error)
}

// AttemptLog lists failed retry attempts.
type AttemptLog interface {
	FindRecentFailures(ctx context.Context, limit int) ([]*entity.RetryAttempt, error)
}

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

type Handler struct {
	engine       Engine
	defaultCreds entity.Credentials
	checks       map[string]HealthCheck
	history      RunHistory
	attempts     AttemptLog
	logger       *zap.Logger
}

// Option configures optional Handler stores.
type Option func(*Handler)

// WithRunHistory enables GET /api/runs.
func WithRunHistory(h RunHistory) Option {
	return func(hd *Handler) { hd.history = h }
}

// WithAttemptLog enables GET /api/failures.
func WithAttemptLog(a AttemptLog) Option {
	return func(hd *Handler) { hd.attempts = a }
}

// NewHandler creates the control API handler. checks may be nil.
func NewHandler(engine Engine, defaultCreds entity.Credentials, checks map[string]HealthCheck, l *zap.Logger, opts ...Option) *Handler {
	h := &Handler{
		engine:       engine,
		defaultCreds: defaultCreds,
		checks:       checks,
		logger:       logger.OrNop(l),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) credentials(r *http.Request) entity.Credentials {
	if c := strings.TrimSpace(r.Header.Get(CredentialHeader)); c != "" {
		return entity.Credentials(c)
	}
	return h.defaultCreds
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := response.HealthResponse{
		Status:          "ok",
		LoginInProgress: h.engine.LoginInProgress(),
	}

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	code := http.StatusOK
	for _, name := range names {
		if resp.Checks == nil {
			resp.Checks = make(map[string]string, len(names))
		}
		if err := h.checks[name](ctx); err != nil {
			h.logger.Error("health check failed", zap.String("dependency", name), zap.Error(err))
			resp.Checks[name] = "unhealthy"
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "healthy"
	}

	h.writeJSON(w, code, resp)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.StartLogin(h.credentials(r)); err != nil {
		if errors.Is(err, usecase.ErrLoginInProgress) {
			h.writeJSONError(w, err.Error(), http.StatusConflict)
			return
		}
		h.logger.Error("failed to start login", zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusAccepted, response.StatusResponse{
		Status:  "accepted",
		Message: "Login window opened, complete sign-in in the browser",
	})
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Logout(r.Context()); err != nil {
		h.logger.Error("logout failed", zap.Error(err))
		h.writeJSONError(w, "Logout failed", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, response.StatusResponse{Status: "ok"})
}

func (h *Handler) HandleGetWorkspaces(w http.ResponseWriter, r *http.Request) {
	workspaces, err := h.engine.GetWorkspaces(r.Context(), h.credentials(r))
	if err != nil {
		h.logger.Error("failed to get workspaces", zap.Error(err))
		h.writeJSONError(w, "Could not retrieve workspaces", http.StatusBadGateway)
		return
	}
	if workspaces == nil {
		workspaces = []entity.Workspace{}
	}
	h.writeJSON(w, http.StatusOK, response.WorkspacesResponse{Workspaces: workspaces})
}

func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var req request.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Keyword = strings.TrimSpace(req.Keyword)
	if req.Keyword == "" {
		h.writeJSONError(w, "keyword is required", http.StatusBadRequest)
		return
	}

	results, err := h.engine.Search(r.Context(), h.credentials(r), req.Keyword, req.LastScrapeDate)
	if err != nil {
		if errors.Is(err, usecase.ErrNoWorkspaces) {
			h.writeJSONError(w, "No workspaces captured, log in first", http.StatusConflict)
			return
		}
		h.logger.Error("search failed", zap.String("keyword", req.Keyword), zap.Error(err))
		h.writeJSONError(w, "Search failed", http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []entity.SearchResult{}
	}
	h.writeJSON(w, http.StatusOK, response.SearchResponse{Keyword: req.Keyword, Results: results})
}

// HandleScrape always answers 200: failures are part of the summary.
func (h *Handler) HandleScrape(w http.ResponseWriter, r *http.Request) {
	summary := h.engine.ManualScrape(r.Context(), h.credentials(r))
	h.writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) HandleSchedulerState(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.SchedulerState())
}

func (h *Handler) HandleSchedulerStart(w http.ResponseWriter, r *http.Request) {
	changed := h.engine.StartScheduler(h.credentials(r))
	h.writeJSON(w, http.StatusOK, response.SchedulerToggleResponse{Changed: changed, State: h.engine.SchedulerState()})
}

func (h *Handler) HandleSchedulerStop(w http.ResponseWriter, r *http.Request) {
	changed := h.engine.StopScheduler()
	h.writeJSON(w, http.StatusOK, response.SchedulerToggleResponse{Changed: changed, State: h.engine.SchedulerState()})
}

func (h *Handler) HandleRecentRuns(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeJSONError(w, "Run history is not configured", http.StatusNotFound)
		return
	}
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}
	runs, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list runs", zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []*entity.ScrapeRunResult{}
	}
	h.writeJSON(w, http.StatusOK, response.RunsResponse{Runs: runs})
}

func (h *Handler) HandleRecentFailures(w http.ResponseWriter, r *http.Request) {
	if h.attempts == nil {
		h.writeJSONError(w, "Attempt log is not configured", http.StatusNotFound)
		return
	}
	limit, ok := h.limit(w, r)
	if !ok {
		return
	}
	failures, err := h.attempts.FindRecentFailures(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list failed attempts", zap.Error(err))
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if failures == nil {
		failures = []*entity.RetryAttempt{}
	}
	h.writeJSON(w, http.StatusOK, response.FailuresResponse{Failures: failures})
}

// limit reads ?limit=, defaulting to 20 and capped at 200.
func (h *Handler) limit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		h.writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
		return 0, false
	}
	return min(n, maxListLimit), true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, response.ErrorResponse{Error: message})
}
