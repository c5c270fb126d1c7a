package response

import "github.com/user/lead-scraper/internal/entity"

type ErrorResponse struct {
	Error string `json:"error"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse reports the optional stores as "healthy" or "unhealthy".
type HealthResponse struct {
	Status          string            `json:"status"`
	LoginInProgress bool              `json:"login_in_progress"`
	Checks          map[string]string `json:"checks,omitempty"`
}

type WorkspacesResponse struct {
	Workspaces []entity.Workspace `json:"workspaces"`
}

type SearchResponse struct {
	Keyword string                `json:"keyword"`
	Results []entity.SearchResult `json:"results"`
}

// SchedulerToggleResponse tells whether the call changed the scheduler.
type SchedulerToggleResponse struct {
	Changed bool                  `json:"changed"`
	State   entity.SchedulerState `json:"state"`
}

type RunsResponse struct {
	Runs []*entity.ScrapeRunResult `json:"runs"`
}

type FailuresResponse struct {
	Failures []*entity.RetryAttempt `json:"failures"`
}
