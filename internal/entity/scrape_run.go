package entity

import "time"

// Platform identifies the messaging service a connection or lead belongs to.
type Platform string

const (
	PlatformSlack    Platform = "SLACK"
	PlatformLinkedIn Platform = "LINKEDIN"
)

// WorkspaceScrapeResult is the outcome of scraping every keyword in one workspace.
type WorkspaceScrapeResult struct {
	WorkspaceName string   `json:"workspace_name"`
	WorkspaceURL  string   `json:"workspace_url"`
	Success       bool     `json:"success"`
	MessagesFound int      `json:"messages_found"`
	LeadsCreated  int      `json:"leads_created"`
	Keywords      []string `json:"keywords"`
	Error         string   `json:"error,omitempty"`
	RetryAttempts int      `json:"retry_attempts"`
}

// ScrapeSummary aggregates one pass over all workspaces.
type ScrapeSummary struct {
	Success       bool                    `json:"success"`
	Workspaces    []WorkspaceScrapeResult `json:"workspaces"`
	TotalMessages int                     `json:"total_messages"`
	TotalLeads    int                     `json:"total_leads"`
	RetryAttempts int                     `json:"retry_attempts"`
	Error         string                  `json:"error,omitempty"`
}

// ScrapeRunResult records one scheduled cycle.
type ScrapeRunResult struct {
	ID            string    `json:"id"`
	Platform      Platform  `json:"platform"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Success       bool      `json:"success"`
	LeadsFound    int       `json:"leads_found"`
	Error         string    `json:"error,omitempty"`
	RetryAttempts int       `json:"retry_attempts"`
}

// SchedulerState is a snapshot of the scheduler for observability callers.
type SchedulerState struct {
	IsRunning        bool             `json:"is_running"`
	LastRunResult    *ScrapeRunResult `json:"last_run_result"`
	NextScheduledRun *time.Time       `json:"next_scheduled_run"`
	IntervalMs       int64            `json:"interval_ms"`
}
