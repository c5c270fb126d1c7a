package entity

import "time"

// Scrape-log lifecycle statuses understood by the collaborator API.
const (
	ScrapeLogRunning   = "RUNNING"
	ScrapeLogCompleted = "COMPLETED"
	ScrapeLogFailed    = "FAILED"
)

// Connection statuses.
const (
	ConnectionConnected = "CONNECTED"
	ConnectionError     = "ERROR"
)

// ConnectionMetadata is the free-form metadata stored on a platform connection.
type ConnectionMetadata struct {
	Workspaces   []Workspace `json:"workspaces,omitempty"`
	WorkspaceURL string      `json:"workspace_url,omitempty"`
}

// Connection is a platform connection record owned by the collaborator API.
type Connection struct {
	ID            string             `json:"id"`
	Platform      Platform           `json:"platform"`
	Status        string             `json:"status,omitempty"`
	LastCheckedAt *time.Time         `json:"last_checked_at,omitempty"`
	LastError     string             `json:"last_error,omitempty"`
	Metadata      ConnectionMetadata `json:"metadata"`
}

// HighWaterMark returns LastCheckedAt as Unix seconds, or nil when the
// connection was never checked.
func (c *Connection) HighWaterMark() *int64 {
	if c == nil || c.LastCheckedAt == nil || c.LastCheckedAt.IsZero() {
		return nil
	}
	ts := c.LastCheckedAt.Unix()
	return &ts
}

// Lead is a lead candidate submitted for one extracted message.
type Lead struct {
	Platform  Platform `json:"platform"`
	Channel   string   `json:"channel"`
	Sender    string   `json:"sender,omitempty"`
	Keywords  []string `json:"keywords"`
	Permalink string   `json:"permalink"`
	Message   string   `json:"message"`
	PostedAt  *int64   `json:"posted_at,omitempty"`
	Workspace string   `json:"workspace,omitempty"`
}

// ScrapeLog is a run-log entry.
type ScrapeLog struct {
	ID            string   `json:"id,omitempty"`
	ConnectionID  string   `json:"connection_id,omitempty"`
	Platform      Platform `json:"platform"`
	Workspace     string   `json:"workspace,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
	Status        string   `json:"status"`
	MessagesFound int      `json:"messages_found"`
	LeadsCreated  int      `json:"leads_created"`
	Error         string   `json:"error,omitempty"`
}

// Keyword is a search term configured in the dashboard.
type Keyword struct {
	ID      string `json:"id"`
	Keyword string `json:"keyword"`
	Active  *bool  `json:"active,omitempty"`
}

// IsActive reports whether the keyword should be searched. Keywords without
// an explicit flag are active.
func (k Keyword) IsActive() bool {
	return k.Active == nil || *k.Active
}

// Credentials is the opaque session token attached to every collaborator API call.
type Credentials string

// HealthReport is sent to the connection health endpoints.
type HealthReport struct {
	ConnectionID string    `json:"connection_id,omitempty"`
	Platform     Platform  `json:"platform"`
	Error        string    `json:"error,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}
