package entity

// Workspace is one authenticated Slack workspace endpoint captured at login.
type Workspace struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}
