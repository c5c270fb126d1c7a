package entity

// SearchResultItem is one matched message extracted from a search results list.
type SearchResultItem struct {
	Message       string `json:"message"`
	Channel       string `json:"channel"`
	Timestamp     string `json:"timestamp"`                // human readable, as rendered
	TimestampUnix *int64 `json:"timestamp_unix,omitempty"` // seconds since epoch
	Permalink     string `json:"permalink"`
	Sender        string `json:"sender,omitempty"` // empty for system messages
}

// SearchResult groups the items found in one workspace for one keyword.
type SearchResult struct {
	WorkspaceName string             `json:"workspace_name"`
	WorkspaceURL  string             `json:"workspace_url"`
	Results       []SearchResultItem `json:"results"`
}
