package request

// SearchRequest runs one keyword across every captured workspace.
type SearchRequest struct {
	Keyword        string `json:"keyword"`
	LastScrapeDate *int64 `json:"last_scrape_date,omitempty"` // Unix seconds
}
