package entity

import "time"

// RetryAttempt mirrors the `retry_attempts` PostgreSQL table schema.
type RetryAttempt struct {
	ID         int64     `json:"id"`
	Operation  string    `json:"operation"` // e.g. "search:acme:hiring"
	Attempt    int       `json:"attempt"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	AttemptAt  time.Time `json:"attempt_at"`
}
