package repository

import (
	"context"

	"github.com/user/lead-scraper/internal/entity"
)

// AttemptRepository persists retry attempts for later inspection.
type AttemptRepository interface {
	// Save stores one attempt.
	Save(ctx context.Context, attempt *entity.RetryAttempt) error
	// FindRecentFailures retrieves the latest failed attempts.
	FindRecentFailures(ctx context.Context, limit int) ([]*entity.RetryAttempt, error)
}
