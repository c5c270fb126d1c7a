package repository

import (
	"context"

	"github.com/user/lead-scraper/internal/entity"
)

// RunHistoryRepository stores finished scheduler cycles.
type RunHistoryRepository interface {
	// Save stores one finished run.
	Save(ctx context.Context, run *entity.ScrapeRunResult) error
	// Recent retrieves the latest runs, newest first.
	Recent(ctx context.Context, limit int) ([]*entity.ScrapeRunResult, error)
}
