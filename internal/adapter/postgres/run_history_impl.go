package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/lead-scraper/internal/entity"
)

// RunHistoryRepoImpl stores finished scheduler cycles in PostgreSQL.
type RunHistoryRepoImpl struct {
	db *pgxpool.Pool
}

// NewRunHistoryRepo creates a new instance of RunHistoryRepoImpl.
func NewRunHistoryRepo(db *pgxpool.Pool) *RunHistoryRepoImpl {
	return &RunHistoryRepoImpl{db: db}
}

// Save appends one run.
func (r *RunHistoryRepoImpl) Save(ctx context.Context, run *entity.ScrapeRunResult) error {
	query := `
		INSERT INTO scrape_runs (id, platform, start_time, end_time, success, leads_found, error, retry_attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := r.db.Exec(ctx, query,
		run.ID,
		string(run.Platform),
		run.StartTime,
		run.EndTime,
		run.Success,
		run.LeadsFound,
		run.Error,
		run.RetryAttempts,
	)
	return err
}

// Recent retrieves the latest runs, newest first.
func (r *RunHistoryRepoImpl) Recent(ctx context.Context, limit int) ([]*entity.ScrapeRunResult, error) {
	query := `
		SELECT id::text, platform, start_time, end_time, success, leads_found, error, retry_attempts
		FROM scrape_runs
		ORDER BY start_time DESC
		LIMIT $1;
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*entity.ScrapeRunResult
	for rows.Next() {
		var (
			run      entity.ScrapeRunResult
			platform string
		)
		if err := rows.Scan(
			&run.ID,
			&platform,
			&run.StartTime,
			&run.EndTime,
			&run.Success,
			&run.LeadsFound,
			&run.Error,
			&run.RetryAttempts,
		); err != nil {
			return nil, err
		}
		run.Platform = entity.Platform(platform)
		runs = append(runs, &run)
	}

	return runs, rows.Err()
}
