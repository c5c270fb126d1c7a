package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/lead-scraper/internal/entity"
)

// AttemptRepoImpl provides a concrete implementation for the AttemptRepository interface using PostgreSQL.
type AttemptRepoImpl struct {
	db *pgxpool.Pool
}

// NewAttemptRepo creates a new instance of AttemptRepoImpl.
func NewAttemptRepo(db *pgxpool.Pool) *AttemptRepoImpl {
	return &AttemptRepoImpl{db: db}
}

// Save stores one retry attempt.
func (r *AttemptRepoImpl) Save(ctx context.Context, a *entity.RetryAttempt) error {
	query := `
		INSERT INTO retry_attempts (operation, attempt, success, error, duration_ms, attempt_at)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := r.db.Exec(ctx, query,
		a.Operation,
		a.Attempt,
		a.Success,
		a.Error,
		a.DurationMS,
		a.AttemptAt,
	)
	return err
}

// FindRecentFailures retrieves the latest failed attempts, newest first.
func (r *AttemptRepoImpl) FindRecentFailures(ctx context.Context, limit int) ([]*entity.RetryAttempt, error) {
	query := `
		SELECT id, operation, attempt, success, error, duration_ms, attempt_at
		FROM retry_attempts
		WHERE NOT success
		ORDER BY attempt_at DESC
		LIMIT $1;
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*entity.RetryAttempt
	for rows.Next() {
		var a entity.RetryAttempt
		if err := rows.Scan(
			&a.ID,
			&a.Operation,
			&a.Attempt,
			&a.Success,
			&a.Error,
			&a.DurationMS,
			&a.AttemptAt,
		); err != nil {
			return nil, err
		}
		attempts = append(attempts, &a)
	}

	return attempts, rows.Err()
}
