package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS retry_attempts (
	id          BIGSERIAL PRIMARY KEY,
	operation   TEXT NOT NULL,
	attempt     INT NOT NULL,
	success     BOOLEAN NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	duration_ms BIGINT NOT NULL,
	attempt_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS retry_attempts_attempt_at_idx ON retry_attempts (attempt_at DESC);

CREATE TABLE IF NOT EXISTS scrape_runs (
	id             UUID PRIMARY KEY,
	platform       TEXT NOT NULL,
	start_time     TIMESTAMPTZ NOT NULL,
	end_time       TIMESTAMPTZ NOT NULL,
	success        BOOLEAN NOT NULL,
	leads_found    INT NOT NULL,
	error          TEXT NOT NULL DEFAULT '',
	retry_attempts INT NOT NULL
);
`

// EnsureSchema creates the tables used by this package if they are missing.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, schema)
	return err
}
