// Package db provides the Postgres connection helper and idempotent schema
// migration for the lifecycle event archive.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'
)

// Connect opens a Postgres connection for the given DSN.
func Connect(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty dsn")
	}
	return sql.Open("pgx", dsn)
}

// Migrate applies idempotent schema changes for all required tables and
// indices.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS lifecycle_events (
			id SERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			session_nick TEXT,
			kind TEXT NOT NULL,
			nick TEXT,
			channel TEXT,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_events_session ON lifecycle_events(session_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_events_kind ON lifecycle_events(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_events_channel ON lifecycle_events(channel)`,
	}
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("postgres migrate step %d failed: %w", i, err)
		}
	}
	return nil
}
