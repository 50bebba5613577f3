// Package db provides database connection helpers, schema migration, and small data access helpers.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx postgres driver registered as 'pgx'
)

// Connect opens a Postgres connection for the given DSN. Defaulting lives in
// config.Load; an empty DSN here is a wiring bug, not a fallback case.
func Connect(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is empty")
	}
	return sql.Open("pgx", dsn)
}

// Migrate applies idempotent schema changes for all required tables and indices.
// It is the fallback path for deployments without the versioned migration table;
// see RunMigrations for the primary path.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS threads (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			author TEXT NOT NULL,
			excerpt TEXT,
			votes INTEGER DEFAULT 0,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS comments (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
			author TEXT NOT NULL,
			body TEXT NOT NULL,
			votes INTEGER DEFAULT 0,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS moments (
			id TEXT PRIMARY KEY,
			time_secs DOUBLE PRECISION NOT NULL,
			title TEXT,
			description TEXT,
			video_start DOUBLE PRECISION,
			video_end DOUBLE PRECISION,
			score DOUBLE PRECISION,
			category TEXT,
			added_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS feed_posts (
			id SERIAL PRIMARY KEY,
			game_id TEXT NOT NULL,
			author TEXT,
			body TEXT,
			abs_timestamp TIMESTAMPTZ,
			rel_timestamp DOUBLE PRECISION,
			badges TEXT,
			color TEXT,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS pair_sessions (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'recording',
			video_url TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_thread ON comments(thread_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_threads_created ON threads(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_moments_time ON moments(time_secs)`,
		`CREATE INDEX IF NOT EXISTS idx_feed_game_rel ON feed_posts(game_id, rel_timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_pair_sessions_created ON pair_sessions(created_at)`,
	}
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("postgres migrate step %d failed: %w", i, err)
		}
	}
	return nil
}
