package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Grace-Shao/aiatl2025/backend/db"
)

// SetupTestDB creates a test database connection and runs migrations.
// It skips the test if TEST_PG_DSN environment variable is not set.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.Migrate(context.Background(), database); err != nil {
		database.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}
	// Start from a clean slate so reruns stay deterministic.
	for _, table := range []string{"comments", "threads", "moments", "feed_posts", "pair_sessions", "kv"} {
		if _, err := database.ExecContext(context.Background(), "TRUNCATE "+table+" CASCADE"); err != nil {
			database.Close()
			t.Fatalf("failed to truncate %s: %v", table, err)
		}
	}
	t.Cleanup(func() {
		database.Close()
	})
	return database
}
