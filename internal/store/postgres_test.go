package store

import (
	"context"
	"os"
	"testing"
)

// Set LUCKYLOOP_TEST_DATABASE_URL to run against a disposable Postgres
// database. Each subtest truncates both tables.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("LUCKYLOOP_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("LUCKYLOOP_TEST_DATABASE_URL not set")
	}

	runStoreSuite(t, func(t *testing.T) DB {
		ctx := context.Background()
		db, err := NewPostgresDB(ctx, dsn)
		if err != nil {
			t.Fatalf("NewPostgresDB: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		if err := db.Migrate(ctx); err != nil {
			t.Fatalf("Migrate: %v", err)
		}
		if _, err := db.pool.Exec(ctx, `TRUNCATE rounds, sessions`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return db
	})
}
