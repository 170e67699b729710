package cache

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TestPostgres wraps a Postgres cache with test cleanup functionality.
type TestPostgres struct {
	*Postgres
	pool *pgxpool.Pool
}

// NewTestPostgres creates a Postgres cache connected to the test database
// named by TEST_DATABASE_URL. Tests are skipped when the variable is unset
// so the suite stays runnable without infrastructure.
func NewTestPostgres(t *testing.T) *TestPostgres {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping postgres cache tests")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		t.Fatalf("failed to ping test database: %v", err)
	}

	pg := NewPostgres(pool)
	if err := pg.EnsureSchema(context.Background()); err != nil {
		pool.Close()
		t.Fatalf("failed to create schema: %v", err)
	}

	return &TestPostgres{Postgres: pg, pool: pool}
}

// Close closes the database connection pool.
func (tp *TestPostgres) Close() {
	tp.pool.Close()
}

// Cleanup removes all cache entries.
func (tp *TestPostgres) Cleanup(t *testing.T) {
	t.Helper()

	if _, err := tp.pool.Exec(context.Background(), "TRUNCATE TABLE discovery_cache"); err != nil {
		t.Fatalf("failed to truncate discovery_cache: %v", err)
	}
}
