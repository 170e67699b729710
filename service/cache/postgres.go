package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a cache backed by a single key-value table. No TTL is
// applied; entry lifetime follows whatever retention the operator gives
// the table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres cache on top of an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the cache table if it does not exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS discovery_cache (
			key        TEXT PRIMARY KEY,
			value      BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("create discovery_cache table: %w", err)
	}
	return nil
}

// Get returns the cached value for key, with false when absent.
func (p *Postgres) Get(ctx context.Context, key string) (int64, bool, error) {
	var value int64
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM discovery_cache WHERE key = $1`, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get cache entry: %w", err)
	}
	return value, true, nil
}

// Set upserts value under key. Concurrent writers race benignly: all
// writers converge on the same true answer, so last write wins.
func (p *Postgres) Set(ctx context.Context, key string, value int64) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO discovery_cache (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("set cache entry: %w", err)
	}
	return nil
}

// Delete removes key if present.
func (p *Postgres) Delete(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM discovery_cache WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}
