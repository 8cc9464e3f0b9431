package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Schema creates the projects and rolls tables. Roll order within a project is
// kept in position; length_ft stays numeric.
const Schema = `
CREATE TABLE IF NOT EXISTS projects (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS rolls (
	project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	roll_id TEXT NOT NULL,
	emulsion TEXT NOT NULL DEFAULT '',
	length_ft DOUBLE PRECISION NOT NULL,
	status TEXT NOT NULL,
	location TEXT NOT NULL DEFAULT '',
	magazine TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	exposed_date DATE,
	PRIMARY KEY (project_id, roll_id)
);
CREATE INDEX IF NOT EXISTS idx_rolls_position ON rolls(project_id, position);`

// EnsureSchema applies Schema.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
