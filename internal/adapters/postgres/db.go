// Package postgres
package postgres

import (
	"context"
	"fmt"
	"time"

	"bluegreen-server/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS operations (
	id BIGSERIAL PRIMARY KEY,
	trace_id UUID NOT NULL,
	app TEXT NOT NULL,
	kind TEXT NOT NULL,
	status TEXT NOT NULL,
	actor TEXT NOT NULL DEFAULT '',
	from_slot TEXT NOT NULL DEFAULT '',
	to_slot TEXT NOT NULL DEFAULT '',
	emergency BOOLEAN NOT NULL DEFAULT FALSE,
	detail TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	error_kind TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_operations_app_started ON operations (app, started_at DESC);
`

func InitDB(ctx context.Context, databaseURL string, log logger.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database not responding: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate operations table: %w", err)
	}

	log.Info("postgres: connection established")
	return pool, nil
}
