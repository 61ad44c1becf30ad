package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/salonkit/appointment-notifier/internal/config"
)

// NewPool creates a pgx connection pool from the application config.
// The pool is shared by every repository in the process.
func NewPool(cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to parse DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.Postgres.Pool.MaxConns
	poolCfg.MinConns = cfg.Postgres.Pool.MinConns
	poolCfg.MaxConnLifetime = cfg.Postgres.Pool.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create pool: %w", err)
	}

	return pool, nil
}
