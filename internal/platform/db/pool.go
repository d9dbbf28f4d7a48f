package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolOptions sizes the pool and pins the session time zone.
type PoolOptions struct {
	MaxConns int32
	MinConns int32
	// Timezone is an IANA zone set on every session. "" and "Local" keep
	// the server default.
	Timezone string
}

func poolConfig(databaseURL string, opts PoolOptions) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}
	if cfg.MinConns > cfg.MaxConns {
		cfg.MinConns = cfg.MaxConns
	}
	if opts.Timezone != "" && opts.Timezone != "Local" {
		if _, err := time.LoadLocation(opts.Timezone); err != nil {
			return nil, fmt.Errorf("pool timezone %q: %w", opts.Timezone, err)
		}
		cfg.ConnConfig.RuntimeParams["timezone"] = opts.Timezone
	}
	cfg.ConnConfig.RuntimeParams["application_name"] = "smartcare-queue"
	return cfg, nil
}

// NewPool opens a pgx pool and fails fast when the database is unreachable.
func NewPool(ctx context.Context, databaseURL string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := poolConfig(databaseURL, opts)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
