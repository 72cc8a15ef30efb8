package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/boutique-api/internal/config"
)

type Postgres struct {
	Pool *pgxpool.Pool
}

// New connects to PostgreSQL. The first connection is retried every
// cfg.RetryInterval until it succeeds or ctx is done.
func New(ctx context.Context, cfg config.PostgresConfig) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres connstr: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime

	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	for attempt := 1; ; attempt++ {
		dbPool, err := connect(ctx, poolConfig)
		if err == nil {
			log.Info().Int("attempt", attempt).Msg("Connected to PostgreSQL")
			return &Postgres{Pool: dbPool}, nil
		}

		log.Error().Err(err).Int("attempt", attempt).Dur("retry_in", interval).Msg("PostgreSQL connection failed")

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("gave up connecting to database: %w", ctx.Err())
		case <-time.After(interval):
		}
	}
}

func connect(ctx context.Context, poolConfig *pgxpool.Config) (*pgxpool.Pool, error) {
	dbPool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres connection pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return dbPool, nil
}

func (p *Postgres) Close() {
	if p.Pool != nil {
		p.Pool.Close()
		log.Info().Msg("Database connection closed")
	}
}
