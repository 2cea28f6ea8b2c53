// Package pgxnative implements the driver SPI directly on a pgxpool, without
// database/sql. Multi-row batches are sent as one pgx.Batch round trip.
package pgxnative

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gaborage/go-bricks-data/config"
	"github.com/gaborage/go-bricks-data/database/dialect"
	"github.com/gaborage/go-bricks-data/database/postgresql"
	"github.com/gaborage/go-bricks-data/database/types"
	"github.com/gaborage/go-bricks-data/logger"
)

const pingTimeout = 10 * time.Second

// Factory implements types.ConnectionFactory over a pgxpool.Pool.
type Factory struct {
	pool *pgxpool.Pool
	meta types.FactoryMetadata
}

var _ types.ConnectionFactory = (*Factory)(nil)

// PoolConfig translates cfg into a pgxpool configuration.
func PoolConfig(cfg *config.DataSourceConfig) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(postgresql.BuildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse PostgreSQL pool config: %w", err)
	}
	if cfg.Pool.Max.Connections > 0 {
		poolCfg.MaxConns = cfg.Pool.Max.Connections
	}
	if cfg.Pool.Idle.Connections > 0 {
		poolCfg.MinConns = min(cfg.Pool.Idle.Connections, poolCfg.MaxConns)
	}
	if cfg.Pool.Idle.Time > 0 {
		poolCfg.MaxConnIdleTime = cfg.Pool.Idle.Time
	}
	if cfg.Pool.Lifetime.Max > 0 {
		poolCfg.MaxConnLifetime = cfg.Pool.Lifetime.Max
	}
	return poolCfg, nil
}

// NewFactory creates and pings a pgx pool.
func NewFactory(ctx context.Context, name string, cfg *config.DataSourceConfig, log logger.Logger) (*Factory, error) {
	poolCfg, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL database: %w", err)
	}

	log.Info().
		Str("datasource", name).
		Str("host", poolCfg.ConnConfig.Host).
		Str("database", poolCfg.ConnConfig.Database).
		Int("max_conns", int(poolCfg.MaxConns)).
		Msg("Connected to PostgreSQL database (pgx pool)")

	return &Factory{
		pool: pool,
		meta: types.FactoryMetadata{
			Name:                       name,
			Vendor:                     types.PostgreSQL,
			AutoClosesOnTransactionEnd: cfg.AutoClose,
		},
	}, nil
}

func (f *Factory) Create(ctx context.Context) (types.Connection, error) {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire pgx connection: %w", err)
	}
	return &Connection{conn: conn, dialect: dialect.For(types.PostgreSQL)}, nil
}

func (f *Factory) Metadata() types.FactoryMetadata { return f.meta }

// Pool exposes the pool for statistics.
func (f *Factory) Pool() *pgxpool.Pool { return f.pool }

// PoolStats reports acquired, idle and maximum connections.
func (f *Factory) PoolStats() (inUse, idle, maxOpen int64) {
	s := f.pool.Stat()
	return int64(s.AcquiredConns()), int64(s.IdleConns()), int64(s.MaxConns())
}

func (f *Factory) Close() error {
	f.pool.Close()
	return nil
}

// txOptions maps SPI settings onto pgx.
func txOptions(level types.IsolationLevel, opts types.TransactionOptions) pgx.TxOptions {
	var out pgx.TxOptions
	switch level {
	case types.IsolationReadUncommitted:
		out.IsoLevel = pgx.ReadUncommitted
	case types.IsolationReadCommitted:
		out.IsoLevel = pgx.ReadCommitted
	case types.IsolationRepeatableRead:
		out.IsoLevel = pgx.RepeatableRead
	case types.IsolationSerializable:
		out.IsoLevel = pgx.Serializable
	}
	if opts.ReadOnly {
		out.AccessMode = pgx.ReadOnly
	}
	return out
}
