// Package sqlite opens embedded SQLite data sources through the cgo-free glebarez driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/glebarez/go-sqlite" // registers the "sqlite" driver

	"github.com/gaborage/go-bricks-data/config"
	"github.com/gaborage/go-bricks-data/database/sqldb"
	"github.com/gaborage/go-bricks-data/database/types"
	"github.com/gaborage/go-bricks-data/logger"
)

// MemoryDatabase names a private in-memory database.
const MemoryDatabase = ":memory:"

// BuildDSN returns the file path (or :memory:) with foreign keys enabled.
func BuildDSN(cfg *config.DataSourceConfig) string {
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString
	}
	sep := "?"
	if strings.Contains(cfg.Database, "?") {
		sep = "&"
	}
	return cfg.Database + sep + "_pragma=foreign_keys(1)"
}

// NewFactory opens a SQLite database. In-memory databases are confined to a
// single pooled connection, since each connection would otherwise see its own
// empty database.
func NewFactory(name string, cfg *config.DataSourceConfig, log logger.Logger) (*sqldb.Factory, error) {
	db, err := sql.Open("sqlite", BuildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	pool := cfg.Pool
	if strings.HasPrefix(cfg.Database, MemoryDatabase) || strings.Contains(cfg.ConnectionString, "mode=memory") {
		pool.Max.Connections = 1
		pool.Idle.Connections = 1
		pool.Lifetime.Max = 0
		pool.Idle.Time = 0
	}
	sqldb.ConfigurePool(db, pool)

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	log.Info().Str("datasource", name).Str("database", cfg.Database).Msg("Opened SQLite database")

	return sqldb.NewFactory(db, types.FactoryMetadata{
		Name:                       name,
		Vendor:                     types.SQLite,
		AutoClosesOnTransactionEnd: cfg.AutoClose,
	}), nil
}
