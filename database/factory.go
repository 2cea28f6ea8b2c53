// Package database creates connection factories from configuration and keeps
// named data sources for the lifetime of an application.
package database

import (
	"context"
	"fmt"
	"slices"

	"github.com/gaborage/go-bricks-data/config"
	"github.com/gaborage/go-bricks-data/database/mysql"
	"github.com/gaborage/go-bricks-data/database/oracle"
	"github.com/gaborage/go-bricks-data/database/pgxnative"
	"github.com/gaborage/go-bricks-data/database/postgresql"
	"github.com/gaborage/go-bricks-data/database/sqlite"
	"github.com/gaborage/go-bricks-data/database/types"
	"github.com/gaborage/go-bricks-data/logger"
)

var supportedTypes = []string{PostgreSQL, PGX, Oracle, MySQL, MariaDB, SQLite}

// NewConnectionFactory opens the pool described by cfg and returns a factory
// that reports every call through statement tracking. The driver is selected
// by cfg.Type.
func NewConnectionFactory(ctx context.Context, name string, cfg *config.DataSourceConfig, log logger.Logger) (types.ConnectionFactory, error) {
	var (
		factory types.ConnectionFactory
		err     error
	)

	switch cfg.Type {
	case PostgreSQL:
		factory, err = postgresql.NewFactory(name, cfg, log)
	case PGX:
		factory, err = pgxnative.NewFactory(ctx, name, cfg, log)
	case Oracle:
		factory, err = oracle.NewFactory(name, cfg, log)
	case MySQL, MariaDB:
		factory, err = mysql.NewFactory(name, cfg, log)
	case SQLite:
		factory, err = sqlite.NewFactory(name, cfg, log)
	default:
		return nil, ValidateDatabaseType(cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	return NewTrackedFactory(factory, log, NewTrackingSettings(cfg)), nil
}

// ValidateDatabaseType returns nil when dbType names a supported driver.
func ValidateDatabaseType(dbType string) error {
	if !slices.Contains(supportedTypes, dbType) {
		return fmt.Errorf("unsupported database type: %s (supported: %v)", dbType, supportedTypes)
	}
	return nil
}

// GetSupportedDatabaseTypes lists the accepted data source types.
func GetSupportedDatabaseTypes() []string {
	return slices.Clone(supportedTypes)
}
