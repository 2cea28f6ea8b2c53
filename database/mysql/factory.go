// Package mysql opens MySQL and MariaDB data sources through go-sql-driver/mysql.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"github.com/gaborage/go-bricks-data/config"
	"github.com/gaborage/go-bricks-data/database/sqldb"
	"github.com/gaborage/go-bricks-data/database/types"
	"github.com/gaborage/go-bricks-data/logger"
)

const pingTimeout = 10 * time.Second

var (
	openMySQLDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("mysql", dsn)
	}
	pingMySQLDB = func(ctx context.Context, db *sql.DB) error {
		return db.PingContext(ctx)
	}
)

// BuildDSN formats cfg as a go-sql-driver DSN. Time columns are parsed into time.Time.
func BuildDSN(cfg *config.DataSourceConfig) string {
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString
	}
	dc := driver.NewConfig()
	dc.User = cfg.Username
	dc.Passwd = cfg.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dc.DBName = cfg.Database
	dc.ParseTime = true
	if cfg.SSLMode != "" {
		dc.TLSConfig = cfg.SSLMode
	}
	return dc.FormatDSN()
}

func vendorOf(cfg *config.DataSourceConfig) types.Vendor {
	if cfg.Type == config.MariaDB {
		return types.MariaDB
	}
	return types.MySQL
}

// NewFactory opens and pings a MySQL or MariaDB pool. MariaDB is selected by
// the data source type and enables INSERT ... RETURNING for generated keys.
func NewFactory(name string, cfg *config.DataSourceConfig, log logger.Logger) (*sqldb.Factory, error) {
	vendor := vendorOf(cfg)
	db, err := openMySQLDB(BuildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", vendor, err)
	}
	sqldb.ConfigurePool(db, cfg.Pool)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := pingMySQLDB(ctx, db); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to close MySQL pool after ping failure")
		}
		return nil, fmt.Errorf("failed to ping %s database: %w", vendor, err)
	}

	log.Info().
		Str("datasource", name).
		Str("vendor", string(vendor)).
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("Connected to MySQL database")

	return sqldb.NewFactory(db, types.FactoryMetadata{
		Name:                       name,
		Vendor:                     vendor,
		AutoClosesOnTransactionEnd: cfg.AutoClose,
	}), nil
}
