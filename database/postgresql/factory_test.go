package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/go-bricks-data/config"
	"github.com/gaborage/go-bricks-data/database/types"
	"github.com/gaborage/go-bricks-data/logger"
)

func TestQuoteDSN(t *testing.T) {
	assert.Equal(t, "''", quoteDSN(""))
	assert.Equal(t, "orders_db", quoteDSN("orders_db"))
	assert.Equal(t, `'p@ss word'`, quoteDSN("p@ss word"))
	assert.Equal(t, `'it\'s'`, quoteDSN("it's"))
	assert.Equal(t, `'a\\b'`, quoteDSN(`a\b`))
}

func TestBuildDSN(t *testing.T) {
	cfg := &config.DataSourceConfig{
		Host: "db", Port: 5432, Database: "orders", Username: "app", Password: "s3cr et", SSLMode: "disable",
	}
	assert.Equal(t, "host=db port=5432 user=app password='s3cr et' dbname=orders sslmode=disable", BuildDSN(cfg))

	cfg.ConnectionString = "postgres://x@y/z"
	assert.Equal(t, "postgres://x@y/z", BuildDSN(cfg))
}

func withMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	origOpen := openPostgresDB
	openPostgresDB = func(*pgx.ConnConfig) *sql.DB { return db }
	t.Cleanup(func() {
		openPostgresDB = origOpen
		_ = db.Close()
	})
	return mock
}

func TestNewFactory(t *testing.T) {
	mock := withMockDB(t)
	mock.ExpectPing()

	cfg := &config.DataSourceConfig{Type: config.PostgreSQL, Host: "db", Port: 5432, Database: "orders", Username: "app", AutoClose: true}
	f, err := NewFactory("orders", cfg, logger.NewNop())
	require.NoError(t, err)

	md := f.Metadata()
	assert.Equal(t, "orders", md.Name)
	assert.Equal(t, types.PostgreSQL, md.Vendor)
	assert.True(t, md.AutoClosesOnTransactionEnd)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewFactoryPingFailure(t *testing.T) {
	mock := withMockDB(t)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	origPing := pingPostgresDB
	t.Cleanup(func() { pingPostgresDB = origPing })
	pingPostgresDB = func(ctx context.Context, db *sql.DB) error { return db.PingContext(ctx) }

	cfg := &config.DataSourceConfig{Type: config.PostgreSQL, Host: "db", Port: 5432, Database: "orders", Username: "app"}
	_, err := NewFactory("orders", cfg, logger.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to ping PostgreSQL database")
}

func TestNewFactoryInvalidDSN(t *testing.T) {
	cfg := &config.DataSourceConfig{ConnectionString: "host=db port=notaport"}
	_, err := NewFactory("orders", cfg, logger.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse PostgreSQL config")
}
