// Package sqldb adapts any database/sql pool to the driver SPI in database/types.
// Each Connection pins one *sql.Conn for its lifetime so that statements issued
// inside a transaction reach the same session.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gaborage/go-bricks-data/database/dialect"
	"github.com/gaborage/go-bricks-data/database/types"
)

// Factory implements types.ConnectionFactory over a *sql.DB.
type Factory struct {
	db      *sql.DB
	meta    types.FactoryMetadata
	dialect dialect.Dialect
}

var _ types.ConnectionFactory = (*Factory)(nil)

// NewFactory wraps db. The dialect is derived from meta.Vendor.
func NewFactory(db *sql.DB, meta types.FactoryMetadata) *Factory {
	return &Factory{db: db, meta: meta, dialect: dialect.For(meta.Vendor)}
}

// Create pins a pooled session.
func (f *Factory) Create(ctx context.Context) (types.Connection, error) {
	conn, err := f.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire %s connection: %w", f.meta.Vendor, err)
	}
	return &Connection{conn: conn, dialect: f.dialect}, nil
}

func (f *Factory) Metadata() types.FactoryMetadata { return f.meta }

// DB exposes the pool for health checks and pool statistics.
func (f *Factory) DB() *sql.DB { return f.db }

// Close closes the pool.
func (f *Factory) Close() error { return f.db.Close() }

// PoolStats reports in-use, idle and maximum open connections.
func (f *Factory) PoolStats() (inUse, idle, maxOpen int64) {
	s := f.db.Stats()
	return int64(s.InUse), int64(s.Idle), int64(s.MaxOpenConnections)
}
