package sqldb

import (
	"database/sql"

	"github.com/gaborage/go-bricks-data/config"
)

// ConfigurePool applies pool settings to db.
func ConfigurePool(db *sql.DB, pool config.PoolConfig) {
	db.SetMaxOpenConns(int(pool.Max.Connections))
	db.SetMaxIdleConns(int(pool.Idle.Connections))
	db.SetConnMaxIdleTime(pool.Idle.Time)
	db.SetConnMaxLifetime(pool.Lifetime.Max)
}
