package database

import "github.com/gaborage/go-bricks-data/config"

// Data source type names accepted by NewConnectionFactory.
const (
	PostgreSQL = config.PostgreSQL
	PGX        = config.PGX
	Oracle     = config.Oracle
	MySQL      = config.MySQL
	MariaDB    = config.MariaDB
	SQLite     = config.SQLite
)
