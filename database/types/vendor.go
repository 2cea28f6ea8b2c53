package types

// Vendor identifies the database product.
type Vendor string

const (
	PostgreSQL Vendor = "postgresql"
	Oracle     Vendor = "oracle"
	MySQL      Vendor = "mysql"
	MariaDB    Vendor = "mariadb"
	SQLite     Vendor = "sqlite"
	SQLServer  Vendor = "sqlserver"
	H2         Vendor = "h2"
)

func (v Vendor) String() string { return string(v) }
