// Package types contains the driver SPI consumed by the transaction and repository layers.
// Vendor adapters (database/sqldb, database/pgxnative) implement these interfaces; the core
// never imports a driver directly.
//
//revive:disable-next-line:var-naming // Package name "types" avoids circular imports.
package types

import (
	"context"
	"iter"
	"reflect"
)

// FactoryMetadata describes the database product behind a ConnectionFactory.
type FactoryMetadata struct {
	// Name is the data source name used in log lines and spans.
	Name   string
	Vendor Vendor
	// AutoClosesOnTransactionEnd is set by drivers that release the connection
	// themselves on commit or rollback. The lifecycle manager then issues no Close.
	AutoClosesOnTransactionEnd bool
}

// ConnectionFactory hands out connections. It is the only resource shared
// between concurrent operations and must be safe for concurrent use.
type ConnectionFactory interface {
	Create(ctx context.Context) (Connection, error)
	Metadata() FactoryMetadata
	// Close releases the underlying pool.
	Close() error
}

// TransactionOptions are applied by BeginTransaction.
type TransactionOptions struct {
	ReadOnly bool
}

// Connection is one logical database session. It is owned by exactly one
// operation or ambient transaction and is not safe for concurrent use.
type Connection interface {
	BeginTransaction(ctx context.Context, opts TransactionOptions) error
	CommitTransaction(ctx context.Context) error
	RollbackTransaction(ctx context.Context) error

	// SetTransactionIsolationLevel applies to the next transaction begun on this connection.
	SetTransactionIsolationLevel(ctx context.Context, level IsolationLevel) error

	CreateStatement(sql string) (Statement, error)
	Close(ctx context.Context) error
}

// Statement is a parameterized SQL statement with one or more binding sets.
// Parameters are addressed by zero-based index.
type Statement interface {
	Bind(index int, value any) error
	// BindNull binds an explicit typed NULL.
	BindNull(index int, typ reflect.Type) error
	// Add closes the current binding set and starts a new one.
	Add() error
	// ReturnGeneratedValues requests the named generated columns as result rows.
	ReturnGeneratedValues(columns ...string)

	// Execute runs a row-count statement (INSERT, UPDATE, DELETE) once for all binding sets.
	Execute(ctx context.Context) (Result, error)
	// Query runs a row-producing statement.
	Query(ctx context.Context) (Result, error)
}

// Result is the outcome of one statement execution. Rows may be iterated once
// and each Row is valid only inside the loop body that received it.
type Result interface {
	// RowsUpdated is the total affected row count across binding sets,
	// or -1 when the driver did not report one.
	RowsUpdated() int64
	Rows() iter.Seq2[Row, error]
	Close() error
}

// Row is a driver-native result row.
type Row interface {
	// Get returns the driver-native value at index (nil for SQL NULL).
	Get(index int) (any, error)
	Metadata() RowMetadata
}
