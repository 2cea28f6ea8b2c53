package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gaborage/go-bricks-data/database/dialect"
	"github.com/gaborage/go-bricks-data/database/types"
)

// executor is satisfied by both *sql.Conn and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Connection implements types.Connection over a pinned *sql.Conn.
type Connection struct {
	conn      *sql.Conn
	tx        *sql.Tx
	isolation types.IsolationLevel
	dialect   dialect.Dialect
	closed    bool
}

var _ types.Connection = (*Connection)(nil)

func (c *Connection) exec() executor {
	if c.tx != nil {
		return c.tx
	}
	return c.conn
}

func (c *Connection) BeginTransaction(ctx context.Context, opts types.TransactionOptions) error {
	if c.closed {
		return types.ErrConnectionClosed
	}
	if c.tx != nil {
		return types.ErrTransactionActive
	}
	tx, err := c.conn.BeginTx(ctx, &sql.TxOptions{
		Isolation: c.isolation.SQLLevel(),
		ReadOnly:  opts.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	c.tx = tx
	return nil
}

func (c *Connection) CommitTransaction(_ context.Context) error {
	if c.tx == nil {
		return types.ErrNoActiveTransaction
	}
	tx := c.tx
	c.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (c *Connection) RollbackTransaction(_ context.Context) error {
	if c.tx == nil {
		return types.ErrNoActiveTransaction
	}
	tx := c.tx
	c.tx = nil
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("rollback transaction: %w", err)
	}
	return nil
}

// SetTransactionIsolationLevel records the level; database/sql applies it in BeginTx.
func (c *Connection) SetTransactionIsolationLevel(_ context.Context, level types.IsolationLevel) error {
	if c.closed {
		return types.ErrConnectionClosed
	}
	c.isolation = level
	return nil
}

func (c *Connection) CreateStatement(query string) (types.Statement, error) {
	if c.closed {
		return nil, types.ErrConnectionClosed
	}
	return &Statement{conn: c, sql: query, bindings: [][]any{nil}}, nil
}

// Close returns the session to the pool, rolling back a dangling transaction first.
func (c *Connection) Close(_ context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.tx != nil {
		_ = c.tx.Rollback()
		c.tx = nil
	}
	return c.conn.Close()
}
