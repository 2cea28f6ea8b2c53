package pgxnative

import (
	"context"
	"fmt"
	"iter"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gaborage/go-bricks-data/database/dialect"
	"github.com/gaborage/go-bricks-data/database/types"
)

// querier is satisfied by *pgxpool.Conn and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Connection implements types.Connection over an acquired pool connection.
type Connection struct {
	conn      *pgxpool.Conn
	tx        pgx.Tx
	isolation types.IsolationLevel
	dialect   dialect.Dialect
	closed    bool
}

var _ types.Connection = (*Connection)(nil)

func (c *Connection) q() querier {
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
	tx, err := c.conn.BeginTx(ctx, txOptions(c.isolation, opts))
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	c.tx = tx
	return nil
}

func (c *Connection) CommitTransaction(ctx context.Context) error {
	if c.tx == nil {
		return types.ErrNoActiveTransaction
	}
	tx := c.tx
	c.tx = nil
	return tx.Commit(ctx)
}

func (c *Connection) RollbackTransaction(ctx context.Context) error {
	if c.tx == nil {
		return types.ErrNoActiveTransaction
	}
	tx := c.tx
	c.tx = nil
	return tx.Rollback(ctx)
}

func (c *Connection) SetTransactionIsolationLevel(_ context.Context, level types.IsolationLevel) error {
	if c.closed {
		return types.ErrConnectionClosed
	}
	c.isolation = level
	return nil
}

func (c *Connection) CreateStatement(sql string) (types.Statement, error) {
	if c.closed {
		return nil, types.ErrConnectionClosed
	}
	return &Statement{conn: c, sql: sql, bindings: [][]any{nil}}, nil
}

// Close releases the connection to the pool, rolling back a dangling transaction.
func (c *Connection) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.tx != nil {
		_ = c.tx.Rollback(ctx)
		c.tx = nil
	}
	c.conn.Release()
	return nil
}

// Statement implements types.Statement with pgx batches.
type Statement struct {
	conn      *Connection
	sql       string
	bindings  [][]any
	returning []string
}

var _ types.Statement = (*Statement)(nil)

func (s *Statement) Bind(index int, value any) error {
	if index < 0 {
		return fmt.Errorf("%w: %d", types.ErrBindIndex, index)
	}
	cur := len(s.bindings) - 1
	for len(s.bindings[cur]) <= index {
		s.bindings[cur] = append(s.bindings[cur], nil)
	}
	s.bindings[cur][index] = value
	return nil
}

// BindNull binds nil; pgx sends NULL with the parameter type the server inferred.
func (s *Statement) BindNull(index int, _ reflect.Type) error {
	return s.Bind(index, nil)
}

func (s *Statement) Add() error {
	s.bindings = append(s.bindings, nil)
	return nil
}

func (s *Statement) ReturnGeneratedValues(columns ...string) {
	s.returning = columns
}

func (s *Statement) sets() [][]any {
	sets := s.bindings
	if len(sets) > 1 && len(sets[len(sets)-1]) == 0 {
		sets = sets[:len(sets)-1]
	}
	return sets
}

func (s *Statement) Execute(ctx context.Context) (types.Result, error) {
	if s.conn.closed {
		return nil, types.ErrConnectionClosed
	}
	query := s.sql
	if len(s.returning) > 0 {
		var err error
		if query, err = s.conn.dialect.AppendReturning(query, 0, s.returning...); err != nil {
			return nil, err
		}
	}

	sets := s.sets()
	if len(sets) == 1 && len(s.returning) == 0 {
		tag, err := s.conn.q().Exec(ctx, query, sets[0]...)
		if err != nil {
			return nil, err
		}
		return &result{rowsUpdated: tag.RowsAffected()}, nil
	}

	batch := &pgx.Batch{}
	for _, args := range sets {
		batch.Queue(query, args...)
	}
	br := s.conn.q().SendBatch(ctx, batch)
	defer br.Close()

	out := &result{metadata: types.NewRowMetadata(s.returning...)}
	for range sets {
		if len(s.returning) == 0 {
			tag, err := br.Exec()
			if err != nil {
				return nil, err
			}
			out.rowsUpdated += tag.RowsAffected()
			continue
		}
		rows, err := br.Query()
		if err != nil {
			return nil, err
		}
		collected, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) ([]any, error) {
			return r.Values()
		})
		if err != nil {
			return nil, err
		}
		out.rows = append(out.rows, collected...)
		out.rowsUpdated += int64(len(collected))
	}
	return out, nil
}

func (s *Statement) Query(ctx context.Context) (types.Result, error) {
	if s.conn.closed {
		return nil, types.ErrConnectionClosed
	}
	sets := s.sets()
	if len(sets) > 1 {
		return nil, fmt.Errorf("query statements accept a single binding set, got %d", len(sets))
	}
	rows, err := s.conn.q().Query(ctx, s.sql, sets[0]...)
	if err != nil {
		return nil, err
	}
	fields := rows.FieldDescriptions()
	cols := make([]types.ColumnMetadata, len(fields))
	for i, f := range fields {
		cols[i] = types.ColumnMetadata{Name: f.Name}
	}
	return &rowsResult{rows: rows, metadata: types.RowMetadata{Columns: cols}}, nil
}

type result struct {
	rowsUpdated int64
	metadata    types.RowMetadata
	rows        [][]any
}

func (r *result) RowsUpdated() int64 { return r.rowsUpdated }

func (r *result) Rows() iter.Seq2[types.Row, error] {
	return func(yield func(types.Row, error) bool) {
		for _, vals := range r.rows {
			if !yield(&row{values: vals, metadata: r.metadata}, nil) {
				return
			}
		}
	}
}

func (r *result) Close() error { return nil }

type rowsResult struct {
	rows     pgx.Rows
	metadata types.RowMetadata
}

func (r *rowsResult) RowsUpdated() int64 { return -1 }

func (r *rowsResult) Rows() iter.Seq2[types.Row, error] {
	return func(yield func(types.Row, error) bool) {
		defer r.rows.Close()
		for r.rows.Next() {
			vals, err := r.rows.Values()
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(&row{values: vals, metadata: r.metadata}, nil) {
				return
			}
		}
		if err := r.rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func (r *rowsResult) Close() error {
	r.rows.Close()
	return nil
}

type row struct {
	values   []any
	metadata types.RowMetadata
}

func (r *row) Get(index int) (any, error) {
	if index < 0 || index >= len(r.values) {
		return nil, types.ErrColumnIndex
	}
	return r.values[index], nil
}

func (r *row) Metadata() types.RowMetadata { return r.metadata }
