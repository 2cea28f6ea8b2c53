// Package repository executes query descriptors: it picks the connection or
// transaction scope, binds parameters, runs the statement, maps the results
// and fires entity lifecycle hooks.
package repository

import (
	"context"
	"fmt"
	"iter"

	"github.com/gaborage/go-bricks-data/database/dialect"
	"github.com/gaborage/go-bricks-data/database/types"
	"github.com/gaborage/go-bricks-data/logger"
	"github.com/gaborage/go-bricks-data/mapper"
	"github.com/gaborage/go-bricks-data/query"
	"github.com/gaborage/go-bricks-data/transaction"
)

// Operations runs repository verbs against one data source. It is safe for
// concurrent use.
type Operations struct {
	tx      *transaction.Manager
	dialect dialect.Dialect
	binder  *mapper.Binder
	reader  *mapper.Reader
	log     logger.Logger
}

// New returns the operations of the data source behind tx.
func New(tx *transaction.Manager, log logger.Logger) *Operations {
	if log == nil {
		log = logger.NewNop()
	}
	return &Operations{
		tx:      tx,
		dialect: dialect.For(tx.Factory().Metadata().Vendor),
		binder:  mapper.NewBinder(),
		reader:  mapper.NewReader(),
		log:     log,
	}
}

// Transactions exposes the lifecycle manager for hand-written scopes.
func (o *Operations) Transactions() *transaction.Manager { return o.tx }

func (o *Operations) Dialect() dialect.Dialect { return o.dialect }

func (o *Operations) Reader() *mapper.Reader { return o.reader }

type scopeKind int

const (
	scopeConnection scopeKind = iota
	scopeTransaction
	scopeAmbientConnection
)

// plan chooses the scope of one operation. An explicit status becomes the
// ambient transaction. With an ambient transaction the operation goes
// through the manager so propagation rules apply; with only an ambient
// connection it runs there directly. Otherwise writes and reads carrying a
// definition start a transaction and plain reads borrow a connection.
func (o *Operations) plan(ctx context.Context, sc query.Scope, write bool) (context.Context, transaction.Definition, scopeKind, error) {
	def := transaction.DefaultDefinition()
	if sc.Definition != nil {
		def = *sc.Definition
	}
	if sc.Status != nil {
		ctx = transaction.ContextWithStatus(ctx, sc.Status)
	}
	if write {
		if err := o.tx.CheckWritable(ctx, def); err != nil {
			return ctx, def, 0, err
		}
	}

	switch {
	case transaction.StatusFrom(ctx) != nil:
		return ctx, def, scopeTransaction, nil
	case transaction.ConnectionFrom(ctx) != nil:
		return ctx, def, scopeAmbientConnection, nil
	case write || sc.Definition != nil:
		return ctx, def, scopeTransaction, nil
	default:
		return ctx, def, scopeConnection, nil
	}
}

func (o *Operations) run(ctx context.Context, sc query.Scope, write bool, fn transaction.ConnectionHandler) error {
	ctx, def, kind, err := o.plan(ctx, sc, write)
	if err != nil {
		return err
	}
	switch kind {
	case scopeAmbientConnection:
		return fn(ctx, transaction.ConnectionFrom(ctx))
	case scopeTransaction:
		return o.tx.WithTransaction(ctx, def, func(ctx context.Context, st *transaction.Status) error {
			return fn(ctx, st.Connection())
		})
	default:
		return o.tx.WithConnection(ctx, fn)
	}
}

func stream[T any](ctx context.Context, o *Operations, sc query.Scope, open func(context.Context, types.Connection) iter.Seq2[T, error]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		ctx, def, kind, err := o.plan(ctx, sc, false)
		if err != nil {
			var zero T
			yield(zero, err)
			return
		}

		var seq iter.Seq2[T, error]
		switch kind {
		case scopeAmbientConnection:
			seq = open(ctx, transaction.ConnectionFrom(ctx))
		case scopeTransaction:
			seq = transaction.StreamInTransaction(ctx, o.tx, def, func(ctx context.Context, st *transaction.Status) iter.Seq2[T, error] {
				return open(ctx, st.Connection())
			})
		default:
			seq = transaction.StreamInConnection(ctx, o.tx, open)
		}
		seq(yield)
	}
}

func (o *Operations) statement(conn types.Connection, name, sql string) (types.Statement, error) {
	o.log.Debug().Str("query", name).Str("sql", sql).Msg("Executing SQL statement")
	stmt, err := conn.CreateStatement(sql)
	if err != nil {
		return nil, fmt.Errorf("prepare %s: %w", describe(name), err)
	}
	return stmt, nil
}

func (o *Operations) bindValues(stmt types.Statement, params []query.Parameter) error {
	for i, p := range params {
		if err := o.binder.Bind(stmt, i, p.Value, p.Type); err != nil {
			return fmt.Errorf("parameter %s: %w", p.Name, err)
		}
	}
	return nil
}

// runQuery runs a row-producing descriptor with value parameters.
func (o *Operations) runQuery(ctx context.Context, conn types.Connection, name, sql string, params []query.Parameter) (types.Result, error) {
	stmt, err := o.statement(conn, name, sql)
	if err != nil {
		return nil, err
	}
	if err := o.bindValues(stmt, params); err != nil {
		return nil, err
	}
	res, err := stmt.Query(ctx)
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", describe(name), err)
	}
	return res, nil
}
