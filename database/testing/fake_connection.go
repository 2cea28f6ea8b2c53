package testing

import (
	"context"
	"fmt"
	"iter"
	"reflect"

	"github.com/gaborage/go-bricks-data/database/types"
)

// NullValue records a typed NULL binding.
type NullValue struct {
	Type reflect.Type
}

// FakeConnection implements types.Connection and journals every call.
type FakeConnection struct {
	id        int
	factory   *FakeFactory
	inTx      bool
	isolation types.IsolationLevel
	closed    bool
}

var _ types.Connection = (*FakeConnection)(nil)

// ID is the 1-based connection number used in the journal.
func (c *FakeConnection) ID() int { return c.id }

// Isolation returns the last isolation level set.
func (c *FakeConnection) Isolation() types.IsolationLevel { return c.isolation }

func (c *FakeConnection) BeginTransaction(ctx context.Context, opts types.TransactionOptions) error {
	c.factory.record(Call{Conn: c.id, Op: OpBegin, ReadOnly: opts.ReadOnly, Level: c.isolation})
	if c.closed {
		return types.ErrConnectionClosed
	}
	if c.inTx {
		return types.ErrTransactionActive
	}
	if err := c.factory.injected(&c.factory.beginErr); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.inTx = true
	return nil
}

func (c *FakeConnection) CommitTransaction(context.Context) error {
	c.factory.record(Call{Conn: c.id, Op: OpCommit})
	return c.endTx(c.factory.injected(&c.factory.commitErr))
}

func (c *FakeConnection) RollbackTransaction(context.Context) error {
	c.factory.record(Call{Conn: c.id, Op: OpRollback})
	return c.endTx(c.factory.injected(&c.factory.rollbackErr))
}

func (c *FakeConnection) endTx(injected error) error {
	if !c.inTx {
		return types.ErrNoActiveTransaction
	}
	c.inTx = false
	if c.factory.Metadata().AutoClosesOnTransactionEnd {
		c.closed = true
	}
	return injected
}

func (c *FakeConnection) SetTransactionIsolationLevel(_ context.Context, level types.IsolationLevel) error {
	c.factory.record(Call{Conn: c.id, Op: OpIsolation, Level: level})
	if c.closed {
		return types.ErrConnectionClosed
	}
	c.isolation = level
	return nil
}

func (c *FakeConnection) CreateStatement(sql string) (types.Statement, error) {
	if c.closed {
		return nil, types.ErrConnectionClosed
	}
	return &FakeStatement{conn: c, sql: sql, bindings: [][]any{nil}}, nil
}

func (c *FakeConnection) Close(context.Context) error {
	c.factory.record(Call{Conn: c.id, Op: OpClose})
	if c.closed {
		return fmt.Errorf("testing: connection %d closed twice", c.id)
	}
	c.closed = true
	return c.factory.injected(&c.factory.closeErr)
}

// FakeStatement implements types.Statement.
type FakeStatement struct {
	conn      *FakeConnection
	sql       string
	bindings  [][]any
	returning []string
}

var _ types.Statement = (*FakeStatement)(nil)

func (s *FakeStatement) Bind(index int, value any) error {
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

func (s *FakeStatement) BindNull(index int, typ reflect.Type) error {
	return s.Bind(index, NullValue{Type: typ})
}

func (s *FakeStatement) Add() error {
	s.bindings = append(s.bindings, nil)
	return nil
}

func (s *FakeStatement) ReturnGeneratedValues(columns ...string) {
	s.returning = columns
}

func (s *FakeStatement) sets() [][]any {
	sets := s.bindings
	if len(sets) > 1 && len(sets[len(sets)-1]) == 0 {
		sets = sets[:len(sets)-1]
	}
	return sets
}

func (s *FakeStatement) Execute(ctx context.Context) (types.Result, error) {
	sets := s.sets()
	s.conn.factory.record(Call{Conn: s.conn.id, Op: OpExecute, SQL: s.sql, Bindings: sets})
	if s.conn.closed {
		return nil, types.ErrConnectionClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	exp := s.conn.factory.findExec(s.sql)
	if exp == nil {
		return nil, fmt.Errorf("testing: no expectation for exec %q", s.sql)
	}
	if exp.err != nil {
		return nil, exp.err
	}

	res := &fakeResult{rowsUpdated: int64(len(sets))}
	if exp.rowsAffected != nil {
		res.rowsUpdated = *exp.rowsAffected
	}
	if len(s.returning) > 0 {
		keys, err := exp.takeKeys(len(sets))
		if err != nil {
			return nil, err
		}
		rs := NewRowSet(s.returning...)
		for _, k := range keys {
			vals := make([]any, len(s.returning))
			vals[0] = k
			rs.AddRow(vals...)
		}
		res.rows = rs
	}
	return res, nil
}

func (s *FakeStatement) Query(ctx context.Context) (types.Result, error) {
	sets := s.sets()
	s.conn.factory.record(Call{Conn: s.conn.id, Op: OpQuery, SQL: s.sql, Bindings: sets})
	if s.conn.closed {
		return nil, types.ErrConnectionClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	exp := s.conn.factory.findQuery(s.sql)
	if exp == nil {
		return nil, fmt.Errorf("testing: no expectation for query %q", s.sql)
	}
	if exp.err != nil {
		return nil, exp.err
	}
	return &fakeResult{rowsUpdated: -1, rows: exp.rows}, nil
}

type fakeResult struct {
	rowsUpdated int64
	rows        *RowSet
}

func (r *fakeResult) RowsUpdated() int64 { return r.rowsUpdated }

func (r *fakeResult) Rows() iter.Seq2[types.Row, error] {
	return func(yield func(types.Row, error) bool) {
		if r.rows == nil {
			return
		}
		md := types.NewRowMetadata(r.rows.columns...)
		for _, vals := range r.rows.rows {
			if err, ok := rowError(vals); ok {
				yield(nil, err)
				return
			}
			if !yield(&fakeRow{values: vals, metadata: md}, nil) {
				return
			}
		}
	}
}

func (r *fakeResult) Close() error { return nil }

type fakeRow struct {
	values   []any
	metadata types.RowMetadata
}

func (r *fakeRow) Get(index int) (any, error) {
	if index < 0 || index >= len(r.values) {
		return nil, types.ErrColumnIndex
	}
	return r.values[index], nil
}

func (r *fakeRow) Metadata() types.RowMetadata { return r.metadata }
