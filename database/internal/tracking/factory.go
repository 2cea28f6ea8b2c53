package tracking

import (
	"context"
	"iter"
	"reflect"
	"time"

	"github.com/gaborage/go-bricks-data/database/types"
	"github.com/gaborage/go-bricks-data/logger"
)

// Factory decorates a types.ConnectionFactory so that every connection it
// hands out reports its calls through TrackOperation.
type Factory struct {
	inner      types.ConnectionFactory
	tc         *Context
	unregister func()
}

var _ types.ConnectionFactory = (*Factory)(nil)

// NewFactory wraps inner. Pool gauges are registered when inner exposes pool statistics.
func NewFactory(inner types.ConnectionFactory, log logger.Logger, settings Settings) *Factory {
	meta := inner.Metadata()
	f := &Factory{
		inner: inner,
		tc: &Context{
			Logger:     log,
			Vendor:     string(meta.Vendor),
			DataSource: meta.Name,
			Settings:   settings,
		},
		unregister: func() {},
	}
	if src, ok := inner.(PoolStatsSource); ok {
		f.unregister = RegisterPoolMetrics(src, string(meta.Vendor), meta.Name)
	}
	return f
}

func (f *Factory) Create(ctx context.Context) (types.Connection, error) {
	start := time.Now()
	conn, err := f.inner.Create(ctx)
	if err != nil {
		TrackOperation(ctx, f.tc, OpConnect, nil, start, 0, err)
		return nil, err
	}
	return &Connection{inner: conn, tc: f.tc}, nil
}

func (f *Factory) Metadata() types.FactoryMetadata { return f.inner.Metadata() }

// Unwrap returns the decorated factory.
func (f *Factory) Unwrap() types.ConnectionFactory { return f.inner }

func (f *Factory) Close() error {
	f.unregister()
	return f.inner.Close()
}

// Connection tracks lifecycle calls and the statements it creates.
type Connection struct {
	inner types.Connection
	tc    *Context
}

var _ types.Connection = (*Connection)(nil)

func (c *Connection) BeginTransaction(ctx context.Context, opts types.TransactionOptions) error {
	start := time.Now()
	err := c.inner.BeginTransaction(ctx, opts)
	TrackOperation(ctx, c.tc, OpBegin, nil, start, 0, err)
	return err
}

func (c *Connection) CommitTransaction(ctx context.Context) error {
	start := time.Now()
	err := c.inner.CommitTransaction(ctx)
	TrackOperation(ctx, c.tc, OpCommit, nil, start, 0, err)
	return err
}

func (c *Connection) RollbackTransaction(ctx context.Context) error {
	start := time.Now()
	err := c.inner.RollbackTransaction(ctx)
	TrackOperation(ctx, c.tc, OpRollback, nil, start, 0, err)
	return err
}

func (c *Connection) SetTransactionIsolationLevel(ctx context.Context, level types.IsolationLevel) error {
	start := time.Now()
	err := c.inner.SetTransactionIsolationLevel(ctx, level)
	TrackOperation(ctx, c.tc, OpIsolation, []any{level.String()}, start, 0, err)
	return err
}

func (c *Connection) CreateStatement(sql string) (types.Statement, error) {
	stmt, err := c.inner.CreateStatement(sql)
	if err != nil {
		return nil, err
	}
	return &Statement{inner: stmt, tc: c.tc, sql: sql}, nil
}

func (c *Connection) Close(ctx context.Context) error { return c.inner.Close(ctx) }

// Statement records bound values so they can be logged with the statement.
// Each binding set is kept separately, positioned by parameter index.
type Statement struct {
	inner types.Statement
	tc    *Context
	sql   string
	sets  [][]any
}

var _ types.Statement = (*Statement)(nil)

func (s *Statement) Bind(index int, value any) error {
	s.record(index, value)
	return s.inner.Bind(index, value)
}

func (s *Statement) BindNull(index int, typ reflect.Type) error {
	s.record(index, nil)
	return s.inner.BindNull(index, typ)
}

func (s *Statement) Add() error {
	if s.tc.Settings.LogQueryParameters() {
		s.sets = append(s.sets, nil)
	}
	return s.inner.Add()
}

func (s *Statement) record(index int, value any) {
	if !s.tc.Settings.LogQueryParameters() || index < 0 {
		return
	}
	if len(s.sets) == 0 {
		s.sets = append(s.sets, nil)
	}
	set := s.sets[len(s.sets)-1]
	for len(set) <= index {
		set = append(set, nil)
	}
	set[index] = value
	s.sets[len(s.sets)-1] = set
}

// args returns the parameters to log: the single binding set as is, or one
// nested list per set for batches.
func (s *Statement) args() []any {
	sets := s.sets
	if len(sets) > 0 && len(sets[len(sets)-1]) == 0 {
		sets = sets[:len(sets)-1]
	}
	switch len(sets) {
	case 0:
		return nil
	case 1:
		return sets[0]
	}
	out := make([]any, len(sets))
	for i, set := range sets {
		out[i] = set
	}
	return out
}

func (s *Statement) ReturnGeneratedValues(columns ...string) { s.inner.ReturnGeneratedValues(columns...) }

func (s *Statement) Execute(ctx context.Context) (types.Result, error) {
	start := time.Now()
	res, err := s.inner.Execute(ctx)
	var rows int64
	if err == nil && res.RowsUpdated() > 0 {
		rows = res.RowsUpdated()
	}
	TrackOperation(ctx, s.tc, s.sql, s.args(), start, rows, err)
	return res, err
}

// Query is tracked when the row stream ends, so the span covers the full read.
func (s *Statement) Query(ctx context.Context) (types.Result, error) {
	start := time.Now()
	res, err := s.inner.Query(ctx)
	if err != nil {
		TrackOperation(ctx, s.tc, s.sql, s.args(), start, 0, err)
		return nil, err
	}
	return &trackedResult{Result: res, ctx: ctx, stmt: s, start: start}, nil
}

type trackedResult struct {
	types.Result
	ctx     context.Context
	stmt    *Statement
	start   time.Time
	tracked bool
}

func (r *trackedResult) Rows() iter.Seq2[types.Row, error] {
	return func(yield func(types.Row, error) bool) {
		var streamErr error
		defer func() { r.track(streamErr) }()
		for row, err := range r.Result.Rows() {
			if err != nil {
				streamErr = err
			}
			if !yield(row, err) {
				return
			}
		}
	}
}

func (r *trackedResult) Close() error {
	r.track(nil)
	return r.Result.Close()
}

func (r *trackedResult) track(err error) {
	if r.tracked {
		return
	}
	r.tracked = true
	TrackOperation(r.ctx, r.stmt.tc, r.stmt.sql, r.stmt.args(), r.start, 0, err)
}
