// Package testing provides an in-memory fake of the driver SPI for unit tests.
//
// FakeFactory hands out FakeConnections that answer statements from scripted
// expectations and record every driver call in a journal, so tests can assert
// exactly which lifecycle calls (begin, commit, rollback, close) reached a
// connection and in which order.
//
//	f := NewFakeFactory(types.PostgreSQL).
//	    ExpectExec("INSERT INTO book").WillReturnGeneratedKeys(int64(1))
//	// ... run code under test ...
//	AssertOps(t, f, 1, OpCreate, OpBegin, OpExecute, OpCommit, OpClose)
package testing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gaborage/go-bricks-data/database/types"
)

// Journal operation names.
const (
	OpCreate    = "create"
	OpIsolation = "isolation"
	OpBegin     = "begin"
	OpCommit    = "commit"
	OpRollback  = "rollback"
	OpExecute   = "execute"
	OpQuery     = "query"
	OpClose     = "close"
)

// Call is one journal entry. Conn is the 1-based connection number.
type Call struct {
	Conn     int
	Op       string
	SQL      string
	Bindings [][]any
	ReadOnly bool
	Level    types.IsolationLevel
}

// FakeFactory implements types.ConnectionFactory in memory. It is safe for concurrent use.
type FakeFactory struct {
	mu       sync.Mutex
	meta     types.FactoryMetadata
	strict   bool
	queries  []*QueryExpectation
	execs    []*ExecExpectation
	journal  []Call
	nextConn int
	closed   bool

	createErr   error
	beginErr    error
	commitErr   error
	rollbackErr error
	closeErr    error
}

var _ types.ConnectionFactory = (*FakeFactory)(nil)

// NewFakeFactory returns a factory reporting the given vendor and the name "default".
func NewFakeFactory(vendor types.Vendor) *FakeFactory {
	return &FakeFactory{meta: types.FactoryMetadata{Name: "default", Vendor: vendor}}
}

// WithName sets the data source name reported in metadata.
func (f *FakeFactory) WithName(name string) *FakeFactory {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meta.Name = name
	return f
}

// WithAutoClose marks connections as closed implicitly by commit and rollback.
func (f *FakeFactory) WithAutoClose() *FakeFactory {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meta.AutoClosesOnTransactionEnd = true
	return f
}

// StrictSQLMatching requires exact SQL instead of substring matches.
func (f *FakeFactory) StrictSQLMatching() *FakeFactory {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strict = true
	return f
}

// ExpectQuery scripts the answer to row-producing statements matching sqlPattern.
// The first matching expectation wins; expectations are not consumed.
func (f *FakeFactory) ExpectQuery(sqlPattern string) *QueryExpectation {
	exp := &QueryExpectation{factory: f, sql: sqlPattern, rows: NewRowSet()}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, exp)
	return exp
}

// ExpectExec scripts the answer to row-count statements matching sqlPattern.
func (f *FakeFactory) ExpectExec(sqlPattern string) *ExecExpectation {
	exp := &ExecExpectation{factory: f, sql: sqlPattern}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, exp)
	return exp
}

// FailCreate makes Create return err.
func (f *FakeFactory) FailCreate(err error) *FakeFactory { f.set(&f.createErr, err); return f }

// FailBegin makes BeginTransaction return err.
func (f *FakeFactory) FailBegin(err error) *FakeFactory { f.set(&f.beginErr, err); return f }

// FailCommit makes CommitTransaction return err.
func (f *FakeFactory) FailCommit(err error) *FakeFactory { f.set(&f.commitErr, err); return f }

// FailRollback makes RollbackTransaction return err.
func (f *FakeFactory) FailRollback(err error) *FakeFactory { f.set(&f.rollbackErr, err); return f }

// FailClose makes Connection.Close return err.
func (f *FakeFactory) FailClose(err error) *FakeFactory { f.set(&f.closeErr, err); return f }

func (f *FakeFactory) set(dst *error, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	*dst = err
}

func (f *FakeFactory) injected(err *error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *err
}

func (f *FakeFactory) Create(ctx context.Context) (types.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, fmt.Errorf("testing: factory is closed")
	}
	f.nextConn++
	f.journal = append(f.journal, Call{Conn: f.nextConn, Op: OpCreate})
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &FakeConnection{id: f.nextConn, factory: f}, nil
}

func (f *FakeFactory) Metadata() types.FactoryMetadata {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meta
}

func (f *FakeFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FakeFactory) record(c Call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.journal = append(f.journal, c)
}

// Journal returns a copy of every recorded call.
func (f *FakeFactory) Journal() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.journal...)
}

// Ops returns the operation names recorded for one connection, in order.
func (f *FakeFactory) Ops(conn int) []string {
	var ops []string
	for _, c := range f.Journal() {
		if c.Conn == conn {
			ops = append(ops, c.Op)
		}
	}
	return ops
}

// Count returns how many times op was recorded across all connections.
func (f *FakeFactory) Count(op string) int {
	n := 0
	for _, c := range f.Journal() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Connections returns the number of connections created.
func (f *FakeFactory) Connections() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextConn
}

func (f *FakeFactory) matchSQL(expected, actual string) bool {
	if f.strict {
		return strings.TrimSpace(expected) == strings.TrimSpace(actual)
	}
	return strings.Contains(actual, expected)
}

func (f *FakeFactory) findQuery(sql string) *QueryExpectation {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, exp := range f.queries {
		if f.matchSQL(exp.sql, sql) {
			return exp
		}
	}
	return nil
}

func (f *FakeFactory) findExec(sql string) *ExecExpectation {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, exp := range f.execs {
		if f.matchSQL(exp.sql, sql) {
			return exp
		}
	}
	return nil
}

// QueryExpectation scripts a Query answer.
type QueryExpectation struct {
	factory *FakeFactory
	sql     string
	rows    *RowSet
	err     error
}

// WillReturnRows sets the rows returned by matching queries.
func (e *QueryExpectation) WillReturnRows(rows *RowSet) *QueryExpectation {
	e.factory.mu.Lock()
	defer e.factory.mu.Unlock()
	e.rows = rows
	return e
}

// WillReturnError makes matching queries fail.
func (e *QueryExpectation) WillReturnError(err error) *QueryExpectation {
	e.factory.mu.Lock()
	defer e.factory.mu.Unlock()
	e.err = err
	return e
}

// ExecExpectation scripts an Execute answer.
type ExecExpectation struct {
	factory      *FakeFactory
	sql          string
	rowsAffected *int64
	keys         []any
	err          error
}

// WillReturnRowsAffected sets the affected row count of one execution; -1
// models a driver that reports no count. Without it the count equals the
// number of binding sets.
func (e *ExecExpectation) WillReturnRowsAffected(n int64) *ExecExpectation {
	e.factory.mu.Lock()
	defer e.factory.mu.Unlock()
	e.rowsAffected = &n
	return e
}

// WillReturnGeneratedKeys sets the keys handed out, one per binding set, when
// the statement requested generated values. Keys are consumed in order across
// executions.
func (e *ExecExpectation) WillReturnGeneratedKeys(keys ...any) *ExecExpectation {
	e.factory.mu.Lock()
	defer e.factory.mu.Unlock()
	e.keys = append(e.keys, keys...)
	return e
}

// WillReturnError makes matching executions fail.
func (e *ExecExpectation) WillReturnError(err error) *ExecExpectation {
	e.factory.mu.Lock()
	defer e.factory.mu.Unlock()
	e.err = err
	return e
}

func (e *ExecExpectation) takeKeys(n int) ([]any, error) {
	e.factory.mu.Lock()
	defer e.factory.mu.Unlock()
	if len(e.keys) < n {
		return nil, fmt.Errorf("testing: %d generated keys requested, %d scripted for %q", n, len(e.keys), e.sql)
	}
	out := e.keys[:n:n]
	e.keys = e.keys[n:]
	return out, nil
}
