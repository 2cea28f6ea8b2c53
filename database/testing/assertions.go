package testing

import (
	"fmt"
	"slices"
	"strings"
	"testing"
)

// AssertOps asserts the exact sequence of operations recorded for connection conn.
//
//	AssertOps(t, f, 1, OpCreate, OpBegin, OpExecute, OpCommit, OpClose)
func AssertOps(t *testing.T, f *FakeFactory, conn int, ops ...string) {
	t.Helper()
	got := f.Ops(conn)
	if !slices.Equal(got, ops) {
		t.Errorf("connection %d operations mismatch\nexpected: %v\nactual:   %v\njournal:\n%s",
			conn, ops, got, formatJournal(f.Journal()))
	}
}

// AssertNoOp asserts that op was never recorded on any connection.
func AssertNoOp(t *testing.T, f *FakeFactory, op string) {
	t.Helper()
	if n := f.Count(op); n > 0 {
		t.Errorf("expected no %q calls, got %d\njournal:\n%s", op, n, formatJournal(f.Journal()))
	}
}

// AssertOpCount asserts that op was recorded exactly expected times.
func AssertOpCount(t *testing.T, f *FakeFactory, op string, expected int) {
	t.Helper()
	if n := f.Count(op); n != expected {
		t.Errorf("expected %d %q calls, got %d\njournal:\n%s", expected, op, n, formatJournal(f.Journal()))
	}
}

// AssertExecuted asserts that a statement matching sqlPattern was executed or queried.
func AssertExecuted(t *testing.T, f *FakeFactory, sqlPattern string) {
	t.Helper()
	for _, c := range f.Journal() {
		if (c.Op == OpExecute || c.Op == OpQuery) && f.matchSQL(sqlPattern, c.SQL) {
			return
		}
	}
	t.Errorf("expected statement not executed: %q\njournal:\n%s", sqlPattern, formatJournal(f.Journal()))
}

func formatJournal(calls []Call) string {
	if len(calls) == 0 {
		return "  (none)"
	}
	var b strings.Builder
	for i, c := range calls {
		fmt.Fprintf(&b, "  %d. conn=%d %s", i+1, c.Conn, c.Op)
		if c.SQL != "" {
			fmt.Fprintf(&b, " %q %v", c.SQL, c.Bindings)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
