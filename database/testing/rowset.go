package testing

import (
	"fmt"

	"github.com/gaborage/go-bricks-data/database/types"
)

// RowSet is a scripted query result.
//
//	rows := NewRowSet("id", "title").
//	    AddRow(int64(1), "Dune").
//	    AddRow(int64(2), "Emma")
type RowSet struct {
	columns []string
	rows    [][]any
}

// NewRowSet creates an empty result with the given columns.
func NewRowSet(columns ...string) *RowSet {
	return &RowSet{columns: columns}
}

// AddRow appends one row. It panics when the value count does not match the columns.
func (rs *RowSet) AddRow(values ...any) *RowSet {
	if len(values) != len(rs.columns) {
		panic(fmt.Sprintf("AddRow: expected %d values for columns %v, got %d",
			len(rs.columns), rs.columns, len(values)))
	}
	rs.rows = append(rs.rows, values)
	return rs
}

// AddRows appends count rows produced by generator.
func (rs *RowSet) AddRows(count int, generator func(i int) []any) *RowSet {
	for i := range count {
		rs.AddRow(generator(i)...)
	}
	return rs
}

// FailAfter makes iteration yield err after the rows added so far.
func (rs *RowSet) FailAfter(err error) *RowSet {
	rs.rows = append(rs.rows, []any{rowFailure{err}})
	return rs
}

// Len returns the number of rows.
func (rs *RowSet) Len() int { return len(rs.rows) }

// Row returns row i as a standalone driver row, for testing mappers without
// a connection.
func (rs *RowSet) Row(i int) types.Row {
	return &fakeRow{values: rs.rows[i], metadata: types.NewRowMetadata(rs.columns...)}
}

type rowFailure struct{ err error }

func rowError(vals []any) (error, bool) {
	if len(vals) == 1 {
		if f, ok := vals[0].(rowFailure); ok {
			return f.err, true
		}
	}
	return nil, false
}
