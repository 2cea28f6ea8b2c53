package sqldb

import (
	"database/sql"
	"iter"

	"github.com/gaborage/go-bricks-data/database/types"
)

// bufferedResult holds a row count and any generated-key rows in memory.
type bufferedResult struct {
	rowsUpdated int64
	metadata    types.RowMetadata
	rows        [][]any
}

func (r *bufferedResult) RowsUpdated() int64 { return r.rowsUpdated }

func (r *bufferedResult) Rows() iter.Seq2[types.Row, error] {
	return func(yield func(types.Row, error) bool) {
		for _, vals := range r.rows {
			if !yield(&row{values: vals, metadata: r.metadata}, nil) {
				return
			}
		}
	}
}

func (r *bufferedResult) Close() error { return nil }

// rowsResult streams a *sql.Rows. The scan buffer is reused between rows.
type rowsResult struct {
	rows     *sql.Rows
	metadata types.RowMetadata
	consumed bool
}

func newRowsResult(rows *sql.Rows) (*rowsResult, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		_ = rows.Close()
		return nil, err
	}
	cols := make([]types.ColumnMetadata, len(colTypes))
	for i, ct := range colTypes {
		cols[i] = types.ColumnMetadata{
			Name:         ct.Name(),
			DatabaseType: ct.DatabaseTypeName(),
			ScanType:     ct.ScanType(),
		}
	}
	return &rowsResult{rows: rows, metadata: types.RowMetadata{Columns: cols}}, nil
}

func (r *rowsResult) RowsUpdated() int64 { return -1 }

func (r *rowsResult) Rows() iter.Seq2[types.Row, error] {
	return func(yield func(types.Row, error) bool) {
		if r.consumed {
			return
		}
		r.consumed = true
		defer r.rows.Close()

		vals := make([]any, len(r.metadata.Columns))
		dest := make([]any, len(vals))
		for i := range vals {
			dest[i] = &vals[i]
		}
		current := &row{values: vals, metadata: r.metadata}

		for r.rows.Next() {
			if err := r.rows.Scan(dest...); err != nil {
				yield(nil, err)
				return
			}
			if !yield(current, nil) {
				return
			}
		}
		if err := r.rows.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func (r *rowsResult) Close() error { return r.rows.Close() }

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
