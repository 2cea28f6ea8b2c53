package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"time"

	"github.com/gaborage/go-bricks-data/database/dialect"
	"github.com/gaborage/go-bricks-data/database/types"
)

// Statement implements types.Statement. Several binding sets are executed
// through one prepared statement.
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

// BindNull binds a typed NULL so drivers that infer parameter types see the
// declared type rather than an untyped nil.
func (s *Statement) BindNull(index int, typ reflect.Type) error {
	return s.Bind(index, typedNull(typ))
}

func typedNull(typ reflect.Type) any {
	if typ == nil {
		return nil
	}
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ == reflect.TypeOf(time.Time{}) {
		return sql.NullTime{}
	}
	switch typ.Kind() {
	case reflect.String:
		return sql.NullString{}
	case reflect.Bool:
		return sql.NullBool{}
	case reflect.Int8, reflect.Uint8, reflect.Int16:
		return sql.NullInt16{}
	case reflect.Int32, reflect.Uint16:
		return sql.NullInt32{}
	case reflect.Int, reflect.Int64, reflect.Uint32, reflect.Uint, reflect.Uint64:
		return sql.NullInt64{}
	case reflect.Float32, reflect.Float64:
		return sql.NullFloat64{}
	default:
		return nil
	}
}

func (s *Statement) Add() error {
	s.bindings = append(s.bindings, nil)
	return nil
}

func (s *Statement) ReturnGeneratedValues(columns ...string) {
	s.returning = columns
}

// sets drops a trailing empty binding set left by a final Add.
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
	if len(s.returning) > 0 {
		return s.executeReturning(ctx)
	}

	sets := s.sets()
	ex := s.conn.exec()
	if len(sets) == 1 {
		res, err := ex.ExecContext(ctx, s.sql, sets[0]...)
		if err != nil {
			return nil, err
		}
		return &bufferedResult{rowsUpdated: rowsAffected(res)}, nil
	}

	stmt, err := ex.PrepareContext(ctx, s.sql)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var total int64
	for _, args := range sets {
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return nil, err
		}
		total += max(rowsAffected(res), 0)
	}
	return &bufferedResult{rowsUpdated: total}, nil
}

func (s *Statement) Query(ctx context.Context) (types.Result, error) {
	if s.conn.closed {
		return nil, types.ErrConnectionClosed
	}
	sets := s.sets()
	if len(sets) > 1 {
		return nil, fmt.Errorf("query statements accept a single binding set, got %d", len(sets))
	}
	rows, err := s.conn.exec().QueryContext(ctx, s.sql, sets[0]...)
	if err != nil {
		return nil, err
	}
	return newRowsResult(rows)
}

func (s *Statement) executeReturning(ctx context.Context) (types.Result, error) {
	d := s.conn.dialect
	sets := s.sets()
	paramCount := 0
	for _, set := range sets {
		paramCount = max(paramCount, len(set))
	}

	query, err := d.AppendReturning(s.sql, paramCount+1, s.returning...)
	if err != nil {
		return nil, err
	}

	ex := s.conn.exec()
	stmt, err := ex.PrepareContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	out := &bufferedResult{metadata: types.NewRowMetadata(s.returning...)}
	for _, args := range sets {
		switch d.GeneratedKeys {
		case dialect.KeysReturning:
			err = s.collectReturningRows(ctx, stmt, args, out)
		case dialect.KeysReturningInto:
			err = s.collectOutBinds(ctx, stmt, args, out)
		case dialect.KeysLastInsertID:
			err = s.collectLastInsertID(ctx, stmt, args, out)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Statement) collectReturningRows(ctx context.Context, stmt *sql.Stmt, args []any, out *bufferedResult) error {
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	width := len(s.returning)
	for rows.Next() {
		vals := make([]any, width)
		dest := make([]any, width)
		for i := range vals {
			dest[i] = &vals[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return err
		}
		out.rows = append(out.rows, vals)
		out.rowsUpdated++
	}
	return rows.Err()
}

func (s *Statement) collectOutBinds(ctx context.Context, stmt *sql.Stmt, args []any, out *bufferedResult) error {
	keys := make([]int64, len(s.returning))
	full := append([]any(nil), args...)
	for i := range keys {
		full = append(full, sql.Out{Dest: &keys[i]})
	}
	res, err := stmt.ExecContext(ctx, full...)
	if err != nil {
		return err
	}
	vals := make([]any, len(keys))
	for i, k := range keys {
		vals[i] = k
	}
	out.rows = append(out.rows, vals)
	out.rowsUpdated += max(rowsAffected(res), 1)
	return nil
}

func (s *Statement) collectLastInsertID(ctx context.Context, stmt *sql.Stmt, args []any, out *bufferedResult) error {
	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read generated key: %w", err)
	}
	affected := max(rowsAffected(res), 1)
	// multi-row inserts report the first id; the rest are consecutive
	for i := range affected {
		vals := make([]any, len(s.returning))
		vals[0] = id + i
		out.rows = append(out.rows, vals)
	}
	out.rowsUpdated += affected
	return nil
}

func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return -1
	}
	return n
}
