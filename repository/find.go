package repository

import (
	"context"
	"iter"
	"reflect"

	"github.com/gaborage/go-bricks-data/database/types"
	"github.com/gaborage/go-bricks-data/internal/reflection"
	"github.com/gaborage/go-bricks-data/mapper"
	"github.com/gaborage/go-bricks-data/query"
)

// Optional is a value that may be absent.
type Optional[T any] struct {
	Value   T
	Present bool
}

// rowFunc maps one row. ok is false for rows filtered out of the result.
type rowFunc[R any] func(ctx context.Context, row types.Row) (v R, ok bool, err error)

// FindOne returns the first mapped row of q. Zero rows is not an error:
// found is false.
func FindOne[R any](ctx context.Context, o *Operations, q *query.PreparedQuery[R]) (result R, found bool, err error) {
	mapRow, err := rowMapper(o, q)
	if err != nil {
		return result, false, err
	}
	err = o.run(ctx, q.Scope, false, func(ctx context.Context, conn types.Connection) error {
		for v, err := range mappedRows(ctx, o, conn, q, mapRow) {
			if err != nil {
				return err
			}
			result, found = v, true
			break
		}
		return nil
	})
	if err != nil {
		var zero R
		return zero, false, err
	}
	return result, found, nil
}

// FindOptional is FindOne returning an Optional.
func FindOptional[R any](ctx context.Context, o *Operations, q *query.PreparedQuery[R]) (Optional[R], error) {
	v, ok, err := FindOne(ctx, o, q)
	return Optional[R]{Value: v, Present: ok}, err
}

// FindAll streams the mapped rows of q. The scope is held while the range
// loop runs; ranging again re-executes the query.
func FindAll[R any](ctx context.Context, o *Operations, q *query.PreparedQuery[R]) iter.Seq2[R, error] {
	mapRow, err := rowMapper(o, q)
	if err != nil {
		return func(yield func(R, error) bool) {
			var zero R
			yield(zero, err)
		}
	}
	return stream(ctx, o, q.Scope, func(ctx context.Context, conn types.Connection) iter.Seq2[R, error] {
		return mappedRows(ctx, o, conn, q, mapRow)
	})
}

// FindStream is FindAll.
func FindStream[R any](ctx context.Context, o *Operations, q *query.PreparedQuery[R]) iter.Seq2[R, error] {
	return FindAll(ctx, o, q)
}

// Exists reports whether q returns at least one row. Rows are not mapped.
func Exists[R any](ctx context.Context, o *Operations, q *query.PreparedQuery[R]) (bool, error) {
	if q == nil {
		return false, metadataMissing("", "descriptor")
	}
	var exists bool
	err := o.run(ctx, q.Scope, false, func(ctx context.Context, conn types.Connection) error {
		res, err := o.runQuery(ctx, conn, q.Name, q.SQL, q.Parameters)
		if err != nil {
			return err
		}
		defer res.Close()
		for _, err := range res.Rows() {
			if err != nil {
				return err
			}
			exists = true
			break
		}
		return nil
	})
	return exists && err == nil, err
}

func mappedRows[R any](ctx context.Context, o *Operations, conn types.Connection, q *query.PreparedQuery[R], mapRow rowFunc[R]) iter.Seq2[R, error] {
	return func(yield func(R, error) bool) {
		var zero R
		res, err := o.runQuery(ctx, conn, q.Name, q.SQL, q.Parameters)
		if err != nil {
			yield(zero, err)
			return
		}
		defer res.Close()

		for row, err := range res.Rows() {
			if err != nil {
				yield(zero, err)
				return
			}
			v, ok, err := mapRow(ctx, row)
			if err != nil {
				yield(zero, err)
				return
			}
			if !ok {
				continue
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// rowMapper picks the mapping of q's result kind. Entities and DTOs go
// through the entity mapper; scalars convert column 0, and rows whose value
// is NULL or does not convert are filtered out.
func rowMapper[R any](o *Operations, q *query.PreparedQuery[R]) (rowFunc[R], error) {
	if q == nil {
		return nil, metadataMissing("", "descriptor")
	}

	switch q.Kind {
	case query.KindEntity, query.KindDTO:
		if q.Entity == nil {
			return nil, metadataMissing(q.Name, "entity metadata")
		}
		m := mapper.NewEntityMapper(q.Entity, o.reader, q.JoinPaths...)
		return func(ctx context.Context, row types.Row) (R, bool, error) {
			v, err := m.Map(ctx, row)
			return v, err == nil, err
		}, nil
	default:
		target := reflect.TypeFor[R]()
		return func(_ context.Context, row types.Row) (R, bool, error) {
			var zero R
			raw, err := row.Get(0)
			if err != nil {
				return zero, false, &mapper.DataAccessError{Column: "0", Err: err}
			}
			if raw == nil {
				return zero, false, nil
			}
			if v, ok := raw.(R); ok {
				return v, true, nil
			}
			out, err := reflection.Convert(raw, target)
			if err != nil {
				o.log.Debug().Err(err).Str("query", q.Name).Msg("Skipping row with unconvertible scalar value")
				return zero, false, nil
			}
			return out.Interface().(R), true, nil
		}, nil
	}
}
