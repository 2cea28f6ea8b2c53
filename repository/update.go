package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/gaborage/go-bricks-data/database/types"
	"github.com/gaborage/go-bricks-data/entity"
	"github.com/gaborage/go-bricks-data/internal/reflection"
	"github.com/gaborage/go-bricks-data/mapper"
	"github.com/gaborage/go-bricks-data/query"
)

// Update writes v. updated is false when no row was affected, meaning the
// entity no longer exists, or when a pre-update hook vetoed the update.
func Update[T any](ctx context.Context, o *Operations, op *query.UpdateOperation[T], v T) (result T, updated bool, err error) {
	if op == nil || op.Entity == nil {
		return v, false, metadataMissing("", "entity metadata")
	}
	e := op.Entity

	v, err = e.Fire(ctx, entity.PreUpdate, v)
	if errors.Is(err, entity.ErrEvicted) {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}

	rows, err := executeEntity(ctx, o, op.Scope, op.Name, op.SQL, e, op.Parameters, v)
	if err != nil || !affected(rows) {
		var zero T
		return zero, false, err
	}

	v, err = e.Fire(ctx, entity.PostUpdate, v)
	if err != nil {
		return v, false, err
	}
	return v, true, nil
}

// Delete removes v and returns the affected row count. The identity must be
// set; a null identity fails with ErrIllegalArgument before any SQL. A
// pre-remove hook returning entity.ErrEvicted vetoes the delete. Post-remove
// hooks run only when a row was deleted.
func Delete[T any](ctx context.Context, o *Operations, op *query.DeleteOperation[T], v T) (int64, error) {
	if op == nil || op.Entity == nil {
		return 0, metadataMissing("", "entity metadata")
	}
	e := op.Entity
	if _, ok := e.IdentityValue(v); !ok {
		return 0, fmt.Errorf("%w: cannot delete %s with a null identity", ErrIllegalArgument, e.Name())
	}

	v, err := e.Fire(ctx, entity.PreRemove, v)
	if errors.Is(err, entity.ErrEvicted) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	rows, err := executeEntity(ctx, o, op.Scope, op.Name, op.SQL, e, op.Parameters, v)
	if err != nil {
		return 0, err
	}
	if affected(rows) {
		if _, err := e.Fire(ctx, entity.PostRemove, v); err != nil {
			return max(rows, 0), err
		}
	}
	return max(rows, 0), nil
}

// ExecuteUpdate runs a row-counting statement and returns the count as N.
// A driver that reports no count yields the zero value.
func ExecuteUpdate[N any](ctx context.Context, o *Operations, q *query.PreparedQuery[N]) (N, error) {
	var zero N
	if q == nil {
		return zero, metadataMissing("", "descriptor")
	}

	var count any
	err := o.run(ctx, q.Scope, true, func(ctx context.Context, conn types.Connection) error {
		stmt, err := o.statement(conn, q.Name, q.SQL)
		if err != nil {
			return err
		}
		if err := o.bindValues(stmt, q.Parameters); err != nil {
			return err
		}
		res, err := stmt.Execute(ctx)
		if err != nil {
			return fmt.Errorf("execute %s: %w", describe(q.Name), err)
		}
		defer res.Close()

		if n := res.RowsUpdated(); n >= 0 {
			count = n
			return nil
		}
		for row, err := range res.Rows() {
			if err != nil {
				return err
			}
			if count, err = row.Get(0); err != nil {
				return &mapper.DataAccessError{Column: "0", Err: err}
			}
			break
		}
		return nil
	})
	if err != nil || count == nil {
		return zero, err
	}
	if n, ok := count.(N); ok {
		return n, nil
	}
	out, err := reflection.Convert(count, reflect.TypeFor[N]())
	if err != nil {
		return zero, &mapper.DataAccessError{Err: fmt.Errorf("row count of %s: %w", describe(q.Name), err)}
	}
	return out.Interface().(N), nil
}

// ExecuteDelete is ExecuteUpdate.
func ExecuteDelete[N any](ctx context.Context, o *Operations, q *query.PreparedQuery[N]) (N, error) {
	return ExecuteUpdate(ctx, o, q)
}

func executeEntity[T any](ctx context.Context, o *Operations, sc query.Scope, name, sql string, e *entity.Entity[T], params []query.Parameter, v T) (int64, error) {
	var rows int64
	err := o.run(ctx, sc, true, func(ctx context.Context, conn types.Connection) error {
		stmt, err := o.statement(conn, name, sql)
		if err != nil {
			return err
		}
		if err := bindEntity(o, stmt, e, params, v); err != nil {
			return err
		}
		res, err := stmt.Execute(ctx)
		if err != nil {
			return fmt.Errorf("execute %s: %w", describe(name), err)
		}
		rows = res.RowsUpdated()
		return res.Close()
	})
	return rows, err
}

// affected treats an unreported count (-1) as affected.
func affected(rows int64) bool { return rows != 0 }
