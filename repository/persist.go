package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/gaborage/go-bricks-data/database/dialect"
	"github.com/gaborage/go-bricks-data/database/types"
	"github.com/gaborage/go-bricks-data/entity"
	"github.com/gaborage/go-bricks-data/mapper"
	"github.com/gaborage/go-bricks-data/query"
)

// Persist inserts v. A pre-persist hook returning entity.ErrEvicted vetoes
// the insert: no SQL runs and persisted is false. A generated identity is
// read back and set on the returned entity.
func Persist[T any](ctx context.Context, o *Operations, ins *query.StoredInsert[T], v T) (result T, persisted bool, err error) {
	if ins == nil || ins.Entity == nil {
		return v, false, metadataMissing(nameOf(ins), "entity metadata")
	}
	e := ins.Entity

	v, err = e.Fire(ctx, entity.PrePersist, v)
	if errors.Is(err, entity.ErrEvicted) {
		return v, false, nil
	}
	if err != nil {
		return v, false, err
	}

	batch := []T{v}
	err = o.run(ctx, ins.Scope, true, func(ctx context.Context, conn types.Connection) error {
		return insertBatch(ctx, o, conn, ins, batch)
	})
	v = batch[0]
	if err != nil {
		return v, false, err
	}

	v, err = e.Fire(ctx, entity.PostPersist, v)
	if err != nil {
		return v, false, err
	}
	return v, true, nil
}

// PersistAll inserts values in one scope, preserving order. Entities vetoed
// by a pre-persist hook are left out of the result. When the dialect can
// return generated keys for a batch, all binding sets run as one execution;
// otherwise each entity runs on its own.
func PersistAll[T any](ctx context.Context, o *Operations, ins *query.StoredInsert[T], values []T) ([]T, error) {
	if ins == nil || ins.Entity == nil {
		return nil, metadataMissing(nameOf(ins), "entity metadata")
	}
	e := ins.Entity

	batch := make([]T, 0, len(values))
	for _, v := range values {
		v, err := e.Fire(ctx, entity.PrePersist, v)
		if errors.Is(err, entity.ErrEvicted) {
			continue
		}
		if err != nil {
			return nil, err
		}
		batch = append(batch, v)
	}
	if len(batch) == 0 {
		return batch, nil
	}

	d := o.dialectOf(ins.Dialect)
	err := o.run(ctx, ins.Scope, true, func(ctx context.Context, conn types.Connection) error {
		if d.SupportsBatch(ins.GeneratedID) {
			return insertBatch(ctx, o, conn, ins, batch)
		}
		for i := range batch {
			if err := insertBatch(ctx, o, conn, ins, batch[i:i+1]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, v := range batch {
		if batch[i], err = e.Fire(ctx, entity.PostPersist, v); err != nil {
			return nil, err
		}
	}
	return batch, nil
}

// insertBatch runs one execution with a binding set per entity and stores
// the generated keys back into batch.
func insertBatch[T any](ctx context.Context, o *Operations, conn types.Connection, ins *query.StoredInsert[T], batch []T) error {
	e := ins.Entity
	stmt, err := o.statement(conn, ins.Name, ins.SQL)
	if err != nil {
		return err
	}
	if ins.GeneratedID {
		stmt.ReturnGeneratedValues(ins.IdentityColumn())
	}
	for i, v := range batch {
		if i > 0 {
			if err := stmt.Add(); err != nil {
				return fmt.Errorf("add binding set: %w", err)
			}
		}
		if err := bindEntity(o, stmt, e, ins.Parameters, v); err != nil {
			return err
		}
	}

	res, err := stmt.Execute(ctx)
	if err != nil {
		return fmt.Errorf("execute %s: %w", describe(ins.Name), err)
	}
	defer res.Close()

	if !ins.GeneratedID {
		return nil
	}
	keys, err := generatedKeys(res, len(batch))
	if err != nil {
		return err
	}
	for i, key := range keys {
		if batch[i], err = e.WithIdentity(batch[i], key); err != nil {
			return err
		}
	}
	return nil
}

// generatedKeys reads column 0 of the first n result rows.
func generatedKeys(res types.Result, n int) ([]any, error) {
	keys := make([]any, 0, n)
	for row, err := range res.Rows() {
		if err != nil {
			return nil, err
		}
		key, err := row.Get(0)
		if err != nil {
			return nil, &mapper.DataAccessError{Column: "0", Err: err}
		}
		keys = append(keys, key)
		if len(keys) == n {
			break
		}
	}
	if len(keys) < n {
		return nil, &mapper.DataAccessError{Err: fmt.Errorf("expected %d generated keys, driver returned %d", n, len(keys))}
	}
	return keys, nil
}

func bindEntity[T any](o *Operations, stmt types.Statement, e *entity.Entity[T], params []query.Parameter, v T) error {
	for i, p := range params {
		if p.Path == "" {
			if err := o.binder.Bind(stmt, i, p.Value, p.Type); err != nil {
				return fmt.Errorf("parameter %s: %w", p.Name, err)
			}
			continue
		}
		value, typ, err := e.PathValue(v, p.Path)
		if err != nil {
			return &mapper.DataAccessError{Err: fmt.Errorf("parameter %s: %w", p.Name, err)}
		}
		if err := o.binder.Bind(stmt, i, value, typ); err != nil {
			return fmt.Errorf("parameter %s: %w", p.Name, err)
		}
	}
	return nil
}

// dialectOf prefers the dialect recorded on the descriptor.
func (o *Operations) dialectOf(d dialect.Dialect) dialect.Dialect {
	if d.Vendor == "" {
		return o.dialect
	}
	return d
}

func nameOf[T any](ins *query.StoredInsert[T]) string {
	if ins == nil {
		return ""
	}
	return ins.Name
}
