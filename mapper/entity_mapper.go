package mapper

import (
	"context"
	"fmt"
	"reflect"

	"github.com/gaborage/go-bricks-data/database/types"
	"github.com/gaborage/go-bricks-data/entity"
	"github.com/gaborage/go-bricks-data/internal/reflection"
)

// EntityMapper builds entities of type T from result rows.
//
// Simple properties are read from their column; columns missing from the
// result are left at their zero value. Associations named in the join paths
// are built from columns carrying the association prefix ("author_name"),
// and nested joins concatenate prefixes. Other associations become a stub
// holding only the foreign key, or stay nil when the key is NULL.
type EntityMapper[T any] struct {
	entity *entity.Entity[T]
	reader *Reader
	joins  map[string]struct{}
}

// NewEntityMapper returns a mapper for e. joinPaths are dotted association
// paths such as "author" or "author.publisher".
func NewEntityMapper[T any](e *entity.Entity[T], reader *Reader, joinPaths ...string) *EntityMapper[T] {
	if reader == nil {
		reader = NewReader()
	}
	joins := make(map[string]struct{}, len(joinPaths))
	for _, p := range joinPaths {
		joins[p] = struct{}{}
	}
	return &EntityMapper[T]{entity: e, reader: reader, joins: joins}
}

// Map reads one row into a new T and runs the post-load hooks.
func (m *EntityMapper[T]) Map(ctx context.Context, row types.Row) (T, error) {
	v := m.entity.Instantiate()
	rv := reflect.ValueOf(&v).Elem()
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}

	if _, err := m.fill(rv, m.entity.Metadata(), row, "", ""); err != nil {
		var zero T
		return zero, err
	}

	if m.entity.Has(entity.PostLoad) {
		return m.entity.Fire(ctx, entity.PostLoad, v)
	}
	return v, nil
}

// fill sets the properties of sv from row and reports whether any mapped
// column was non-null.
func (m *EntityMapper[T]) fill(sv reflect.Value, meta *entity.Metadata, row types.Row, prefix, path string) (bool, error) {
	rowMeta := row.Metadata()
	present := false

	for _, p := range meta.Properties {
		field := sv.FieldByIndex(p.Index)

		if p.Association != nil {
			set, err := m.association(field, p, row, prefix, path)
			if err != nil {
				return false, err
			}
			present = present || set
			continue
		}

		column := prefix + p.Column
		idx := rowMeta.IndexOf(column)
		if idx < 0 {
			continue
		}
		raw, err := row.Get(idx)
		if err != nil {
			return false, &DataAccessError{Column: column, Err: err}
		}
		if raw != nil {
			present = true
		}
		converted, err := reflection.Convert(raw, p.Type)
		if err != nil {
			return false, &DataAccessError{Column: column, Err: fmt.Errorf("property %s: %w", p.Name, err)}
		}
		field.Set(converted)
	}
	return present, nil
}

func (m *EntityMapper[T]) association(field reflect.Value, p *entity.Property, row types.Row, prefix, path string) (bool, error) {
	assocPath := p.Association.Path
	if path != "" {
		assocPath = path + "." + assocPath
	}
	target := p.Association.Target
	structType := reflection.Indirect(p.Type)

	if _, joined := m.joins[assocPath]; joined {
		nested := reflect.New(structType).Elem()
		set, err := m.fill(nested, target, row, prefix+p.Association.Prefix, assocPath)
		if err != nil || !set {
			return false, err
		}
		assign(field, nested)
		return true, nil
	}

	column := prefix + p.Column
	idx := row.Metadata().IndexOf(column)
	if idx < 0 {
		return false, nil
	}
	raw, err := row.Get(idx)
	if err != nil {
		return false, &DataAccessError{Column: column, Err: err}
	}
	if raw == nil {
		return false, nil
	}

	id := target.Identity()
	converted, err := reflection.Convert(raw, id.Type)
	if err != nil {
		return false, &DataAccessError{Column: column, Err: fmt.Errorf("foreign key %s: %w", p.Name, err)}
	}
	stub := reflect.New(structType).Elem()
	stub.FieldByIndex(id.Index).Set(converted)
	assign(field, stub)
	return true, nil
}

func assign(field, value reflect.Value) {
	if field.Kind() == reflect.Pointer {
		ptr := reflect.New(value.Type())
		ptr.Elem().Set(value)
		field.Set(ptr)
		return
	}
	field.Set(value)
}
