// Package entity describes persistent types: their columns, identity, to-one
// associations and lifecycle hooks.
//
// Columns come from `db` struct tags:
//
//	type Book struct {
//	    ID     int64   `db:"id,id,generated"`
//	    Title  string  `db:"title"`
//	    Author *Author `db:"author_id,join=author"`
//	}
//
// The join option names the fetch path of an association; when the path is
// fetched, the associated columns are read with the "author_" prefix.
package entity

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/gaborage/go-bricks-data/internal/reflection"
)

// ErrEvicted is returned by a pre-event hook to veto the operation.
var ErrEvicted = errors.New("entity: evicted by listener")

// Event identifies a lifecycle hook point.
type Event int

const (
	PrePersist Event = iota
	PostPersist
	PreUpdate
	PostUpdate
	PreRemove
	PostRemove
	PostLoad
)

var eventNames = [...]string{"PrePersist", "PostPersist", "PreUpdate", "PostUpdate", "PreRemove", "PostRemove", "PostLoad"}

func (e Event) String() string {
	if e < 0 || int(e) >= len(eventNames) {
		return fmt.Sprintf("Event(%d)", int(e))
	}
	return eventNames[e]
}

// Hook observes or replaces an entity at a lifecycle event.
type Hook[T any] func(ctx context.Context, entity T) (T, error)

// IdentityAssignment is how a generated key reaches the entity.
type IdentityAssignment int

const (
	// IdentityMutable sets the key on the instance in place (pointer entities).
	IdentityMutable IdentityAssignment = iota + 1
	// IdentityCopy returns a copy carrying the key (value entities).
	IdentityCopy
)

func (a IdentityAssignment) String() string {
	switch a {
	case IdentityMutable:
		return "mutable"
	case IdentityCopy:
		return "copy"
	default:
		return "unknown"
	}
}

// Entity binds parsed metadata to a Go type T, which is either a struct or a
// pointer to a struct. Hooks are registered at startup with On; an Entity is
// safe for concurrent use once registration is done.
type Entity[T any] struct {
	table      string
	meta       *Metadata
	pointer    bool
	assignment IdentityAssignment
	hooks      map[Event][]Hook[T]
}

// New parses T and binds it to table.
func New[T any](table string) (*Entity[T], error) {
	t := reflect.TypeFor[T]()
	pointer := t.Kind() == reflect.Pointer
	if pointer && t.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("entity type must be a struct or pointer to struct, got %s", t)
	}
	meta, err := Parse(t)
	if err != nil {
		return nil, err
	}

	assignment := IdentityCopy
	if pointer {
		assignment = IdentityMutable
	}
	return &Entity[T]{
		table:      table,
		meta:       meta,
		pointer:    pointer,
		assignment: assignment,
		hooks:      map[Event][]Hook[T]{},
	}, nil
}

// MustNew is New that panics on invalid definitions.
func MustNew[T any](table string) *Entity[T] {
	e, err := New[T](table)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Entity[T]) Table() string { return e.table }

func (e *Entity[T]) Metadata() *Metadata { return e.meta }

func (e *Entity[T]) Name() string { return reflection.GetTypeNameShort(e.meta.Type) }

func (e *Entity[T]) Assignment() IdentityAssignment { return e.assignment }

// On registers hook for event. Hooks run in registration order.
func (e *Entity[T]) On(event Event, hook Hook[T]) *Entity[T] {
	e.hooks[event] = append(e.hooks[event], hook)
	return e
}

// Has reports whether any hook is registered for event.
func (e *Entity[T]) Has(event Event) bool { return len(e.hooks[event]) > 0 }

// Fire runs the hooks of event, threading the entity through each. The first
// error stops the chain.
func (e *Entity[T]) Fire(ctx context.Context, event Event, v T) (T, error) {
	for _, hook := range e.hooks[event] {
		var err error
		if v, err = hook(ctx, v); err != nil {
			return v, err
		}
	}
	return v, nil
}

// Instantiate returns a new empty instance.
func (e *Entity[T]) Instantiate() T {
	if e.pointer {
		return reflect.New(e.meta.Type).Interface().(T)
	}
	var zero T
	return zero
}

// structValue returns the struct behind v, invalid for a nil pointer.
func (e *Entity[T]) structValue(v T) reflect.Value {
	rv := reflect.ValueOf(&v).Elem()
	if e.pointer {
		if rv.IsNil() {
			return reflect.Value{}
		}
		return rv.Elem()
	}
	return rv
}

// IdentityValue returns the identity of v. ok is false when the entity has no
// identity or the identity is null: a nil pointer or a zero value.
func (e *Entity[T]) IdentityValue(v T) (id any, ok bool) {
	p := e.meta.identity
	if p == nil {
		return nil, false
	}
	return fieldValue(e.structValue(v), p)
}

// WithIdentity stores id as the identity of v, converting it to the property
// type. Mutable entities are updated in place; value entities are copied.
func (e *Entity[T]) WithIdentity(v T, id any) (T, error) {
	p := e.meta.identity
	if p == nil {
		return v, fmt.Errorf("entity %s declares no identity", e.Name())
	}
	converted, err := reflection.Convert(id, p.Type)
	if err != nil {
		return v, fmt.Errorf("assign identity of %s: %w", e.Name(), err)
	}

	sv := e.structValue(v)
	if !sv.IsValid() {
		return v, fmt.Errorf("assign identity of %s: nil entity", e.Name())
	}
	sv.FieldByIndex(p.Index).Set(converted)

	if e.assignment == IdentityMutable {
		return v, nil
	}
	return sv.Interface().(T), nil
}

// PathValue resolves a dotted property path on v and returns its value and
// declared type. An association resolves to its foreign key.
func (e *Entity[T]) PathValue(v T, path string) (any, reflect.Type, error) {
	chain, err := e.meta.PropertyPath(path)
	if err != nil {
		return nil, nil, err
	}

	sv := e.structValue(v)
	for i, p := range chain {
		last := i == len(chain)-1
		if last {
			val, _ := fieldValue(sv, p)
			return val, propertyType(p), nil
		}
		if !sv.IsValid() {
			continue
		}
		f := sv.FieldByIndex(p.Index)
		if f.Kind() == reflect.Pointer {
			if f.IsNil() {
				sv = reflect.Value{}
				continue
			}
			f = f.Elem()
		}
		sv = f
	}
	return nil, nil, fmt.Errorf("property path %q is empty", path)
}

// propertyType is the bound type: the target identity type for associations.
func propertyType(p *Property) reflect.Type {
	if p.Association != nil {
		return p.Association.Target.identity.Type
	}
	return p.Type
}

// fieldValue reads p from struct sv. Associations yield their target's identity.
func fieldValue(sv reflect.Value, p *Property) (any, bool) {
	if !sv.IsValid() {
		return nil, false
	}
	f := sv.FieldByIndex(p.Index)
	if p.Association != nil {
		if f.Kind() == reflect.Pointer {
			if f.IsNil() {
				return nil, false
			}
			f = f.Elem()
		}
		return fieldValue(f, p.Association.Target.identity)
	}
	if f.IsZero() {
		if f.Kind() == reflect.Pointer || f.Kind() == reflect.Interface || f.Kind() == reflect.Slice || f.Kind() == reflect.Map {
			return nil, false
		}
		return f.Interface(), false
	}
	return f.Interface(), true
}
