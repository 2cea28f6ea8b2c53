// Package query holds the immutable descriptors that repository verbs execute:
// SQL text, ordered parameter bindings, result kind, join-fetch paths and
// transaction attributes.
package query

import (
	"reflect"

	"github.com/gaborage/go-bricks-data/database/dialect"
	"github.com/gaborage/go-bricks-data/entity"
	"github.com/gaborage/go-bricks-data/transaction"
)

// Kind is how result rows are turned into values.
type Kind int

const (
	// KindEntity maps rows with the entity mapper and fires post-load hooks.
	KindEntity Kind = iota
	// KindDTO maps rows by column name without lifecycle hooks.
	KindDTO
	// KindScalar converts column 0 of each row.
	KindScalar
)

func (k Kind) String() string {
	switch k {
	case KindEntity:
		return "entity"
	case KindDTO:
		return "dto"
	case KindScalar:
		return "scalar"
	default:
		return "unknown"
	}
}

// Parameter is one positional binding. Query parameters carry a Value;
// entity operations carry a property Path resolved against the entity.
// Type is the declared type used when binding NULL.
type Parameter struct {
	Name  string
	Value any
	Type  reflect.Type
	Path  string
}

// Param returns a value parameter typed after value.
func Param(name string, value any) Parameter {
	p := Parameter{Name: name, Value: value}
	if value != nil {
		p.Type = reflect.TypeOf(value)
	}
	return p
}

// NullParam returns a NULL parameter of the given declared type.
func NullParam(name string, typ reflect.Type) Parameter {
	return Parameter{Name: name, Type: typ}
}

// PathParam returns a parameter bound from an entity property path.
func PathParam(path string) Parameter {
	return Parameter{Name: path, Path: path}
}

// Scope carries the transaction attributes shared by every descriptor.
// A nil Definition means the operation is not flagged transactional. A
// non-nil Status is an explicit transaction the operation must join.
type Scope struct {
	Definition *transaction.Definition
	Status     *transaction.Status
}

// PreparedQuery is a row-producing or row-counting statement with result
// type R.
type PreparedQuery[R any] struct {
	Scope
	Name       string
	SQL        string
	Parameters []Parameter
	Kind       Kind
	// Entity describes R for KindEntity and KindDTO.
	Entity    *entity.Entity[R]
	JoinPaths []string
}

// StoredInsert inserts entities of type T.
type StoredInsert[T any] struct {
	Scope
	Name       string
	SQL        string
	Parameters []Parameter
	Entity     *entity.Entity[T]
	// GeneratedID is set when the database generates the identity.
	GeneratedID bool
	Dialect     dialect.Dialect
}

// IdentityColumn is the column read back as the generated identity.
func (s *StoredInsert[T]) IdentityColumn() string {
	if id := s.Entity.Metadata().Identity(); id != nil {
		return id.Column
	}
	return ""
}

// SupportsBatch reports whether a batch runs as one execution.
func (s *StoredInsert[T]) SupportsBatch() bool {
	return s.Dialect.SupportsBatch(s.GeneratedID)
}

// UpdateOperation updates one entity; parameters are property paths.
type UpdateOperation[T any] struct {
	Scope
	Name       string
	SQL        string
	Parameters []Parameter
	Entity     *entity.Entity[T]
}

// DeleteOperation deletes one entity; parameters are property paths,
// usually just the identity.
type DeleteOperation[T any] struct {
	Scope
	Name       string
	SQL        string
	Parameters []Parameter
	Entity     *entity.Entity[T]
}
