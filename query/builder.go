package query

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/gaborage/go-bricks-data/database/dialect"
	"github.com/gaborage/go-bricks-data/database/types"
	"github.com/gaborage/go-bricks-data/entity"
)

// Builder derives descriptors for the standard entity operations. SQL uses
// the vendor's placeholder syntax and Oracle reserved-word quoting.
type Builder struct {
	dialect          dialect.Dialect
	statementBuilder squirrel.StatementBuilderType
}

// Join names the table of a join-fetched association path.
type Join struct {
	Path  string
	Table string
}

// NewBuilder returns a builder for vendor.
func NewBuilder(vendor types.Vendor) *Builder {
	d := dialect.For(vendor)
	return &Builder{
		dialect:          d,
		statementBuilder: squirrel.StatementBuilder.PlaceholderFormat(d.Placeholder),
	}
}

func (b *Builder) Dialect() dialect.Dialect { return b.dialect }

func (b *Builder) quote(name string) string { return b.dialect.QuoteIdentifier(name) }

func (b *Builder) quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = b.quote(n)
	}
	return out
}

// Insert builds the insert of e. A generated identity is left out of the
// column list and read back after execution.
func Insert[T any](b *Builder, e *entity.Entity[T]) (*StoredInsert[T], error) {
	var (
		columns   []string
		params    []Parameter
		generated bool
	)
	for _, p := range e.Metadata().Properties {
		if p.Identity && p.Generated {
			generated = true
			continue
		}
		columns = append(columns, p.Column)
		params = append(params, PathParam(p.Name))
	}

	sql, _, err := b.statementBuilder.
		Insert(b.quote(e.Table())).
		Columns(b.quoteAll(columns)...).
		Values(make([]any, len(columns))...).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert for %s: %w", e.Name(), err)
	}
	return &StoredInsert[T]{
		Name:        "insert" + e.Name(),
		SQL:         sql,
		Parameters:  params,
		Entity:      e,
		GeneratedID: generated,
		Dialect:     b.dialect,
	}, nil
}

// Update builds "UPDATE ... SET <every other column> WHERE <identity> = ?".
func Update[T any](b *Builder, e *entity.Entity[T]) (*UpdateOperation[T], error) {
	id, err := requireIdentity(e)
	if err != nil {
		return nil, err
	}

	ub := b.statementBuilder.Update(b.quote(e.Table()))
	var params []Parameter
	for _, p := range e.Metadata().Properties {
		if p.Identity {
			continue
		}
		ub = ub.Set(b.quote(p.Column), nil)
		params = append(params, PathParam(p.Name))
	}
	if len(params) == 0 {
		return nil, fmt.Errorf("entity %s has no updatable properties", e.Name())
	}

	sql, _, err := ub.Where(b.quote(id.Column)+" = ?", nil).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update for %s: %w", e.Name(), err)
	}
	return &UpdateOperation[T]{
		Name:       "update" + e.Name(),
		SQL:        sql,
		Parameters: append(params, PathParam(id.Name)),
		Entity:     e,
	}, nil
}

// Delete builds "DELETE FROM ... WHERE <identity> = ?".
func Delete[T any](b *Builder, e *entity.Entity[T]) (*DeleteOperation[T], error) {
	id, err := requireIdentity(e)
	if err != nil {
		return nil, err
	}
	sql, _, err := b.statementBuilder.
		Delete(b.quote(e.Table())).
		Where(b.quote(id.Column)+" = ?", nil).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build delete for %s: %w", e.Name(), err)
	}
	return &DeleteOperation[T]{
		Name:       "delete" + e.Name(),
		SQL:        sql,
		Parameters: []Parameter{PathParam(id.Name)},
		Entity:     e,
	}, nil
}

// FindAll selects every row of e, left joining the given associations.
func FindAll[T any](b *Builder, e *entity.Entity[T], joins ...Join) (*PreparedQuery[T], error) {
	sb, paths, err := selectEntity(b, e, joins)
	if err != nil {
		return nil, err
	}
	sql, _, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find all for %s: %w", e.Name(), err)
	}
	return &PreparedQuery[T]{
		Name:      "findAll" + e.Name(),
		SQL:       sql,
		Kind:      KindEntity,
		Entity:    e,
		JoinPaths: paths,
	}, nil
}

// FindByID selects the row of e whose identity is id.
func FindByID[T any](b *Builder, e *entity.Entity[T], id any, joins ...Join) (*PreparedQuery[T], error) {
	idProp, err := requireIdentity(e)
	if err != nil {
		return nil, err
	}
	sb, paths, err := selectEntity(b, e, joins)
	if err != nil {
		return nil, err
	}
	sql, _, err := sb.Where(b.quote(e.Table())+"."+b.quote(idProp.Column)+" = ?", nil).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find by id for %s: %w", e.Name(), err)
	}
	return &PreparedQuery[T]{
		Name:       "findById" + e.Name(),
		SQL:        sql,
		Parameters: []Parameter{{Name: idProp.Name, Value: id, Type: idProp.Type}},
		Kind:       KindEntity,
		Entity:     e,
		JoinPaths:  paths,
	}, nil
}

// ExistsByID selects a constant for the row of e whose identity is id.
func ExistsByID[T any](b *Builder, e *entity.Entity[T], id any) (*PreparedQuery[int64], error) {
	idProp, err := requireIdentity(e)
	if err != nil {
		return nil, err
	}
	sql, _, err := b.statementBuilder.
		Select("1").
		From(b.quote(e.Table())).
		Where(b.quote(idProp.Column)+" = ?", nil).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build exists for %s: %w", e.Name(), err)
	}
	return &PreparedQuery[int64]{
		Name:       "existsById" + e.Name(),
		SQL:        sql,
		Parameters: []Parameter{{Name: idProp.Name, Value: id, Type: idProp.Type}},
		Kind:       KindScalar,
	}, nil
}

// Count counts the rows of e.
func Count[T any](b *Builder, e *entity.Entity[T]) (*PreparedQuery[int64], error) {
	sql, _, err := b.statementBuilder.Select("COUNT(*)").From(b.quote(e.Table())).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build count for %s: %w", e.Name(), err)
	}
	return &PreparedQuery[int64]{Name: "count" + e.Name(), SQL: sql, Kind: KindScalar}, nil
}

// selectEntity builds the select list of e plus one LEFT JOIN per join.
// Joined columns are aliased "<path>_<column>" with dots replaced by
// underscores, matching what the entity mapper reads.
func selectEntity[T any](b *Builder, e *entity.Entity[T], joins []Join) (squirrel.SelectBuilder, []string, error) {
	table := b.quote(e.Table())

	columns := qualified(b, table, e.Metadata(), "")
	sb := b.statementBuilder.Select().From(table)

	paths := make([]string, 0, len(joins))
	for _, j := range joins {
		chain, err := associationChain(e.Metadata(), j.Path)
		if err != nil {
			return sb, nil, err
		}
		last := chain[len(chain)-1]
		parentAlias := table
		if len(chain) > 1 {
			parentAlias = alias(strings.Join(pathNames(chain[:len(chain)-1]), "."))
		}
		joinAlias := alias(j.Path)
		target := last.Association.Target

		sb = sb.LeftJoin(fmt.Sprintf("%s %s ON %s.%s = %s.%s",
			b.quote(j.Table), joinAlias,
			parentAlias, b.quote(last.Column),
			joinAlias, b.quote(target.Identity().Column)))
		columns = append(columns, qualified(b, joinAlias, target, joinAlias+"_")...)
		paths = append(paths, j.Path)
	}
	return sb.Columns(columns...), paths, nil
}

func qualified(b *Builder, tableAlias string, meta *entity.Metadata, prefix string) []string {
	cols := make([]string, 0, len(meta.Properties))
	for _, p := range meta.Properties {
		col := tableAlias + "." + b.quote(p.Column)
		if prefix != "" {
			col += " AS " + prefix + p.Column
		}
		cols = append(cols, col)
	}
	return cols
}

// associationChain resolves a dotted association path to the properties it
// crosses, each of which must be an association.
func associationChain(meta *entity.Metadata, path string) ([]*entity.Property, error) {
	var chain []*entity.Property
	current := meta
	for _, name := range strings.Split(path, ".") {
		var found *entity.Property
		for _, p := range current.Properties {
			if p.Association != nil && p.Association.Path == name {
				found = p
				break
			}
		}
		if found == nil {
			return nil, fmt.Errorf("no association %q on %s in join path %q", name, current.Type.Name(), path)
		}
		chain = append(chain, found)
		current = found.Association.Target
	}
	return chain, nil
}

func pathNames(chain []*entity.Property) []string {
	names := make([]string, len(chain))
	for i, p := range chain {
		names[i] = p.Association.Path
	}
	return names
}

func alias(path string) string { return strings.ReplaceAll(path, ".", "_") }

func requireIdentity[T any](e *entity.Entity[T]) (*entity.Property, error) {
	id := e.Metadata().Identity()
	if id == nil {
		return nil, fmt.Errorf("entity %s declares no identity", e.Name())
	}
	return id, nil
}

// Scalar returns a scalar query of result type R.
func Scalar[R any](sql string, params ...Parameter) *PreparedQuery[R] {
	return &PreparedQuery[R]{SQL: sql, Parameters: params, Kind: KindScalar}
}

// Entities returns an entity query over e.
func Entities[T any](e *entity.Entity[T], sql string, params ...Parameter) *PreparedQuery[T] {
	return &PreparedQuery[T]{Name: e.Name(), SQL: sql, Parameters: params, Kind: KindEntity, Entity: e}
}

// DTOs returns a query mapping rows onto R by column name. R is described by
// its db tags like an entity but needs no table or identity.
func DTOs[R any](sql string, params ...Parameter) (*PreparedQuery[R], error) {
	e, err := entity.New[R]("")
	if err != nil {
		return nil, fmt.Errorf("dto %s: %w", reflect.TypeFor[R](), err)
	}
	return &PreparedQuery[R]{Name: e.Name(), SQL: sql, Parameters: params, Kind: KindDTO, Entity: e}, nil
}
