package entity

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gaborage/go-bricks-data/internal/reflection"
)

// Property describes one persisted struct field.
type Property struct {
	// Name is the Go field name.
	Name string
	// Column is the column name from the db tag.
	Column string
	Type   reflect.Type
	Index  []int

	Identity  bool
	Generated bool

	// Association is set for fields tagged with join=path. Column then holds
	// the foreign key column.
	Association *Association
}

// Association describes a to-one relation that can be join fetched.
type Association struct {
	Path   string
	Prefix string
	Target *Metadata
}

// Metadata is the parsed, immutable description of an entity struct type.
type Metadata struct {
	Type       reflect.Type
	Properties []*Property

	identity *Property
	byName   map[string]*Property
	byColumn map[string]*Property
}

// Identity returns the identity property, or nil when the type declares none.
func (m *Metadata) Identity() *Property { return m.identity }

// Property looks a property up by Go field name, then by column name.
func (m *Metadata) Property(name string) (*Property, bool) {
	if p, ok := m.byName[name]; ok {
		return p, true
	}
	p, ok := m.byColumn[strings.ToLower(name)]
	return p, ok
}

// PropertyPath resolves a dotted path such as "author.id" into the chain of
// properties it traverses.
func (m *Metadata) PropertyPath(path string) ([]*Property, error) {
	var chain []*Property
	current := m
	for i, part := range strings.Split(path, ".") {
		if current == nil {
			return nil, fmt.Errorf("property path %q: %q is not an association", path, strings.Split(path, ".")[i-1])
		}
		p, ok := current.Property(part)
		if !ok {
			return nil, fmt.Errorf("property path %q: no property %q in %s", path, part, current.Type.Name())
		}
		chain = append(chain, p)
		current = nil
		if p.Association != nil {
			current = p.Association.Target
		}
	}
	return chain, nil
}

// Columns returns the persisted column names in declaration order.
func (m *Metadata) Columns() []string {
	cols := make([]string, len(m.Properties))
	for i, p := range m.Properties {
		cols[i] = p.Column
	}
	return cols
}

var registry sync.Map // reflect.Type -> *Metadata

// Parse returns the metadata of struct type t (or pointer to struct),
// parsing it on first use. Nested association types are parsed too.
func Parse(t reflect.Type) (*Metadata, error) {
	return parse(reflection.Indirect(t), map[reflect.Type]*Metadata{})
}

func parse(t reflect.Type, inProgress map[reflect.Type]*Metadata) (*Metadata, error) {
	if cached, ok := registry.Load(t); ok {
		return cached.(*Metadata), nil
	}
	if m, ok := inProgress[t]; ok {
		return m, nil
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("entity type must be a struct, got %s", t)
	}

	m := &Metadata{
		Type:     t,
		byName:   map[string]*Property{},
		byColumn: map[string]*Property{},
	}
	inProgress[t] = m

	for i := range t.NumField() {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("db")
		if tag == "" || tag == "-" {
			continue
		}

		p, err := parseTag(t, field, tag)
		if err != nil {
			return nil, err
		}
		if p.Association != nil {
			target, err := parse(reflection.Indirect(field.Type), inProgress)
			if err != nil {
				return nil, fmt.Errorf("association %s.%s: %w", t.Name(), field.Name, err)
			}
			p.Association.Target = target
		}
		if p.Identity {
			if m.identity != nil {
				return nil, fmt.Errorf("entity %s declares more than one identity", t.Name())
			}
			m.identity = p
		}

		m.Properties = append(m.Properties, p)
		m.byName[p.Name] = p
		m.byColumn[strings.ToLower(p.Column)] = p
	}

	if len(m.Properties) == 0 {
		return nil, fmt.Errorf("no fields with `db` tags found in struct %s", t.Name())
	}
	for _, p := range m.Properties {
		if p.Association != nil && p.Association.Target.identity == nil {
			return nil, fmt.Errorf("association %s.%s: %s declares no identity", t.Name(), p.Name, p.Association.Target.Type.Name())
		}
	}

	actual, _ := registry.LoadOrStore(t, m)
	return actual.(*Metadata), nil
}

// parseTag reads `db:"column[,id][,generated][,join=path]"`.
func parseTag(owner reflect.Type, field reflect.StructField, tag string) (*Property, error) {
	parts := strings.Split(tag, ",")
	column := strings.TrimSpace(parts[0])
	if err := validateColumn(column, owner.Name(), field.Name); err != nil {
		return nil, err
	}

	p := &Property{Name: field.Name, Column: column, Type: field.Type, Index: field.Index}
	for _, opt := range parts[1:] {
		opt = strings.TrimSpace(opt)
		switch {
		case opt == "id":
			p.Identity = true
		case opt == "generated":
			p.Generated = true
		case strings.HasPrefix(opt, "join="):
			path := strings.TrimPrefix(opt, "join=")
			if path == "" {
				return nil, fmt.Errorf("field %s.%s: empty join path", owner.Name(), field.Name)
			}
			if reflection.Indirect(field.Type).Kind() != reflect.Struct {
				return nil, fmt.Errorf("field %s.%s: join target must be a struct", owner.Name(), field.Name)
			}
			p.Association = &Association{Path: path, Prefix: path + "_"}
		default:
			return nil, fmt.Errorf("field %s.%s: unknown db tag option %q", owner.Name(), field.Name, opt)
		}
	}
	if p.Generated && !p.Identity {
		return nil, fmt.Errorf("field %s.%s: generated requires id", owner.Name(), field.Name)
	}
	return p, nil
}

// validateColumn rejects tags that could smuggle SQL into generated statements.
func validateColumn(column, structName, fieldName string) error {
	if column == "" {
		return fmt.Errorf("field %s.%s: empty column name", structName, fieldName)
	}
	for _, d := range []string{";", "--", "/*", "*/", `"`, "'", " "} {
		if strings.Contains(column, d) {
			return fmt.Errorf("invalid db tag %q in field %s.%s: contains %q", column, structName, fieldName, d)
		}
	}
	return nil
}
