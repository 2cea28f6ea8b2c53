package types

import (
	"reflect"
	"strings"
)

// ColumnMetadata describes one result column.
type ColumnMetadata struct {
	Name         string
	DatabaseType string
	// ScanType is the Go type the driver scans into, when known.
	ScanType reflect.Type
}

// RowMetadata lists the columns of a result in select order.
type RowMetadata struct {
	Columns []ColumnMetadata
}

// NewRowMetadata builds metadata from bare column names.
func NewRowMetadata(names ...string) RowMetadata {
	cols := make([]ColumnMetadata, len(names))
	for i, n := range names {
		cols[i] = ColumnMetadata{Name: n}
	}
	return RowMetadata{Columns: cols}
}

// IndexOf returns the position of the named column, matched case-insensitively
// (Oracle upper-cases unquoted identifiers), or -1.
func (m RowMetadata) IndexOf(name string) int {
	for i, c := range m.Columns {
		if c.Name == name {
			return i
		}
	}
	for i, c := range m.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// Names returns the column names.
func (m RowMetadata) Names() []string {
	names := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		names[i] = c.Name
	}
	return names
}
