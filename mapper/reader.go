package mapper

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/gaborage/go-bricks-data/database/types"
	"github.com/gaborage/go-bricks-data/internal/reflection"
)

// Column selects a row value by name or zero-based index.
type Column struct {
	name  string
	index int
}

// Named selects a column by name, matched case-insensitively.
func Named(name string) Column { return Column{name: name, index: -1} }

// At selects a column by index.
func At(index int) Column { return Column{index: index} }

func (c Column) String() string {
	if c.name != "" {
		return c.name
	}
	return strconv.Itoa(c.index)
}

func (c Column) resolve(row types.Row) (int, error) {
	if c.name == "" {
		return c.index, nil
	}
	idx := row.Metadata().IndexOf(c.name)
	if idx < 0 {
		return -1, fmt.Errorf("%w: no column named %q", types.ErrColumnIndex, c.name)
	}
	return idx, nil
}

// Reader reads typed values from driver rows. Numeric, boolean and character
// getters return the zero value for NULL; string, time, decimal and byte
// getters return nil. Values the driver hands back in another representation
// are converted, and a failed conversion is a *DataAccessError.
type Reader struct{}

// NewReader returns a Reader.
func NewReader() *Reader { return &Reader{} }

// Raw returns the driver-native value of a column.
func (r *Reader) Raw(row types.Row, col Column) (any, error) {
	idx, err := col.resolve(row)
	if err != nil {
		return nil, &DataAccessError{Column: col.String(), Err: err}
	}
	v, err := row.Get(idx)
	if err != nil {
		return nil, &DataAccessError{Column: col.String(), Err: err}
	}
	return v, nil
}

// Value reads a column as target. NULL yields the zero value of target.
func (r *Reader) Value(row types.Row, col Column, target reflect.Type) (reflect.Value, error) {
	raw, err := r.Raw(row, col)
	if err != nil {
		return reflect.Value{}, err
	}
	out, err := reflection.Convert(raw, target)
	if err != nil {
		return reflect.Value{}, &DataAccessError{Column: col.String(), Err: err}
	}
	return out, nil
}

// Read is the generic form of Reader.Value.
func Read[V any](r *Reader, row types.Row, col Column) (V, error) {
	var zero V
	raw, err := r.Raw(row, col)
	if err != nil {
		return zero, err
	}
	if v, ok := raw.(V); ok {
		return v, nil
	}
	out, err := reflection.Convert(raw, reflect.TypeFor[V]())
	if err != nil {
		return zero, &DataAccessError{Column: col.String(), Err: err}
	}
	return out.Interface().(V), nil
}

func (r *Reader) Int(row types.Row, col Column) (int, error) { return Read[int](r, row, col) }
func (r *Reader) Int64(row types.Row, col Column) (int64, error) { return Read[int64](r, row, col) }
func (r *Reader) Int32(row types.Row, col Column) (int32, error) { return Read[int32](r, row, col) }
func (r *Reader) Int16(row types.Row, col Column) (int16, error) { return Read[int16](r, row, col) }
func (r *Reader) Byte(row types.Row, col Column) (byte, error) { return Read[byte](r, row, col) }
func (r *Reader) Bool(row types.Row, col Column) (bool, error) { return Read[bool](r, row, col) }
func (r *Reader) Float32(row types.Row, col Column) (float32, error) {
	return Read[float32](r, row, col)
}
func (r *Reader) Float64(row types.Row, col Column) (float64, error) {
	return Read[float64](r, row, col)
}

// Rune reads a character column: the first rune of text, or a code point.
func (r *Reader) Rune(row types.Row, col Column) (rune, error) {
	raw, err := r.Raw(row, col)
	if err != nil || raw == nil {
		return 0, err
	}
	switch v := raw.(type) {
	case string:
		c, _ := utf8.DecodeRuneInString(v)
		if c == utf8.RuneError {
			return 0, nil
		}
		return c, nil
	case []byte:
		c, _ := utf8.DecodeRune(v)
		if c == utf8.RuneError {
			return 0, nil
		}
		return c, nil
	}
	return Read[rune](r, row, col)
}

// String returns nil for NULL.
func (r *Reader) String(row types.Row, col Column) (*string, error) {
	return nullable[string](r, row, col)
}

// Time returns nil for NULL.
func (r *Reader) Time(row types.Row, col Column) (*time.Time, error) {
	return nullable[time.Time](r, row, col)
}

// Decimal returns nil for NULL.
func (r *Reader) Decimal(row types.Row, col Column) (*big.Rat, error) {
	raw, err := r.Raw(row, col)
	if err != nil || raw == nil {
		return nil, err
	}
	return Read[*big.Rat](r, row, col)
}

// Bytes returns nil for NULL.
func (r *Reader) Bytes(row types.Row, col Column) ([]byte, error) {
	raw, err := r.Raw(row, col)
	if err != nil || raw == nil {
		return nil, err
	}
	return Read[[]byte](r, row, col)
}

func nullable[V any](r *Reader, row types.Row, col Column) (*V, error) {
	raw, err := r.Raw(row, col)
	if err != nil || reflection.IsNil(raw) {
		return nil, err
	}
	v, err := Read[V](r, row, col)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
