package mapper

import (
	"database/sql/driver"
	"fmt"
	"math/big"
	"reflect"
	"time"

	"github.com/gaborage/go-bricks-data/database/types"
	"github.com/gaborage/go-bricks-data/internal/reflection"
)

// Binder sets statement parameters. NULL is always bound explicitly with the
// declared type, and timestamps are normalized to local wall-clock time.
type Binder struct{}

// NewBinder returns a Binder.
func NewBinder() *Binder { return &Binder{} }

// Bind binds value at the zero-based index. typ is the declared type used
// for NULL, with pointers stripped; when nil, the type of value is used.
func (b *Binder) Bind(stmt types.Statement, index int, value any, typ reflect.Type) error {
	if typ == nil && value != nil {
		typ = reflect.TypeOf(value)
	}
	if reflection.IsNil(value) {
		if typ != nil {
			typ = reflection.Indirect(typ)
		}
		if err := stmt.BindNull(index, typ); err != nil {
			return fmt.Errorf("bind null parameter %d: %w", index, err)
		}
		return nil
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer && !bindsAsIs(rv) {
		rv = rv.Elem()
	}
	value = normalize(rv.Interface())

	if err := stmt.Bind(index, value); err != nil {
		return fmt.Errorf("bind parameter %d: %w", index, err)
	}
	return nil
}

// decimalScale is the number of fractional digits kept for decimals that
// have no finite decimal representation.
const decimalScale = 18

var (
	ratPtrType = reflect.TypeFor[*big.Rat]()
	valuerType = reflect.TypeFor[driver.Valuer]()
)

// bindsAsIs reports whether a pointer must reach the driver without being
// dereferenced: decimals and valuers declared on the pointer receiver.
func bindsAsIs(rv reflect.Value) bool {
	t := rv.Type()
	if t == ratPtrType {
		return true
	}
	return t.Implements(valuerType) && !t.Elem().Implements(valuerType)
}

// normalize rewrites timestamps into local time without a monotonic reading
// and decimals into their plain decimal string.
func normalize(value any) any {
	switch v := value.(type) {
	case time.Time:
		return v.In(time.Local).Round(0)
	case *big.Rat:
		return decimalString(v)
	case big.Rat:
		return decimalString(&v)
	}
	return value
}

func decimalString(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	prec, exact := r.FloatPrec()
	if !exact {
		prec = decimalScale
	}
	return r.FloatString(prec)
}
