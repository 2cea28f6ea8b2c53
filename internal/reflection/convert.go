package reflection

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
)

// ErrConversion reports a value that cannot be represented as the requested type.
var ErrConversion = errors.New("conversion failed")

var (
	timeType   = reflect.TypeOf(time.Time{})
	uuidType   = reflect.TypeOf(uuid.UUID{})
	bytesType  = reflect.TypeOf([]byte(nil))
	ratPtrType = reflect.TypeOf((*big.Rat)(nil))
	valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// Convert returns value as a reflect.Value assignable to target. Values that
// are already assignable are returned as is; numeric kinds convert with
// overflow checks; anything else goes through spf13/cast. A nil value yields
// the zero value of target.
func Convert(value any, target reflect.Type) (reflect.Value, error) {
	if IsNil(value) {
		return reflect.Zero(target), nil
	}

	src := reflect.ValueOf(value)
	if src.Type().AssignableTo(target) {
		return src, nil
	}

	if target.Kind() == reflect.Pointer && target != ratPtrType {
		elem, err := Convert(value, target.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(target.Elem())
		ptr.Elem().Set(elem)
		return ptr, nil
	}

	if src.Kind() == reflect.Pointer {
		return Convert(src.Elem().Interface(), target)
	}

	if src.Type().Implements(valuerType) {
		v, err := value.(driver.Valuer).Value()
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%w: %v", ErrConversion, err)
		}
		return Convert(v, target)
	}

	if isNumeric(src.Kind()) && isNumeric(target.Kind()) {
		return convertNumber(src, target)
	}

	out, err := convertSpecial(value, target)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %T to %s: %v", ErrConversion, value, target, err)
	}
	return out, nil
}

func convertSpecial(value any, target reflect.Type) (reflect.Value, error) {
	switch target {
	case timeType:
		t, err := cast.ToTimeE(value)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(t), nil
	case uuidType:
		id, err := toUUID(value)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(id), nil
	case bytesType:
		s, err := cast.ToStringE(value)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf([]byte(s)), nil
	case ratPtrType:
		s, err := cast.ToStringE(value)
		if err != nil {
			return reflect.Value{}, err
		}
		r, ok := new(big.Rat).SetString(s)
		if !ok {
			return reflect.Value{}, fmt.Errorf("invalid decimal %q", s)
		}
		return reflect.ValueOf(r), nil
	}

	var (
		out any
		err error
	)
	switch target.Kind() {
	case reflect.String:
		out, err = cast.ToStringE(value)
	case reflect.Bool:
		out, err = cast.ToBoolE(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		if n, err = cast.ToInt64E(value); err == nil {
			return convertNumber(reflect.ValueOf(n), target)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var n uint64
		if n, err = cast.ToUint64E(value); err == nil {
			return convertNumber(reflect.ValueOf(n), target)
		}
	case reflect.Float32, reflect.Float64:
		var f float64
		if f, err = cast.ToFloat64E(value); err == nil {
			return convertNumber(reflect.ValueOf(f), target)
		}
	default:
		err = errors.New("unsupported target type")
	}
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(out).Convert(target), nil
}

func toUUID(value any) (uuid.UUID, error) {
	switch v := value.(type) {
	case string:
		return uuid.Parse(v)
	case []byte:
		if len(v) == 16 {
			return uuid.FromBytes(v)
		}
		return uuid.ParseBytes(v)
	case [16]byte:
		return uuid.UUID(v), nil
	default:
		return uuid.Nil, fmt.Errorf("cannot read %T as uuid", value)
	}
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// convertNumber converts between numeric kinds and rejects values the target cannot hold.
func convertNumber(src reflect.Value, target reflect.Type) (reflect.Value, error) {
	out := reflect.New(target).Elem()
	switch target.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, ok := asInt64(src)
		if !ok || out.OverflowInt(n) {
			return reflect.Value{}, fmt.Errorf("%w: %v overflows %s", ErrConversion, src.Interface(), target)
		}
		out.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, ok := asUint64(src)
		if !ok || out.OverflowUint(n) {
			return reflect.Value{}, fmt.Errorf("%w: %v overflows %s", ErrConversion, src.Interface(), target)
		}
		out.SetUint(n)
	default:
		out.SetFloat(asFloat64(src))
	}
	return out, nil
}

func asInt64(v reflect.Value) (int64, bool) {
	switch {
	case v.CanInt():
		return v.Int(), true
	case v.CanUint():
		u := v.Uint()
		return int64(u), u <= math.MaxInt64
	default:
		f := v.Float()
		return int64(f), f == math.Trunc(f) && f >= math.MinInt64 && f <= math.MaxInt64
	}
}

func asUint64(v reflect.Value) (uint64, bool) {
	switch {
	case v.CanUint():
		return v.Uint(), true
	case v.CanInt():
		n := v.Int()
		return uint64(n), n >= 0
	default:
		f := v.Float()
		return uint64(f), f == math.Trunc(f) && f >= 0 && f <= math.MaxUint64
	}
}

func asFloat64(v reflect.Value) float64 {
	switch {
	case v.CanInt():
		return float64(v.Int())
	case v.CanUint():
		return float64(v.Uint())
	default:
		return v.Float()
	}
}
