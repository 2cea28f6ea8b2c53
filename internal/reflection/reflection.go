// Package reflection holds the reflection helpers shared by entity metadata
// and result mapping.
package reflection

import (
	"reflect"
)

// GetTypeName returns the fully qualified type name, dereferencing pointers.
func GetTypeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	t = Indirect(t)
	if t.PkgPath() == "" {
		return t.Name()
	}
	return t.PkgPath() + "." + t.Name()
}

// GetTypeNameShort returns the type name without package path.
func GetTypeNameShort(t reflect.Type) string {
	if t == nil {
		return ""
	}
	return Indirect(t).Name()
}

// Indirect strips every pointer level from t.
func Indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// IsNil reports whether v holds nil, including typed nil pointers, maps,
// slices and interfaces.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
