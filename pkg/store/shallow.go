package store

import "reflect"

// Shallow reports whether a and b are identical or, for maps, slices, arrays,
// structs and pointers to those, hold identical top-level entries. Nested
// reference values (maps, slices, pointers) are compared by identity.
func Shallow[T any](a, b T) bool {
	return shallow(reflect.ValueOf(&a).Elem(), reflect.ValueOf(&b).Elem())
}

func shallow(x, y reflect.Value) bool {
	if identical(x, y) {
		return true
	}
	if !x.IsValid() || !y.IsValid() || x.Type() != y.Type() {
		return false
	}

	switch x.Kind() {
	case reflect.Interface:
		if x.IsNil() || y.IsNil() {
			return false
		}
		return shallow(x.Elem(), y.Elem())
	case reflect.Pointer:
		if x.IsNil() || y.IsNil() {
			return false
		}
		return entriesIdentical(x.Elem(), y.Elem())
	default:
		return entriesIdentical(x, y)
	}
}

func entriesIdentical(x, y reflect.Value) bool {
	switch x.Kind() {
	case reflect.Map:
		if x.Len() != y.Len() {
			return false
		}
		iter := x.MapRange()
		for iter.Next() {
			other := y.MapIndex(iter.Key())
			if !other.IsValid() || !identical(iter.Value(), other) {
				return false
			}
		}
		return true
	case reflect.Slice, reflect.Array:
		if x.Len() != y.Len() {
			return false
		}
		for i := 0; i < x.Len(); i++ {
			if !identical(x.Index(i), y.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Struct:
		return identical(x, y)
	default:
		return false
	}
}

// identical compares scalars by value and reference types by address.
func identical(x, y reflect.Value) bool {
	if !x.IsValid() || !y.IsValid() {
		return x.IsValid() == y.IsValid()
	}
	if x.Type() != y.Type() {
		return false
	}

	switch x.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return x.Pointer() == y.Pointer()
	case reflect.Slice:
		if x.Len() != y.Len() {
			return false
		}
		return x.Len() == 0 || x.Pointer() == y.Pointer()
	case reflect.Interface:
		if x.IsNil() || y.IsNil() {
			return x.IsNil() && y.IsNil()
		}
		return identical(x.Elem(), y.Elem())
	case reflect.Struct:
		for i := 0; i < x.NumField(); i++ {
			if !identical(x.Field(i), y.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Array:
		for i := 0; i < x.Len(); i++ {
			if !identical(x.Index(i), y.Index(i)) {
				return false
			}
		}
		return true
	default:
		return x.Equal(y)
	}
}
