package structural

import "reflect"

// Equal reports whether a and b are structurally equal. It differs from
// reflect.DeepEqual in two ways that matter for dirty tracking:
//
//   - nil maps/slices compare equal to empty ones, so an add-then-remove
//     sequence over an absent collection nets out clean;
//   - struct types exposing an Equal method with the conventional signature
//     (time.Time is the common case) are compared through it.
//
// Slice order is significant: two slices with the same elements in a
// different order are not equal.
func Equal(a, b any) bool {
	return equalValue(reflect.ValueOf(a), reflect.ValueOf(b))
}

func equalValue(a, b reflect.Value) bool {
	if !a.IsValid() || !b.IsValid() {
		return emptyish(a) && emptyish(b)
	}
	if a.Type() != b.Type() {
		return false
	}

	switch a.Kind() {
	case reflect.Pointer, reflect.Interface:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() && b.IsNil()
		}
		return equalValue(a.Elem(), b.Elem())
	case reflect.Struct:
		if ok, result := equalViaMethod(a, b); ok {
			return result
		}
		if hasUnexportedFields(a.Type()) {
			return reflect.DeepEqual(a.Interface(), b.Interface())
		}
		for i := 0; i < a.NumField(); i++ {
			if !equalValue(a.Field(i), b.Field(i)) {
				return false
			}
		}
		return true
	case reflect.Map:
		if a.Len() != b.Len() {
			return false
		}
		iter := a.MapRange()
		for iter.Next() {
			bv := b.MapIndex(iter.Key())
			if !bv.IsValid() || !equalValue(iter.Value(), bv) {
				return false
			}
		}
		return true
	case reflect.Slice, reflect.Array:
		if a.Len() != b.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			if !equalValue(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Func, reflect.Chan:
		return a.IsNil() && b.IsNil()
	default:
		return a.Interface() == b.Interface()
	}
}

// emptyish reports whether v is absent in a way callers should treat as
// equivalent to a zero-length collection or nil pointer.
func emptyish(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Map, reflect.Slice:
		return v.Len() == 0
	case reflect.Pointer, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}

// equalViaMethod dispatches to an `Equal(T) bool` method when the type
// declares one, so values like time.Time compare by instant instead of by
// internal representation.
func equalViaMethod(a, b reflect.Value) (handled, result bool) {
	method := a.MethodByName("Equal")
	if !method.IsValid() {
		return false, false
	}
	mt := method.Type()
	if mt.NumIn() != 1 || mt.NumOut() != 1 {
		return false, false
	}
	if mt.In(0) != b.Type() || mt.Out(0).Kind() != reflect.Bool {
		return false, false
	}
	out := method.Call([]reflect.Value{b})
	return true, out[0].Bool()
}
