package structural

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	// ErrInvalidTarget indicates SetField received something other than a
	// non-nil pointer to a struct or string-keyed map.
	ErrInvalidTarget = errors.New("structural: target must be a non-nil pointer to a struct or string-keyed map")
	// ErrUnknownField indicates no struct field matched the requested name.
	ErrUnknownField = errors.New("structural: unknown field")
	// ErrIncompatibleValue indicates the value cannot be assigned to the field.
	ErrIncompatibleValue = errors.New("structural: incompatible value")
)

// SetField assigns value to the named field of the struct or map that
// target points at. Struct names match the exported field name
// (case-insensitively) or its json tag; map targets are keyed directly.
// Values are converted when the field type allows it; nil zeroes pointer,
// map, slice, and interface fields.
func SetField(target any, name string, value any) error {
	if target == nil {
		return ErrInvalidTarget
	}
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return ErrInvalidTarget
	}
	switch rv.Elem().Kind() {
	case reflect.Struct:
	case reflect.Map:
		return setMapField(rv.Elem(), name, value)
	default:
		return ErrInvalidTarget
	}
	field, ok := fieldByName(rv.Elem(), name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	if !field.CanSet() {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}

	if value == nil {
		switch field.Kind() {
		case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
			field.Set(reflect.Zero(field.Type()))
			return nil
		default:
			return fmt.Errorf("%w: cannot assign nil to %s", ErrIncompatibleValue, name)
		}
	}

	vv := reflect.ValueOf(value)
	switch {
	case vv.Type().AssignableTo(field.Type()):
		field.Set(vv)
	case vv.Type().ConvertibleTo(field.Type()) && safeConversion(vv.Type(), field.Type()):
		field.Set(vv.Convert(field.Type()))
	default:
		return fmt.Errorf("%w: %T into field %s", ErrIncompatibleValue, value, name)
	}
	return nil
}

func setMapField(m reflect.Value, name string, value any) error {
	if m.Type().Key().Kind() != reflect.String {
		return ErrInvalidTarget
	}
	if m.IsNil() {
		m.Set(reflect.MakeMap(m.Type()))
	}
	key := reflect.ValueOf(name).Convert(m.Type().Key())
	elem := m.Type().Elem()

	if value == nil {
		switch elem.Kind() {
		case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
			m.SetMapIndex(key, reflect.Zero(elem))
			return nil
		default:
			return fmt.Errorf("%w: cannot assign nil to %s", ErrIncompatibleValue, name)
		}
	}

	vv := reflect.ValueOf(value)
	switch {
	case vv.Type().AssignableTo(elem):
		m.SetMapIndex(key, vv)
	case vv.Type().ConvertibleTo(elem) && safeConversion(vv.Type(), elem):
		m.SetMapIndex(key, vv.Convert(elem))
	default:
		return fmt.Errorf("%w: %T into field %s", ErrIncompatibleValue, value, name)
	}
	return nil
}

func fieldByName(strct reflect.Value, name string) (reflect.Value, bool) {
	t := strct.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue
		}
		if sf.Name == name || strings.EqualFold(sf.Name, name) || jsonTagName(sf) == name {
			return strct.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func jsonTagName(sf reflect.StructField) string {
	tag := sf.Tag.Get("json")
	if tag == "" || tag == "-" {
		return ""
	}
	if idx := strings.IndexByte(tag, ','); idx >= 0 {
		tag = tag[:idx]
	}
	return tag
}

// safeConversion rejects conversions that silently change meaning, such as
// string <-> numeric casts, while still permitting numeric widening and
// named-type conversions.
func safeConversion(from, to reflect.Type) bool {
	if from.Kind() == reflect.String && to.Kind() != reflect.String {
		return false
	}
	if to.Kind() == reflect.String && from.Kind() != reflect.String {
		return false
	}
	return true
}
