package draft

import (
	"fmt"
	"sort"
	"strings"
)

// FieldDescriptor describes one form field path and its inferred type.
type FieldDescriptor struct {
	Path string
	Type string
}

// DescribeForm flattens a form value into sorted field descriptors for
// render layers that build their widgets dynamically. The form is projected
// through its json encoding first, so struct fields appear under their json
// names and all numbers report as float64.
func DescribeForm(value any) ([]FieldDescriptor, error) {
	fields, err := toFieldMap(value)
	if err != nil {
		return nil, err
	}
	descriptors := deriveFieldDescriptors(fields, "")
	if descriptors == nil {
		descriptors = []FieldDescriptor{}
	}
	return descriptors, nil
}

func deriveFieldDescriptors(value any, prefix string) []FieldDescriptor {
	if value == nil {
		if prefix == "" {
			return nil
		}
		return []FieldDescriptor{{
			Path: prefix,
			Type: "nil",
		}}
	}

	switch typed := value.(type) {
	case map[string]any:
		if len(typed) == 0 {
			if prefix == "" {
				return nil
			}
			return []FieldDescriptor{{
				Path: prefix,
				Type: "map[string]any",
			}}
		}
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var fields []FieldDescriptor
		for _, key := range keys {
			nextPrefix := joinPath(prefix, key)
			fields = append(fields, deriveFieldDescriptors(typed[key], nextPrefix)...)
		}
		return fields
	case []any:
		elementType := "any"
		if len(typed) > 0 {
			elementType = typeName(typed[0])
		}
		return []FieldDescriptor{{
			Path: prefix,
			Type: "[]" + elementType,
		}}
	default:
		if prefix == "" {
			return nil
		}
		return []FieldDescriptor{{
			Path: prefix,
			Type: typeName(typed),
		}}
	}
}

func typeName(value any) string {
	if value == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", value)
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return strings.Join([]string{prefix, segment}, ".")
}
