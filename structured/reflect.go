package structured

import (
	"reflect"
	"strings"
)

// DescriptorFor derives a Descriptor from the exported fields of struct type T.
//
// Field names follow the json tag. Fields tagged omitempty and pointer
// fields are optional; everything else is required. A description tag is
// copied into the field description and an enum tag ("a|b|c") restricts
// string values. Nested structs, slices and maps are described recursively.
func DescriptorFor[T any](name string) Descriptor {
	t := reflect.TypeOf((*T)(nil)).Elem()
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	d := Descriptor{Name: name}
	if t.Kind() == reflect.Struct {
		d.Fields = structFields(t, map[reflect.Type]bool{})
	}
	return d
}

func structFields(t reflect.Type, seen map[reflect.Type]bool) []Field {
	if seen[t] {
		return nil
	}
	seen[t] = true
	defer delete(seen, t)

	fields := make([]Field, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}

		jsonTag := sf.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		fieldName := sf.Name
		if jsonTag != "" {
			if parts := strings.Split(jsonTag, ","); parts[0] != "" {
				fieldName = parts[0]
			}
		}

		f := describe(sf.Type, seen)
		f.Name = fieldName
		f.Required = !hasOmitEmpty(jsonTag) && sf.Type.Kind() != reflect.Ptr
		f.Description = sf.Tag.Get("description")
		if enum := sf.Tag.Get("enum"); enum != "" {
			f.Enum = strings.Split(enum, "|")
		}

		fields = append(fields, f)
	}
	return fields
}

func describe(t reflect.Type, seen map[reflect.Type]bool) Field {
	switch t.Kind() {
	case reflect.Ptr:
		return describe(t.Elem(), seen)
	case reflect.String:
		return Field{Type: TypeString}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Field{Type: TypeInteger}
	case reflect.Float32, reflect.Float64:
		return Field{Type: TypeNumber}
	case reflect.Bool:
		return Field{Type: TypeBoolean}
	case reflect.Slice, reflect.Array:
		item := describe(t.Elem(), seen)
		item.Required = true
		return Field{Type: TypeArray, Items: &item}
	case reflect.Map:
		return Field{Type: TypeObject}
	case reflect.Struct:
		return Field{Type: TypeObject, Fields: structFields(t, seen)}
	default:
		return Field{Type: TypeAny}
	}
}

func hasOmitEmpty(tag string) bool {
	parts := strings.Split(tag, ",")
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "omitempty" {
			return true
		}
	}
	return false
}
