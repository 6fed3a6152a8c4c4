package structured

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Type is the JSON type of a field. The empty Type accepts any value.
type Type string

const (
	TypeAny     Type = ""
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeObject  Type = "object"
	TypeArray   Type = "array"
)

// Field describes one named member of a structured result.
type Field struct {
	Name        string
	Type        Type
	Required    bool
	Description string
	// Enum restricts string fields to a fixed set of values.
	Enum []string
	// Fields are the members of an object field.
	Fields []Field
	// Items describes the elements of an array field.
	Items *Field
}

// Descriptor is the declared shape of a structured result: field names,
// primitive types and required-ness.
type Descriptor struct {
	Name        string
	Description string
	Fields      []Field
}

// JSONSchema renders the descriptor as a JSON Schema object. Additional
// properties are allowed so unknown fields in model output are ignored.
func (d Descriptor) JSONSchema() map[string]any {
	schema := objectSchema(d.Fields)
	if d.Description != "" {
		schema["description"] = d.Description
	}
	return schema
}

func objectSchema(fields []Field) map[string]any {
	properties := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))

	for _, f := range fields {
		properties[f.Name] = fieldSchema(f)
		if f.Required {
			required = append(required, f.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func fieldSchema(f Field) map[string]any {
	var schema map[string]any

	switch f.Type {
	case TypeObject:
		schema = objectSchema(f.Fields)
	case TypeArray:
		schema = map[string]any{"type": "array"}
		if f.Items != nil {
			schema["items"] = fieldSchema(*f.Items)
		}
	case TypeAny:
		schema = map[string]any{}
	default:
		schema = map[string]any{"type": string(f.Type)}
	}

	if len(f.Enum) > 0 {
		schema["enum"] = f.Enum
	}
	if f.Description != "" {
		schema["description"] = f.Description
	}
	return schema
}

var schemaCache sync.Map

func (d Descriptor) compile() (*jsonschema.Schema, error) {
	raw, err := json.Marshal(d.JSONSchema())
	if err != nil {
		return nil, fmt.Errorf("encode schema %q: %w", d.Name, err)
	}

	key := string(raw)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}

	compiled, err := jsonschema.CompileString("structured.schema.json", key)
	if err != nil {
		return nil, fmt.Errorf("compile schema %q: %w", d.Name, err)
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// Skeleton renders an example JSON document of the descriptor with field
// order preserved, for embedding in prompts.
func (d Descriptor) Skeleton() string {
	var sb strings.Builder
	writeObject(&sb, d.Fields, 0)
	return sb.String()
}

func writeObject(sb *strings.Builder, fields []Field, depth int) {
	indent := strings.Repeat("  ", depth)
	sb.WriteString("{\n")
	for i, f := range fields {
		sb.WriteString(indent)
		sb.WriteString("  ")
		fmt.Fprintf(sb, "%q: ", f.Name)
		writeValue(sb, f, depth+1)
		if i < len(fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString(indent)
	sb.WriteString("}")
}

func writeValue(sb *strings.Builder, f Field, depth int) {
	switch f.Type {
	case TypeObject:
		if len(f.Fields) == 0 {
			sb.WriteString("{}")
			return
		}
		writeObject(sb, f.Fields, depth)
	case TypeArray:
		sb.WriteString("[")
		if f.Items != nil {
			writeValue(sb, *f.Items, depth)
		}
		sb.WriteString("]")
	default:
		sb.WriteString(placeholder(f))
	}
}

func placeholder(f Field) string {
	hint := string(f.Type)
	if f.Type == TypeAny {
		hint = "any"
	}
	if len(f.Enum) > 0 {
		hint = strings.Join(f.Enum, "|")
	}
	if f.Description != "" {
		hint += ": " + f.Description
	}
	if !f.Required {
		hint += " (optional)"
	}
	return "<" + hint + ">"
}
