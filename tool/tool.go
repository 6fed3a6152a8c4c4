// Package tool describes the tools a turn may stage calls for: their names,
// descriptions and JSON-schema parameters, plus argument validation against
// that schema. Tools are never executed by this module.
package tool

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/structured"
)

// Definition declares a tool to the staging engine.
//
// Definitions should:
//   - Provide clear, descriptive names (snake_case recommended)
//   - Describe when the tool is useful, since the description is shown to the model
//   - Define a JSON schema object for the parameters
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// New creates a definition. A nil parameters schema accepts an empty object.
func New(name, description string, parameters map[string]any) Definition {
	if parameters == nil {
		parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return Definition{Name: name, Description: description, Parameters: parameters}
}

// NewFor creates a definition whose parameter schema is derived from the
// exported fields of struct type T.
func NewFor[T any](name, description string) Definition {
	return New(name, description, structured.DescriptorFor[T](name).JSONSchema())
}

// Required returns the names of the required parameters, sorted.
func (d Definition) Required() []string {
	var out []string
	switch req := d.Parameters["required"].(type) {
	case []string:
		out = append(out, req...)
	case []any:
		for _, v := range req {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Properties returns the names of all declared parameters, sorted.
func (d Definition) Properties() []string {
	props, _ := d.Parameters["properties"].(map[string]any)
	out := make([]string, 0, len(props))
	for name := range props {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ValidateArguments checks args against the parameter schema. Any failure,
// a missing required argument included, is a *core.SchemaViolationError.
func (d Definition) ValidateArguments(args map[string]any) error {
	for _, name := range d.Required() {
		if _, ok := args[name]; !ok {
			return core.NewSchemaViolation(name, "required argument of tool '%s' is missing", d.Name)
		}
	}

	schema, err := d.compile()
	if err != nil {
		return err
	}

	if args == nil {
		args = map[string]any{}
	}

	decoded, err := normalize(args)
	if err != nil {
		return core.NewSchemaViolation("", "arguments of tool '%s' are not JSON encodable: %v", d.Name, err)
	}

	if err := schema.Validate(decoded); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			for len(ve.Causes) > 0 {
				ve = ve.Causes[0]
			}
			return core.NewSchemaViolation(strings.TrimPrefix(ve.InstanceLocation, "/"), "%s", ve.Message)
		}
		return core.NewSchemaViolation("", "%v", err)
	}
	return nil
}

// normalize round-trips args through JSON so numbers are json.Number.
func normalize(args map[string]any) (any, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

var schemaCache sync.Map

func (d Definition) compile() (*jsonschema.Schema, error) {
	raw, err := json.Marshal(d.Parameters)
	if err != nil {
		return nil, fmt.Errorf("encode parameters of tool '%s': %w", d.Name, err)
	}

	key := string(raw)
	if cached, ok := schemaCache.Load(key); ok {
		if compiled, ok := cached.(*jsonschema.Schema); ok {
			return compiled, nil
		}
	}

	compiled, err := jsonschema.CompileString("tool.schema.json", key)
	if err != nil {
		return nil, fmt.Errorf("compile parameters of tool '%s': %w", d.Name, err)
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// Store is a keyed repository of tool definitions.
type Store interface {
	Create(d Definition) error
	Get(name string) (Definition, error)
	List() ([]Definition, error)
}
