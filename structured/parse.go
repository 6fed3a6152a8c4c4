package structured

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/hupe1980/turnmesh/core"
)

// Validator is implemented by result types that carry their own semantic rules.
type Validator interface {
	Validate() error
}

// Parse runs the pipeline on raw model text: payload extraction, schema
// check against d, decoding into T and semantic validation.
//
// Extraction, syntax, required-field and type errors are returned as
// *core.MalformedOutputError carrying raw. Semantic failures, from T's
// Validator implementation or any of validators, are returned as
// *core.SchemaViolationError.
func Parse[T any](raw string, d Descriptor, validators ...func(T) error) (T, error) {
	var zero T

	payload := ExtractPayload(raw)
	if payload == "" {
		return zero, &core.MalformedOutputError{Raw: raw, Err: errors.New("empty payload")}
	}

	decoded, err := decodeLoose(payload)
	if err != nil {
		return zero, &core.MalformedOutputError{Raw: raw, Err: fmt.Errorf("invalid JSON: %w", err)}
	}

	schema, err := d.compile()
	if err != nil {
		return zero, err
	}

	if err := schema.Validate(decoded); err != nil {
		return zero, &core.MalformedOutputError{Raw: raw, Err: describeValidation(err)}
	}

	var out T
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		return zero, &core.MalformedOutputError{Raw: raw, Err: fmt.Errorf("decode %s: %w", d.Name, err)}
	}

	if err := validate(out, validators); err != nil {
		return zero, asViolation(err, raw)
	}

	return out, nil
}

// decodeLoose decodes a single JSON value keeping numbers as json.Number so
// integer checks are exact.
func decodeLoose(payload string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after top-level value")
	}
	return v, nil
}

func validate[T any](out T, validators []func(T) error) error {
	if v, ok := any(out).(Validator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	} else if v, ok := any(&out).(Validator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}

	for _, fn := range validators {
		if fn == nil {
			continue
		}
		if err := fn(out); err != nil {
			return err
		}
	}
	return nil
}

func asViolation(err error, raw string) error {
	var sv *core.SchemaViolationError
	if errors.As(err, &sv) {
		cp := *sv
		cp.Raw = raw
		return &cp
	}
	return &core.SchemaViolationError{Message: err.Error(), Raw: raw}
}

// describeValidation reduces a jsonschema error to its most specific cause.
func describeValidation(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return fmt.Errorf("at %s: %s", loc, ve.Message)
}
