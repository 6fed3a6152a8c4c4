// Package toolcall implements the tool-call staging engine: it decides,
// per candidate tool, whether calls should be issued and with which
// arguments, and suppresses calls equivalent to ones already staged.
package toolcall

import (
	"bytes"
	"encoding/json"

	"github.com/hupe1980/turnmesh/core"
)

// Equivalence reports whether two calls are the same call. It replaces the
// model's own duplicate judgment when set on Options.
type Equivalence func(a, b core.ToolCall) bool

// SameArguments treats calls as equivalent when they target the same tool
// with arguments that encode to identical canonical JSON. Numbers compare by
// value, so 2 and 2.0 are equal.
func SameArguments(a, b core.ToolCall) bool {
	if a.ToolName != b.ToolName {
		return false
	}
	ca, err := canonical(a.Arguments)
	if err != nil {
		return false
	}
	cb, err := canonical(b.Arguments)
	if err != nil {
		return false
	}
	return bytes.Equal(ca, cb)
}

// canonical re-encodes args through a generic decode, which sorts map keys
// and normalizes numbers.
func canonical(args map[string]any) ([]byte, error) {
	if len(args) == 0 {
		return []byte("{}"), nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
