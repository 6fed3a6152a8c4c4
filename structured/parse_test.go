package structured

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/turnmesh/core"
)

type simple struct {
	A int `json:"a"`
}

var simpleDescriptor = Descriptor{
	Name:   "simple",
	Fields: []Field{{Name: "a", Type: TypeInteger, Required: true}},
}

type scored struct {
	Label string `json:"label"`
	Score int    `json:"score"`
	Note  string `json:"note,omitempty"`
}

func (s scored) Validate() error {
	if s.Score < 1 || s.Score > 10 {
		return core.NewSchemaViolation("score", "must be within 1..10, got %d", s.Score)
	}
	return nil
}

func TestParse_FencedPayload(t *testing.T) {
	out, err := Parse[simple]("```json\n{\"a\": 1}\n```", simpleDescriptor)
	require.NoError(t, err)
	assert.Equal(t, simple{A: 1}, out)
}

func TestParse_TrailingProseIsMalformed(t *testing.T) {
	raw := `{"a":1} thanks`

	_, err := Parse[simple](raw, simpleDescriptor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMalformedOutput))
	assert.False(t, errors.Is(err, core.ErrSchemaViolation))

	var me *core.MalformedOutputError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, raw, me.Raw)
}

func TestParse_MissingRequiredField(t *testing.T) {
	_, err := Parse[simple](`{"b": 2}`, simpleDescriptor)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMalformedOutput))
}

func TestParse_TypeMismatch(t *testing.T) {
	for _, raw := range []string{`{"a": "1"}`, `{"a": 1.5}`, `{"a": null}`, `[1]`} {
		t.Run(raw, func(t *testing.T) {
			_, err := Parse[simple](raw, simpleDescriptor)
			assert.True(t, errors.Is(err, core.ErrMalformedOutput))
		})
	}
}

func TestParse_UnknownFieldsIgnored(t *testing.T) {
	out, err := Parse[simple](`{"a": 3, "extra": {"nested": true}}`, simpleDescriptor)
	require.NoError(t, err)
	assert.Equal(t, 3, out.A)
}

func TestParse_SemanticViolation(t *testing.T) {
	d := DescriptorFor[scored]("scored")
	raw := `{"label": "x", "score": 42}`

	_, err := Parse[scored](raw, d)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrSchemaViolation))
	assert.False(t, errors.Is(err, core.ErrMalformedOutput))

	var sv *core.SchemaViolationError
	require.True(t, errors.As(err, &sv))
	assert.Equal(t, "score", sv.Field)
	assert.Equal(t, raw, sv.Raw)
}

func TestParse_ExtraValidators(t *testing.T) {
	notX := func(s scored) error {
		if s.Label == "x" {
			return fmt.Errorf("label x is reserved")
		}
		return nil
	}

	_, err := Parse[scored](`{"label": "x", "score": 5}`, DescriptorFor[scored]("scored"), notX)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrSchemaViolation))
	assert.Contains(t, err.Error(), "reserved")
}

func TestParse_SkipsNonJSONFences(t *testing.T) {
	raw := "Reasoning:\n```text\nthe user wants a=1\n```\nAnswer:\n```json\n{\"label\": \"alpha\", \"score\": 1}\n```"

	got, err := Parse[scored](raw, DescriptorFor[scored]("scored"))
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Label)
	assert.Equal(t, 1, got.Score)
}

// A payload wrapped in a fence with arbitrary prose parses identically to
// the same payload unwrapped.
func TestParse_FenceRoundTrip(t *testing.T) {
	payloads := []string{
		`{"label": "alpha", "score": 1}`,
		`{"label": "with ` + "`" + `tick", "score": 10, "note": "n"}`,
		"{\n  \"label\": \"multi\",\n  \"score\": 7\n}",
	}
	wrappers := []struct{ before, after string }{
		{"```json\n", "\n```"},
		{"Reasoning first.\n\n```json\n", "\n```\n\nThat is all."},
		{"```JSON\n", "\n```"},
		{"```\n", ""},
	}

	d := DescriptorFor[scored]("scored")
	for _, p := range payloads {
		want, err := Parse[scored](p, d)
		require.NoError(t, err)

		for _, w := range wrappers {
			got, err := Parse[scored](w.before+p+w.after, d)
			require.NoError(t, err, "wrapped %q", w.before)
			assert.Equal(t, want, got)
		}
	}
}
