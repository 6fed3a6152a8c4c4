package structured

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractPayload(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"fenced with tag", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"fenced without tag", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"prose around fence", "Here you go:\n```json\n{\"a\": 1}\n```\nHope this helps.", `{"a": 1}`},
		{"no opening fence", "  {\"a\":1} thanks \n", `{"a":1} thanks`},
		{"no closing fence", "```json\n{\"a\": 1}\n", `{"a": 1}`},
		{"payload on fence line", "```{\"a\": 1}```", `{"a": 1}`},
		{"inline tag", "```json {\"a\": 1}```", `{"a": 1}`},
		{"first block wins", "```json\n{\"a\": 1}\n```\n```json\n{\"a\": 2}\n```", `{"a": 1}`},
		{"upper case tag", "```JSON\n{\"a\": 1}\n```", `{"a": 1}`},
		{"text fence before json", "Reasoning:\n```text\nthe user wants a=1\n```\nAnswer:\n```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"python fence before json", "```python\nprint({\"a\": 2})\n```\n```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare reasoning fence before bare json", "```\nthinking about it\n```\n```\n[1, 2]\n```", `[1, 2]`},
		{"jsonc is not json", "```jsonc\n{\"a\": 1}\n```", `{"a": 1}`},
		{"only non json fence", "```text\nno payload here\n```", "```text\nno payload here\n```"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractPayload(tt.in))
		})
	}
}
