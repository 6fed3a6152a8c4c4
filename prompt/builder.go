package prompt

import (
	"fmt"
	"strings"
)

type section struct {
	name string
	text string
	data any
}

// Builder assembles a prompt from named sections rendered in insertion
// order and separated by blank lines. Sections with data are rendered as
// text/template against it; sections without data are taken literally so
// conversation text can never be interpreted as a template.
type Builder struct {
	sections []section
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder { return &Builder{} }

// Section appends a named section. data may be nil for static text.
func (b *Builder) Section(name, text string, data any) *Builder {
	b.sections = append(b.sections, section{name: name, text: text, data: data})
	return b
}

// Sectionf appends a static section formatted with fmt.Sprintf.
func (b *Builder) Sectionf(name, format string, args ...any) *Builder {
	return b.Section(name, fmt.Sprintf(format, args...), nil)
}

// Shots appends a few-shot section: a heading followed by the numbered,
// rendered examples. Nothing is appended when there are no examples.
func (b *Builder) Shots(name, heading string, examples []string) *Builder {
	if len(examples) == 0 {
		return b
	}

	var sb strings.Builder
	sb.WriteString(heading)
	for i, ex := range examples {
		fmt.Fprintf(&sb, "\n\nExample #%d:\n%s", i+1, strings.TrimSpace(ex))
	}
	return b.Section(name, sb.String(), nil)
}

// Build renders all sections into the final prompt.
func (b *Builder) Build() (string, error) {
	parts := make([]string, 0, len(b.sections))
	for _, s := range b.sections {
		text := s.text
		if s.data != nil {
			var err error
			if text, err = Render(s.text, s.data); err != nil {
				return "", fmt.Errorf("section %q: %w", s.name, err)
			}
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// RenderShots formats every shot of c with format, in order.
func RenderShots[T any](c *ShotCollection[T], format func(T) string) []string {
	shots := c.All()
	out := make([]string, len(shots))
	for i, s := range shots {
		out[i] = format(s)
	}
	return out
}
