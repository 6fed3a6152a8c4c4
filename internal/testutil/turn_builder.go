package testutil

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/hupe1980/turnmesh/core"
)

// TurnBuilder provides a fluent helper for constructing turn contexts.
// Example:
//
//	turn := NewTurnBuilder().ID("t-1").User("hi").Agent("hello").User("price?").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type TurnBuilder struct {
	turn core.TurnContext
}

// NewTurnBuilder creates a builder for an agent named "test-agent".
func NewTurnBuilder() *TurnBuilder {
	return &TurnBuilder{turn: core.TurnContext{
		ID:    "turn-test",
		Agent: core.AgentInfo{Name: "test-agent"},
	}}
}

// ID sets the turn id (chainable).
func (b *TurnBuilder) ID(id string) *TurnBuilder { b.turn.ID = id; return b }

// AgentInfo sets the agent name and description (chainable).
func (b *TurnBuilder) AgentInfo(name, description string) *TurnBuilder {
	b.turn.Agent = core.AgentInfo{Name: name, Description: description}
	return b
}

// User appends a user utterance (chainable).
func (b *TurnBuilder) User(text string) *TurnBuilder {
	b.turn.Interactions = append(b.turn.Interactions, core.Interaction{Source: core.SourceUser, Text: text})
	return b
}

// Agent appends an agent utterance (chainable).
func (b *TurnBuilder) Agent(text string) *TurnBuilder {
	b.turn.Interactions = append(b.turn.Interactions, core.Interaction{Source: core.SourceAgent, Text: text})
	return b
}

// Staged records a tool call already staged earlier in the turn (chainable).
func (b *TurnBuilder) Staged(toolName string, args map[string]any) *TurnBuilder {
	b.turn.StagedCalls = append(b.turn.StagedCalls, core.ToolCall{ID: core.NewID(), ToolName: toolName, Arguments: args})
	return b
}

// Var sets a context variable (chainable).
func (b *TurnBuilder) Var(key, value string) *TurnBuilder {
	if b.turn.Variables == nil {
		b.turn.Variables = map[string]string{}
	}
	b.turn.Variables[key] = value
	return b
}

// Build returns the constructed turn context.
func (b *TurnBuilder) Build() core.TurnContext { return b.turn }

// Guideline constructs a guideline enabling the given tools.
func Guideline(id, condition, action string, tools ...string) core.Guideline {
	return core.Guideline{ID: id, Condition: condition, Action: action, ToolNames: tools}
}

// JSON marshals v or panics. Test helper for scripted model replies.
func JSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(raw)
}

// Fenced wraps the JSON encoding of v in a json code fence with some prose,
// the way chat models tend to reply.
func Fenced(v any) string {
	return fmt.Sprintf("Here is my evaluation:\n```json\n%s\n```\nLet me know if anything is unclear.", JSON(v))
}

var numberedLine = regexp.MustCompile(`(?m)^(\d+)\) When (.+), then `)

// ListedConditions extracts the numbered guideline conditions from a
// proposition prompt, keyed by their number. Scripted generators use it to
// answer batches deterministically. Example sections rendered before the
// real batch are skipped by taking the last numbering that starts at 1.
func ListedConditions(prompt string) map[int]string {
	matches := numberedLine.FindAllStringSubmatch(prompt, -1)

	start := 0
	for i, m := range matches {
		if m[1] == "1" {
			start = i
		}
	}

	out := map[int]string{}
	for _, m := range matches[start:] {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		out[n] = m[2]
	}
	return out
}
