package toolcall

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/prompt"
)

// Shot is a worked example shown to the model before the real evaluation.
type Shot struct {
	Description  string
	Interactions []core.Interaction
	ToolName     string
	StagedCalls  []core.ToolCall
	Expected     Inference
}

// DefaultShots returns the built-in examples.
func DefaultShots() *prompt.ShotCollection[Shot] {
	return prompt.NewShotCollection(
		Shot{
			Description: "The tool is needed and has not been called yet.",
			Interactions: []core.Interaction{
				{Source: core.SourceUser, Text: "What's the status of order 4711?"},
			},
			ToolName: "lookup_order",
			Expected: Inference{ToolCalls: []CallInference{{
				Rationale: "the customer asks for the status of a specific order",
				Score:     9,
				Arguments: map[string]any{"order_id": "4711"},
				ShouldRun: true,
			}}},
		},
		Shot{
			Description: "The same call was already staged earlier in this turn.",
			Interactions: []core.Interaction{
				{Source: core.SourceUser, Text: "What's the status of order 4711?"},
			},
			ToolName: "lookup_order",
			StagedCalls: []core.ToolCall{
				{ToolName: "lookup_order", Arguments: map[string]any{"order_id": "4711"}},
			},
			Expected: Inference{ToolCalls: []CallInference{{
				Rationale:               "the order lookup is needed but already staged",
				Score:                   9,
				Arguments:               map[string]any{"order_id": "4711"},
				SameCallIsAlreadyStaged: true,
				ShouldRun:               true,
			}}},
		},
	)
}

func formatShot(s Shot) string {
	var sb strings.Builder
	if s.Description != "" {
		sb.WriteString(s.Description)
		sb.WriteString("\n\n")
	}
	sb.WriteString(formatInteractions(s.Interactions))
	fmt.Fprintf(&sb, "\n\nCandidate tool: %s\n\n", s.ToolName)
	sb.WriteString(formatStaged(s.StagedCalls))
	sb.WriteString("\n\nExpected result:\n")
	sb.WriteString(mustIndent(s.Expected))
	return sb.String()
}

func formatInteractions(interactions []core.Interaction) string {
	if len(interactions) == 0 {
		return "Conversation: (no interactions yet)"
	}

	var sb strings.Builder
	sb.WriteString("Conversation:")
	for _, in := range interactions {
		fmt.Fprintf(&sb, "\n%s: %s", in.Source, in.Text)
	}
	return sb.String()
}

func formatStaged(calls []core.ToolCall) string {
	if len(calls) == 0 {
		return "Already staged calls: none"
	}

	var sb strings.Builder
	sb.WriteString("Already staged calls:")
	for _, c := range calls {
		args, err := json.Marshal(c.Arguments)
		if err != nil {
			args = []byte("{}")
		}
		fmt.Fprintf(&sb, "\n- %s(%s)", c.ToolName, args)
	}
	return sb.String()
}

func mustIndent(v any) string {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		panic(err)
	}
	return string(raw)
}
