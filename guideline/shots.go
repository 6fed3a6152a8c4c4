package guideline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/prompt"
)

// Shot is a worked example shown to the model before the real batch.
type Shot struct {
	Description  string
	Interactions []core.Interaction
	Guidelines   []core.Guideline
	Expected     Checks
}

// DefaultShots returns the built-in examples.
func DefaultShots() *prompt.ShotCollection[Shot] {
	return prompt.NewShotCollection(
		Shot{
			Description: "A guideline applies and has not been acted on yet.",
			Interactions: []core.Interaction{
				{Source: core.SourceUser, Text: "Hi, I'd like to return the shoes I bought last week."},
			},
			Guidelines: []core.Guideline{
				{Condition: "the customer wants to return an item", Action: "ask for the order number"},
				{Condition: "the customer asks about shipping times", Action: "quote 3-5 business days"},
			},
			Expected: Checks{Checks: []Check{
				{GuidelineNumber: 1, Condition: "the customer wants to return an item", Rationale: "the customer explicitly asks to return shoes", Applies: true, Score: 9},
				{GuidelineNumber: 2, Condition: "the customer asks about shipping times", Rationale: "shipping is not discussed", Applies: false, Score: 1},
			}},
		},
		Shot{
			Description: "A guideline applies topically but the agent already followed it.",
			Interactions: []core.Interaction{
				{Source: core.SourceUser, Text: "I want to return my order."},
				{Source: core.SourceAgent, Text: "Sure, could you share the order number?"},
				{Source: core.SourceUser, Text: "It's 4711."},
			},
			Guidelines: []core.Guideline{
				{Condition: "the customer wants to return an item", Action: "ask for the order number"},
			},
			Expected: Checks{Checks: []Check{
				{GuidelineNumber: 1, Condition: "the customer wants to return an item", Rationale: "the agent already asked for and received the order number", Applies: true, AlreadyAddressed: true, Score: 8},
			}},
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
	sb.WriteString("\n\n")
	sb.WriteString(formatGuidelines(s.Guidelines))
	sb.WriteString("\n\nExpected result:\n")

	raw, err := json.MarshalIndent(s.Expected, "", "  ")
	if err != nil {
		// Checks only holds plain fields.
		panic(err)
	}
	sb.Write(raw)
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

func formatGuidelines(guidelines []core.Guideline) string {
	var sb strings.Builder
	sb.WriteString("Guidelines:")
	for i, g := range guidelines {
		fmt.Fprintf(&sb, "\n%d) When %s, then %s", i+1, g.Condition, g.Action)
	}
	return sb.String()
}
