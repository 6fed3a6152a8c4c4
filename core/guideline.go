package core

// Guideline is an immutable behavioral rule: when Condition holds, the agent
// should follow Action. ToolNames lists the tools the guideline enables once
// it is proposed for a turn.
type Guideline struct {
	ID        string   `json:"id"`
	Condition string   `json:"condition"`
	Action    string   `json:"action"`
	ToolNames []string `json:"tool_names,omitempty"`
}

// GuidelineProposition states that a guideline applies to the current turn.
// It is created per turn by the proposition engine and never mutated.
type GuidelineProposition struct {
	Guideline Guideline `json:"guideline"`
	Score     int       `json:"score"`
	Rationale string    `json:"rationale"`
}

// GuidelineStore is a read-mostly repository of guidelines keyed by id.
type GuidelineStore interface {
	Create(g Guideline) error
	Get(id string) (Guideline, error)
	List() ([]Guideline, error)
}
