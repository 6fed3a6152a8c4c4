package core

// AgentInfo carries identifying details about the agent a turn runs for.
type AgentInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Interaction is a single utterance of the conversation history.
type Interaction struct {
	Source Source `json:"source"`
	Text   string `json:"text"`
}

// TurnContext is the immutable input of one turn: who the agent is, what has
// been said so far, and which tool calls were already staged earlier in the
// same turn.
type TurnContext struct {
	ID           string            `json:"id"`
	Agent        AgentInfo         `json:"agent"`
	Interactions []Interaction     `json:"interactions"`
	StagedCalls  []ToolCall        `json:"staged_calls,omitempty"`
	Variables    map[string]string `json:"variables,omitempty"`
}

// LastUserMessage returns the most recent user utterance, if any.
func (t TurnContext) LastUserMessage() (string, bool) {
	for i := len(t.Interactions) - 1; i >= 0; i-- {
		if t.Interactions[i].Source == SourceUser {
			return t.Interactions[i].Text, true
		}
	}
	return "", false
}
