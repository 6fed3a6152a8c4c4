package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// Source identifies who an emitted event is attributed to.
type Source string

const (
	// SourceAgent marks events produced on behalf of the agent.
	SourceAgent Source = "agent"
	// SourceUser marks events relaying end-user input.
	SourceUser Source = "user"
	// SourceSystem marks runtime status and diagnostics.
	SourceSystem Source = "system"
)

// EventKind categorizes the payload of an emitted event.
type EventKind string

const (
	// KindStatus carries a StatusPayload.
	KindStatus EventKind = "status"
	// KindMessage carries a MessagePayload.
	KindMessage EventKind = "message"
	// KindTool carries a ToolPayload.
	KindTool EventKind = "tool"
)

// Status values reported through KindStatus events during a turn.
const (
	StatusAcknowledged = "acknowledged"
	StatusProcessing   = "processing"
	StatusTyping       = "typing"
	StatusReady        = "ready"
	StatusError        = "error"
)

// EmittedEvent is the unit relayed to the caller of a turn. It is
// append-only and immutable after emission. Offset is the position of the
// event within its correlation scope, starting at zero.
type EmittedEvent struct {
	ID            string          `json:"id"`
	Source        Source          `json:"source"`
	Kind          EventKind       `json:"kind"`
	CorrelationID string          `json:"correlation_id"`
	Offset        uint64          `json:"offset"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewEmittedEvent serializes payload and stamps a fresh id and UTC timestamp.
// The correlation id is kept verbatim.
func NewEmittedEvent(source Source, kind EventKind, correlationID string, payload any) (EmittedEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return EmittedEvent{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}

	return EmittedEvent{
		ID:            NewID(),
		Source:        source,
		Kind:          kind,
		CorrelationID: correlationID,
		Payload:       raw,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// Decode unmarshals the payload into v.
func (e EmittedEvent) Decode(v any) error { return json.Unmarshal(e.Payload, v) }

// StatusPayload is the payload of KindStatus events.
type StatusPayload struct {
	Status string         `json:"status"`
	Data   map[string]any `json:"data,omitempty"`
}

// MessagePayload is the payload of KindMessage events.
type MessagePayload struct {
	Message string `json:"message"`
}

// ToolPayload is the payload of KindTool events.
type ToolPayload struct {
	ToolCalls []ToolCall `json:"tool_calls"`
}
