package core

// ToolCall is a tool invocation decided by the staging engine, prior to the
// tool actually being executed.
type ToolCall struct {
	ID        string         `json:"id"`
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
}

// StagingOutcome is the final decision recorded for an evaluated call.
type StagingOutcome string

const (
	// OutcomeStaged means the call will be issued.
	OutcomeStaged StagingOutcome = "staged"
	// OutcomeSkipped means the call should not run or scored below threshold.
	OutcomeSkipped StagingOutcome = "skipped"
	// OutcomeDuplicateSuppressed means an equivalent call was already staged.
	// It is a normal outcome, never an error.
	OutcomeDuplicateSuppressed StagingOutcome = "duplicate_suppressed"
	// OutcomeFailed means the candidate could not be evaluated; Err holds why.
	OutcomeFailed StagingOutcome = "failed"
)

// ToolCallEvaluation is the staging engine's verdict on one candidate call.
type ToolCallEvaluation struct {
	ToolName  string         `json:"tool_name"`
	Score     int            `json:"score"`
	ShouldRun bool           `json:"should_run"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Duplicate bool           `json:"duplicate"`
	Rationale string         `json:"rationale,omitempty"`
	Outcome   StagingOutcome `json:"outcome"`
	Err       error          `json:"-"`
}
