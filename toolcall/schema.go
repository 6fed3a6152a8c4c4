package toolcall

import (
	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/structured"
)

// CallInference is the model's verdict on one possible call of a tool.
type CallInference struct {
	Rationale               string         `json:"applicability_rationale" description:"why the call is or is not needed"`
	Score                   int            `json:"applicability_score" description:"0..10"`
	Arguments               map[string]any `json:"arguments"`
	SameCallIsAlreadyStaged bool           `json:"same_call_is_already_staged"`
	ShouldRun               bool           `json:"should_run"`
}

// Inference is the structured result expected for one candidate tool.
type Inference struct {
	ToolCalls []CallInference `json:"tool_calls"`
}

var inferenceDescriptor = structured.DescriptorFor[Inference]("tool_call_inference")

const (
	minScore = 0
	maxScore = 10
)

// Validate implements structured.Validator.
func (in Inference) Validate() error {
	for i, c := range in.ToolCalls {
		if c.Score < minScore || c.Score > maxScore {
			return core.NewSchemaViolation("applicability_score", "call %d scored %d, expected %d..%d", i+1, c.Score, minScore, maxScore)
		}
	}
	return nil
}
