package guideline

import (
	"github.com/hupe1980/turnmesh/core"
	"github.com/hupe1980/turnmesh/structured"
)

// Check is the model's verdict on one guideline of a batch.
type Check struct {
	GuidelineNumber  int    `json:"guideline_number" description:"number of the guideline as listed"`
	Condition        string `json:"condition,omitempty" description:"the guideline condition, repeated"`
	Rationale        string `json:"rationale" description:"why the guideline does or does not apply"`
	Applies          bool   `json:"applies"`
	AlreadyAddressed bool   `json:"already_addressed" description:"true if the conversation already satisfied the action"`
	Score            int    `json:"applicability_score" description:"1..10"`
}

// Checks is the structured result expected for a batch.
type Checks struct {
	Checks []Check `json:"checks"`
}

var checksDescriptor = structured.DescriptorFor[Checks]("guideline_checks")

const (
	minApplicabilityScore = 1
	maxApplicabilityScore = 10
)

// validateBatch returns a validator requiring exactly one in-range check per
// guideline of a batch of size n.
func validateBatch(n int) func(Checks) error {
	return func(c Checks) error {
		seen := make(map[int]bool, n)
		for _, ch := range c.Checks {
			if ch.GuidelineNumber < 1 || ch.GuidelineNumber > n {
				return core.NewSchemaViolation("guideline_number", "%d is not a listed guideline (1..%d)", ch.GuidelineNumber, n)
			}
			if seen[ch.GuidelineNumber] {
				return core.NewSchemaViolation("guideline_number", "guideline %d was checked more than once", ch.GuidelineNumber)
			}
			seen[ch.GuidelineNumber] = true

			if ch.Score < minApplicabilityScore || ch.Score > maxApplicabilityScore {
				return core.NewSchemaViolation("applicability_score", "guideline %d scored %d, expected %d..%d",
					ch.GuidelineNumber, ch.Score, minApplicabilityScore, maxApplicabilityScore)
			}
		}
		for i := 1; i <= n; i++ {
			if !seen[i] {
				return core.NewSchemaViolation("checks", "guideline %d was not checked", i)
			}
		}
		return nil
	}
}
