package session

import "github.com/prospectkeeper/keeper/internal/stream"

// Verdict classifies what a finished run concluded about the contact.
type Verdict string

const (
	VerdictActive   Verdict = "active"
	VerdictInactive Verdict = "inactive"
	VerdictReview   Verdict = "review"
	VerdictNone     Verdict = "none"
)

// Outcome is the display form of a verdict. Detail carries the agent's
// closing rationale when a final event was seen, otherwise "".
type Outcome struct {
	Verdict Verdict
	Label   string
	Detail  string
}

// Reduce folds a run's accumulated events into its verdict. An explicit
// status written by the record-update tool is authoritative over an
// escalation to review, and both are authoritative over plain completion;
// when the agent both updated and escalated, the update wins.
func Reduce(events []stream.AgentEvent) Outcome {
	var hasActive, hasInactive, hasFlag bool
	var detail string

	for _, e := range events {
		switch e.Type {
		case stream.EventToolResult:
			switch e.Name {
			case stream.ToolUpdateContact:
				switch e.Outcome().Status {
				case "active":
					hasActive = true
				case "inactive":
					hasInactive = true
				}
			case stream.ToolFlagForReview:
				hasFlag = true
			}
		case stream.EventFinal:
			detail = e.Text
		}
	}

	switch {
	case hasActive:
		return Outcome{Verdict: VerdictActive, Label: "Verified active", Detail: detail}
	case hasInactive:
		return Outcome{Verdict: VerdictInactive, Label: "Marked inactive", Detail: detail}
	case hasFlag:
		return Outcome{Verdict: VerdictReview, Label: "Flagged for review", Detail: detail}
	default:
		return Outcome{Verdict: VerdictNone, Label: "Agent complete", Detail: detail}
	}
}
