package inference

import "fmt"

// Outcome discriminates the variants of Result.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeNetworkFailure
	OutcomeParseFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNetworkFailure:
		return "network_error"
	case OutcomeParseFailure:
		return "parse_error"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is what a Send returns: the assistant text on success, or a
// failure detail. Failures are data, never errors thrown at the caller.
type Result struct {
	Outcome Outcome
	Text    string
	Detail  string
}

func Success(text string) Result {
	return Result{Outcome: OutcomeSuccess, Text: text}
}

func NetworkFailure(detail string) Result {
	return Result{Outcome: OutcomeNetworkFailure, Detail: detail}
}

func ParseFailure(detail string) Result {
	return Result{Outcome: OutcomeParseFailure, Detail: detail}
}

func (r Result) OK() bool {
	return r.Outcome == OutcomeSuccess
}

// DisplayText is the text shown to the user and recorded as the assistant
// turn. Failures render as an "Error: ..." line so the transcript stays
// readable for the model on the next turn.
func (r Result) DisplayText() string {
	switch r.Outcome {
	case OutcomeSuccess:
		return r.Text
	case OutcomeNetworkFailure:
		return "Error: Network failure: " + r.Detail
	case OutcomeParseFailure:
		return "Error: Could not parse LLM response: " + r.Detail
	default:
		return "Error: " + r.Detail
	}
}
