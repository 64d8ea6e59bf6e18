package orchestrator

import (
	"github.com/go-go-golems/novachat/pkg/inference"
	"github.com/pkg/errors"
)

var (
	ErrInputRejected   = errors.New("input rejected")
	ErrInternalAnomaly = errors.New("internal state anomaly")
)

// FailureKind classifies what went wrong during a turn. Every kind is
// recovered; none of them stops the session.
type FailureKind string

const (
	FailureNone              FailureKind = ""
	FailureInputRejected     FailureKind = "input_rejected"
	FailureCapture           FailureKind = "capture_failure"
	FailureNetwork           FailureKind = "network_failure"
	FailureParse             FailureKind = "parse_failure"
	FailureSynthesis         FailureKind = "synthesis_failure"
	FailureDeviceUnavailable FailureKind = "device_unavailable"
	FailureInternalAnomaly   FailureKind = "internal_anomaly"
)

func failureOf(r inference.Result) FailureKind {
	switch r.Outcome {
	case inference.OutcomeSuccess:
		return FailureNone
	case inference.OutcomeNetworkFailure:
		return FailureNetwork
	case inference.OutcomeParseFailure:
		return FailureParse
	default:
		return FailureInternalAnomaly
	}
}
