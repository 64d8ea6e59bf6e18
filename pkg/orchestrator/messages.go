package orchestrator

import (
	"github.com/go-go-golems/novachat/pkg/inference"
	"github.com/go-go-golems/novachat/pkg/speech/capture"
)

// InferenceDoneMsg carries a finished inference call back to the loop.
type InferenceDoneMsg struct {
	TurnID string
	Result inference.Result
	// Panic is set when the worker crashed instead of returning a result.
	Panic error
}

type CaptureProgressMsg struct {
	TurnID string
	Status string
}

type CaptureDoneMsg struct {
	TurnID string
	Result capture.Result
}

type SpeechDoneMsg struct {
	TurnID string
	Err    error
}

type SpeechStoppedMsg struct {
	Err error
}
