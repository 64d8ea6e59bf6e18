package orchestrator

import "fmt"

type State int

const (
	StateIdle State = iota
	// StateListening covers a voice capture in progress.
	StateListening
	StateAwaitingInference
	StateFinalizing
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateAwaitingInference:
		return "awaiting_inference"
	case StateFinalizing:
		return "finalizing"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Source says where a turn's user text came from.
type Source string

const (
	SourceText  Source = "text"
	SourceVoice Source = "voice"
)
