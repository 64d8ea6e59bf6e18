// Package events publishes the turn lifecycle of a chat session on a
// watermill topic.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Type string

const (
	TypeSessionStarted  Type = "session_started"
	TypeInputRejected   Type = "input_rejected"
	TypeCaptureStarted  Type = "capture_started"
	TypeCaptureFinished Type = "capture_finished"
	TypeTurnDispatched  Type = "turn_dispatched"
	TypeTurnCompleted   Type = "turn_completed"
	TypeSpeechToggled   Type = "speech_toggled"
	TypeSpeechFailed    Type = "speech_failed"
	TypeAnomaly         Type = "anomaly"
	TypeSubsystemFailed Type = "subsystem_failed"
	TypeShutdown        Type = "shutdown"
)

// Event is one step of a turn. Only the fields relevant to Type are set.
type Event struct {
	ID      uuid.UUID `json:"id"`
	Type    Type      `json:"type"`
	Time    time.Time `json:"time"`
	TurnID  string    `json:"turn_id,omitempty"`
	State   string    `json:"state,omitempty"`
	Source  string    `json:"source,omitempty"`
	Outcome string    `json:"outcome,omitempty"`
	Failure string    `json:"failure,omitempty"`
	Text    string    `json:"text,omitempty"`
	Detail  string    `json:"detail,omitempty"`
	// Messages is the conversation length after the event.
	Messages int `json:"messages,omitempty"`
	// Tokens is an estimate of the prompt size at dispatch.
	Tokens int `json:"tokens,omitempty"`
}

func New(t Type, turnID string) Event {
	return Event{ID: uuid.New(), Type: t, Time: time.Now().UTC(), TurnID: turnID}
}

func FromJSON(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, errors.Wrap(err, "could not decode event")
	}
	if e.Type == "" {
		return Event{}, errors.New("event has no type")
	}
	return e, nil
}
