package ui

import (
	"github.com/go-go-golems/novachat/pkg/orchestrator"
)

// View holds what the orchestrator has put on screen. It implements
// orchestrator.Surface and is only touched from the bubbletea loop.
type View struct {
	turns          []orchestrator.Turn
	status         string
	inputEnabled   bool
	speechLabel    string
	voiceAvailable bool
	// changed is set by AppendTurn so the model knows to re-render the
	// transcript.
	changed bool
}

var _ orchestrator.Surface = (*View)(nil)

func NewView() *View {
	return &View{inputEnabled: true}
}

func (v *View) AppendTurn(t orchestrator.Turn) {
	v.turns = append(v.turns, t)
	v.changed = true
}

func (v *View) SetStatus(text string) {
	v.status = text
}

func (v *View) SetInputEnabled(enabled bool) {
	v.inputEnabled = enabled
}

func (v *View) SetSpeechToggleLabel(label string) {
	v.speechLabel = label
}

func (v *View) SetVoiceAvailable(available bool) {
	v.voiceAvailable = available
}

// Turns returns a copy of the displayed turns.
func (v *View) Turns() []orchestrator.Turn {
	out := make([]orchestrator.Turn, len(v.turns))
	copy(out, v.turns)
	return out
}

func (v *View) Status() string       { return v.status }
func (v *View) InputEnabled() bool   { return v.inputEnabled }
func (v *View) SpeechLabel() string  { return v.speechLabel }
func (v *View) VoiceAvailable() bool { return v.voiceAvailable }

// LastReply returns the text of the most recent successful assistant turn.
func (v *View) LastReply() (string, bool) {
	for i := len(v.turns) - 1; i >= 0; i-- {
		if v.turns[i].Kind == orchestrator.TurnAssistant {
			return v.turns[i].Text, true
		}
	}
	return "", false
}
