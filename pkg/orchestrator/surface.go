package orchestrator

// TurnKind tells the surface how to style a turn.
type TurnKind int

const (
	TurnUser TurnKind = iota
	TurnAssistant
	// TurnError is an assistant turn carrying a failure.
	TurnError
)

type Turn struct {
	ID     string
	Sender string
	Text   string
	Kind   TurnKind
}

// Surface is the set of effects the orchestrator has on the interactive
// surface. All methods are called from the interactive loop.
type Surface interface {
	AppendTurn(t Turn)
	SetStatus(text string)
	SetInputEnabled(enabled bool)
	SetSpeechToggleLabel(label string)
	// SetVoiceAvailable is called once at start.
	SetVoiceAvailable(available bool)
}
