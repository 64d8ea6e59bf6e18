// Package orchestrator runs the turn state machine of a chat session.
//
// All methods of Orchestrator must be called from the interactive loop
// (bubbletea's Update). Blocking work (inference, voice capture, speech) is
// returned as a tea.Cmd; bubbletea runs it on its own goroutine and hands
// the resulting message back to the loop, where Update folds it into the
// session. Workers never touch the conversation, the speech toggle or the
// surface.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/novachat/pkg/conversation"
	"github.com/go-go-golems/novachat/pkg/events"
	"github.com/go-go-golems/novachat/pkg/inference"
	"github.com/go-go-golems/novachat/pkg/speech/capture"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	StatusReady        = "Awaiting Input..."
	StatusEmptyInput   = "Input Array Empty. Please type a message."
	StatusAnalyzing    = "NovaCore Analyzing Request..."
	StatusReceiving    = "Receiving Input (Speak Now)..."
	StatusUnclear      = "Input Unclear or Cancelled."
	StatusAudioError   = "Audio Output Error."
	StatusAnomaly      = "Internal state anomaly."
	StatusShuttingDown = "Deactivating NovaChat..."
	StatusNoSpeech     = "Speech output unavailable."

	LabelSpeechOn          = "Speech: ON"
	LabelSpeechOff         = "Speech: OFF"
	LabelSpeechUnavailable = "Speech (N/A)"
)

// SpeechOutput is the speech output controller as seen by the orchestrator.
type SpeechOutput interface {
	Speak(ctx context.Context, text string) error
	Stop() error
	SetEnabled(enabled bool)
	Enabled() bool
	Available() bool
}

// SpeechInput is the voice capture adapter.
type SpeechInput interface {
	Capture(ctx context.Context, progress capture.ProgressFunc) capture.Result
	Available() bool
}

type Settings struct {
	AssistantName string
	UserName      string
	VoiceUserName string
	// Placeholder is the hint text of the input field; submitting it
	// verbatim counts as empty input.
	Placeholder  string
	ExitCommands []string
	// Greeting is shown (and spoken) at start but not sent to the model.
	Greeting      string
	Temperature   float64
	MaxTokens     int
	SpeechEnabled bool
}

func DefaultSettings() Settings {
	return Settings{
		AssistantName: "Nova",
		UserName:      "Operator",
		VoiceUserName: "Operator (Vocal)",
		Placeholder:   "Enter the input text here (or type 'exit_nova' to close)",
		ExitCommands:  []string{"exit_nova", "exit"},
		Greeting:      "Greetings Operator. NovaChat Terminal online. How may I assist you?",
		Temperature:   0.7,
		MaxTokens:     2048,
		SpeechEnabled: true,
	}
}

type Deps struct {
	Conversation *conversation.State
	Sender       inference.Sender
	Surface      Surface
	// Speech and Capture may be nil when the device is absent.
	Speech  SpeechOutput
	Capture SpeechInput
	Events  events.Sink
	// Notify delivers messages produced while a command is still running,
	// typically tea.Program.Send. Optional.
	Notify func(tea.Msg)
	// Context bounds background work. Defaults to context.Background().
	Context context.Context
}

type Orchestrator struct {
	conv     *conversation.State
	sender   inference.Sender
	surface  Surface
	speech   SpeechOutput
	capture  SpeechInput
	events   events.Sink
	notify   func(tea.Msg)
	ctx      context.Context
	settings Settings

	state    State
	turnID   string
	source   Source
	speechOn bool
}

func New(deps Deps, s Settings) (*Orchestrator, error) {
	if deps.Conversation == nil || deps.Sender == nil || deps.Surface == nil {
		return nil, errors.New("orchestrator needs a conversation, a sender and a surface")
	}
	o := &Orchestrator{
		conv:     deps.Conversation,
		sender:   deps.Sender,
		surface:  deps.Surface,
		speech:   deps.Speech,
		capture:  deps.Capture,
		events:   deps.Events,
		notify:   deps.Notify,
		ctx:      deps.Context,
		settings: s,
	}
	if o.events == nil {
		o.events = events.NopSink{}
	}
	if o.ctx == nil {
		o.ctx = context.Background()
	}
	o.speechOn = s.SpeechEnabled && o.speechAvailable()
	if o.speech != nil {
		o.speech.SetEnabled(o.speechOn)
	}
	return o, nil
}

func (o *Orchestrator) State() State {
	return o.state
}

func (o *Orchestrator) SpeechOn() bool {
	return o.speechOn
}

// Conversation returns a copy of the messages exchanged so far.
func (o *Orchestrator) Conversation() []conversation.Message {
	return o.conv.Snapshot()
}

func (o *Orchestrator) speechAvailable() bool {
	return o.speech != nil && o.speech.Available()
}

func (o *Orchestrator) voiceAvailable() bool {
	return o.capture != nil && o.capture.Available()
}

func (o *Orchestrator) speechLabel() string {
	switch {
	case !o.speechAvailable():
		return LabelSpeechUnavailable
	case o.speechOn:
		return LabelSpeechOn
	default:
		return LabelSpeechOff
	}
}

// Start initializes the surface and shows the greeting.
func (o *Orchestrator) Start() tea.Cmd {
	o.surface.SetVoiceAvailable(o.voiceAvailable())
	o.surface.SetSpeechToggleLabel(o.speechLabel())
	o.surface.SetInputEnabled(true)
	o.surface.SetStatus(StatusReady)

	e := o.event(events.TypeSessionStarted, "")
	e.Messages = o.conv.Len()
	o.publish(e)
	if !o.speechAvailable() {
		o.publishUnavailable("speech output device unavailable")
	}
	if !o.voiceAvailable() {
		o.publishUnavailable("voice capture device unavailable")
	}

	if o.settings.Greeting == "" {
		return nil
	}
	o.surface.AppendTurn(Turn{
		ID:     uuid.NewString(),
		Sender: o.settings.AssistantName,
		Text:   o.settings.Greeting,
		Kind:   TurnAssistant,
	})
	if o.shouldSpeak() {
		return o.speakCmd("", o.settings.Greeting)
	}
	return nil
}

// Update folds a message produced by one of the orchestrator's commands
// back into the session. It reports whether msg was one of them.
func (o *Orchestrator) Update(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case InferenceDoneMsg:
		return o.finishInference(msg), true
	case CaptureProgressMsg:
		if o.state == StateListening && msg.TurnID == o.turnID {
			o.surface.SetStatus(msg.Status)
		}
		return nil, true
	case CaptureDoneMsg:
		return o.finishCapture(msg), true
	case SpeechDoneMsg:
		o.finishSpeech(msg)
		return nil, true
	case SpeechStoppedMsg:
		if msg.Err != nil {
			log.Warn().Err(msg.Err).Msg("could not stop speech output")
		}
		return nil, true
	}
	return nil, false
}

// IsExitCommand reports whether text is one of the exit sentinels.
func (o *Orchestrator) IsExitCommand(text string) bool {
	t := strings.TrimSpace(text)
	for _, c := range o.settings.ExitCommands {
		if strings.EqualFold(t, c) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) isEmpty(text string) bool {
	t := strings.TrimSpace(text)
	return t == "" || (o.settings.Placeholder != "" && t == o.settings.Placeholder)
}

// SubmitText handles a typed submission.
func (o *Orchestrator) SubmitText(text string) tea.Cmd {
	if o.state == StateShuttingDown {
		return nil
	}
	if o.IsExitCommand(text) {
		return o.Shutdown()
	}
	if o.isEmpty(text) {
		o.reject(SourceText)
		return nil
	}
	if o.state != StateIdle {
		o.anomaly(fmt.Sprintf("text submitted while %s", o.state))
		return nil
	}
	text = strings.TrimSpace(text)
	o.turnID = uuid.NewString()
	o.source = SourceText
	if !o.appendUser(text, o.settings.UserName) {
		return nil
	}
	return o.dispatch()
}

// SubmitVoice starts a voice capture. The user turn is created once the
// capture returns text.
func (o *Orchestrator) SubmitVoice() tea.Cmd {
	if o.state == StateShuttingDown {
		return nil
	}
	if !o.voiceAvailable() {
		o.surface.SetStatus(capture.StatusOffline)
		return nil
	}
	if o.state != StateIdle {
		o.anomaly(fmt.Sprintf("voice submitted while %s", o.state))
		return nil
	}

	o.state = StateListening
	o.turnID = uuid.NewString()
	o.source = SourceVoice
	o.surface.SetInputEnabled(false)
	o.surface.SetStatus(StatusReceiving)
	o.publish(o.event(events.TypeCaptureStarted, o.turnID))

	turnID, ctx, in, notify := o.turnID, o.ctx, o.capture, o.notify
	return func() tea.Msg {
		progress := func(status string) {
			if notify != nil {
				notify(CaptureProgressMsg{TurnID: turnID, Status: status})
			}
		}
		return CaptureDoneMsg{TurnID: turnID, Result: in.Capture(ctx, progress)}
	}
}

func (o *Orchestrator) finishCapture(msg CaptureDoneMsg) tea.Cmd {
	if o.state == StateShuttingDown {
		log.Debug().Str("turn_id", msg.TurnID).Msg("discarding capture result after shutdown")
		return nil
	}
	if o.state != StateListening || msg.TurnID != o.turnID {
		o.anomaly(fmt.Sprintf("capture result for turn %s arrived while %s", msg.TurnID, o.state))
		return nil
	}

	res := msg.Result
	text := strings.TrimSpace(res.Text)
	if text == "" {
		status := res.Status
		if status == "" {
			status = StatusUnclear
		}
		e := o.event(events.TypeCaptureFinished, o.turnID)
		e.Failure = string(FailureCapture)
		if res.Err != nil {
			e.Detail = res.Err.Error()
		}
		o.publish(e)
		o.toIdle(status)
		return nil
	}

	e := o.event(events.TypeCaptureFinished, o.turnID)
	e.Text = text
	o.publish(e)
	if !o.appendUser(text, o.settings.VoiceUserName) {
		return nil
	}
	return o.dispatch()
}

func (o *Orchestrator) appendUser(text, sender string) bool {
	if err := o.conv.Append(conversation.NewUserMessage(text)); err != nil {
		o.anomaly(err.Error())
		o.toIdle(StatusAnomaly)
		return false
	}
	o.surface.AppendTurn(Turn{ID: o.turnID, Sender: sender, Text: text, Kind: TurnUser})
	return true
}

// dispatch hands a frozen copy of the conversation to an inference worker.
func (o *Orchestrator) dispatch() tea.Cmd {
	if !o.conv.AwaitingReply() {
		o.anomaly("no user input to respond to")
		o.toIdle(StatusAnomaly)
		return nil
	}
	o.state = StateAwaitingInference
	o.surface.SetInputEnabled(false)
	o.surface.SetStatus(StatusAnalyzing)

	history := o.conv.Snapshot()
	tokens := conversation.EstimateTokens(history)
	log.Debug().
		Str("turn_id", o.turnID).
		Str("source", string(o.source)).
		Int("messages", len(history)).
		Int("tokens", tokens).
		Msg("dispatching inference")
	e := o.event(events.TypeTurnDispatched, o.turnID)
	e.Messages = len(history)
	e.Tokens = tokens
	o.publish(e)

	turnID, ctx, sender := o.turnID, o.ctx, o.sender
	temperature, maxTokens := o.settings.Temperature, o.settings.MaxTokens
	return func() (msg tea.Msg) {
		defer func() {
			if r := recover(); r != nil {
				err := errors.Errorf("inference worker panicked: %v", r)
				log.Error().Err(err).Str("turn_id", turnID).Msg("critical error during inference")
				msg = InferenceDoneMsg{TurnID: turnID, Panic: err}
			}
		}()
		return InferenceDoneMsg{TurnID: turnID, Result: sender.Send(ctx, history, temperature, maxTokens)}
	}
}

func (o *Orchestrator) finishInference(msg InferenceDoneMsg) tea.Cmd {
	if o.state == StateShuttingDown {
		log.Debug().Str("turn_id", msg.TurnID).Msg("discarding inference result after shutdown")
		return nil
	}
	if o.state != StateAwaitingInference || msg.TurnID != o.turnID {
		o.anomaly(fmt.Sprintf("inference result for turn %s arrived while %s", msg.TurnID, o.state))
		return nil
	}
	o.state = StateFinalizing

	text, kind, failure := msg.Result.DisplayText(), TurnAssistant, failureOf(msg.Result)
	if msg.Panic != nil {
		text, failure = "Error: Internal state anomaly: "+msg.Panic.Error(), FailureInternalAnomaly
	}
	if failure != FailureNone {
		kind = TurnError
	}
	if err := o.conv.Append(conversation.NewAssistantMessage(text)); err != nil {
		log.Error().Err(err).Str("turn_id", o.turnID).Msg("could not record assistant message")
	}
	o.surface.AppendTurn(Turn{ID: o.turnID, Sender: o.settings.AssistantName, Text: text, Kind: kind})

	e := o.event(events.TypeTurnCompleted, o.turnID)
	e.Outcome = msg.Result.Outcome.String()
	e.Failure = string(failure)
	e.Detail = msg.Result.Detail
	if msg.Panic != nil {
		e.Outcome = string(FailureInternalAnomaly)
		e.Detail = msg.Panic.Error()
	}
	e.Messages = o.conv.Len()
	o.publish(e)

	// the toggle is read here, at finalization, not when the turn started
	var cmd tea.Cmd
	if o.shouldSpeak() {
		cmd = o.speakCmd(o.turnID, text)
	}
	o.toIdle(StatusReady)
	return cmd
}

func (o *Orchestrator) toIdle(status string) {
	o.state = StateIdle
	o.surface.SetInputEnabled(true)
	o.surface.SetStatus(status)
}

func (o *Orchestrator) shouldSpeak() bool {
	return o.speechOn && o.speechAvailable() && o.speech.Enabled()
}

func (o *Orchestrator) speakCmd(turnID, text string) tea.Cmd {
	ctx, speech := o.ctx, o.speech
	return func() tea.Msg {
		return SpeechDoneMsg{TurnID: turnID, Err: speech.Speak(ctx, text)}
	}
}

func (o *Orchestrator) stopCmd() tea.Cmd {
	speech := o.speech
	return func() tea.Msg {
		return SpeechStoppedMsg{Err: speech.Stop()}
	}
}

func (o *Orchestrator) finishSpeech(msg SpeechDoneMsg) {
	if msg.Err == nil {
		return
	}
	e := o.event(events.TypeSpeechFailed, msg.TurnID)
	e.Failure = string(FailureSynthesis)
	e.Detail = msg.Err.Error()
	o.publish(e)
	if o.state != StateShuttingDown {
		o.surface.SetStatus(StatusAudioError)
	}
}

// ToggleSpeech flips speech output. It can be used in any state; a change
// made while a turn is in flight applies when that turn finalizes.
func (o *Orchestrator) ToggleSpeech() tea.Cmd {
	if o.state == StateShuttingDown {
		return nil
	}
	if !o.speechAvailable() {
		o.surface.SetSpeechToggleLabel(LabelSpeechUnavailable)
		o.surface.SetStatus(StatusNoSpeech)
		return nil
	}
	o.speechOn = !o.speechOn
	o.speech.SetEnabled(o.speechOn)
	o.surface.SetSpeechToggleLabel(o.speechLabel())

	e := o.event(events.TypeSpeechToggled, o.turnID)
	e.Outcome = o.speechLabel()
	o.publish(e)
	log.Info().Bool("speech", o.speechOn).Msg("speech output toggled")

	if !o.speechOn {
		return o.stopCmd()
	}
	return nil
}

// Shutdown moves to the terminal state. Speech is stopped before the
// program quits; an inference call still in flight is left to finish or
// time out on its own and its result is dropped.
func (o *Orchestrator) Shutdown() tea.Cmd {
	if o.state == StateShuttingDown {
		return nil
	}
	prev := o.state
	o.state = StateShuttingDown
	o.surface.SetInputEnabled(false)
	o.surface.SetStatus(StatusShuttingDown)

	e := o.event(events.TypeShutdown, o.turnID)
	e.Detail = "from " + prev.String()
	e.Messages = o.conv.Len()
	o.publish(e)
	log.Info().Str("from", prev.String()).Msg("NovaChat shutting down")

	if o.speech == nil {
		return tea.Quit
	}
	return tea.Sequence(o.stopCmd(), tea.Quit)
}

func (o *Orchestrator) reject(source Source) {
	o.surface.SetStatus(StatusEmptyInput)
	e := o.event(events.TypeInputRejected, "")
	e.Source = string(source)
	e.Failure = string(FailureInputRejected)
	o.publish(e)
	log.Debug().Str("source", string(source)).Msg("rejected empty input")
}

// anomaly reports an out of turn call. It is shown like an error turn but
// never recorded in the conversation.
func (o *Orchestrator) anomaly(detail string) {
	err := errors.Wrap(ErrInternalAnomaly, detail)
	log.Error().Err(err).Str("state", o.state.String()).Msg("orchestrator invoked out of turn")
	o.surface.AppendTurn(Turn{
		ID:     uuid.NewString(),
		Sender: o.settings.AssistantName,
		Text:   "Error: Internal state anomaly: " + detail,
		Kind:   TurnError,
	})
	o.surface.SetStatus(StatusAnomaly)
	e := o.event(events.TypeAnomaly, o.turnID)
	e.Failure = string(FailureInternalAnomaly)
	e.Detail = detail
	o.publish(e)
}

func (o *Orchestrator) publishUnavailable(detail string) {
	e := o.event(events.TypeSessionStarted, "")
	e.Failure = string(FailureDeviceUnavailable)
	e.Detail = detail
	o.publish(e)
}

func (o *Orchestrator) event(t events.Type, turnID string) events.Event {
	e := events.New(t, turnID)
	e.State = o.state.String()
	if turnID != "" {
		e.Source = string(o.source)
	}
	return e
}

func (o *Orchestrator) publish(e events.Event) {
	if err := o.events.Publish(e); err != nil {
		log.Debug().Err(err).Str("type", string(e.Type)).Msg("event not published")
	}
}
