package chatrunner

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"
	"github.com/go-go-golems/novachat/pkg/config"
	"github.com/go-go-golems/novachat/pkg/conversation"
	"github.com/go-go-golems/novachat/pkg/events"
	"github.com/go-go-golems/novachat/pkg/inference"
	"github.com/go-go-golems/novachat/pkg/mirror"
	"github.com/go-go-golems/novachat/pkg/orchestrator"
	"github.com/go-go-golems/novachat/pkg/speech/capture"
	"github.com/go-go-golems/novachat/pkg/speech/output"
	"github.com/go-go-golems/novachat/pkg/ui"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// RunMode defines the execution mode for the chat session.
type RunMode string

const (
	// RunModeChat runs the terminal UI, plus the HTTP mirror when enabled.
	RunModeChat RunMode = "chat"
	// RunModeInteractive answers the prompt, then offers to continue in
	// the terminal UI with that exchange as history.
	RunModeInteractive RunMode = "interactive"
	// RunModeBlocking answers the prompt on the output writer and exits.
	RunModeBlocking RunMode = "blocking"
	// RunModeServe runs only the HTTP mirror.
	RunModeServe RunMode = "serve"
)

// ChatSession holds the validated configuration and executes the chat logic.
// It's typically created and run by the ChatBuilder.
type ChatSession struct {
	ctx            context.Context
	cfg            *config.Config
	sender         inference.Sender
	speech         orchestrator.SpeechOutput
	capture        orchestrator.SpeechInput
	devicesSet     bool
	programOptions []tea.ProgramOption
	mode           RunMode
	outputWriter   io.Writer
	prompt         string
	router         *events.Router // Optional external router

	// history carries the exchange of an interactive run into the UI.
	history *conversation.State
}

// Run executes the chat session based on its configured mode.
func (cs *ChatSession) Run() error {
	switch cs.mode {
	case RunModeChat:
		return cs.runChatInternal()
	case RunModeInteractive:
		return cs.runInteractiveInternal()
	case RunModeBlocking:
		_, err := cs.runBlockingInternal()
		return err
	case RunModeServe:
		return cs.runServeInternal()
	default:
		return errors.Errorf("unknown run mode: %v", cs.mode)
	}
}

func (cs *ChatSession) orchestratorSettings() orchestrator.Settings {
	s := orchestrator.DefaultSettings()
	s.AssistantName = cs.cfg.UI.AssistantName
	s.UserName = cs.cfg.UI.UserName
	s.VoiceUserName = cs.cfg.UI.UserName + " (Vocal)"
	s.Placeholder = cs.cfg.UI.Placeholder
	s.ExitCommands = cs.cfg.UI.ExitCommands
	s.Greeting = cs.cfg.UI.Greeting
	s.Temperature = cs.cfg.LLM.Temperature
	s.MaxTokens = cs.cfg.LLM.MaxTokens
	s.SpeechEnabled = cs.cfg.TTS.EnabledByDefault
	return s
}

func (cs *ChatSession) mirrorServer() *mirror.Server {
	return mirror.New(cs.sender, mirror.Settings{
		SystemPrompt: cs.cfg.Mirror.SystemPrompt,
		Temperature:  cs.cfg.LLM.Temperature,
		MaxTokens:    cs.cfg.LLM.MaxTokens,
	})
}

// runMirror serves the HTTP mirror next to the terminal UI. A mirror that
// fails is reported and stays down while the chat keeps running.
func (cs *ChatSession) runMirror(ctx context.Context, sink events.Sink) error {
	err := cs.mirrorServer().ListenAndServe(ctx, cs.cfg.Mirror.Addr)
	if err == nil {
		return nil
	}
	log.Error().Err(err).Str("component", "chatrunner").Str("addr", cs.cfg.Mirror.Addr).Msg("HTTP mirror unavailable")
	e := events.New(events.TypeSubsystemFailed, "")
	e.Source = "mirror"
	e.Failure = string(orchestrator.FailureDeviceUnavailable)
	e.Detail = err.Error()
	if perr := sink.Publish(e); perr != nil {
		log.Debug().Err(perr).Msg("event not published")
	}
	return nil
}

// runChatInternal handles the terminal UI mode.
func (cs *ChatSession) runChatInternal() error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return errors.New("the chat interface needs an interactive terminal; use 'ask' or 'serve' instead")
	}

	router := cs.router
	var err error
	if router == nil {
		router, err = events.BuildRouter(cs.ctx, cs.cfg.Events.Redis, cs.cfg.Events.Topic)
		if err != nil {
			return errors.Wrap(err, "failed to create event router")
		}
	}
	router.AddHandler("log", cs.cfg.Events.Topic, events.LogHandler())
	sink := events.NewWatermillSink(router.Publisher, cs.cfg.Events.Topic, 256)
	log.Debug().Str("component", "chatrunner").Str("topic", cs.cfg.Events.Topic).Msg("Created turn event sink")

	eg, childCtx := errgroup.WithContext(cs.ctx)
	childCtx, cancel := context.WithCancel(childCtx)

	f := func() {
		cancel()
		sink.Close()
		defer func(router *events.Router) {
			log.Debug().Msg("Closing router")
			_ = router.Close()
			log.Debug().Msg("Router closed")
		}(router)
	}

	eg.Go(func() error {
		defer f()
		return router.Run(childCtx)
	})

	eg.Go(func() error {
		return sink.Run(childCtx)
	})

	if cs.cfg.Mirror.Enabled {
		eg.Go(func() error {
			return cs.runMirror(childCtx, sink)
		})
	}

	// UI Goroutine
	eg.Go(func() error {
		log.Debug().Msg("Starting UI goroutine")
		defer f()

		<-router.Running()

		speech, capturer := cs.devices(childCtx)
		conv := cs.history
		if conv == nil {
			conv = conversation.New(cs.cfg.LLM.SystemPrompt)
		}
		view := ui.NewView()
		seedView(view, conv, cs.cfg)

		var p *tea.Program
		orch, err := orchestrator.New(orchestrator.Deps{
			Conversation: conv,
			Sender:       cs.sender,
			Surface:      view,
			Speech:       speech,
			Capture:      capturer,
			Events:       sink,
			Notify:       func(msg tea.Msg) { p.Send(msg) },
			Context:      childCtx,
		}, cs.orchestratorSettings())
		if err != nil {
			return errors.Wrap(err, "failed to create orchestrator")
		}

		uiSettings := ui.DefaultSettings()
		uiSettings.Placeholder = cs.cfg.UI.Placeholder
		uiSettings.ConfirmExit = cs.cfg.UI.ConfirmExit
		uiSettings.Markdown = cs.cfg.UI.Markdown
		model := ui.NewChatModel(orch, view, uiSettings)

		opts := append([]tea.ProgramOption{tea.WithContext(childCtx)}, cs.programOptions...)
		if cs.cfg.UI.AltScreen {
			opts = append(opts, tea.WithAltScreen())
		}
		p = tea.NewProgram(model, opts...)

		log.Debug().Str("component", "chatrunner").Msg("Starting Bubble Tea program")
		_, runErr := p.Run()
		log.Debug().Err(runErr).Str("component", "chatrunner").Msg("Bubble Tea program finished")

		if errors.Is(runErr, tea.ErrProgramKilled) && childCtx.Err() != nil {
			return nil
		}
		return runErr
	})

	log.Debug().Msg("Waiting for errgroup")
	err = eg.Wait()
	log.Debug().Err(err).Msg("Errgroup finished")

	if errors.Is(err, context.Canceled) && cs.ctx.Err() == context.Canceled {
		return nil
	}
	return err
}

// seedView shows the non-system history of an interactive run.
func seedView(view *ui.View, conv *conversation.State, cfg *config.Config) {
	for i, m := range conv.Snapshot() {
		t := orchestrator.Turn{ID: fmt.Sprintf("history-%d", i), Text: m.Content}
		switch m.Role {
		case conversation.RoleUser:
			t.Sender = cfg.UI.UserName
			t.Kind = orchestrator.TurnUser
		case conversation.RoleAssistant:
			t.Sender = cfg.UI.AssistantName
			t.Kind = orchestrator.TurnAssistant
		default:
			continue
		}
		view.AppendTurn(t)
	}
}

// devices opens the speech output and voice capture devices. A missing
// device leaves the matching affordance disabled instead of failing.
func (cs *ChatSession) devices(ctx context.Context) (orchestrator.SpeechOutput, orchestrator.SpeechInput) {
	if cs.devicesSet {
		return cs.speech, cs.capture
	}

	var speech orchestrator.SpeechOutput
	dev, err := output.NewExecDevice(ctx, output.ExecDeviceSettings{
		Engine:          cs.cfg.TTS.Engine,
		Rate:            cs.cfg.TTS.Rate,
		VoicePreference: cs.cfg.TTS.VoicePreference,
	})
	if err != nil {
		log.Warn().Err(err).Msg("speech output unavailable")
	} else {
		speech = output.NewController(dev, cs.cfg.TTS.EnabledByDefault)
	}

	var in orchestrator.SpeechInput
	if cs.cfg.STT.Enabled {
		in = newCapturer(cs.cfg.STT)
	}
	return speech, in
}

func newCapturer(c config.STTConfig) orchestrator.SpeechInput {
	rec, err := capture.NewExecRecorder(c.Recorder)
	if err != nil {
		log.Warn().Err(err).Msg("voice capture unavailable")
		return nil
	}
	tr := capture.NewOpenAITranscriber(capture.TranscriberSettings{
		BaseURL:  c.Endpoint,
		APIKey:   c.APIKey,
		Model:    c.Model,
		Language: c.Language,
	})
	s := capture.DefaultSettings()
	s.Audio.SampleRate = c.SampleRate
	s.Audio.Device = c.Device
	s.Calibration = c.Calibration
	s.Timeout = c.Timeout
	s.PhraseLimit = c.PhraseLimit
	s.TrailingSilence = c.TrailingSilence
	return capture.NewCapturer(rec, tr, s)
}

// runBlockingInternal sends the prompt as a single turn and prints the
// reply. The exchange is returned so an interactive run can continue it.
func (cs *ChatSession) runBlockingInternal() (*conversation.State, error) {
	conv := conversation.New(cs.cfg.LLM.SystemPrompt)
	if err := conv.Append(conversation.NewUserMessage(cs.prompt)); err != nil {
		return nil, err
	}

	res := cs.sender.Send(cs.ctx, conv.Snapshot(), cs.cfg.LLM.Temperature, cs.cfg.LLM.MaxTokens)
	if !res.OK() {
		if errors.Is(cs.ctx.Err(), context.Canceled) {
			log.Debug().Msg("Blocking inference cancelled by context")
			return nil, nil
		}
		return nil, errors.New(res.DisplayText())
	}
	if err := conv.Append(conversation.NewAssistantMessage(res.Text)); err != nil {
		return nil, err
	}

	if _, err := fmt.Fprintln(cs.outputWriter, cs.renderReply(res.Text)); err != nil {
		return nil, errors.Wrap(err, "failed to write output")
	}
	return conv, nil
}

func (cs *ChatSession) renderReply(text string) string {
	if !cs.cfg.UI.Markdown {
		return text
	}
	style := "notty"
	if f, ok := cs.outputWriter.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		style = ui.DefaultMarkdownStyle()
	}
	out, err := glamour.Render(text, style)
	if err != nil {
		log.Debug().Err(err).Msg("markdown render failed")
		return text
	}
	return out
}

// runInteractiveInternal handles initial blocking run + optional chat transition.
func (cs *ChatSession) runInteractiveInternal() error {
	log.Debug().Msg("Running initial blocking step for interactive mode")
	conv, err := cs.runBlockingInternal()
	if err != nil {
		return errors.Wrap(err, "error during initial blocking step")
	}
	if conv == nil {
		return nil
	}

	if !isatty.IsTerminal(os.Stderr.Fd()) {
		log.Debug().Msg("Stderr is not a TTY, skipping chat continuation prompt")
		return nil
	}

	continueInChat, err := askForChatContinuation()
	if err != nil {
		return errors.Wrap(err, "failed to ask for chat continuation")
	}
	if !continueInChat {
		log.Debug().Msg("User chose not to continue in chat mode")
		return nil
	}

	log.Debug().Msg("User chose to continue, starting chat UI")
	cs.history = conv
	return cs.runChatInternal()
}

// runServeInternal runs the HTTP mirror until the context is done.
func (cs *ChatSession) runServeInternal() error {
	return cs.mirrorServer().ListenAndServe(cs.ctx, cs.cfg.Mirror.Addr)
}

func askForChatContinuation() (bool, error) {
	continueInChat := true
	err := huh.NewConfirm().
		Title("Do you want to continue in chat mode?").
		Affirmative("Yes").
		Negative("No").
		Value(&continueInChat).
		Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, errors.Wrap(err, "failed to get user input")
	}
	return continueInChat, nil
}
