package chatrunner

import (
	"context"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/novachat/pkg/config"
	"github.com/go-go-golems/novachat/pkg/events"
	"github.com/go-go-golems/novachat/pkg/inference"
	"github.com/go-go-golems/novachat/pkg/orchestrator"
	"github.com/pkg/errors"
)

// ChatBuilder provides a fluent API for configuring and running a chat session.
type ChatBuilder struct {
	err            error // To collect errors during build steps
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
	router         *events.Router
}

// NewChatBuilder creates a new builder with default settings.
func NewChatBuilder() *ChatBuilder {
	return &ChatBuilder{
		ctx:          context.Background(),
		outputWriter: os.Stdout,
		mode:         RunModeChat,
	}
}

// WithContext sets the context for the chat session.
func (b *ChatBuilder) WithContext(ctx context.Context) *ChatBuilder {
	if b.err != nil {
		return b
	}
	if ctx == nil {
		b.err = errors.New("context cannot be nil")
		return b
	}
	b.ctx = ctx
	return b
}

// WithConfig sets the session configuration. (Required)
func (b *ChatBuilder) WithConfig(cfg *config.Config) *ChatBuilder {
	if b.err != nil {
		return b
	}
	if cfg == nil {
		b.err = errors.New("config cannot be nil")
		return b
	}
	b.cfg = cfg
	return b
}

// WithSender overrides the inference client built from the config.
func (b *ChatBuilder) WithSender(sender inference.Sender) *ChatBuilder {
	if b.err != nil {
		return b
	}
	if sender == nil {
		b.err = errors.New("sender cannot be nil")
		return b
	}
	b.sender = sender
	return b
}

// WithDevices overrides the speech devices probed from the system. Either
// may be nil to run without it.
func (b *ChatBuilder) WithDevices(speech orchestrator.SpeechOutput, capture orchestrator.SpeechInput) *ChatBuilder {
	if b.err != nil {
		return b
	}
	b.speech = speech
	b.capture = capture
	b.devicesSet = true
	return b
}

// WithProgramOptions adds options for configuring the bubbletea program.
func (b *ChatBuilder) WithProgramOptions(opts ...tea.ProgramOption) *ChatBuilder {
	if b.err != nil {
		return b
	}
	b.programOptions = append(b.programOptions, opts...)
	return b
}

// WithMode sets the execution mode (chat, interactive, blocking, serve).
func (b *ChatBuilder) WithMode(mode RunMode) *ChatBuilder {
	if b.err != nil {
		return b
	}
	switch mode {
	case RunModeChat, RunModeInteractive, RunModeBlocking, RunModeServe:
		b.mode = mode
	default:
		b.err = errors.Errorf("invalid run mode: %s", mode)
	}
	return b
}

// WithOutputWriter sets the writer for blocking or interactive modes.
// Defaults to os.Stdout.
func (b *ChatBuilder) WithOutputWriter(w io.Writer) *ChatBuilder {
	if b.err != nil {
		return b
	}
	if w == nil {
		b.err = errors.New("output writer cannot be nil")
		return b
	}
	b.outputWriter = w
	return b
}

// WithPrompt sets the user message of blocking or interactive modes.
func (b *ChatBuilder) WithPrompt(prompt string) *ChatBuilder {
	if b.err != nil {
		return b
	}
	b.prompt = prompt
	return b
}

// WithExternalRouter provides an existing event router instance to use.
// If not provided, an internal router will be created and managed.
func (b *ChatBuilder) WithExternalRouter(router *events.Router) *ChatBuilder {
	if b.err != nil {
		return b
	}
	b.router = router
	return b
}

// Build validates the builder configuration and returns the session.
func (b *ChatBuilder) Build() (*ChatSession, error) {
	if b.err != nil {
		return nil, b.err
	}

	if b.cfg == nil {
		return nil, errors.New("config is required (use WithConfig)")
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}
	if b.mode == "" {
		return nil, errors.New("run mode is required (use WithMode)")
	}
	if (b.mode == RunModeBlocking || b.mode == RunModeInteractive) && strings.TrimSpace(b.prompt) == "" {
		return nil, errors.New("a prompt is required for blocking or interactive mode (use WithPrompt)")
	}

	sender := b.sender
	if sender == nil {
		sender = inference.NewClient(inference.Settings{
			Endpoint: b.cfg.LLM.Endpoint,
			Model:    b.cfg.LLM.Model,
			APIKey:   b.cfg.LLM.APIKey,
			Timeout:  b.cfg.LLM.Timeout,
		})
	}

	return &ChatSession{
		ctx:            b.ctx,
		cfg:            b.cfg,
		sender:         sender,
		speech:         b.speech,
		capture:        b.capture,
		devicesSet:     b.devicesSet,
		programOptions: b.programOptions,
		mode:           b.mode,
		outputWriter:   b.outputWriter,
		prompt:         b.prompt,
		router:         b.router,
	}, nil
}
