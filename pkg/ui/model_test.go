package ui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/novachat/pkg/conversation"
	"github.com/go-go-golems/novachat/pkg/inference"
	"github.com/go-go-golems/novachat/pkg/orchestrator"
	"github.com/go-go-golems/novachat/pkg/speech/capture"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	result inference.Result
}

func (s stubSender) Send(ctx context.Context, history []conversation.Message, temperature float64, maxTokens int) inference.Result {
	return s.result
}

type harness struct {
	t      *testing.T
	model  ChatModel
	view   *View
	orch   *orchestrator.Orchestrator
	copied []string
}

func newHarness(t *testing.T, reply inference.Result, mutate func(*Settings)) *harness {
	t.Helper()
	h := &harness{t: t, view: NewView()}
	orch, err := orchestrator.New(orchestrator.Deps{
		Conversation: conversation.New("You are Nova."),
		Sender:       stubSender{result: reply},
		Surface:      h.view,
	}, orchestrator.DefaultSettings())
	require.NoError(t, err)
	h.orch = orch

	s := DefaultSettings()
	s.ConfirmExit = false
	s.Markdown = false
	s.CopyToClipboard = func(text string) error {
		h.copied = append(h.copied, text)
		return nil
	}
	if mutate != nil {
		mutate(&s)
	}
	h.model = NewChatModel(orch, h.view, s)
	h.model.Init()
	h.send(tea.WindowSizeMsg{Width: 100, Height: 30})
	return h
}

func (h *harness) send(msg tea.Msg) tea.Cmd {
	h.t.Helper()
	next, cmd := h.model.Update(msg)
	m, ok := next.(ChatModel)
	require.True(h.t, ok)
	h.model = m
	return cmd
}

func (h *harness) typeText(text string) {
	h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func (h *harness) press(k tea.KeyType) tea.Cmd {
	return h.send(tea.KeyMsg{Type: k})
}

// awaitMsg runs cmd, including batched commands, and returns the first
// message of type T. Commands that never return (ticks) are left running.
func awaitMsg[T tea.Msg](t *testing.T, cmd tea.Cmd) T {
	t.Helper()
	found := make(chan tea.Msg, 64)
	var run func(c tea.Cmd)
	run = func(c tea.Cmd) {
		if c == nil {
			return
		}
		go func() {
			msg := c()
			if batch, ok := msg.(tea.BatchMsg); ok {
				for _, sub := range batch {
					run(sub)
				}
				return
			}
			select {
			case found <- msg:
			default:
			}
		}()
	}
	run(cmd)

	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg := <-found:
			if m, ok := msg.(T); ok {
				return m
			}
		case <-timeout:
			var zero T
			t.Fatalf("no %T produced", zero)
			return zero
		}
	}
}

func TestStartShowsGreetingAndLabels(t *testing.T) {
	h := newHarness(t, inference.Success("hi"), nil)

	turns := h.view.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, orchestrator.TurnAssistant, turns[0].Kind)
	assert.Equal(t, orchestrator.StatusReady, h.view.Status())

	out := h.model.View()
	assert.Contains(t, out, "Greetings Operator")
	assert.Contains(t, out, orchestrator.LabelSpeechUnavailable)
	assert.Contains(t, out, voiceUnavailableLabel)
	assert.Contains(t, out, orchestrator.StatusReady)
}

func TestEnterSubmitsTypedTextAndShowsReply(t *testing.T) {
	h := newHarness(t, inference.Success("All systems nominal."), nil)

	h.typeText("status report")
	cmd := h.press(tea.KeyEnter)
	require.NotNil(t, cmd)

	assert.Equal(t, orchestrator.StateAwaitingInference, h.orch.State())
	assert.False(t, h.view.InputEnabled())
	assert.Empty(t, h.model.input.Value())
	last := h.view.Turns()[len(h.view.Turns())-1]
	assert.Equal(t, "status report", last.Text)
	assert.Equal(t, "Operator", last.Sender)

	done := awaitMsg[orchestrator.InferenceDoneMsg](t, cmd)
	h.send(done)

	assert.Equal(t, orchestrator.StateIdle, h.orch.State())
	assert.True(t, h.view.InputEnabled())
	assert.Equal(t, orchestrator.StatusReady, h.view.Status())
	assert.Contains(t, h.model.View(), "All systems nominal.")
	assert.Len(t, h.orch.Conversation(), 3)
}

func TestEnterIgnoredWhileAwaitingReply(t *testing.T) {
	h := newHarness(t, inference.Success("ok"), nil)

	h.typeText("first")
	require.NotNil(t, h.press(tea.KeyEnter))
	turns := len(h.view.Turns())

	h.typeText("second")
	assert.Nil(t, h.press(tea.KeyEnter))
	assert.Len(t, h.view.Turns(), turns)
	assert.Len(t, h.orch.Conversation(), 2)
}

func TestEmptyEnterIsRejected(t *testing.T) {
	h := newHarness(t, inference.Success("ok"), nil)

	assert.Nil(t, h.press(tea.KeyEnter))
	assert.Equal(t, orchestrator.StatusEmptyInput, h.view.Status())
	assert.Equal(t, orchestrator.StateIdle, h.orch.State())
	assert.Len(t, h.orch.Conversation(), 1)
}

func TestFailedReplyIsShownAsError(t *testing.T) {
	h := newHarness(t, inference.NetworkFailure("connection refused"), nil)

	h.typeText("hello")
	cmd := h.press(tea.KeyEnter)
	h.send(awaitMsg[orchestrator.InferenceDoneMsg](t, cmd))

	last := h.view.Turns()[len(h.view.Turns())-1]
	assert.Equal(t, orchestrator.TurnError, last.Kind)
	assert.Contains(t, h.model.View(), "Error: Network failure: connection refused")
}

func TestExitCommandQuits(t *testing.T) {
	h := newHarness(t, inference.Success("ok"), nil)

	h.typeText("EXIT_NOVA")
	cmd := h.press(tea.KeyEnter)

	awaitMsg[tea.QuitMsg](t, cmd)
	assert.Equal(t, orchestrator.StateShuttingDown, h.orch.State())
	assert.Equal(t, orchestrator.StatusShuttingDown, h.view.Status())
}

func TestQuitKeyAsksForConfirmation(t *testing.T) {
	h := newHarness(t, inference.Success("ok"), func(s *Settings) { s.ConfirmExit = true })

	h.press(tea.KeyEsc)
	require.True(t, h.model.Confirming())
	assert.Contains(t, h.model.View(), "Confirm deactivation")
	assert.Equal(t, orchestrator.StateIdle, h.orch.State())

	h.press(tea.KeyEsc)
	assert.False(t, h.model.Confirming())
	assert.Equal(t, orchestrator.StateIdle, h.orch.State())

	h.press(tea.KeyCtrlC)
	require.True(t, h.model.Confirming())
	cmd := h.press(tea.KeyCtrlC)
	awaitMsg[tea.QuitMsg](t, cmd)
	assert.Equal(t, orchestrator.StateShuttingDown, h.orch.State())
}

func TestQuitKeyWithoutConfirmationShutsDown(t *testing.T) {
	h := newHarness(t, inference.Success("ok"), nil)

	cmd := h.press(tea.KeyCtrlC)
	awaitMsg[tea.QuitMsg](t, cmd)
	assert.False(t, h.view.InputEnabled())
}

func TestCopyLastReply(t *testing.T) {
	h := newHarness(t, inference.Success("copy me"), nil)

	h.typeText("hello")
	cmd := h.press(tea.KeyEnter)
	h.send(awaitMsg[orchestrator.InferenceDoneMsg](t, cmd))

	h.press(tea.KeyCtrlY)
	assert.Equal(t, []string{"copy me"}, h.copied)
	assert.Equal(t, StatusCopied, h.view.Status())
}

func TestCopyFailureIsReported(t *testing.T) {
	h := newHarness(t, inference.Success("ok"), func(s *Settings) {
		s.CopyToClipboard = func(string) error { return errors.New("no display") }
	})

	h.press(tea.KeyCtrlY)
	assert.Equal(t, StatusCopyFailed, h.view.Status())
}

func TestToggleWithoutSpeechDevice(t *testing.T) {
	h := newHarness(t, inference.Success("ok"), nil)

	h.press(tea.KeyCtrlS)
	assert.Equal(t, orchestrator.StatusNoSpeech, h.view.Status())
	assert.Equal(t, orchestrator.LabelSpeechUnavailable, h.view.SpeechLabel())
}

func TestVoiceKeyWithoutCaptureDevice(t *testing.T) {
	h := newHarness(t, inference.Success("ok"), nil)

	assert.Nil(t, h.press(tea.KeyCtrlT))
	assert.Equal(t, capture.StatusOffline, h.view.Status())
	assert.Equal(t, orchestrator.StateIdle, h.orch.State())
}

func TestMarkdownRendering(t *testing.T) {
	h := newHarness(t, inference.Success("plain reply"), func(s *Settings) {
		s.Markdown = true
		s.MarkdownStyle = "notty"
	})
	require.NotNil(t, h.model.renderer)

	h.typeText("hello")
	cmd := h.press(tea.KeyEnter)
	h.send(awaitMsg[orchestrator.InferenceDoneMsg](t, cmd))

	assert.Contains(t, h.model.View(), "plain reply")
}
