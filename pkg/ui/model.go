// Package ui is the terminal surface of a chat session: a bubbletea model
// that forwards key presses to the orchestrator and renders what the
// orchestrator puts on its View.
package ui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	bspinner "github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/novachat/pkg/conversation"
	"github.com/go-go-golems/novachat/pkg/orchestrator"
	"github.com/rs/zerolog/log"
)

const (
	StatusCopied     = "Reply copied to clipboard."
	StatusCopyFailed = "Clipboard unavailable."
	StatusNoReply    = "Nothing to copy yet."

	voiceUnavailableLabel = "Voice (N/A)"
	voiceLabel            = "Voice: ctrl+t"

	// header, input, status bar and help line
	chromeLines = 4
)

type Settings struct {
	Title       string
	Placeholder string
	// ConfirmExit asks before the close action shuts the session down.
	ConfirmExit bool
	// Markdown renders assistant turns with glamour.
	Markdown      bool
	MarkdownStyle string
	// CopyToClipboard defaults to clipboard.WriteAll.
	CopyToClipboard func(string) error
}

func DefaultSettings() Settings {
	return Settings{
		Title:       "NovaChat Terminal",
		ConfirmExit: true,
		Markdown:    true,
	}
}

type ChatModel struct {
	orch     *orchestrator.Orchestrator
	view     *View
	settings Settings
	keys     keyMap

	input    textinput.Model
	viewport viewport.Model
	spinner  bspinner.Model
	help     help.Model
	renderer *glamour.TermRenderer

	// rendered caches the styled text of each turn by ID.
	rendered map[string]string
	width    int
	height   int

	confirm   *huh.Form
	confirmed *bool

	tokens      int
	tokensAtLen int
}

// NewChatModel builds the model. view must be the Surface the orchestrator
// was created with.
func NewChatModel(orch *orchestrator.Orchestrator, view *View, s Settings) ChatModel {
	if s.CopyToClipboard == nil {
		s.CopyToClipboard = clipboard.WriteAll
	}
	if s.Markdown && s.MarkdownStyle == "" {
		s.MarkdownStyle = DefaultMarkdownStyle()
	}

	in := textinput.New()
	in.Placeholder = s.Placeholder
	in.CharLimit = 4000
	in.Prompt = "> "
	in.Focus()

	sp := bspinner.New()
	sp.Spinner = bspinner.Line
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("63")).Bold(true)

	vp := viewport.New(80, 20)
	vp.Style = lipgloss.NewStyle()

	m := ChatModel{
		orch:        orch,
		view:        view,
		settings:    s,
		keys:        defaultKeyMap(),
		input:       in,
		viewport:    vp,
		spinner:     sp,
		help:        help.New(),
		rendered:    map[string]string{},
		width:       80,
		tokensAtLen: -1,
	}
	m.renderer = m.newRenderer()
	return m
}

func (m ChatModel) newRenderer() *glamour.TermRenderer {
	if !m.settings.Markdown {
		return nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.settings.MarkdownStyle),
		glamour.WithWordWrap(max(m.width-4, 20)),
	)
	if err != nil {
		log.Warn().Err(err).Msg("markdown renderer unavailable, showing plain text")
		return nil
	}
	return r
}

// Init starts the session. The greeting lands on the View and is drawn on
// the first Update.
func (m ChatModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink, m.orch.Start())
}

func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	cmd := m.update(msg)
	m.refresh()
	return m, cmd
}

func (m *ChatModel) update(msg tea.Msg) tea.Cmd {
	if cmd, ok := m.orch.Update(msg); ok {
		return cmd
	}

	if ws, ok := msg.(tea.WindowSizeMsg); ok {
		m.resize(ws.Width, ws.Height)
		return nil
	}

	if m.confirm != nil {
		return m.updateConfirm(msg)
	}

	if k, ok := msg.(tea.KeyMsg); ok {
		if cmd, handled := m.handleKey(k); handled {
			return cmd
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	cmds = append(cmds, cmd)
	if m.view.InputEnabled() {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return tea.Batch(cmds...)
}

func (m *ChatModel) handleKey(k tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(k, m.keys.Quit):
		if m.settings.ConfirmExit && m.orch.State() != orchestrator.StateShuttingDown {
			return m.openConfirm(), true
		}
		return m.orch.Shutdown(), true

	case key.Matches(k, m.keys.Send):
		if !m.view.InputEnabled() {
			return nil, true
		}
		text := m.input.Value()
		m.input.Reset()
		return m.orch.SubmitText(text), true

	case key.Matches(k, m.keys.Voice):
		if !m.view.InputEnabled() {
			return nil, true
		}
		return m.orch.SubmitVoice(), true

	case key.Matches(k, m.keys.ToggleSpeech):
		return m.orch.ToggleSpeech(), true

	case key.Matches(k, m.keys.Copy):
		m.copyLastReply()
		return nil, true
	}
	return nil, false
}

func (m *ChatModel) copyLastReply() {
	text, ok := m.view.LastReply()
	if !ok {
		m.view.SetStatus(StatusNoReply)
		return
	}
	if err := m.settings.CopyToClipboard(text); err != nil {
		log.Warn().Err(err).Msg("could not copy reply to clipboard")
		m.view.SetStatus(StatusCopyFailed)
		return
	}
	m.view.SetStatus(StatusCopied)
}

func (m *ChatModel) openConfirm() tea.Cmd {
	m.confirmed = new(bool)
	m.confirm = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Key("confirm").
				Title("Confirm deactivation").
				Description("Shut down " + m.settings.Title + "?").
				Affirmative("Deactivate").
				Negative("Stay").
				Value(m.confirmed),
		),
	).WithTheme(huh.ThemeCharm()).WithShowHelp(false)
	return m.confirm.Init()
}

func (m *ChatModel) updateConfirm(msg tea.Msg) tea.Cmd {
	if k, ok := msg.(tea.KeyMsg); ok {
		switch {
		case k.Type == tea.KeyCtrlC:
			m.closeConfirm()
			return m.orch.Shutdown()
		case key.Matches(k, m.keys.Dismiss):
			m.closeConfirm()
			return nil
		}
	}

	fm, cmd := m.confirm.Update(msg)
	if f, ok := fm.(*huh.Form); ok {
		m.confirm = f
	}
	switch m.confirm.State {
	case huh.StateCompleted:
		quit := *m.confirmed
		m.closeConfirm()
		if quit {
			return m.orch.Shutdown()
		}
		return cmd
	case huh.StateAborted:
		m.closeConfirm()
		return nil
	}
	return cmd
}

func (m *ChatModel) closeConfirm() {
	m.confirm = nil
	m.confirmed = nil
}

// Confirming reports whether the exit confirmation is showing.
func (m ChatModel) Confirming() bool {
	return m.confirm != nil
}

func (m *ChatModel) resize(width, height int) {
	if width != m.width {
		m.width = width
		m.renderer = m.newRenderer()
		m.rendered = map[string]string{}
	}
	m.height = height
	m.input.Width = max(width-4, 10)
	m.help.Width = width
	m.viewport.Width = width
	m.viewport.Height = max(height-chromeLines, 3)
	m.view.changed = true
}

// refresh pulls the View into the widgets after the orchestrator ran.
func (m *ChatModel) refresh() {
	if m.view.InputEnabled() {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
	if msgs := m.orch.Conversation(); len(msgs) != m.tokensAtLen {
		m.tokens = conversation.EstimateTokens(msgs)
		m.tokensAtLen = len(msgs)
	}
	if !m.view.changed {
		return
	}
	m.view.changed = false
	var b strings.Builder
	for i, t := range m.view.turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.renderTurn(t))
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m *ChatModel) renderTurn(t orchestrator.Turn) string {
	if s, ok := m.rendered[t.ID]; ok && t.ID != "" {
		return s
	}
	var s string
	switch t.Kind {
	case orchestrator.TurnUser:
		s = userStyle.Render(t.Sender+":") + " " + t.Text
	case orchestrator.TurnError:
		s = assistantStyle.Render(t.Sender+":") + "\n" + errorStyle.Render(t.Text)
	default:
		s = assistantStyle.Render(t.Sender+":") + "\n" + m.renderMarkdown(t.Text)
	}
	if t.ID != "" {
		m.rendered[t.ID] = s
	}
	return s
}

func (m *ChatModel) renderMarkdown(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		log.Debug().Err(err).Msg("markdown render failed")
		return text
	}
	return strings.Trim(out, "\n")
}

func (m ChatModel) busy() bool {
	switch m.orch.State() {
	case orchestrator.StateListening, orchestrator.StateAwaitingInference:
		return true
	}
	return false
}

func (m ChatModel) View() string {
	header := headerStyle.Render(m.settings.Title)
	if m.busy() {
		header += " " + m.spinner.View()
	}

	var bottom string
	if m.confirm != nil {
		bottom = m.confirm.View()
	} else {
		bottom = m.input.View()
	}

	voice := voiceLabel
	if !m.view.VoiceAvailable() {
		voice = voiceUnavailableLabel
	}
	right := toggleStyle.Render(m.view.SpeechLabel()) + "  " +
		toggleStyle.Render(voice) + "  " +
		mutedStyle.Render(fmt.Sprintf("~%d tokens", m.tokens))
	left := statusStyle.Render(m.view.Status())
	gap := max(m.width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	statusBar := left + strings.Repeat(" ", gap) + right

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		bottom,
		statusBar,
		m.help.View(m.keys),
	)
}
