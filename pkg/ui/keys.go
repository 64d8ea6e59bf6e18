package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Send         key.Binding
	Voice        key.Binding
	ToggleSpeech key.Binding
	Copy         key.Binding
	Quit         key.Binding
	Dismiss      key.Binding
	ScrollUp     key.Binding
	ScrollDown   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Send:         key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
		Voice:        key.NewBinding(key.WithKeys("ctrl+t", "f2"), key.WithHelp("ctrl+t", "voice")),
		ToggleSpeech: key.NewBinding(key.WithKeys("ctrl+s", "f3"), key.WithHelp("ctrl+s", "speech")),
		Copy:         key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("ctrl+y", "copy reply")),
		Quit:         key.NewBinding(key.WithKeys("ctrl+c", "esc"), key.WithHelp("esc", "quit")),
		Dismiss:      key.NewBinding(key.WithKeys("esc")),
		ScrollUp:     key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "scroll")),
		ScrollDown:   key.NewBinding(key.WithKeys("pgdown")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Voice, k.ToggleSpeech, k.Copy, k.ScrollUp, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
