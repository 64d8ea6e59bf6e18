package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("118"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	toggleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// DefaultMarkdownStyle picks the glamour style matching the terminal
// background.
func DefaultMarkdownStyle() string {
	if !termenv.HasDarkBackground() {
		return "light"
	}
	return "dark"
}
