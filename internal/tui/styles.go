package tui

import "github.com/charmbracelet/lipgloss"

var (
	Success = lipgloss.Color("#8BC34A")
	Warning = lipgloss.Color("#FFC107")
	Danger  = lipgloss.Color("#e53935")
	Accent  = lipgloss.Color("#2196F3")
	Muted   = lipgloss.Color("#7a8699")
)

// Styles groups the lipgloss styles used by the model.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Focused lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Log     lipgloss.Style
	Help    lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(Accent).MarginBottom(1),
		Label:   lipgloss.NewStyle().Width(18),
		Focused: lipgloss.NewStyle().Width(18).Bold(true).Foreground(Accent),
		Success: lipgloss.NewStyle().Foreground(Success).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(Warning),
		Error:   lipgloss.NewStyle().Foreground(Danger),
		Log: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Muted).
			Padding(0, 1),
		Help: lipgloss.NewStyle().Foreground(Muted).MarginTop(1),
	}
}
