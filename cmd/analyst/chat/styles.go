package chat

import "github.com/charmbracelet/lipgloss"

var (
	accent  = lipgloss.Color("#8BC34A")
	muted   = lipgloss.Color("#6c7a89")
	danger  = lipgloss.Color("#e53935")
	primary = lipgloss.Color("#2196F3")
)

// Styles holds the chat view styles.
type Styles struct {
	Header  lipgloss.Style
	User    lipgloss.Style
	Step    lipgloss.Style
	Failed  lipgloss.Style
	Status  lipgloss.Style
	Help    lipgloss.Style
	Input   lipgloss.Style
	Spinner lipgloss.Style
}

// DefaultStyles returns the default palette.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(accent).Padding(0, 1),
		User:    lipgloss.NewStyle().Bold(true).Foreground(primary),
		Step:    lipgloss.NewStyle().Foreground(muted).PaddingLeft(2),
		Failed:  lipgloss.NewStyle().Foreground(danger).PaddingLeft(2),
		Status:  lipgloss.NewStyle().Foreground(muted).Italic(true),
		Help:    lipgloss.NewStyle().Foreground(muted),
		Input:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(muted).Padding(0, 1),
		Spinner: lipgloss.NewStyle().Foreground(accent),
	}
}
