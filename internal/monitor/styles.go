package monitor

import "github.com/charmbracelet/lipgloss"

// Palette follows the teacher's dashboard styling (cyan and green on
// a dark terminal, with gold for queued work and red for dead
// backends) so the proxy's operator tooling has the same look and feel
// as its sibling CLI.
var (
	primaryColor = lipgloss.Color("#00FFFF")
	accentColor  = lipgloss.Color("#00FF88")
	warnColor    = lipgloss.Color("#FFD700")
	errColor     = lipgloss.Color("#FF4444")
	subColor     = lipgloss.Color("241")

	titleStyle = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
	subStyle   = lipgloss.NewStyle().Foreground(subColor)
	liveStyle  = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	deadStyle  = lipgloss.NewStyle().Foreground(errColor).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(warnColor)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)
)
