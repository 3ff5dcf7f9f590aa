// Terminal styling for the interactive session.

package cli

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent  = lipgloss.Color("#7FB4CA")
	colorSuccess = lipgloss.Color("#98BB6C")
	colorWarning = lipgloss.Color("#E6C384")
	colorError   = lipgloss.Color("#E46876")
	colorMuted   = lipgloss.Color("#727169")
)

// styles holds the pre-configured lipgloss styles used by all CLI output.
var styles = struct {
	Title   lipgloss.Style
	Prompt  lipgloss.Style
	Answer  lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
	Prompt:  lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
	Answer:  lipgloss.NewStyle(),
	Muted:   lipgloss.NewStyle().Foreground(colorMuted),
	Success: lipgloss.NewStyle().Foreground(colorSuccess),
	Warning: lipgloss.NewStyle().Foreground(colorWarning),
	Error:   lipgloss.NewStyle().Foreground(colorError),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(0, 1),
}
