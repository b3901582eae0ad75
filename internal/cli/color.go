package cli

import "github.com/charmbracelet/lipgloss"

var (
	primaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#1E90FF"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00C853"))
	silentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	headerStyle  = lipgloss.NewStyle().Bold(true)
)

func Primary(text string) string { return primaryStyle.Render(text) }
func Error(text string) string   { return errorStyle.Render(text) }
func Warning(text string) string { return warningStyle.Render(text) }
func Success(text string) string { return successStyle.Render(text) }
func Silent(text string) string  { return silentStyle.Render(text) }

// statusText colors an extraction run status.
func statusText(status string) string {
	switch status {
	case "succeeded":
		return Success(status)
	case "failed":
		return Error(status)
	default:
		return Warning(status)
	}
}
