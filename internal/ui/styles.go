// internal/ui/styles.go
package ui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	Cyan    = lipgloss.Color("#00FFFF")
	Green   = lipgloss.Color("#00FF00")
	Yellow  = lipgloss.Color("#FFD700")
	Orange  = lipgloss.Color("#FFA500")
	Red     = lipgloss.Color("#FF6B6B")
	Magenta = lipgloss.Color("#FF00FF")
	SkyBlue = lipgloss.Color("#87CEEB")
	Dim     = lipgloss.Color("#555555")
	White   = lipgloss.Color("#FFFFFF")

	// Box styles
	FieldBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Cyan).
			Padding(0, 1)

	BusyFieldBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Orange).
			Padding(0, 1)

	// Text styles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Cyan)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(Dim)

	CursorStyle = lipgloss.NewStyle().
			Reverse(true)

	// Status indicators
	StatusOK   = lipgloss.NewStyle().Foreground(Green).Bold(true)
	StatusWarn = lipgloss.NewStyle().Foreground(Orange).Bold(true)

	// Mode buttons
	ButtonStyle = lipgloss.NewStyle().
			Foreground(SkyBlue).
			Border(lipgloss.NormalBorder()).
			BorderForeground(Dim).
			Padding(0, 1)

	ActiveButtonStyle = lipgloss.NewStyle().
				Foreground(Orange).
				Bold(true).
				Border(lipgloss.NormalBorder()).
				BorderForeground(Orange).
				Padding(0, 1)

	SliderFill  = lipgloss.NewStyle().Foreground(Cyan)
	SliderEmpty = lipgloss.NewStyle().Foreground(Dim)
)

// StatusStyle returns the style for a history status
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "done":
		return StatusOK
	case "failed":
		return ErrorStyle
	case "cancelled", "pending":
		return StatusWarn
	default:
		return lipgloss.NewStyle().Foreground(White)
	}
}
