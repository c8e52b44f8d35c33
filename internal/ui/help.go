// internal/ui/help.go
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	helpSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(Yellow).
				MarginTop(1)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(Green).
			Bold(true)

	helpCmdStyle = lipgloss.NewStyle().
			Foreground(Magenta)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(White)
)

// HelpContent returns the formatted help overlay content
func HelpContent(width, height int) string {
	var content strings.Builder

	content.WriteString(TitleStyle.Render("ALLORA HELP"))
	content.WriteString("\n\n")

	content.WriteString(helpSectionStyle.Render("KEYBINDINGS"))
	content.WriteString("\n\n")

	keybindings := []struct {
		key  string
		desc string
	}{
		{"F2", "Send Both: text field + clipboard"},
		{"F3", "Send Text: text field only"},
		{"F4", "Clipboard...: continue the clipboard"},
		{"F5", "Text...: continue the text field"},
		{"Shift+Left/Right", "Max tokens -1 / +1"},
		{"PgDn / PgUp", "Max tokens -10 / +10"},
		{"Alt+H", "Browse request history"},
		{"Enter", "New line, or run a /command line"},
		{"F1", "Toggle this help"},
		{"Esc", "Cancel request / close overlay"},
		{"Ctrl+C", "Quit"},
	}

	for _, kb := range keybindings {
		key := helpKeyStyle.Width(18).Render(kb.key)
		content.WriteString("  " + key + "  " + helpDescStyle.Render(kb.desc) + "\n")
	}

	content.WriteString("\n")
	content.WriteString(helpSectionStyle.Render("SLASH COMMANDS"))
	content.WriteString("\n\n")

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/both /text /clip /cont", "Same as F2-F5"},
		{"/tokens <1-500>", "Set max tokens"},
		{"/temp <0-2>", "Set temperature"},
		{"/stream on|off", "Stream the completion as it is generated"},
		{"/replace auto|always|never", "Whether the first chunk replaces the text"},
		{"/cancel", "Cancel the request in flight"},
		{"/clear", "Clear the text field"},
		{"/history", "Browse request history"},
	}

	for _, c := range commands {
		cmd := helpCmdStyle.Width(28).Render(c.cmd)
		content.WriteString("  " + cmd + "  " + helpDescStyle.Render(c.desc) + "\n")
	}

	content.WriteString("\n")
	footer := DimStyle.Render("Press F1 or Esc to close this help")
	content.WriteString(lipgloss.PlaceHorizontal(max(width-8, 0), lipgloss.Center, footer))

	overlayStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Cyan).
		Padding(1, 3).
		MaxWidth(width - 10).
		MaxHeight(height - 4)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, overlayStyle.Render(content.String()))
}

func (m Model) renderHelp() string {
	return HelpContent(m.width, m.height)
}
