// internal/ui/field.go
package ui

import (
	"fmt"
	"strings"
	"time"

	"allora/internal/completion"
	"allora/internal/prompt"
	"allora/internal/splice"
)

// renderField draws the buffer with a block cursor.
func renderField(buf *splice.TextBuffer, width int, busy bool) string {
	before, _ := buf.DocumentContextBeforeInput()
	after := buf.DocumentContextAfterInput()

	cursor := " "
	if r := []rune(after); len(r) > 0 && r[0] != '\n' {
		cursor = string(r[0])
		after = string(r[1:])
	}

	box := FieldBox
	if busy {
		box = BusyFieldBox
	}
	return box.Width(max(width-2, 10)).Render(before + CursorStyle.Render(cursor) + after)
}

func renderButtons(active prompt.Mode, busy bool) string {
	keys := []string{"F2", "F3", "F4", "F5"}
	var parts []string
	for i, mode := range prompt.Modes() {
		style := ButtonStyle
		if busy && mode == active {
			style = ActiveButtonStyle
		}
		parts = append(parts, style.Render(keys[i]+" "+mode.Label()))
	}
	return strings.Join(parts, " ")
}

const sliderWidth = 30

// renderSlider draws the max-token slider over [MinMaxTokens, MaxMaxTokens].
func renderSlider(n int) string {
	span := completion.MaxMaxTokens - completion.MinMaxTokens
	filled := (n - completion.MinMaxTokens) * sliderWidth / span
	filled = min(max(filled, 0), sliderWidth)
	bar := SliderFill.Render(strings.Repeat("█", filled)) + SliderEmpty.Render(strings.Repeat("░", sliderWidth-filled))
	return fmt.Sprintf("Max tokens %s %d", bar, n)
}

// currentLine returns the text between the last newline before the
// cursor and the cursor.
func currentLine(buf *splice.TextBuffer) string {
	before, _ := buf.DocumentContextBeforeInput()
	if i := strings.LastIndex(before, "\n"); i >= 0 {
		return before[i+1:]
	}
	return before
}

func modeLabel(s string) string {
	mode, err := prompt.ParseMode(s)
	if err != nil {
		return s
	}
	return mode.Label()
}

// formatElapsedTime formats duration in a human-readable way
func formatElapsedTime(elapsed time.Duration) string {
	if elapsed < time.Second {
		return "<1s"
	}
	if elapsed < time.Minute {
		return fmt.Sprintf("%ds", int(elapsed.Seconds()))
	}
	mins := int(elapsed.Minutes())
	secs := int(elapsed.Seconds()) % 60
	return fmt.Sprintf("%dm%ds", mins, secs)
}
