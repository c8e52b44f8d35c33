// internal/export/markdown.go
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"allora/internal/history"
)

// ExportHistory generates a markdown document from history records, in the
// order given.
func ExportHistory(records []history.Record) string {
	var sb strings.Builder

	sb.WriteString("# Completion history\n\n")
	sb.WriteString("---\n\n")
	fmt.Fprintf(&sb, "**Requests:** %d\n\n", len(records))
	if counts := statusCounts(records); counts != "" {
		fmt.Fprintf(&sb, "**Outcome:** %s\n\n", counts)
	}
	sb.WriteString("---\n\n")

	for i, rec := range records {
		fmt.Fprintf(&sb, "## [%s] %s\n\n", rec.CreatedAt.Local().Format("2006-01-02 15:04:05"), formatMode(rec.Mode))
		fmt.Fprintf(&sb, "- **ID:** `%s`\n", rec.ID)
		fmt.Fprintf(&sb, "- **Endpoint:** `%s`\n", rec.Endpoint)
		fmt.Fprintf(&sb, "- **Status:** %s", rec.Status)
		if d := rec.Duration(); d > 0 {
			fmt.Fprintf(&sb, " in %s", d.Round(time.Millisecond))
		}
		sb.WriteString("\n\n")

		sb.WriteString("### Prompt\n\n")
		writeFenced(&sb, rec.Prompt)

		switch {
		case rec.Error != "":
			sb.WriteString("### Error\n\n")
			quote(&sb, rec.Error)
		case rec.Completion != "":
			sb.WriteString("### Completion\n\n")
			quote(&sb, rec.Completion)
		}

		if i < len(records)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("\n---\n\n")
	fmt.Fprintf(&sb, "*Exported from allora on %s*\n", time.Now().Format("2006-01-02 15:04:05"))

	return sb.String()
}

// WriteHistory writes the markdown export to path, creating its directory.
func WriteHistory(records []history.Record, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(ExportHistory(records)), 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// Render formats markdown for a terminal of the given width.
func Render(markdown string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(markdown)
}

func formatMode(mode string) string {
	switch mode {
	case "both":
		return "Send Both"
	case "text":
		return "Send Text"
	case "clipboard":
		return "Clipboard..."
	case "continue":
		return "Text..."
	default:
		return mode
	}
}

func statusCounts(records []history.Record) string {
	order := []history.Status{history.StatusDone, history.StatusFailed, history.StatusCancelled, history.StatusPending}
	counts := make(map[history.Status]int)
	for _, r := range records {
		counts[r.Status]++
	}
	var parts []string
	for _, s := range order {
		if counts[s] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[s], s))
		}
	}
	return strings.Join(parts, ", ")
}

// writeFenced picks a fence longer than any backtick run in content.
func writeFenced(sb *strings.Builder, content string) {
	fence := "```"
	for strings.Contains(content, fence) {
		fence += "`"
	}
	sb.WriteString(fence)
	sb.WriteString("text\n")
	sb.WriteString(strings.TrimRight(content, "\n"))
	sb.WriteString("\n")
	sb.WriteString(fence)
	sb.WriteString("\n\n")
}

func quote(sb *strings.Builder, content string) {
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		sb.WriteString("> ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}
