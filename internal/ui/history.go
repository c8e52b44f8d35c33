// internal/ui/history.go
package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"allora/internal/history"
)

// ViewMode represents the current view state
type ViewMode int

const (
	ViewNormal ViewMode = iota
	ViewHelp
	ViewHistory
)

// HistoryLister is the part of the history store the browser needs.
type HistoryLister interface {
	List(limit int) ([]history.Record, error)
}

const historyLimit = 100

// HistoryState holds the state for the history browser
type HistoryState struct {
	records   []history.Record
	cursor    int
	scrollTop int
	maxHeight int
}

func NewHistoryState() *HistoryState {
	return &HistoryState{maxHeight: 20}
}

func (h *HistoryState) Up() {
	if h.cursor > 0 {
		h.cursor--
		if h.cursor < h.scrollTop {
			h.scrollTop = h.cursor
		}
	}
}

func (h *HistoryState) Down() {
	if h.cursor < len(h.records)-1 {
		h.cursor++
		if h.cursor >= h.scrollTop+h.maxHeight {
			h.scrollTop = h.cursor - h.maxHeight + 1
		}
	}
}

// Selected returns the currently selected record, or nil if none
func (h *HistoryState) Selected() *history.Record {
	if h.cursor >= 0 && h.cursor < len(h.records) {
		return &h.records[h.cursor]
	}
	return nil
}

// Load reads the most recent records.
func (h *HistoryState) Load(store HistoryLister) error {
	if store == nil {
		return errors.New("history is disabled")
	}
	records, err := store.List(historyLimit)
	if err != nil {
		return err
	}
	h.records = records
	h.cursor = 0
	h.scrollTop = 0
	return nil
}

// SetMaxHeight updates the max visible height
func (h *HistoryState) SetMaxHeight(height int) {
	h.maxHeight = max(height-10, 5)
}

// Render renders the history browser overlay
func (h *HistoryState) Render(width, height int) string {
	var content strings.Builder

	content.WriteString(TitleStyle.Render("REQUEST HISTORY"))
	content.WriteString("\n")
	content.WriteString(DimStyle.Render("Enter inserts the selected completion at the cursor"))
	content.WriteString("\n\n")

	if len(h.records) == 0 {
		content.WriteString(DimStyle.Render("No requests recorded yet."))
	} else {
		visibleEnd := min(h.scrollTop+h.maxHeight, len(h.records))

		header := fmt.Sprintf("  %-11s  %-12s  %-10s  %s", "When", "Mode", "Status", "Completion")
		content.WriteString(DimStyle.Render(header))
		content.WriteString("\n")
		content.WriteString(DimStyle.Render(strings.Repeat("-", 75)))
		content.WriteString("\n")

		previewWidth := max(width-60, 20)
		for i := h.scrollTop; i < visibleEnd; i++ {
			r := h.records[i]

			when := r.CreatedAt.Local().Format("01-02 15:04")
			if time.Since(r.CreatedAt) < 24*time.Hour {
				when = r.CreatedAt.Local().Format("Today 15:04")
			}

			preview := r.Completion
			if r.Error != "" {
				preview = r.Error
			}

			cursor := "  "
			lineStyle := DimStyle
			if i == h.cursor {
				cursor = "> "
				lineStyle = lipgloss.NewStyle().Foreground(Cyan)
			}

			status := StatusStyle(string(r.Status)).Width(10).Render(string(r.Status))
			line := fmt.Sprintf("%-11s  %-12s  %s  %s", when, modeLabel(r.Mode), status, truncate(oneLine(preview), previewWidth))

			content.WriteString(cursor)
			content.WriteString(lineStyle.Render(line))
			content.WriteString("\n")
		}

		if len(h.records) > h.maxHeight {
			content.WriteString("\n")
			content.WriteString(DimStyle.Render(fmt.Sprintf("Showing %d-%d of %d", h.scrollTop+1, visibleEnd, len(h.records))))
		}
	}

	content.WriteString("\n\n")
	content.WriteString(DimStyle.Render("Up/Down: Navigate | Enter: Insert | Esc: Close"))

	overlayStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Cyan).
		Padding(1, 2).
		MaxWidth(width - 10).
		MaxHeight(height - 4)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, overlayStyle.Render(content.String()))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-2]) + ".."
}
