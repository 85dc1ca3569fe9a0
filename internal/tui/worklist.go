package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/attention/pkg/models"
)

// WorkList renders queued items and allocations one per line with a
// status icon, priority and team.
type WorkList struct {
	title string
	lines []string

	// Styles
	titleStyle    lipgloss.Style
	queuedStyle   lipgloss.Style
	deferredStyle lipgloss.Style
	activeStyle   lipgloss.Style
	doneStyle     lipgloss.Style
	dimStyle      lipgloss.Style
}

// NewWorkList creates a new WorkList with the given title.
func NewWorkList(title string) *WorkList {
	return &WorkList{
		title: title,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")),

		queuedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),

		deferredStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),

		activeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")),

		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),
	}
}

// AddItems appends queued work items in the given order.
func (w *WorkList) AddItems(items []*models.WorkItem) {
	for _, item := range items {
		style, icon := w.queuedStyle, "○"
		if item.Status == models.WorkItemDeferred {
			style, icon = w.deferredStyle, "◌"
		}
		line := fmt.Sprintf("%s %.3f %-20s %-12s %s",
			icon, item.Priority, item.Type, shorten(item.Scope, 12), w.dimStyle.Render(shortID(item.ID)))
		if item.Deferrals > 0 {
			line += w.dimStyle.Render(fmt.Sprintf(" deferred x%d", item.Deferrals))
		}
		w.lines = append(w.lines, style.Render(line))
	}
}

// AddAllocations appends allocations, active or completed.
func (w *WorkList) AddAllocations(allocs []*models.Allocation) {
	for _, a := range allocs {
		style, icon := w.activeStyle, "●"
		progress := fmt.Sprintf("%d/%d turns", a.TurnsUsed, a.MaxTurns)
		if a.Status == models.AllocationCompleted {
			style, icon = w.doneStyle, "✓"
			if a.StopReason != nil {
				progress += " " + string(*a.StopReason)
			}
		}
		line := fmt.Sprintf("%s %.3f %-20s %-12s [%s] %s",
			icon, a.Priority, a.Type, shorten(a.Scope, 12), strings.Join(a.Team, ", "), progress)
		w.lines = append(w.lines, style.Render(line))
	}
}

// Len returns the number of rendered rows.
func (w *WorkList) Len() int {
	return len(w.lines)
}

// View renders the list.
func (w *WorkList) View() string {
	var b strings.Builder
	b.WriteString(w.titleStyle.Render(fmt.Sprintf("%s (%d)", w.title, len(w.lines))))
	b.WriteString("\n")
	if len(w.lines) == 0 {
		b.WriteString(w.dimStyle.Render("  (none)"))
		return b.String()
	}
	for i, line := range w.lines {
		b.WriteString("  ")
		b.WriteString(line)
		if i < len(w.lines)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
