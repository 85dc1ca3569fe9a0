package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/attention/internal/scheduler"
)

// StatsView displays the cycle budget: elapsed time, per-dimension
// utilization with progress bars, and running scheduler totals.
type StatsView struct {
	status  scheduler.BudgetStatus
	metrics *scheduler.Metrics
	workers int
	width   int

	// Styles
	labelStyle    lipgloss.Style
	valueStyle    lipgloss.Style
	levelStyle    lipgloss.Style
	progressFull  lipgloss.Style
	progressEmpty lipgloss.Style
	warningStyle  lipgloss.Style
	dangerStyle   lipgloss.Style
	headerStyle   lipgloss.Style
	boxStyle      lipgloss.Style
}

// NewStatsView creates a new StatsView instance.
func NewStatsView() *StatsView {
	return &StatsView{
		width: 30,

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(12),

		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true),

		levelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")).
			Bold(true),

		progressFull: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		progressEmpty: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		warningStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),

		dangerStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")).
			MarginBottom(1),

		boxStyle: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1),
	}
}

// SetStatus sets the budget status to render.
func (s *StatsView) SetStatus(status scheduler.BudgetStatus) {
	s.status = status
}

// SetMetrics adds the running totals section.
func (s *StatsView) SetMetrics(m scheduler.Metrics) {
	s.metrics = &m
}

// SetWorkers sets the active worker count.
func (s *StatsView) SetWorkers(n int) {
	s.workers = n
}

// SetBarWidth sets the progress bar width in cells.
func (s *StatsView) SetBarWidth(width int) {
	if width > 0 {
		s.width = width
	}
}

// View renders the stats display.
func (s *StatsView) View() string {
	var b strings.Builder
	st := s.status

	b.WriteString(s.headerStyle.Render("Cycle Budget"))
	b.WriteString("\n")

	b.WriteString(s.renderRow("Level:", s.renderLevel(st.Level)))
	b.WriteString("\n")

	cycle := fmt.Sprintf("%s elapsed / %s remaining", formatDuration(st.Elapsed), formatDuration(st.TimeRemaining))
	if st.CycleExpired {
		cycle += " (resets on next allocation)"
	}
	b.WriteString(s.renderRow("Cycle:", s.valueStyle.Render(cycle)))
	b.WriteString("\n")

	b.WriteString(s.renderRow("Workers:", s.valueStyle.Render(fmt.Sprintf("%d active", s.workers))))
	b.WriteString("\n\n")

	rows := []struct {
		label string
		used  int
		limit int
		pct   float64
	}{
		{"Items:", st.Cycle.ItemsStarted, st.Budget.MaxItemsPerCycle, st.Utilization.Items},
		{"Sessions:", st.Cycle.SessionsActive, st.Budget.MaxParallelSessions, st.Utilization.Sessions},
		{"Turns:", st.Cycle.TurnsUsed, st.Budget.CycleTurnCeiling(), st.Utilization.Turns},
		{"Proposals:", st.Cycle.ProposalsEmitted, st.Budget.MaxProposalsPerCycle, st.Utilization.Proposals},
	}
	for _, r := range rows {
		pct := r.pct * 100
		value := fmt.Sprintf("%s / %s (%0.1f%%)", formatNumber(int64(r.used)), formatNumber(int64(r.limit)), pct)
		b.WriteString(s.renderRow(r.label, s.valueStyle.Render(value)))
		b.WriteString("\n")
		b.WriteString(s.renderProgressBar(pct, s.width))
		b.WriteString("\n")
	}

	if len(st.Cycle.DeepSynthesisUsed) > 0 {
		b.WriteString("\n")
		b.WriteString(s.labelStyle.Render("Deep synth:"))
		b.WriteString("\n")
		users := make([]string, 0, len(st.Cycle.DeepSynthesisUsed))
		for u := range st.Cycle.DeepSynthesisUsed {
			users = append(users, u)
		}
		sort.Strings(users)
		for _, u := range users {
			b.WriteString(fmt.Sprintf("  %-12s %d / %d\n", u, st.Cycle.DeepSynthesisUsed[u], st.Budget.MaxDeepSynthesisPerUser))
		}
	}

	if m := s.metrics; m != nil {
		b.WriteString("\n")
		b.WriteString(s.labelStyle.Render("Totals:"))
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("  Created:   %d\n", m.TotalCreated))
		b.WriteString(fmt.Sprintf("  Allocated: %d\n", m.TotalAllocated))
		b.WriteString(fmt.Sprintf("  Completed: %d (avg %.1f turns)\n", m.TotalCompleted, m.AvgCompletionTurns))
		b.WriteString(fmt.Sprintf("  Deferred:  %d\n", m.TotalDeferred))
		b.WriteString(fmt.Sprintf("  Expired:   %d\n", m.TotalExpired))
		b.WriteString(fmt.Sprintf("  Queued:    %d (%d deferred)\n", m.QueueDepth, m.DeferredInQueue))
	}

	return s.boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// renderRow renders a label-value pair.
func (s *StatsView) renderRow(label, value string) string {
	return s.labelStyle.Render(label) + " " + value
}

func (s *StatsView) renderLevel(level scheduler.BudgetLevel) string {
	style := s.levelStyle
	switch level {
	case scheduler.BudgetWarning:
		style = s.warningStyle.Bold(true)
	case scheduler.BudgetExhausted:
		style = s.dangerStyle.Bold(true)
	}
	return style.Render(strings.ToUpper(level.String()))
}

// renderProgressBar renders a progress bar.
func (s *StatsView) renderProgressBar(pct float64, width int) string {
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}

	filled := int(pct / 100 * float64(width))
	empty := width - filled

	fullStyle := s.progressFull
	switch {
	case pct >= 100:
		fullStyle = s.dangerStyle
	case pct >= scheduler.DefaultWarningThreshold*100:
		fullStyle = s.warningStyle
	}

	bar := fullStyle.Render(strings.Repeat("█", filled)) +
		s.progressEmpty.Render(strings.Repeat("░", empty))

	return fmt.Sprintf("  [%s]", bar)
}

// formatDuration formats a duration compactly, e.g. 4m12s.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

// formatNumber formats a number with comma separators.
func formatNumber(n int64) string {
	str := fmt.Sprintf("%d", n)
	if n < 0 {
		str = str[1:]
	}

	result := ""
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}

	if n < 0 {
		result = "-" + result
	}
	return result
}
