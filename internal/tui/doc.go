// Package tui renders scheduler state for the terminal.
//
// It is a read-only view layer built on lipgloss and used by the status,
// plan and run commands:
//   - StatsView: cycle budget utilization with progress bars and totals
//   - WorkList: queued items and allocations, one line each
package tui
