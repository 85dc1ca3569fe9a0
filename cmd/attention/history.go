package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/attention/internal/state"
	"github.com/ShayCichocki/attention/pkg/models"
)

var (
	historyLimit  int
	historyType   string
	historyCycles bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show archived allocations and turn statistics",
	Long: `List recently completed allocations from the archive together with
turn statistics (mean, median, p90) and the stop reason histogram.

Use --cycles to list closed budget cycles instead.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of rows to show")
	historyCmd.Flags().StringVarP(&historyType, "type", "t", "", "restrict turn statistics to one work item type")
	historyCmd.Flags().BoolVar(&historyCycles, "cycles", false, "list archived cycles")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	out := cmd.OutOrStdout()
	if !archiveExists(cfg) {
		fmt.Fprintln(out, "No archive yet. Run 'attention run' to start scheduling.")
		return nil
	}

	db, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if historyCycles {
		return displayCycles(out, db, historyLimit)
	}
	return displayHistory(out, db, historyLimit, models.WorkItemType(historyType))
}

func displayHistory(w io.Writer, db state.HistoryReader, limit int, workType models.WorkItemType) error {
	if workType != "" && !workType.Valid() {
		return fmt.Errorf("unknown work item type %q", workType)
	}

	records, err := db.RecentAllocations(limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(w, "No completed allocations archived.")
		return nil
	}

	fmt.Fprintf(w, "Recent allocations (%d):\n", len(records))
	for _, r := range records {
		reason := r.StopReason
		switch models.StopReason(reason) {
		case models.StopConsensusReached:
			reason = color.GreenString(reason)
		case models.StopFatalFlawFound, models.StopBudgetExhausted:
			reason = color.RedString(reason)
		default:
			reason = color.YellowString(reason)
		}
		fmt.Fprintf(w, "  %s  %-20s %-12s %2d/%-2d turns  %s  [%s]\n",
			r.CompletedAt[:19], r.Type, r.Scope, r.TurnsUsed, r.MaxTurns, reason, strings.Join(r.TeamMembers(), ", "))
	}

	stats, err := db.TurnStats(workType)
	if err != nil {
		return err
	}
	label := "all types"
	if workType != "" {
		label = string(workType)
	}
	fmt.Fprintf(w, "\nTurns (%s, n=%d): mean %.1f  median %.1f  p90 %.1f  max %.0f\n",
		label, stats.Count, stats.Mean, stats.Median, stats.P90, stats.Max)

	counts, err := db.StopReasonCounts()
	if err != nil {
		return err
	}
	reasons := make([]string, 0, len(counts))
	for r := range counts {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	fmt.Fprintln(w, "\nStop reasons:")
	for _, r := range reasons {
		fmt.Fprintf(w, "  %-26s %d\n", r, counts[models.StopReason(r)])
	}
	return nil
}

func displayCycles(w io.Writer, db state.HistoryReader, limit int) error {
	cycles, err := db.RecentCycles(limit)
	if err != nil {
		return err
	}
	if len(cycles) == 0 {
		fmt.Fprintln(w, "No closed cycles archived.")
		return nil
	}
	fmt.Fprintf(w, "Recent cycles (%d):\n", len(cycles))
	for _, c := range cycles {
		fmt.Fprintf(w, "  %s → %s  items %d/%d  turns %d/%d  proposals %d\n",
			c.StartedAt[:19], c.EndedAt[:19], c.ItemsStarted, c.MaxItems,
			c.TurnsUsed, c.MaxItems*c.MaxTurnsPerItem, c.ProposalsEmitted)
	}
	return nil
}
