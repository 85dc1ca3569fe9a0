package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/attention/internal/tui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show budget, roster and queue state",
	Long: `Display the scheduler state that the current configuration produces.

Shows:
  - Cycle budget utilization per dimension
  - Active workers on the roster
  - Work items the signal snapshot would queue, by priority
  - The most recent archived cycle, if an archive exists`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env, err := newEnvironment(cfg, false, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()

	out := cmd.OutOrStdout()
	status(out, env)

	if archiveExists(cfg) {
		displayLastCycle(out, env)
	}
	return nil
}

func status(w io.Writer, env *environment) {
	if env.roster == nil {
		printStatus(w, "⚠", "no roster configured (paths.roster); nothing can be allocated", color.FgYellow)
	}
	if env.signals == nil {
		printStatus(w, "⚠", "no signal snapshot configured (paths.signals)", color.FgYellow)
	}
	env.scan(w)

	stats := tui.NewStatsView()
	stats.SetStatus(env.sched.GetBudgetStatus())
	stats.SetMetrics(env.sched.GetSchedulerMetrics())
	stats.SetWorkers(len(env.registry.ActiveWorkers()))
	fmt.Fprintln(w, stats.View())

	queue := tui.NewWorkList("Queue")
	queue.AddItems(env.sched.GetQueue())
	fmt.Fprintln(w, queue.View())
}

func displayLastCycle(w io.Writer, env *environment) {
	db, err := openArchive(env.cfg)
	if err != nil {
		printStatus(w, "✗", err.Error(), color.FgRed)
		return
	}
	defer db.Close()

	cycles, err := db.RecentCycles(1)
	if err != nil {
		printStatus(w, "✗", err.Error(), color.FgRed)
		return
	}
	if len(cycles) == 0 {
		return
	}
	c := cycles[0]
	fmt.Fprintf(w, "\nLast archived cycle: %s → %s\n", c.StartedAt, c.EndedAt)
	fmt.Fprintf(w, "  Items: %d / %d  Turns: %d  Proposals: %d\n",
		c.ItemsStarted, c.MaxItems, c.TurnsUsed, c.ProposalsEmitted)
}
