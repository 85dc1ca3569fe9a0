package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/attention/internal/daemon"
	"github.com/ShayCichocki/attention/internal/roster"
	"github.com/ShayCichocki/attention/internal/scheduler"
	"github.com/ShayCichocki/attention/internal/tui"
)

var (
	runOnce         bool
	runTurnDelay    time.Duration
	runPlateauAfter int
	runNoArchive    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scheduling loop",
	Long: `Run the scheduler loop until interrupted.

Every scheduler.tick_interval the loop expires overdue items, re-reads the
signal snapshot, queues new work, and allocates a batch to worker teams.
Teams run concurrently up to budget.max_parallel_sessions. Completed
allocations and closed cycles are archived to paths.state_db.

This build drives teams with a dry-run executor that records turns until a
stop condition fires; use it to tune budgets and weights against a roster
and signal snapshot.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runOnce, "once", false, "run a single tick and wait for its allocations")
	runCmd.Flags().DurationVar(&runTurnDelay, "turn-delay", 0, "simulated duration of one turn")
	runCmd.Flags().IntVar(&runPlateauAfter, "plateau-after", 0, "end dry-run allocations with novelty_plateau after N turns")
	runCmd.Flags().BoolVar(&runNoArchive, "no-archive", false, "do not write completed work to the archive")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env, err := newEnvironment(cfg, true, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()

	out := cmd.OutOrStdout()
	opts := daemon.Options{
		TickInterval:  cfg.Scheduler.TickInterval,
		AllocateBatch: cfg.Scheduler.AllocateBatch,
		Events:        env.events,
		Logger:        env.logger,
		OnEvent:       func(ev scheduler.Event) { printEvent(out, ev) },
	}
	if env.signals != nil {
		opts.Signals = env.signals
	}
	if !runNoArchive {
		db, err := openArchive(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		opts.Archive = db
	}

	if env.roster != nil {
		env.roster.OnReload(func(_ *roster.Snapshot, err error) {
			if err != nil {
				printStatus(out, "✗", fmt.Sprintf("roster reload failed, keeping previous roster: %v", err), color.FgRed)
				return
			}
			printStatus(out, "↻", fmt.Sprintf("roster reloaded: %d active workers", len(env.registry.ActiveWorkers())), color.FgCyan)
		})
		if err := env.roster.Start(); err != nil {
			return fmt.Errorf("watch roster: %w", err)
		}
	}

	exec := daemon.DryRunExecutor{TurnDelay: runTurnDelay, PlateauAfter: runPlateauAfter}
	d := daemon.New(env.sched, exec, opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printStatus(out, "▶", fmt.Sprintf("scheduling every %s with %d active workers", opts.TickInterval, len(env.registry.ActiveWorkers())), color.FgGreen)

	if runOnce {
		_, err = d.RunOnce(ctx)
	} else {
		err = d.Run(ctx)
	}
	env.events.Close()
	d.Close()

	summarize(out, env, d)
	return err
}

func summarize(w io.Writer, env *environment, d *daemon.Daemon) {
	stats := tui.NewStatsView()
	stats.SetStatus(env.sched.GetBudgetStatus())
	stats.SetMetrics(env.sched.GetSchedulerMetrics())
	stats.SetWorkers(len(env.registry.ActiveWorkers()))
	fmt.Fprintln(w)
	fmt.Fprintln(w, stats.View())

	if n := d.Failed(); n > 0 {
		printStatus(w, "✗", fmt.Sprintf("%d executions failed", n), color.FgRed)
	}
	printStatus(w, "✓", fmt.Sprintf("%d allocations completed", d.Completed()), color.FgGreen)
}

// printEvent prints one scheduler event as a colored status line.
func printEvent(w io.Writer, ev scheduler.Event) {
	switch ev.Type {
	case scheduler.EventItemQueued:
		printStatus(w, "+", fmt.Sprintf("queued %s %.3f", ev.WorkType, ev.Priority), color.FgWhite)
	case scheduler.EventItemDeferred:
		printStatus(w, "◌", fmt.Sprintf("deferred %s: no eligible worker", ev.WorkType), color.FgYellow)
	case scheduler.EventItemExpired:
		printStatus(w, "⌛", fmt.Sprintf("expired %s", ev.ItemID), color.FgYellow)
	case scheduler.EventItemDequeued:
		printStatus(w, "-", fmt.Sprintf("dequeued %s", ev.ItemID), color.FgWhite)
	case scheduler.EventAllocationStarted:
		printStatus(w, "●", fmt.Sprintf("started %s with %v", ev.WorkType, ev.Team), color.FgBlue)
	case scheduler.EventAllocationStop:
		printStatus(w, "■", fmt.Sprintf("stop %s after %d turns: %s", ev.AllocationID, ev.TurnsUsed, ev.StopReason), color.FgMagenta)
	case scheduler.EventAllocationCompleted:
		printStatus(w, "✓", fmt.Sprintf("completed %s (%s, %d turns)", ev.WorkType, ev.StopReason, ev.TurnsUsed), color.FgGreen)
	case scheduler.EventCycleReset:
		printStatus(w, "↻", "budget cycle reset", color.FgCyan)
	default:
		printStatus(w, "·", string(ev.Type), color.FgWhite)
	}
}
