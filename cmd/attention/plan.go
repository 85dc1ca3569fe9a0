package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/attention/internal/scheduler"
	"github.com/ShayCichocki/attention/internal/tui"
)

var (
	planBatch int
	planJSON  bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what one allocation pass would start",
	Long: `Scan the signal snapshot, rank the resulting work items, and run a
single allocation pass against the current roster. Nothing is executed or
archived; the output shows the teams that would be started, the items that
would be deferred for lack of an eligible worker, and what stays queued.`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().IntVarP(&planBatch, "batch", "k", 0, "items to allocate (default: scheduler.allocate_batch)")
	planCmd.Flags().BoolVar(&planJSON, "json", false, "print the allocation result as JSON")
}

// planOutput is the JSON shape of the plan command.
type planOutput struct {
	Scanned int                      `json:"scanned"`
	Result  scheduler.AllocateResult `json:"result"`
	Queue   any                      `json:"queue"`
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env, err := newEnvironment(cfg, false, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()

	return plan(cmd.OutOrStdout(), env, planBatch, planJSON)
}

func plan(w io.Writer, env *environment, k int, asJSON bool) error {
	scanned := env.scan(w)
	res := env.sched.Allocate(k)
	queue := env.sched.GetQueue()

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(planOutput{Scanned: scanned, Result: res, Queue: queue})
	}

	printStatus(w, "•", fmt.Sprintf("%d work items raised from signals", scanned), color.FgCyan)
	if res.Reason != "" {
		printStatus(w, "✗", fmt.Sprintf("no allocation: %s", res.Reason), color.FgYellow)
	}

	started := tui.NewWorkList("Would start")
	started.AddAllocations(res.Allocations)
	fmt.Fprintln(w, started.View())

	if len(res.Deferred) > 0 {
		printStatus(w, "◌", fmt.Sprintf("%d deferred: no eligible worker on the roster", len(res.Deferred)), color.FgYellow)
	}

	queued := tui.NewWorkList("Still queued")
	queued.AddItems(queue)
	fmt.Fprintln(w, queued.View())
	return nil
}
