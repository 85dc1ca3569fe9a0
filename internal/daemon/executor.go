package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/ShayCichocki/attention/internal/scheduler"
	"github.com/ShayCichocki/attention/pkg/models"
)

// Turns reports progress on a single allocation back to the scheduler.
type Turns interface {
	// RecordTurn charges one turn and reports whether the team must stop.
	RecordTurn() (scheduler.TurnResult, error)
	// RecordProposal attaches a proposal id to the allocation.
	RecordProposal(proposalID string) (int, error)
}

// Executor performs the work of one allocation. It must call RecordTurn
// after every turn and return once a stop condition fires or the team
// decides on its own stop reason.
type Executor interface {
	Execute(ctx context.Context, alloc *models.Allocation, turns Turns) (scheduler.CompletionDetails, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, alloc *models.Allocation, turns Turns) (scheduler.CompletionDetails, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, alloc *models.Allocation, turns Turns) (scheduler.CompletionDetails, error) {
	return f(ctx, alloc, turns)
}

type allocationTurns struct {
	sched        *scheduler.Scheduler
	allocationID string
}

func (t allocationTurns) RecordTurn() (scheduler.TurnResult, error) {
	return t.sched.RecordTurn(t.allocationID)
}

func (t allocationTurns) RecordProposal(proposalID string) (int, error) {
	return t.sched.RecordProposal(t.allocationID, proposalID)
}

// DryRunExecutor burns turns without doing any work. It is used by the
// run command when no real team is attached, and in tests.
type DryRunExecutor struct {
	// TurnDelay is slept before each turn.
	TurnDelay time.Duration
	// PlateauAfter ends the allocation with novelty_plateau after this many
	// turns. Zero runs until the scheduler says stop.
	PlateauAfter int
}

// Execute records turns until a stop condition, the plateau, or ctx ends.
func (e DryRunExecutor) Execute(ctx context.Context, alloc *models.Allocation, turns Turns) (scheduler.CompletionDetails, error) {
	for {
		if e.TurnDelay > 0 {
			select {
			case <-ctx.Done():
				return scheduler.CompletionDetails{}, ctx.Err()
			case <-time.After(e.TurnDelay):
			}
		} else if err := ctx.Err(); err != nil {
			return scheduler.CompletionDetails{}, err
		}

		res, err := turns.RecordTurn()
		if err != nil {
			return scheduler.CompletionDetails{}, fmt.Errorf("record turn: %w", err)
		}
		if res.Stop.ShouldStop {
			return scheduler.CompletionDetails{StopReason: res.Stop.Reason}, nil
		}
		if e.PlateauAfter > 0 && res.TurnsUsed >= e.PlateauAfter {
			return scheduler.CompletionDetails{
				StopReason:  models.StopNoveltyPlateau,
				Description: fmt.Sprintf("dry run of %s plateaued after %d turns", alloc.Type, res.TurnsUsed),
			}, nil
		}
	}
}
