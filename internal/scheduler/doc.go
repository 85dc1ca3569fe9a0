// Package scheduler allocates a per-cycle attention budget among competing
// background work items.
//
// The package provides:
//   - Priority scoring: a weighted sum of seven normalized signals
//   - A work queue ordered by descending priority, ties in arrival order
//   - Cycle accounting: hard caps on items, turns, sessions, proposals and
//     per-user deep synthesis, reset lazily when the cycle elapses
//   - Allocation: binding queued items to worker teams chosen by role affinity
//     and credibility
//   - Turn tracking and the two budget-derived stop conditions
//   - Completion summaries and running metrics
//
// A Scheduler owns all of its state behind a single mutex. Every operation is
// a short read-modify-write; collaborators (worker directory, signal sources)
// are consulted synchronously and must not call back into the scheduler.
//
// Example usage:
//
//	s := scheduler.New(roster)
//	item, err := s.CreateWorkItem(scheduler.WorkItemRequest{
//		Type:      models.WorkTypeContradiction,
//		Scope:     "billing",
//		CreatedBy: "dialogue",
//	})
//	res := s.Allocate(2)
//	for _, a := range res.Allocations {
//		turn, _ := s.RecordTurn(a.ID)
//		if turn.Stop.ShouldStop {
//			s.CompleteAllocation(a.ID, scheduler.CompletionDetails{StopReason: turn.Stop.Reason})
//		}
//	}
package scheduler
