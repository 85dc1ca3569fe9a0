package scheduler

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/attention/pkg/models"
)

// TurnResult is returned by RecordTurn.
type TurnResult struct {
	TurnsUsed int               `json:"turns_used"`
	Stop      models.StopSignal `json:"stop"`
}

// RecordTurn charges one turn to the allocation and the cycle, then checks
// the two budget-derived stop conditions in order: the allocation's own
// ceiling, then the cycle-wide turn ceiling. A turn recorded once either
// ceiling is reached is not charged, so neither counter passes its cap.
func (s *Scheduler) RecordTurn(allocationID string) (TurnResult, error) {
	s.mu.Lock()
	events := s.resetCycleIfExpiredLocked()

	a, ok := s.active[allocationID]
	if !ok {
		s.mu.Unlock()
		s.emitAll(events)
		return TurnResult{}, fmt.Errorf("%w: %s", ErrAllocationNotFound, allocationID)
	}
	alloc := a.alloc

	if alloc.TurnsUsed < alloc.MaxTurns && s.cycle.TurnsUsed < s.budget.CycleTurnCeiling() {
		alloc.TurnsUsed++
		s.cycle.TurnsUsed++
	}

	result := TurnResult{TurnsUsed: alloc.TurnsUsed, Stop: s.evaluateStopLocked(alloc)}
	if result.Stop.ShouldStop {
		s.logger.Log("[execution] %s stop: %s after %d/%d turns (cycle turns %d/%d)",
			alloc.ID, result.Stop.Reason, alloc.TurnsUsed, alloc.MaxTurns,
			s.cycle.TurnsUsed, s.budget.CycleTurnCeiling())
		events = append(events, Event{
			Type:         EventAllocationStop,
			ItemID:       alloc.ItemID,
			AllocationID: alloc.ID,
			WorkType:     alloc.Type,
			StopReason:   result.Stop.Reason,
			TurnsUsed:    alloc.TurnsUsed,
		})
	}
	s.mu.Unlock()

	s.emitAll(events)
	return result, nil
}

// evaluateStopLocked applies the stop rules the scheduler computes itself.
// The remaining stop reasons are supplied by the executor at completion.
// Caller must hold s.mu.
func (s *Scheduler) evaluateStopLocked(alloc *models.Allocation) models.StopSignal {
	if alloc.TurnsUsed >= alloc.MaxTurns {
		return models.StopSignal{ShouldStop: true, Reason: models.StopMaxTurnsReached}
	}
	if s.cycle.TurnsUsed >= s.budget.CycleTurnCeiling() {
		return models.StopSignal{ShouldStop: true, Reason: models.StopBudgetExhausted}
	}
	return models.StopSignal{}
}

// RecordProposal appends proposalID to the allocation and counts it against
// the cycle. The proposal cap is not enforced here; collaborators consult
// CheckBudget before emitting. It returns the allocation's proposal count.
func (s *Scheduler) RecordProposal(allocationID, proposalID string) (int, error) {
	if strings.TrimSpace(proposalID) == "" {
		return 0, fmt.Errorf("%w: proposalId", ErrMissingField)
	}

	s.mu.Lock()
	events := s.resetCycleIfExpiredLocked()

	a, ok := s.active[allocationID]
	if !ok {
		s.mu.Unlock()
		s.emitAll(events)
		return 0, fmt.Errorf("%w: %s", ErrAllocationNotFound, allocationID)
	}
	a.alloc.Proposals = append(a.alloc.Proposals, proposalID)
	s.cycle.ProposalsEmitted++
	count := len(a.alloc.Proposals)
	s.mu.Unlock()

	s.emitAll(events)
	return count, nil
}
