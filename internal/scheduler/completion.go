package scheduler

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/attention/pkg/models"
)

// CompletionDetails is supplied by the executor when work stops.
type CompletionDetails struct {
	// StopReason is required and must be one of the seven known reasons.
	StopReason models.StopReason
	// Description overrides the templated summary text.
	Description string
	// UnresolvedRefs lists references the team could not settle.
	UnresolvedRefs []string
	// ConfidenceLabels are tallied into the summary, e.g. "high", "low".
	ConfidenceLabels []string
}

// CompleteAllocation finalizes an active allocation, moves it to the
// completed history and releases its session. Completing the same ID twice
// returns ErrAllocationNotFound.
func (s *Scheduler) CompleteAllocation(allocationID string, details CompletionDetails) (*models.Allocation, error) {
	if !details.StopReason.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStopReason, details.StopReason)
	}

	s.mu.Lock()
	events := s.resetCycleIfExpiredLocked()

	a, ok := s.active[allocationID]
	if !ok {
		s.mu.Unlock()
		s.emitAll(events)
		return nil, fmt.Errorf("%w: %s", ErrAllocationNotFound, allocationID)
	}

	now := s.now()
	alloc := a.alloc
	reason := details.StopReason

	alloc.Status = models.AllocationCompleted
	completedAt := now
	alloc.CompletedAt = &completedAt
	alloc.StopReason = &reason
	alloc.Summary = buildSummary(alloc, details)

	itemDone := now
	a.item.CompletedAt = &itemDone

	delete(s.active, allocationID)
	s.completed = append(s.completed, alloc)
	if s.cycle.SessionsActive > 0 {
		s.cycle.SessionsActive--
	}
	s.metrics.recordCompletion(alloc.TurnsUsed, reason)

	s.logger.Log("[complete] %s item=%s reason=%s turns=%d proposals=%d avgTurns=%.3f",
		alloc.ID, alloc.ItemID, reason, alloc.TurnsUsed, len(alloc.Proposals), s.metrics.avgTurns)

	out := alloc.Clone()
	s.mu.Unlock()

	events = append(events, Event{
		Type:         EventAllocationCompleted,
		ItemID:       out.ItemID,
		AllocationID: out.ID,
		WorkType:     out.Type,
		StopReason:   reason,
		TurnsUsed:    out.TurnsUsed,
		Team:         append([]string(nil), out.Team...),
	})
	s.emitAll(events)
	return out, nil
}

func buildSummary(alloc *models.Allocation, details CompletionDetails) *models.AllocationSummary {
	tally := make(map[string]int)
	for _, label := range details.ConfidenceLabels {
		label = strings.TrimSpace(strings.ToLower(label))
		if label == "" {
			continue
		}
		tally[label]++
	}

	desc := strings.TrimSpace(details.Description)
	if desc == "" {
		desc = fmt.Sprintf("%s work on %s stopped (%s) after %d of %d turns with %d proposal(s)",
			alloc.Type, alloc.Scope, details.StopReason, alloc.TurnsUsed, alloc.MaxTurns, len(alloc.Proposals))
	}

	return &models.AllocationSummary{
		ProposalCount:   len(alloc.Proposals),
		ProposalIDs:     append([]string{}, alloc.Proposals...),
		TurnsUsed:       alloc.TurnsUsed,
		UnresolvedRefs:  append([]string{}, details.UnresolvedRefs...),
		ConfidenceTally: tally,
		Description:     desc,
	}
}
