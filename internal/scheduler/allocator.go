package scheduler

import (
	"github.com/google/uuid"

	"github.com/ShayCichocki/attention/pkg/models"
)

// AllocateResult is the outcome of one allocator pass.
type AllocateResult struct {
	// Allocations are the newly opened allocations, in the order popped.
	Allocations []*models.Allocation `json:"allocations"`
	// Deferred lists item IDs that found no eligible worker this pass.
	Deferred []string `json:"deferred,omitempty"`
	// Reason is set when the pass did nothing: a budget denial or nothing_to_allocate.
	Reason string `json:"reason,omitempty"`
	// Budget is the admission check the pass was gated on.
	Budget BudgetCheck `json:"budget"`
}

// Allocate binds up to k of the highest-priority staffable items to teams.
// k <= 0 uses the configured default batch. k is further capped by the
// remaining item and session budget.
//
// Items with no eligible worker are marked deferred and set aside, and the
// pass keeps popping until k items are allocated or the queue runs out, so
// an unstaffable item at the head never blocks staffable work behind it.
// Deferred items are re-queued behind every item of equal priority once the
// pass finishes, so one pass never pops the same item twice.
func (s *Scheduler) Allocate(k int) AllocateResult {
	s.mu.Lock()
	events := s.resetCycleIfExpiredLocked()

	check := s.checkBudgetLocked("")
	if !check.Allowed {
		s.logger.Log("[allocate] denied: %s", check.Reason)
		s.mu.Unlock()
		s.emitAll(events)
		return AllocateResult{Reason: check.Reason, Budget: check}
	}

	if k <= 0 {
		k = s.allocateBatch
	}
	k = minInt(k, check.Remaining.Items, check.Remaining.Sessions)
	if k <= 0 || s.queue.Len() == 0 {
		s.mu.Unlock()
		s.emitAll(events)
		return AllocateResult{Reason: ReasonNothingToAllocate, Budget: check}
	}

	result := AllocateResult{Budget: check}
	active := s.workers.ActiveWorkers()
	var deferred []*models.WorkItem

	for len(result.Allocations) < k {
		item := s.queue.pop()
		if item == nil {
			break
		}

		team := formTeam(item, s.affinity, active, s.logger)
		if len(team) == 0 {
			item.Status = models.WorkItemDeferred
			item.Deferrals++
			deferred = append(deferred, item)
			s.metrics.deferred++
			result.Deferred = append(result.Deferred, item.ID)
			s.logger.Log("[allocate] deferred %s (%s), no eligible worker, deferrals=%d",
				item.ID, item.Type, item.Deferrals)
			events = append(events, Event{
				Type:     EventItemDeferred,
				ItemID:   item.ID,
				WorkType: item.Type,
				Priority: item.Priority,
			})
			continue
		}

		alloc := s.openAllocationLocked(item, team)
		result.Allocations = append(result.Allocations, alloc.Clone())
		events = append(events, Event{
			Type:         EventAllocationStarted,
			ItemID:       item.ID,
			AllocationID: alloc.ID,
			WorkType:     item.Type,
			Priority:     alloc.Priority,
			Team:         append([]string(nil), alloc.Team...),
		})
	}

	for _, item := range deferred {
		s.queue.push(item)
	}

	if len(result.Allocations) == 0 && len(result.Deferred) == 0 {
		result.Reason = ReasonNothingToAllocate
	}
	s.logger.Log("[allocate] k=%d allocated=%d deferred=%d queue=%d sessions=%d/%d items=%d/%d",
		k, len(result.Allocations), len(result.Deferred), s.queue.Len(),
		s.cycle.SessionsActive, s.budget.MaxParallelSessions,
		s.cycle.ItemsStarted, s.budget.MaxItemsPerCycle)
	s.mu.Unlock()

	s.emitAll(events)
	return result
}

// openAllocationLocked binds item to team and charges the cycle.
// Caller must hold s.mu.
func (s *Scheduler) openAllocationLocked(item *models.WorkItem, team []models.Worker) *models.Allocation {
	now := s.now()

	ids := make([]string, len(team))
	roles := make(map[string]models.Role, len(team))
	for i, w := range team {
		ids[i] = w.ID
		roles[w.ID] = w.Role
	}

	alloc := &models.Allocation{
		ID:          uuid.New().String(),
		ItemID:      item.ID,
		Type:        item.Type,
		Scope:       item.Scope,
		Inputs:      append([]string(nil), item.Inputs...),
		Description: item.Description,
		Priority:    item.Priority,
		Team:        ids,
		TeamRoles:   roles,
		MaxTurns:    s.budget.MaxTurnsPerItem,
		Status:      models.AllocationActive,
		Proposals:   []string{},
		Signals:     item.Signals,
		StartedAt:   now,
	}

	item.Status = models.WorkItemAssigned
	assignedAt := now
	item.AssignedAt = &assignedAt

	s.active[alloc.ID] = &activeAllocation{alloc: alloc, item: item}
	s.cycle.ItemsStarted++
	s.cycle.SessionsActive++
	s.metrics.allocated++

	s.logger.Log("[allocate] %s -> allocation %s team=%v priority=%.3f maxTurns=%d",
		item.ID, alloc.ID, ids, alloc.Priority, alloc.MaxTurns)
	return alloc
}

func minInt(first int, rest ...int) int {
	m := first
	for _, v := range rest {
		if v < m {
			m = v
		}
	}
	return m
}
