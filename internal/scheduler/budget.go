package scheduler

import (
	"time"

	"github.com/ShayCichocki/attention/pkg/models"
)

// Denial and outcome reasons reported by budget checks and allocation.
const (
	ReasonBudgetExhausted        = "budget_exhausted"
	ReasonMaxParallelSessions    = "max_parallel_sessions"
	ReasonNothingToAllocate      = "nothing_to_allocate"
	ReasonDeepSynthesisExhausted = "deep_synthesis_exhausted"
)

// BudgetLevel summarizes how close the cycle is to its caps.
type BudgetLevel int

const (
	// BudgetOK indicates every dimension is below the warning threshold.
	BudgetOK BudgetLevel = iota
	// BudgetWarning indicates at least one dimension is at or past the threshold.
	BudgetWarning
	// BudgetExhausted indicates at least one dimension is fully consumed.
	BudgetExhausted
)

// String returns a human-readable representation of the budget level.
func (l BudgetLevel) String() string {
	switch l {
	case BudgetOK:
		return "OK"
	case BudgetWarning:
		return "Warning"
	case BudgetExhausted:
		return "Exhausted"
	default:
		return "Unknown"
	}
}

// DefaultWarningThreshold is the utilization at which the level turns to warning.
const DefaultWarningThreshold = 0.80

// BudgetRemaining reports spare capacity in the current cycle. All values
// are floored at zero.
type BudgetRemaining struct {
	Items     int `json:"items"`
	Sessions  int `json:"sessions"`
	Proposals int `json:"proposals"`
	Turns     int `json:"turns"`
	// DeepSynthesis is set only when the check named a user.
	DeepSynthesis *int `json:"deep_synthesis,omitempty"`
}

// BudgetCheck is the result of an admission check. A denial is an expected
// outcome, not an error.
type BudgetCheck struct {
	Allowed   bool            `json:"allowed"`
	Reason    string          `json:"reason,omitempty"`
	Remaining BudgetRemaining `json:"remaining"`
}

// Utilization is consumption over cap, per dimension.
type Utilization struct {
	Items     float64 `json:"items"`
	Sessions  float64 `json:"sessions"`
	Turns     float64 `json:"turns"`
	Proposals float64 `json:"proposals"`
}

// Max returns the highest utilization across dimensions.
func (u Utilization) Max() float64 {
	m := u.Items
	for _, v := range []float64{u.Sessions, u.Turns, u.Proposals} {
		if v > m {
			m = v
		}
	}
	return m
}

// BudgetStatus is a read-only view of the cycle for operators.
type BudgetStatus struct {
	Budget        models.Budget `json:"budget"`
	Cycle         models.Cycle  `json:"cycle"`
	Elapsed       time.Duration `json:"elapsed"`
	TimeRemaining time.Duration `json:"time_remaining"`
	// CycleExpired is true when the next budget-affecting call will reset the cycle.
	CycleExpired bool        `json:"cycle_expired"`
	Utilization  Utilization `json:"utilization"`
	Level        BudgetLevel `json:"level"`
}

// CheckBudget reports whether another allocation may start, resetting the
// cycle first if it has elapsed. Pass an empty userID to skip the per-user
// deep-synthesis figure.
func (s *Scheduler) CheckBudget(userID string) BudgetCheck {
	s.mu.Lock()
	reset := s.resetCycleIfExpiredLocked()
	check := s.checkBudgetLocked(userID)
	s.mu.Unlock()

	s.emitAll(reset)
	return check
}

// checkBudgetLocked evaluates admission against the current cycle.
// Caller must hold s.mu.
func (s *Scheduler) checkBudgetLocked(userID string) BudgetCheck {
	b, c := s.budget, s.cycle

	remaining := BudgetRemaining{
		Items:     floor0(b.MaxItemsPerCycle - c.ItemsStarted),
		Sessions:  floor0(b.MaxParallelSessions - c.SessionsActive),
		Proposals: floor0(b.MaxProposalsPerCycle - c.ProposalsEmitted),
		Turns:     floor0(b.CycleTurnCeiling() - c.TurnsUsed),
	}
	if userID != "" {
		deep := floor0(b.MaxDeepSynthesisPerUser - c.DeepSynthesisUsed[userID])
		remaining.DeepSynthesis = &deep
	}

	check := BudgetCheck{Allowed: true, Remaining: remaining}
	switch {
	case c.ItemsStarted >= b.MaxItemsPerCycle:
		check.Allowed = false
		check.Reason = ReasonBudgetExhausted
	case c.SessionsActive >= b.MaxParallelSessions:
		check.Allowed = false
		check.Reason = ReasonMaxParallelSessions
	}
	return check
}

// RecordDeepSynthesis consumes one deep-synthesis slot for userID. It is
// denied, without consuming anything, once the user's cap is reached.
func (s *Scheduler) RecordDeepSynthesis(userID string) (BudgetCheck, error) {
	if userID == "" {
		return BudgetCheck{}, ErrMissingField
	}

	s.mu.Lock()
	reset := s.resetCycleIfExpiredLocked()
	if s.cycle.DeepSynthesisUsed[userID] >= s.budget.MaxDeepSynthesisPerUser {
		check := s.checkBudgetLocked(userID)
		check.Allowed = false
		check.Reason = ReasonDeepSynthesisExhausted
		s.mu.Unlock()
		s.emitAll(reset)
		return check, nil
	}
	s.cycle.DeepSynthesisUsed[userID]++
	s.logger.Log("[budget] deep synthesis for %s: %d/%d", userID,
		s.cycle.DeepSynthesisUsed[userID], s.budget.MaxDeepSynthesisPerUser)
	check := s.checkBudgetLocked(userID)
	check.Allowed = true
	check.Reason = ""
	s.mu.Unlock()

	s.emitAll(reset)
	return check, nil
}

// GetBudgetStatus returns elapsed and remaining cycle time plus utilization
// per dimension. It never resets the cycle.
func (s *Scheduler) GetBudgetStatus() BudgetStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, c := s.budget, s.cycle
	elapsed := s.now().Sub(c.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	left := b.CycleDuration - elapsed
	if left < 0 {
		left = 0
	}

	u := Utilization{
		Items:     ratio(c.ItemsStarted, b.MaxItemsPerCycle),
		Sessions:  ratio(c.SessionsActive, b.MaxParallelSessions),
		Turns:     ratio(c.TurnsUsed, b.CycleTurnCeiling()),
		Proposals: ratio(c.ProposalsEmitted, b.MaxProposalsPerCycle),
	}

	level := BudgetOK
	switch peak := u.Max(); {
	case peak >= 1:
		level = BudgetExhausted
	case peak >= DefaultWarningThreshold:
		level = BudgetWarning
	}

	return BudgetStatus{
		Budget:        b,
		Cycle:         c.Clone(),
		Elapsed:       elapsed,
		TimeRemaining: left,
		CycleExpired:  elapsed >= b.CycleDuration,
		Utilization:   u,
		Level:         level,
	}
}

// UpdateBudget applies positive overrides to the budget and returns the result.
func (s *Scheduler) UpdateBudget(overrides models.BudgetOverrides) models.Budget {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.budget = overrides.Apply(s.budget)
	s.logger.Log("[budget] updated: %+v", s.budget)
	return s.budget
}

// Budget returns the active budget.
func (s *Scheduler) Budget() models.Budget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budget
}

// resetCycleIfExpiredLocked replaces the cycle wholesale once its duration
// has elapsed. Sessions still running carry over so the parallel cap keeps
// counting them. Caller must hold s.mu; returned events are emitted after
// unlocking.
func (s *Scheduler) resetCycleIfExpiredLocked() []Event {
	now := s.now()
	if now.Sub(s.cycle.StartedAt) < s.budget.CycleDuration {
		return nil
	}

	prev := s.cycle
	s.cycle = models.NewCycle(now)
	s.cycle.SessionsActive = len(s.active)
	s.metrics.cycles++
	s.logger.Log("[budget] cycle reset: items=%d turns=%d proposals=%d carried sessions=%d",
		prev.ItemsStarted, prev.TurnsUsed, prev.ProposalsEmitted, s.cycle.SessionsActive)

	closed := prev.Clone()
	return []Event{{
		Type:      EventCycleReset,
		Cycle:     &closed,
		Message:   prev.StartedAt.Format(time.RFC3339),
		Timestamp: now,
	}}
}

func floor0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func ratio(used, limit int) float64 {
	if limit <= 0 {
		return 0
	}
	return float64(used) / float64(limit)
}
