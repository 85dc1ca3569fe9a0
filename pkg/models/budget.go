package models

import "time"

// Budget holds the per-cycle hard caps. It is static until overridden.
type Budget struct {
	// MaxItemsPerCycle caps how many allocations may start within one cycle.
	MaxItemsPerCycle int `json:"max_items_per_cycle" mapstructure:"max_items_per_cycle"`
	// MaxTurnsPerItem is copied into each allocation as its turn ceiling.
	MaxTurnsPerItem int `json:"max_turns_per_item" mapstructure:"max_turns_per_item"`
	// MaxParallelSessions caps concurrently active allocations.
	MaxParallelSessions int `json:"max_parallel_sessions" mapstructure:"max_parallel_sessions"`
	// MaxDeepSynthesisPerUser caps deep-synthesis requests per user per cycle.
	MaxDeepSynthesisPerUser int `json:"max_deep_synthesis_per_user" mapstructure:"max_deep_synthesis_per_user"`
	// MaxProposalsPerCycle caps proposals emitted per cycle; enforced upstream.
	MaxProposalsPerCycle int `json:"max_proposals_per_cycle" mapstructure:"max_proposals_per_cycle"`
	// CycleDuration is the length of one accounting window.
	CycleDuration time.Duration `json:"cycle_duration" mapstructure:"cycle_duration"`
}

// DefaultBudget returns the built-in caps.
func DefaultBudget() Budget {
	return Budget{
		MaxItemsPerCycle:        10,
		MaxTurnsPerItem:         12,
		MaxParallelSessions:     3,
		MaxDeepSynthesisPerUser: 2,
		MaxProposalsPerCycle:    20,
		CycleDuration:           time.Hour,
	}
}

// CycleTurnCeiling is the cycle-wide turn limit derived from the per-item
// ceiling and the item cap.
func (b Budget) CycleTurnCeiling() int {
	return b.MaxTurnsPerItem * b.MaxItemsPerCycle
}

// BudgetOverrides carries a partial update to Budget. Nil or non-positive
// fields are left unchanged.
type BudgetOverrides struct {
	MaxItemsPerCycle        *int
	MaxTurnsPerItem         *int
	MaxParallelSessions     *int
	MaxDeepSynthesisPerUser *int
	MaxProposalsPerCycle    *int
	CycleDuration           *time.Duration
}

// Apply returns b with every positive override applied.
func (o BudgetOverrides) Apply(b Budget) Budget {
	setInt := func(dst *int, v *int) {
		if v != nil && *v > 0 {
			*dst = *v
		}
	}
	setInt(&b.MaxItemsPerCycle, o.MaxItemsPerCycle)
	setInt(&b.MaxTurnsPerItem, o.MaxTurnsPerItem)
	setInt(&b.MaxParallelSessions, o.MaxParallelSessions)
	setInt(&b.MaxDeepSynthesisPerUser, o.MaxDeepSynthesisPerUser)
	setInt(&b.MaxProposalsPerCycle, o.MaxProposalsPerCycle)
	if o.CycleDuration != nil && *o.CycleDuration > 0 {
		b.CycleDuration = *o.CycleDuration
	}
	return b
}

// BudgetOverridesFromMap builds overrides from loosely keyed numeric input.
// Unknown keys are ignored; cycle duration is read in milliseconds.
func BudgetOverridesFromMap(m map[string]float64) BudgetOverrides {
	var o BudgetOverrides
	intPtr := func(v float64) *int {
		n := int(v)
		return &n
	}
	for key, v := range m {
		switch key {
		case "max_items_per_cycle", "maxItemsPerCycle":
			o.MaxItemsPerCycle = intPtr(v)
		case "max_turns_per_item", "maxTurnsPerItem":
			o.MaxTurnsPerItem = intPtr(v)
		case "max_parallel_sessions", "maxParallelSessions":
			o.MaxParallelSessions = intPtr(v)
		case "max_deep_synthesis_per_user", "maxDeepSynthesisPerUser":
			o.MaxDeepSynthesisPerUser = intPtr(v)
		case "max_proposals_per_cycle", "maxProposalsPerCycle":
			o.MaxProposalsPerCycle = intPtr(v)
		case "cycle_duration_ms", "cycleDurationMs":
			d := time.Duration(v) * time.Millisecond
			o.CycleDuration = &d
		}
	}
	return o
}

// Cycle is the current accounting window.
type Cycle struct {
	StartedAt         time.Time      `json:"started_at"`
	ItemsStarted      int            `json:"items_started"`
	TurnsUsed         int            `json:"turns_used"`
	ProposalsEmitted  int            `json:"proposals_emitted"`
	SessionsActive    int            `json:"sessions_active"`
	DeepSynthesisUsed map[string]int `json:"deep_synthesis_used"`
}

// NewCycle returns a zeroed cycle starting at now.
func NewCycle(now time.Time) Cycle {
	return Cycle{
		StartedAt:         now,
		DeepSynthesisUsed: make(map[string]int),
	}
}

// Clone returns a deep copy of the cycle.
func (c Cycle) Clone() Cycle {
	used := make(map[string]int, len(c.DeepSynthesisUsed))
	for k, v := range c.DeepSynthesisUsed {
		used[k] = v
	}
	c.DeepSynthesisUsed = used
	return c
}
