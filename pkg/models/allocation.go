package models

import "time"

// AllocationStatus represents the state of an allocation.
type AllocationStatus string

const (
	// AllocationActive indicates the team is still working.
	AllocationActive AllocationStatus = "active"
	// AllocationCompleted indicates the allocation has been summarized and retired.
	AllocationCompleted AllocationStatus = "completed"
)

// StopReason names why an allocation stopped.
type StopReason string

const (
	// StopMaxTurnsReached is computed by the scheduler when an allocation hits its turn ceiling.
	StopMaxTurnsReached StopReason = "max_turns_reached"
	// StopBudgetExhausted is computed by the scheduler when the cycle-wide turn ceiling is hit.
	StopBudgetExhausted StopReason = "budget_exhausted"
	// StopNoveltyPlateau is supplied by the executor when new turns stop adding information.
	StopNoveltyPlateau StopReason = "novelty_plateau"
	// StopUnresolvedContradiction is supplied by the executor when a contradiction cannot be settled.
	StopUnresolvedContradiction StopReason = "unresolved_contradiction"
	// StopFatalFlawFound is supplied by the executor when the work uncovers a blocking flaw.
	StopFatalFlawFound StopReason = "fatal_flaw_found"
	// StopAllGatesBlocked is supplied by the executor when every submission was rejected.
	StopAllGatesBlocked StopReason = "all_gates_blocked"
	// StopConsensusReached is supplied by the executor when the team agrees.
	StopConsensusReached StopReason = "consensus_reached"
)

// Valid returns true if the reason is one of the seven known values.
func (r StopReason) Valid() bool {
	switch r {
	case StopMaxTurnsReached, StopBudgetExhausted, StopNoveltyPlateau,
		StopUnresolvedContradiction, StopFatalFlawFound, StopAllGatesBlocked,
		StopConsensusReached:
		return true
	default:
		return false
	}
}

// StopSignal is returned from turn recording.
type StopSignal struct {
	ShouldStop bool       `json:"should_stop"`
	Reason     StopReason `json:"reason,omitempty"`
}

// AllocationSummary is built when an allocation completes.
type AllocationSummary struct {
	ProposalCount   int            `json:"proposal_count"`
	ProposalIDs     []string       `json:"proposal_ids"`
	TurnsUsed       int            `json:"turns_used"`
	UnresolvedRefs  []string       `json:"unresolved_refs"`
	ConfidenceTally map[string]int `json:"confidence_tally"`
	Description     string         `json:"description"`
}

// Allocation binds a work item to a team of workers.
type Allocation struct {
	ID          string             `json:"allocation_id"`
	ItemID      string             `json:"item_id"`
	Type        WorkItemType       `json:"type"`
	Scope       string             `json:"scope"`
	Inputs      []string           `json:"inputs,omitempty"`
	Description string             `json:"description,omitempty"`
	Priority    float64            `json:"priority"`
	Team        []string           `json:"team"`
	TeamRoles   map[string]Role    `json:"team_roles"`
	MaxTurns    int                `json:"max_turns"`
	TurnsUsed   int                `json:"turns_used"`
	Status      AllocationStatus   `json:"status"`
	Proposals   []string           `json:"proposals"`
	Signals     PrioritySignals    `json:"signals"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	StopReason  *StopReason        `json:"stop_reason,omitempty"`
	Summary     *AllocationSummary `json:"summary,omitempty"`
}

// Clone returns a deep copy of the allocation.
func (a *Allocation) Clone() *Allocation {
	if a == nil {
		return nil
	}
	c := *a
	c.Inputs = cloneStrings(a.Inputs)
	c.Team = cloneStrings(a.Team)
	c.Proposals = cloneStrings(a.Proposals)
	if a.TeamRoles != nil {
		c.TeamRoles = make(map[string]Role, len(a.TeamRoles))
		for k, v := range a.TeamRoles {
			c.TeamRoles[k] = v
		}
	}
	c.CompletedAt = cloneTime(a.CompletedAt)
	if a.StopReason != nil {
		r := *a.StopReason
		c.StopReason = &r
	}
	if a.Summary != nil {
		s := *a.Summary
		s.ProposalIDs = cloneStrings(a.Summary.ProposalIDs)
		s.UnresolvedRefs = cloneStrings(a.Summary.UnresolvedRefs)
		s.ConfidenceTally = make(map[string]int, len(a.Summary.ConfidenceTally))
		for k, v := range a.Summary.ConfidenceTally {
			s.ConfidenceTally[k] = v
		}
		c.Summary = &s
	}
	return &c
}

// cloneStrings copies s, keeping the nil/empty distinction for JSON output.
func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}
