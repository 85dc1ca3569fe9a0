package models

import "time"

// WorkItemType enumerates the kinds of background work the scheduler accepts.
type WorkItemType string

const (
	// WorkTypeContradiction is an unresolved contradiction between records.
	WorkTypeContradiction WorkItemType = "contradiction"
	// WorkTypeLowConfidence is a heavily used record with low confidence.
	WorkTypeLowConfidence WorkItemType = "low_confidence"
	// WorkTypeUserPrompt is work explicitly requested by a user.
	WorkTypeUserPrompt WorkItemType = "user_prompt"
	// WorkTypeProposalCritique is a pending proposal that needs critique.
	WorkTypeProposalCritique WorkItemType = "proposal_critique"
	// WorkTypeMissingEdges covers structurally isolated nodes.
	WorkTypeMissingEdges WorkItemType = "missing_edges"
	// WorkTypeArtifactValidation is an artifact awaiting validation.
	WorkTypeArtifactValidation WorkItemType = "artifact_validation"
	// WorkTypeHotNode is a high-traffic node worth revisiting.
	WorkTypeHotNode WorkItemType = "hot_node"
	// WorkTypeSynthesisNeeded marks records that should be merged or summarized.
	WorkTypeSynthesisNeeded WorkItemType = "synthesis_needed"
	// WorkTypePatternRefresh is a stale pattern due for review.
	WorkTypePatternRefresh WorkItemType = "pattern_refresh"
	// WorkTypeGovernanceBacklog is a backlog of governance decisions.
	WorkTypeGovernanceBacklog WorkItemType = "governance_backlog"
)

// AllWorkItemTypes lists every accepted work item type in declaration order.
var AllWorkItemTypes = []WorkItemType{
	WorkTypeContradiction,
	WorkTypeLowConfidence,
	WorkTypeUserPrompt,
	WorkTypeProposalCritique,
	WorkTypeMissingEdges,
	WorkTypeArtifactValidation,
	WorkTypeHotNode,
	WorkTypeSynthesisNeeded,
	WorkTypePatternRefresh,
	WorkTypeGovernanceBacklog,
}

// Valid returns true if the type is a known value.
func (t WorkItemType) Valid() bool {
	for _, known := range AllWorkItemTypes {
		if t == known {
			return true
		}
	}
	return false
}

// WorkItemStatus represents where a work item is in its lifecycle.
type WorkItemStatus string

const (
	// WorkItemQueued indicates the item is waiting in the queue.
	WorkItemQueued WorkItemStatus = "queued"
	// WorkItemAssigned indicates the item has been bound to an allocation.
	WorkItemAssigned WorkItemStatus = "assigned"
	// WorkItemDeferred indicates no eligible worker was available; the item is still queued.
	WorkItemDeferred WorkItemStatus = "deferred"
	// WorkItemExpired indicates the item's deadline passed before assignment.
	WorkItemExpired WorkItemStatus = "expired"
)

// Valid returns true if the status is a known value.
func (s WorkItemStatus) Valid() bool {
	switch s {
	case WorkItemQueued, WorkItemAssigned, WorkItemDeferred, WorkItemExpired:
		return true
	default:
		return false
	}
}

// Pending reports whether an item in this status still belongs in the queue.
func (s WorkItemStatus) Pending() bool {
	return s == WorkItemQueued || s == WorkItemDeferred
}

// WildcardScope matches every domain.
const WildcardScope = "*"

// MaxWorkItemInputs bounds the number of referenced ids on a work item.
const MaxWorkItemInputs = 50

// MaxDescriptionLength bounds a work item description, in bytes.
const MaxDescriptionLength = 2000

// WorkItem is a pending unit of potential background work.
type WorkItem struct {
	// ID is the unique identifier for this item.
	ID string `json:"item_id"`
	// Type selects the role affinity and recruitment rules.
	Type WorkItemType `json:"type"`
	// Scope is a domain tag or WildcardScope.
	Scope string `json:"scope"`
	// Inputs lists referenced external ids, at most MaxWorkItemInputs.
	Inputs []string `json:"inputs,omitempty"`
	// CreatedBy is the actor that raised the item.
	CreatedBy string `json:"created_by"`
	// Description is a bounded human-readable summary.
	Description string `json:"description,omitempty"`
	// Deadline is when the item stops being worth doing, if any.
	Deadline *time.Time `json:"deadline,omitempty"`
	// Status is the current lifecycle state.
	Status WorkItemStatus `json:"status"`
	// Signals are the normalized inputs to priority scoring.
	Signals PrioritySignals `json:"signals"`
	// Priority is the current score in [0,1].
	Priority float64 `json:"priority"`
	// DeadlineBoost is the one-time boost granted at creation for a near deadline.
	DeadlineBoost float64 `json:"deadline_boost,omitempty"`
	// Deferrals counts how many allocator passes found no eligible worker.
	Deferrals int `json:"deferrals,omitempty"`
	// CreatedAt is when the item was queued.
	CreatedAt time.Time `json:"created_at"`
	// AssignedAt is when the item was bound to an allocation.
	AssignedAt *time.Time `json:"assigned_at,omitempty"`
	// CompletedAt is when the item expired or its allocation completed.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a deep copy of the item.
func (w *WorkItem) Clone() *WorkItem {
	if w == nil {
		return nil
	}
	c := *w
	c.Inputs = cloneStrings(w.Inputs)
	c.Deadline = cloneTime(w.Deadline)
	c.AssignedAt = cloneTime(w.AssignedAt)
	c.CompletedAt = cloneTime(w.CompletedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
