package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/attention/pkg/models"
)

// Scheduler decides which work items get attention, by whom, for how long,
// and when to stop. All state lives on the instance behind one mutex.
type Scheduler struct {
	// workers supplies the active roster for team formation.
	workers WorkerDirectory
	// weights is the active priority weighting.
	weights models.PriorityWeights
	// budget holds the per-cycle caps.
	budget models.Budget
	// cycle is the current accounting window.
	cycle models.Cycle
	// queue holds queued and deferred items.
	queue *workQueue
	// active maps allocation IDs to running allocations.
	active map[string]*activeAllocation
	// completed is the append-only history, oldest first.
	completed []*models.Allocation
	// metrics holds running aggregates.
	metrics metricsState

	affinity      AffinityTable
	thresholds    ScanThresholds
	allocateBatch int
	now           func() time.Time
	logger        *DebugLogger
	events        *EventEmitter

	// mu protects all mutable fields.
	mu sync.Mutex
}

// activeAllocation pairs a running allocation with the item it came from.
type activeAllocation struct {
	alloc *models.Allocation
	item  *models.WorkItem
}

// New creates a Scheduler reading workers from the given directory.
func New(workers WorkerDirectory, opts ...Option) *Scheduler {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if workers == nil {
		workers = NewWorkerRegistry()
	}
	if o.logger == nil {
		o.logger = NopLogger()
	}

	return &Scheduler{
		workers:       workers,
		weights:       o.weights,
		budget:        o.budget,
		cycle:         models.NewCycle(o.clock()),
		queue:         newWorkQueue(),
		active:        make(map[string]*activeAllocation),
		metrics:       newMetricsState(),
		affinity:      o.affinity,
		thresholds:    o.thresholds,
		allocateBatch: o.allocateBatch,
		now:           o.clock,
		logger:        o.logger,
		events:        o.events,
	}
}

// WorkItemRequest describes a work item to create.
type WorkItemRequest struct {
	Type        models.WorkItemType
	Scope       string
	Inputs      []string
	CreatedBy   string
	Description string
	Signals     models.SignalInput
	Deadline    *time.Time
}

// validate checks the request without touching scheduler state.
func (r WorkItemRequest) validate() error {
	if !r.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidWorkItemType, r.Type)
	}
	if strings.TrimSpace(r.CreatedBy) == "" {
		return fmt.Errorf("%w: createdBy", ErrMissingField)
	}
	if len(r.Inputs) > models.MaxWorkItemInputs {
		return fmt.Errorf("%w: %d > %d", ErrTooManyInputs, len(r.Inputs), models.MaxWorkItemInputs)
	}
	if len(r.Description) > models.MaxDescriptionLength {
		return fmt.Errorf("%w: %d bytes", ErrDescriptionTooLong, len(r.Description))
	}
	return nil
}

// CreateWorkItem validates and queues a new work item.
func (s *Scheduler) CreateWorkItem(req WorkItemRequest) (*models.WorkItem, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	item := s.createLocked(req)
	out := item.Clone()
	s.mu.Unlock()

	s.emit(Event{Type: EventItemQueued, ItemID: out.ID, WorkType: out.Type, Priority: out.Priority})
	return out, nil
}

// createLocked builds and queues an already validated item.
// Caller must hold s.mu.
func (s *Scheduler) createLocked(req WorkItemRequest) *models.WorkItem {
	now := s.now()
	scope := strings.TrimSpace(req.Scope)
	if scope == "" {
		scope = models.WildcardScope
	}
	var deadline *time.Time
	if req.Deadline != nil {
		d := *req.Deadline
		deadline = &d
	}

	item := &models.WorkItem{
		ID:            uuid.New().String(),
		Type:          req.Type,
		Scope:         scope,
		Inputs:        append([]string(nil), req.Inputs...),
		CreatedBy:     req.CreatedBy,
		Description:   req.Description,
		Deadline:      deadline,
		Status:        models.WorkItemQueued,
		Signals:       models.NewPrioritySignals(req.Signals),
		DeadlineBoost: deadlineBoostFor(deadline, now),
		CreatedAt:     now,
	}
	item.Priority = scoreItem(item, s.weights)

	s.queue.push(item)
	s.metrics.created++
	s.logger.Log("[queue] created %s type=%s scope=%s priority=%.3f boost=%.1f depth=%d",
		item.ID, item.Type, item.Scope, item.Priority, item.DeadlineBoost, s.queue.Len())
	return item
}

// DequeueItem removes a queued item outright.
func (s *Scheduler) DequeueItem(itemID string) (*models.WorkItem, error) {
	s.mu.Lock()
	item, ok := s.queue.remove(itemID)
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	out := item.Clone()
	s.logger.Log("[queue] dequeued %s by override", itemID)
	s.mu.Unlock()

	s.emit(Event{Type: EventItemDequeued, ItemID: itemID, WorkType: out.Type})
	return out, nil
}

// ExpireItems removes every queued item whose deadline has passed and marks
// it expired. It returns the expired items in queue order.
func (s *Scheduler) ExpireItems() []*models.WorkItem {
	s.mu.Lock()
	now := s.now()
	expired := s.queue.removeWhere(func(item *models.WorkItem) bool {
		return item.Deadline != nil && !item.Deadline.After(now)
	})
	out := make([]*models.WorkItem, 0, len(expired))
	for _, item := range expired {
		item.Status = models.WorkItemExpired
		completedAt := now
		item.CompletedAt = &completedAt
		s.metrics.expired++
		s.logger.Log("[queue] expired %s (deadline %s)", item.ID, item.Deadline.Format(time.RFC3339))
		out = append(out, item.Clone())
	}
	s.mu.Unlock()

	for _, item := range out {
		s.emit(Event{Type: EventItemExpired, ItemID: item.ID, WorkType: item.Type})
	}
	return out
}

// GetQueue returns a snapshot of the queue, highest priority first.
func (s *Scheduler) GetQueue() []*models.WorkItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered := s.queue.ordered()
	out := make([]*models.WorkItem, len(ordered))
	for i, item := range ordered {
		out[i] = item.Clone()
	}
	return out
}

// RescoreQueue recomputes every queued priority under the current weights.
func (s *Scheduler) RescoreQueue() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rescoreLocked()
}

// rescoreLocked re-sorts the queue. Caller must hold s.mu.
func (s *Scheduler) rescoreLocked() {
	weights := s.weights
	s.queue.rescore(func(item *models.WorkItem) float64 {
		return scoreItem(item, weights)
	})
	s.logger.Log("[queue] rescored %d items", s.queue.Len())
}

// UpdateWeights applies overrides to the priority weights and rescores the queue.
func (s *Scheduler) UpdateWeights(overrides models.WeightOverrides) models.PriorityWeights {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.weights = overrides.Apply(s.weights)
	s.rescoreLocked()
	return s.weights
}

// Weights returns the active priority weights.
func (s *Scheduler) Weights() models.PriorityWeights {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.weights
}

// GetActiveAllocations returns a snapshot of running allocations, oldest first.
func (s *Scheduler) GetActiveAllocations() []*models.Allocation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.Allocation, 0, len(s.active))
	for _, a := range s.active {
		out = append(out, a.alloc.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// GetAllocation returns one active allocation by ID.
func (s *Scheduler) GetAllocation(allocationID string) (*models.Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.active[allocationID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAllocationNotFound, allocationID)
	}
	return a.alloc.Clone(), nil
}

// GetCompletedWork returns up to limit completed allocations, most recent first.
func (s *Scheduler) GetCompletedWork(limit int) []*models.Allocation {
	if limit <= 0 {
		limit = DefaultCompletedLimit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if limit > len(s.completed) {
		limit = len(s.completed)
	}
	out := make([]*models.Allocation, 0, limit)
	for i := len(s.completed) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.completed[i].Clone())
	}
	return out
}

// emit forwards an event after the state change has committed.
// Must be called without s.mu held.
func (s *Scheduler) emit(ev Event) {
	if s.events == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now()
	}
	s.events.Emit(ev)
}

func (s *Scheduler) emitAll(evs []Event) {
	for _, ev := range evs {
		s.emit(ev)
	}
}
