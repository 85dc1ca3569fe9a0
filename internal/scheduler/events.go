package scheduler

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/ShayCichocki/attention/pkg/models"
)

// EventType represents the type of scheduler event.
type EventType string

const (
	// EventItemQueued indicates a work item entered the queue.
	EventItemQueued EventType = "item_queued"
	// EventItemDeferred indicates no eligible worker was found for an item.
	EventItemDeferred EventType = "item_deferred"
	// EventItemExpired indicates an item's deadline passed while queued.
	EventItemExpired EventType = "item_expired"
	// EventItemDequeued indicates an item was removed by administrative override.
	EventItemDequeued EventType = "item_dequeued"
	// EventAllocationStarted indicates an item was bound to a team.
	EventAllocationStarted EventType = "allocation_started"
	// EventAllocationStop indicates a recorded turn hit a stop condition.
	EventAllocationStop EventType = "allocation_stop"
	// EventAllocationCompleted indicates an allocation was summarized and retired.
	EventAllocationCompleted EventType = "allocation_completed"
	// EventCycleReset indicates the accounting window was replaced.
	EventCycleReset EventType = "cycle_reset"
)

// Event is emitted after a scheduler operation commits.
type Event struct {
	Type         EventType
	ItemID       string
	AllocationID string
	WorkType     models.WorkItemType
	Priority     float64
	Team         []string
	StopReason   models.StopReason
	TurnsUsed    int
	// Cycle is the closed window, set on cycle_reset.
	Cycle     *models.Cycle
	Message   string
	Timestamp time.Time
}

// EventEmitter fans scheduler events out on a buffered channel.
type EventEmitter struct {
	events       chan Event
	droppedCount atomic.Uint64
}

// NewEventEmitter creates a new EventEmitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	return &EventEmitter{
		events: make(chan Event, bufferSize),
	}
}

// Emit sends an event, waiting briefly for a slow receiver before dropping it.
func (e *EventEmitter) Emit(event Event) {
	if e == nil {
		return
	}

	select {
	case e.events <- event:
		return
	default:
	}

	select {
	case e.events <- event:
	case <-time.After(100 * time.Millisecond):
		count := e.droppedCount.Add(1)
		if count%10 == 1 {
			log.Printf("[scheduler] WARNING: event channel full, dropped event (total dropped: %d): type=%s", count, event.Type)
		}
	}
}

// DroppedCount returns the total number of events that have been dropped.
func (e *EventEmitter) DroppedCount() uint64 {
	if e == nil {
		return 0
	}
	return e.droppedCount.Load()
}

// Events returns a read-only channel of events.
func (e *EventEmitter) Events() <-chan Event {
	return e.events
}

// Close closes the events channel.
func (e *EventEmitter) Close() {
	close(e.events)
}
