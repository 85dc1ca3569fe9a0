package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/attention/pkg/models"
)

func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestEvents_Lifecycle(t *testing.T) {
	emitter := NewEventEmitter(64)
	s, clock, _ := newTestScheduler(t, builders("b1"),
		WithEventEmitter(emitter),
		WithBudget(models.Budget{MaxTurnsPerItem: 2}),
	)

	item := mustCreate(t, s, WorkItemRequest{Type: models.WorkTypeUserPrompt})
	alloc := mustAllocateOne(t, s)
	s.RecordTurn(alloc.ID)
	s.RecordTurn(alloc.ID)
	if _, err := s.CompleteAllocation(alloc.ID, CompletionDetails{StopReason: models.StopMaxTurnsReached}); err != nil {
		t.Fatalf("CompleteAllocation failed: %v", err)
	}
	clock.Advance(2 * time.Hour)
	s.CheckBudget("")

	events := drain(emitter.Events())
	want := []EventType{
		EventItemQueued,
		EventAllocationStarted,
		EventAllocationStop,
		EventAllocationCompleted,
		EventCycleReset,
	}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d: %+v", len(want), len(events), events)
	}
	for i, typ := range want {
		if events[i].Type != typ {
			t.Errorf("event %d: expected %s, got %s", i, typ, events[i].Type)
		}
		if events[i].Timestamp.IsZero() {
			t.Errorf("event %d: expected a timestamp", i)
		}
	}
	if events[1].ItemID != item.ID || events[1].AllocationID != alloc.ID {
		t.Errorf("unexpected allocation event %+v", events[1])
	}
	if events[2].StopReason != models.StopMaxTurnsReached || events[2].TurnsUsed != 2 {
		t.Errorf("unexpected stop event %+v", events[2])
	}
}

func TestEvents_DeferredAndExpired(t *testing.T) {
	emitter := NewEventEmitter(16)
	s, clock, _ := newTestScheduler(t, nil, WithEventEmitter(emitter))

	deadline := clock.Now().Add(time.Minute)
	mustCreate(t, s, WorkItemRequest{Type: models.WorkTypeHotNode, Deadline: &deadline})
	s.Allocate(1)
	clock.Advance(time.Minute)
	s.ExpireItems()

	var types []EventType
	for _, ev := range drain(emitter.Events()) {
		types = append(types, ev.Type)
	}
	want := []EventType{EventItemQueued, EventItemDeferred, EventItemExpired}
	if len(types) != len(want) {
		t.Fatalf("expected %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], types[i])
		}
	}
}

func TestEventEmitter_DropsWhenFull(t *testing.T) {
	emitter := NewEventEmitter(1)
	emitter.Emit(Event{Type: EventItemQueued})
	emitter.Emit(Event{Type: EventItemQueued})

	if got := emitter.DroppedCount(); got != 1 {
		t.Errorf("expected 1 dropped event, got %d", got)
	}

	var nilEmitter *EventEmitter
	nilEmitter.Emit(Event{Type: EventItemQueued})
	if nilEmitter.DroppedCount() != 0 {
		t.Error("nil emitter should report zero drops")
	}
}

func TestScheduler_ConcurrentUse(t *testing.T) {
	s, _, _ := newTestScheduler(t, builders("b1", "b2"), WithBudget(models.Budget{
		MaxItemsPerCycle:    200,
		MaxParallelSessions: 8,
		MaxTurnsPerItem:     3,
	}))

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				if _, err := s.CreateWorkItem(WorkItemRequest{Type: models.WorkTypeUserPrompt, CreatedBy: "producer"}); err != nil {
					t.Errorf("CreateWorkItem failed: %v", err)
					return
				}
			}
		}()
	}

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for round := 0; round < 50; round++ {
				res := s.Allocate(2)
				for _, alloc := range res.Allocations {
					for {
						turn, err := s.RecordTurn(alloc.ID)
						if err != nil {
							t.Errorf("RecordTurn failed: %v", err)
							return
						}
						if turn.Stop.ShouldStop {
							break
						}
					}
					if _, err := s.CompleteAllocation(alloc.ID, CompletionDetails{StopReason: models.StopMaxTurnsReached}); err != nil {
						t.Errorf("CompleteAllocation failed: %v", err)
						return
					}
				}
				s.GetBudgetStatus()
				s.GetQueue()
			}
		}()
	}
	wg.Wait()

	m := s.GetSchedulerMetrics()
	if m.TotalCreated != 100 {
		t.Errorf("expected 100 created, got %d", m.TotalCreated)
	}
	if m.TotalAllocated != m.TotalCompleted+m.ActiveAllocations {
		t.Errorf("allocated %d != completed %d + active %d", m.TotalAllocated, m.TotalCompleted, m.ActiveAllocations)
	}
	if m.ActiveAllocations != 0 || m.Cycle.SessionsActive != 0 {
		t.Errorf("expected all sessions released, got active=%d sessions=%d", m.ActiveAllocations, m.Cycle.SessionsActive)
	}
	if m.TotalAllocated+m.QueueDepth != 100 {
		t.Errorf("every item is queued or allocated once: allocated %d + queued %d", m.TotalAllocated, m.QueueDepth)
	}
	if !approxEqual(m.AvgCompletionTurns, 3) && m.TotalCompleted > 0 {
		t.Errorf("expected every allocation to run 3 turns, got %v", m.AvgCompletionTurns)
	}
}
