package scheduler

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/attention/pkg/models"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func builders(ids ...string) []models.Worker {
	out := make([]models.Worker, len(ids))
	for i, id := range ids {
		out[i] = models.Worker{ID: id, Role: models.RoleBuilder, Credibility: 0.5}
	}
	return out
}

// newTestScheduler returns a scheduler on a fake clock with the given workers.
func newTestScheduler(t *testing.T, workers []models.Worker, opts ...Option) (*Scheduler, *fakeClock, *WorkerRegistry) {
	t.Helper()
	clock := newFakeClock()
	reg := NewWorkerRegistry(workers...)
	all := append([]Option{WithClock(clock.Now), WithLogger(NopLogger())}, opts...)
	return New(reg, all...), clock, reg
}

func mustCreate(t *testing.T, s *Scheduler, req WorkItemRequest) *models.WorkItem {
	t.Helper()
	if req.CreatedBy == "" {
		req.CreatedBy = "tester"
	}
	item, err := s.CreateWorkItem(req)
	if err != nil {
		t.Fatalf("CreateWorkItem(%s) failed: %v", req.Type, err)
	}
	return item
}

func mustAllocateOne(t *testing.T, s *Scheduler) *models.Allocation {
	t.Helper()
	res := s.Allocate(1)
	if len(res.Allocations) != 1 {
		t.Fatalf("expected 1 allocation, got %d (reason=%q deferred=%v)", len(res.Allocations), res.Reason, res.Deferred)
	}
	return res.Allocations[0]
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func assertSorted(t *testing.T, items []*models.WorkItem) {
	t.Helper()
	for i := 1; i < len(items); i++ {
		if items[i-1].Priority < items[i].Priority {
			t.Fatalf("queue not sorted at %d: %.3f before %.3f", i, items[i-1].Priority, items[i].Priority)
		}
	}
}
