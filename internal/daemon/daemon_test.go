package daemon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/attention/internal/scheduler"
	"github.com/ShayCichocki/attention/internal/signals"
	"github.com/ShayCichocki/attention/pkg/models"
)

type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Execute(ctx context.Context, alloc *models.Allocation, turns Turns) (scheduler.CompletionDetails, error) {
	args := m.Called(ctx, alloc, turns)
	return args.Get(0).(scheduler.CompletionDetails), args.Error(1)
}

type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) ArchiveAllocation(a *models.Allocation) error {
	args := m.Called(a)
	return args.Error(0)
}

func (m *MockArchive) ArchiveCycle(c models.Cycle, budget models.Budget, endedAt time.Time) error {
	args := m.Called(c, budget, endedAt)
	return args.Error(0)
}

func newScheduler(t *testing.T, budget models.Budget, opts ...scheduler.Option) *scheduler.Scheduler {
	t.Helper()
	reg := scheduler.NewWorkerRegistry(
		models.Worker{ID: "b1", Role: models.RoleBuilder, Credibility: 0.9},
		models.Worker{ID: "c1", Role: models.RoleCritic, Credibility: 0.8},
	)
	opts = append([]scheduler.Option{scheduler.WithBudget(budget)}, opts...)
	return scheduler.New(reg, opts...)
}

func queue(t *testing.T, s *scheduler.Scheduler, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := s.CreateWorkItem(scheduler.WorkItemRequest{Type: models.WorkTypeUserPrompt, CreatedBy: "tester"})
		require.NoError(t, err)
	}
}

func TestRunOnce_DryRunArchivesEveryAllocation(t *testing.T) {
	s := newScheduler(t, models.Budget{MaxTurnsPerItem: 3})
	queue(t, s, 2)

	archive := new(MockArchive)
	archive.On("ArchiveAllocation", mock.MatchedBy(func(a *models.Allocation) bool {
		return a.Status == models.AllocationCompleted &&
			a.TurnsUsed == 3 &&
			*a.StopReason == models.StopMaxTurnsReached
	})).Return(nil).Twice()

	d := New(s, DryRunExecutor{}, Options{AllocateBatch: 5, Archive: archive})
	res, err := d.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Len(t, res.Allocate.Allocations, 2)
	assert.Equal(t, int64(2), d.Completed())
	assert.Zero(t, d.Failed())
	assert.Empty(t, s.GetActiveAllocations())
	assert.Equal(t, res, d.LastTick())
	archive.AssertExpectations(t)
}

func TestRunOnce_DryRunPlateau(t *testing.T) {
	s := newScheduler(t, models.Budget{MaxTurnsPerItem: 10})
	queue(t, s, 1)

	d := New(s, DryRunExecutor{PlateauAfter: 2}, Options{})
	_, err := d.RunOnce(context.Background())
	require.NoError(t, err)

	done := s.GetCompletedWork(1)
	require.Len(t, done, 1)
	assert.Equal(t, models.StopNoveltyPlateau, *done[0].StopReason)
	assert.Equal(t, 2, done[0].TurnsUsed)
	assert.Contains(t, done[0].Summary.Description, "plateaued after 2 turns")
}

func TestRunOnce_ExecutorErrorStillCompletes(t *testing.T) {
	s := newScheduler(t, models.Budget{})
	queue(t, s, 1)

	exec := new(MockExecutor)
	exec.On("Execute", mock.Anything, mock.AnythingOfType("*models.Allocation"), mock.Anything).
		Return(scheduler.CompletionDetails{}, errors.New("team crashed")).Once()

	d := New(s, exec, Options{})
	_, err := d.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), d.Failed())
	done := s.GetCompletedWork(1)
	require.Len(t, done, 1)
	assert.Equal(t, models.StopFatalFlawFound, *done[0].StopReason)
	assert.Contains(t, done[0].Summary.Description, "team crashed")
	assert.Zero(t, s.GetSchedulerMetrics().Cycle.SessionsActive)
	exec.AssertExpectations(t)
}

func TestRunOnce_InvalidStopReasonFallsBack(t *testing.T) {
	s := newScheduler(t, models.Budget{})
	queue(t, s, 1)

	exec := ExecutorFunc(func(ctx context.Context, alloc *models.Allocation, turns Turns) (scheduler.CompletionDetails, error) {
		_, err := turns.RecordProposal("prop-1")
		require.NoError(t, err)
		return scheduler.CompletionDetails{StopReason: "bored"}, nil
	})

	d := New(s, exec, Options{})
	_, err := d.RunOnce(context.Background())
	require.NoError(t, err)

	done := s.GetCompletedWork(1)
	require.Len(t, done, 1)
	assert.Equal(t, models.StopFatalFlawFound, *done[0].StopReason)
	assert.Equal(t, []string{"prop-1"}, done[0].Summary.ProposalIDs)
	assert.Zero(t, d.Failed())
}

type failingSignals struct {
	*signals.Store
}

func (failingSignals) Refresh() error { return errors.New("snapshot unreadable") }

func TestRunOnce_ScansSignals(t *testing.T) {
	s := newScheduler(t, models.Budget{MaxTurnsPerItem: 1})
	store := signals.NewStore(signals.Snapshot{
		HotNodes: []scheduler.HotNodeReport{{NodeID: "n1", Scope: "graph", Score: 0.9}},
	})

	d := New(s, DryRunExecutor{}, Options{Signals: failingSignals{store}})
	res, err := d.RunOnce(context.Background())

	// The refresh failure is reported but the last good snapshot is still scanned.
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot unreadable")
	assert.Equal(t, 1, res.Scanned)
	require.Len(t, res.Allocate.Allocations, 1)
	assert.Equal(t, models.WorkTypeHotNode, res.Allocate.Allocations[0].Type)
}

func TestRunOnce_NothingQueued(t *testing.T) {
	s := newScheduler(t, models.Budget{})
	exec := new(MockExecutor)

	d := New(s, exec, Options{})
	res, err := d.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, scheduler.ReasonNothingToAllocate, res.Allocate.Reason)
	exec.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_CancelReleasesSessions(t *testing.T) {
	s := newScheduler(t, models.Budget{MaxParallelSessions: 2})
	queue(t, s, 2)

	started := make(chan struct{}, 2)
	exec := ExecutorFunc(func(ctx context.Context, alloc *models.Allocation, turns Turns) (scheduler.CompletionDetails, error) {
		started <- struct{}{}
		<-ctx.Done()
		return scheduler.CompletionDetails{}, ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	d := New(s, exec, Options{TickInterval: time.Hour, AllocateBatch: 2})

	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	<-started
	<-started
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Empty(t, s.GetActiveAllocations())
	for _, a := range s.GetCompletedWork(0) {
		assert.Equal(t, models.StopBudgetExhausted, *a.StopReason)
	}
	assert.Equal(t, int64(2), d.Completed())
}

func TestEvents_ArchiveClosedCycles(t *testing.T) {
	var (
		mu  sync.Mutex
		now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	emitter := scheduler.NewEventEmitter(32)
	s := newScheduler(t, models.Budget{CycleDuration: time.Hour, MaxTurnsPerItem: 2},
		scheduler.WithClock(clock), scheduler.WithEventEmitter(emitter))
	queue(t, s, 1)

	archive := new(MockArchive)
	archive.On("ArchiveAllocation", mock.Anything).Return(nil)
	archive.On("ArchiveCycle", mock.MatchedBy(func(c models.Cycle) bool {
		return c.ItemsStarted == 1 && c.TurnsUsed == 2
	}), mock.AnythingOfType("models.Budget"), now.Add(2*time.Hour)).Return(nil).Once()

	var seen []scheduler.EventType
	d := New(s, DryRunExecutor{}, Options{
		Events:  emitter,
		Archive: archive,
		OnEvent: func(ev scheduler.Event) { seen = append(seen, ev.Type) },
	})
	d.startEvents()

	_, err := d.RunOnce(context.Background())
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(2 * time.Hour)
	mu.Unlock()
	s.CheckBudget("")

	emitter.Close()
	d.Close()

	archive.AssertExpectations(t)
	assert.Equal(t, []scheduler.EventType{
		scheduler.EventItemQueued,
		scheduler.EventAllocationStarted,
		scheduler.EventAllocationStop,
		scheduler.EventAllocationCompleted,
		scheduler.EventCycleReset,
	}, seen)
}

func TestRunOnce_SessionLimitFollowsBudget(t *testing.T) {
	s := newScheduler(t, models.Budget{MaxParallelSessions: 1})

	var mu sync.Mutex
	running, peak := 0, 0
	allIn := make(chan struct{})
	exec := ExecutorFunc(func(ctx context.Context, alloc *models.Allocation, turns Turns) (scheduler.CompletionDetails, error) {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		if running == 3 {
			close(allIn)
		}
		mu.Unlock()

		select {
		case <-allIn:
		case <-time.After(time.Second):
		}

		mu.Lock()
		running--
		mu.Unlock()
		return scheduler.CompletionDetails{StopReason: models.StopNoveltyPlateau}, nil
	})

	d := New(s, exec, Options{AllocateBatch: 3})
	s.UpdateBudget(models.BudgetOverrides{MaxParallelSessions: intp(3)})
	queue(t, s, 3)

	res, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Allocate.Allocations, 3)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, peak, "raised session cap should allow 3 concurrent executions")
	assert.Equal(t, int64(3), d.Completed())
}

func intp(v int) *int { return &v }
