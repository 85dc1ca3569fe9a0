package scheduler

import (
	"testing"
	"time"

	"github.com/ShayCichocki/attention/pkg/models"
)

func TestCheckBudget_Fresh(t *testing.T) {
	s, _, _ := newTestScheduler(t, nil)

	check := s.CheckBudget("u1")
	if !check.Allowed || check.Reason != "" {
		t.Fatalf("expected a fresh cycle to allow, got %+v", check)
	}

	def := models.DefaultBudget()
	r := check.Remaining
	if r.Items != def.MaxItemsPerCycle || r.Sessions != def.MaxParallelSessions || r.Proposals != def.MaxProposalsPerCycle {
		t.Errorf("unexpected remaining: %+v", r)
	}
	if r.Turns != def.MaxTurnsPerItem*def.MaxItemsPerCycle {
		t.Errorf("expected turn ceiling %d, got %d", def.MaxTurnsPerItem*def.MaxItemsPerCycle, r.Turns)
	}
	if r.DeepSynthesis == nil || *r.DeepSynthesis != def.MaxDeepSynthesisPerUser {
		t.Errorf("expected deep synthesis remaining %d, got %v", def.MaxDeepSynthesisPerUser, r.DeepSynthesis)
	}

	if anon := s.CheckBudget(""); anon.Remaining.DeepSynthesis != nil {
		t.Error("expected no deep synthesis figure without a user")
	}
}

func TestCycleReset(t *testing.T) {
	s, clock, _ := newTestScheduler(t, builders("b1", "b2"), WithBudget(models.Budget{MaxItemsPerCycle: 2}))
	for i := 0; i < 3; i++ {
		mustCreate(t, s, WorkItemRequest{Type: models.WorkTypeUserPrompt})
	}
	res := s.Allocate(2)
	if len(res.Allocations) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(res.Allocations))
	}
	if _, err := s.RecordProposal(res.Allocations[0].ID, "p1"); err != nil {
		t.Fatalf("RecordProposal failed: %v", err)
	}
	if _, err := s.CompleteAllocation(res.Allocations[0].ID, CompletionDetails{StopReason: models.StopNoveltyPlateau}); err != nil {
		t.Fatalf("CompleteAllocation failed: %v", err)
	}

	if check := s.CheckBudget(""); check.Allowed {
		t.Fatal("expected items exhausted before the cycle elapses")
	}

	clock.Advance(time.Hour + time.Second)

	status := s.GetBudgetStatus()
	if !status.CycleExpired {
		t.Error("expected status to report the expired cycle")
	}
	if status.Cycle.ItemsStarted != 2 {
		t.Errorf("status must not reset the cycle, got itemsStarted=%d", status.Cycle.ItemsStarted)
	}

	check := s.CheckBudget("")
	if !check.Allowed {
		t.Fatalf("expected allowance after reset, got %+v", check)
	}
	if check.Remaining.Items != 2 || check.Remaining.Proposals != models.DefaultBudget().MaxProposalsPerCycle {
		t.Errorf("expected zeroed counters, got %+v", check.Remaining)
	}

	m := s.GetSchedulerMetrics()
	if m.CycleResets != 1 {
		t.Errorf("expected 1 reset, got %d", m.CycleResets)
	}
	if !m.Cycle.StartedAt.Equal(clock.Now()) {
		t.Errorf("expected new cycle start %v, got %v", clock.Now(), m.Cycle.StartedAt)
	}
	// The one allocation still running keeps holding its session.
	if m.Cycle.SessionsActive != 1 {
		t.Errorf("expected 1 carried session, got %d", m.Cycle.SessionsActive)
	}
	if m.Cycle.ItemsStarted != 0 || m.Cycle.TurnsUsed != 0 || m.Cycle.ProposalsEmitted != 0 {
		t.Errorf("expected zeroed cycle, got %+v", m.Cycle)
	}
}

func TestCycleReset_SessionsNeverNegative(t *testing.T) {
	s, clock, _ := newTestScheduler(t, builders("b1"))
	mustCreate(t, s, WorkItemRequest{Type: models.WorkTypeUserPrompt})
	alloc := mustAllocateOne(t, s)

	clock.Advance(2 * time.Hour)
	s.CheckBudget("")

	if _, err := s.CompleteAllocation(alloc.ID, CompletionDetails{StopReason: models.StopConsensusReached}); err != nil {
		t.Fatalf("CompleteAllocation failed: %v", err)
	}
	if got := s.GetSchedulerMetrics().Cycle.SessionsActive; got != 0 {
		t.Errorf("expected 0 sessions, got %d", got)
	}
}

func TestRecordDeepSynthesis(t *testing.T) {
	s, clock, _ := newTestScheduler(t, nil, WithBudget(models.Budget{MaxDeepSynthesisPerUser: 2}))

	for i := 0; i < 2; i++ {
		check, err := s.RecordDeepSynthesis("alice")
		if err != nil {
			t.Fatalf("RecordDeepSynthesis failed: %v", err)
		}
		if !check.Allowed {
			t.Fatalf("call %d: expected allowance", i+1)
		}
		if *check.Remaining.DeepSynthesis != 1-i {
			t.Errorf("call %d: expected %d remaining, got %d", i+1, 1-i, *check.Remaining.DeepSynthesis)
		}
	}

	denied, err := s.RecordDeepSynthesis("alice")
	if err != nil {
		t.Fatalf("RecordDeepSynthesis failed: %v", err)
	}
	if denied.Allowed || denied.Reason != ReasonDeepSynthesisExhausted {
		t.Errorf("expected %q denial, got %+v", ReasonDeepSynthesisExhausted, denied)
	}
	if *denied.Remaining.DeepSynthesis != 0 {
		t.Errorf("expected 0 remaining, got %d", *denied.Remaining.DeepSynthesis)
	}

	other, _ := s.RecordDeepSynthesis("bob")
	if !other.Allowed {
		t.Error("expected caps to be per user")
	}

	if _, err := s.RecordDeepSynthesis(""); !IsValidation(err) {
		t.Errorf("expected validation error for empty user, got %v", err)
	}

	clock.Advance(time.Hour)
	again, _ := s.RecordDeepSynthesis("alice")
	if !again.Allowed {
		t.Error("expected the cap to reset with the cycle")
	}
}

func TestGetBudgetStatus_Levels(t *testing.T) {
	s, clock, _ := newTestScheduler(t, builders("b1"), WithBudget(models.Budget{
		MaxItemsPerCycle:    5,
		MaxParallelSessions: 10,
	}))
	for i := 0; i < 5; i++ {
		mustCreate(t, s, WorkItemRequest{Type: models.WorkTypeUserPrompt})
	}

	if lvl := s.GetBudgetStatus().Level; lvl != BudgetOK {
		t.Errorf("expected OK, got %s", lvl)
	}

	s.Allocate(4)
	status := s.GetBudgetStatus()
	if status.Level != BudgetWarning {
		t.Errorf("expected Warning at 80%%, got %s", status.Level)
	}
	if !approxEqual(status.Utilization.Items, 0.8) {
		t.Errorf("expected item utilization 0.8, got %v", status.Utilization.Items)
	}

	s.Allocate(1)
	if lvl := s.GetBudgetStatus().Level; lvl != BudgetExhausted {
		t.Errorf("expected Exhausted, got %s", lvl)
	}

	clock.Advance(15 * time.Minute)
	status = s.GetBudgetStatus()
	if status.Elapsed != 15*time.Minute || status.TimeRemaining != 45*time.Minute {
		t.Errorf("unexpected timing: elapsed=%v remaining=%v", status.Elapsed, status.TimeRemaining)
	}
	if status.CycleExpired {
		t.Error("cycle should not be expired yet")
	}
}

func TestUpdateBudget_IgnoresNonPositive(t *testing.T) {
	s, _, _ := newTestScheduler(t, nil)
	before := s.Budget()

	after := s.UpdateBudget(models.BudgetOverrides{
		MaxItemsPerCycle:    intp(0),
		MaxTurnsPerItem:     intp(-4),
		MaxParallelSessions: intp(6),
	})
	if after.MaxItemsPerCycle != before.MaxItemsPerCycle || after.MaxTurnsPerItem != before.MaxTurnsPerItem {
		t.Errorf("non-positive overrides must be ignored, got %+v", after)
	}
	if after.MaxParallelSessions != 6 {
		t.Errorf("expected 6 sessions, got %d", after.MaxParallelSessions)
	}

	fromMap := s.UpdateBudget(models.BudgetOverridesFromMap(map[string]float64{
		"max_items_per_cycle": 4,
		"cycle_duration_ms":   90000,
		"nonsense":            7,
	}))
	if fromMap.MaxItemsPerCycle != 4 || fromMap.CycleDuration != 90*time.Second {
		t.Errorf("unexpected budget after map overrides: %+v", fromMap)
	}
}

func TestBudgetLevelString(t *testing.T) {
	tests := []struct {
		level BudgetLevel
		want  string
	}{
		{BudgetOK, "OK"},
		{BudgetWarning, "Warning"},
		{BudgetExhausted, "Exhausted"},
		{BudgetLevel(9), "Unknown"},
	}
	for _, tc := range tests {
		if got := tc.level.String(); got != tc.want {
			t.Errorf("BudgetLevel(%d).String() = %q, want %q", tc.level, got, tc.want)
		}
	}
}
