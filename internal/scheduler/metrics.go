package scheduler

import "github.com/ShayCichocki/attention/pkg/models"

// metricsState holds running aggregates. Caller must hold the scheduler lock.
type metricsState struct {
	created   int
	allocated int
	deferred  int
	expired   int
	completed int
	cycles    int
	avgTurns  float64
	stops     map[models.StopReason]int
}

func newMetricsState() metricsState {
	return metricsState{stops: make(map[models.StopReason]int)}
}

// recordCompletion folds one completion into the running average.
func (m *metricsState) recordCompletion(turns int, reason models.StopReason) {
	m.completed++
	m.avgTurns += (float64(turns) - m.avgTurns) / float64(m.completed)
	m.stops[reason]++
}

// Metrics is a consistent snapshot of scheduler aggregates.
type Metrics struct {
	TotalCreated   int `json:"total_created"`
	TotalAllocated int `json:"total_allocated"`
	// TotalDeferred counts deferral events; one item may defer many times.
	TotalDeferred  int `json:"total_deferred"`
	TotalExpired   int `json:"total_expired"`
	TotalCompleted int `json:"total_completed"`
	CycleResets    int `json:"cycle_resets"`
	// AvgCompletionTurns is the mean turnsUsed across completed allocations.
	AvgCompletionTurns float64                   `json:"avg_completion_turns"`
	StopReasons        map[models.StopReason]int `json:"stop_reasons"`
	QueueDepth         int                       `json:"queue_depth"`
	DeferredInQueue    int                       `json:"deferred_in_queue"`
	ActiveAllocations  int                       `json:"active_allocations"`
	Cycle              models.Cycle              `json:"cycle"`
	DroppedEvents      uint64                    `json:"dropped_events"`
}

// GetSchedulerMetrics returns running aggregates and current gauges.
func (s *Scheduler) GetSchedulerMetrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	stops := make(map[models.StopReason]int, len(s.metrics.stops))
	for k, v := range s.metrics.stops {
		stops[k] = v
	}

	deferredInQueue := 0
	for _, e := range s.queue.heap {
		if e.item.Status == models.WorkItemDeferred {
			deferredInQueue++
		}
	}

	return Metrics{
		TotalCreated:       s.metrics.created,
		TotalAllocated:     s.metrics.allocated,
		TotalDeferred:      s.metrics.deferred,
		TotalExpired:       s.metrics.expired,
		TotalCompleted:     s.metrics.completed,
		CycleResets:        s.metrics.cycles,
		AvgCompletionTurns: s.metrics.avgTurns,
		StopReasons:        stops,
		QueueDepth:         s.queue.Len(),
		DeferredInQueue:    deferredInQueue,
		ActiveAllocations:  len(s.active),
		Cycle:              s.cycle.Clone(),
		DroppedEvents:      s.events.DroppedCount(),
	}
}
