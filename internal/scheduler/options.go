package scheduler

import (
	"time"

	"github.com/ShayCichocki/attention/pkg/models"
)

// DefaultAllocateBatch is used when Allocate is called with k <= 0.
const DefaultAllocateBatch = 3

// DefaultCompletedLimit is used when GetCompletedWork is called with limit <= 0.
const DefaultCompletedLimit = 20

// Option configures a Scheduler. Use With* functions to create Options.
type Option func(*schedulerOptions)

// schedulerOptions holds all optional configuration.
type schedulerOptions struct {
	budget        models.Budget
	weights       models.PriorityWeights
	affinity      AffinityTable
	thresholds    ScanThresholds
	allocateBatch int
	clock         func() time.Time
	logger        *DebugLogger
	events        *EventEmitter
}

func defaultOptions() schedulerOptions {
	return schedulerOptions{
		budget:        models.DefaultBudget(),
		weights:       models.DefaultPriorityWeights(),
		affinity:      DefaultAffinity(),
		thresholds:    DefaultScanThresholds(),
		allocateBatch: DefaultAllocateBatch,
		clock:         time.Now,
	}
}

// WithBudget sets the initial budget. Non-positive fields keep their defaults.
func WithBudget(b models.Budget) Option {
	return func(o *schedulerOptions) {
		o.budget = models.BudgetOverrides{
			MaxItemsPerCycle:        &b.MaxItemsPerCycle,
			MaxTurnsPerItem:         &b.MaxTurnsPerItem,
			MaxParallelSessions:     &b.MaxParallelSessions,
			MaxDeepSynthesisPerUser: &b.MaxDeepSynthesisPerUser,
			MaxProposalsPerCycle:    &b.MaxProposalsPerCycle,
			CycleDuration:           &b.CycleDuration,
		}.Apply(o.budget)
	}
}

// WithWeights sets the initial priority weights.
func WithWeights(w models.PriorityWeights) Option {
	return func(o *schedulerOptions) { o.weights = w }
}

// WithAffinity replaces the role affinity table.
func WithAffinity(a AffinityTable) Option {
	return func(o *schedulerOptions) {
		if len(a) > 0 {
			o.affinity = a
		}
	}
}

// WithScanThresholds sets the thresholds used by ScanAndCreateWorkItems.
func WithScanThresholds(t ScanThresholds) Option {
	return func(o *schedulerOptions) { o.thresholds = t }
}

// WithAllocateBatch sets the default k for Allocate.
func WithAllocateBatch(n int) Option {
	return func(o *schedulerOptions) {
		if n > 0 {
			o.allocateBatch = n
		}
	}
}

// WithClock injects the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(o *schedulerOptions) {
		if now != nil {
			o.clock = now
		}
	}
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *schedulerOptions) { o.logger = l }
}

// WithEventEmitter sets the emitter that receives committed events.
func WithEventEmitter(e *EventEmitter) Option {
	return func(o *schedulerOptions) { o.events = e }
}
