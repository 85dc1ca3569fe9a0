// Package daemon drives the scheduler on a timer. Each tick expires stale
// items, refreshes and scans signal sources, allocates a batch, and hands
// every allocation to an Executor. Finished allocations and closed cycles
// are archived when an archive is configured.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ShayCichocki/attention/internal/scheduler"
	"github.com/ShayCichocki/attention/internal/state"
	"github.com/ShayCichocki/attention/pkg/models"
)

// DefaultTickInterval is used when Options.TickInterval is not positive.
const DefaultTickInterval = 30 * time.Second

// SignalProvider supplies signal sources for the scan step.
type SignalProvider interface {
	Refresh() error
	Sources() scheduler.SignalSources
}

// Options configures a Daemon. Every collaborator is optional.
type Options struct {
	TickInterval  time.Duration
	AllocateBatch int
	Signals       SignalProvider
	Archive       state.Archiver
	Events        *scheduler.EventEmitter
	Logger        *scheduler.DebugLogger
	// OnEvent observes every scheduler event drained from Events.
	OnEvent func(scheduler.Event)
}

// TickResult describes one pass of the loop.
type TickResult struct {
	Expired  int
	Scanned  int
	Allocate scheduler.AllocateResult
}

// Daemon owns the run loop around one scheduler.
type Daemon struct {
	sched *scheduler.Scheduler
	exec  Executor
	opts  Options

	completed atomic.Int64
	failed    atomic.Int64

	mu       sync.Mutex
	lastTick TickResult
	// sem bounds concurrent executions at semLimit, the session cap it was
	// sized for.
	sem      *semaphore.Weighted
	semLimit int64

	eventsDone chan struct{}
}

// New creates a Daemon. The executor concurrency limit follows the
// scheduler's parallel session cap and is re-read on every tick.
func New(sched *scheduler.Scheduler, exec Executor, opts Options) *Daemon {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Logger == nil {
		opts.Logger = scheduler.NopLogger()
	}
	return &Daemon{
		sched: sched,
		exec:  exec,
		opts:  opts,
	}
}

// sessionSlots returns the semaphore for the current session cap. When the
// cap has changed since the last tick a fresh semaphore replaces the old
// one; executions already holding the old one release it as they finish,
// and the scheduler still counts them against the cap.
func (d *Daemon) sessionSlots() *semaphore.Weighted {
	limit := int64(d.sched.Budget().MaxParallelSessions)
	if limit < 1 {
		limit = 1
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sem == nil || d.semLimit != limit {
		if d.sem != nil {
			d.opts.Logger.Log("[daemon] session limit %d -> %d", d.semLimit, limit)
		}
		d.sem = semaphore.NewWeighted(limit)
		d.semLimit = limit
	}
	return d.sem
}

// Run ticks until ctx is cancelled, then waits for in-flight allocations
// to be completed and archived.
func (d *Daemon) Run(ctx context.Context) error {
	d.startEvents()

	g, gctx := errgroup.WithContext(ctx)
	ticker := time.NewTicker(d.opts.TickInterval)
	defer ticker.Stop()

	for {
		if _, err := d.tick(gctx, g); err != nil {
			d.opts.Logger.Log("[daemon] tick: %v", err)
		}

		select {
		case <-gctx.Done():
			err := g.Wait()
			if errors.Is(err, context.Canceled) {
				err = nil
			}
			return err
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single tick and waits for every allocation it started.
func (d *Daemon) RunOnce(ctx context.Context) (TickResult, error) {
	d.startEvents()

	g, gctx := errgroup.WithContext(ctx)
	res, tickErr := d.tick(gctx, g)
	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, tickErr
}

// Completed returns how many allocations the daemon has completed.
func (d *Daemon) Completed() int64 {
	return d.completed.Load()
}

// Failed returns how many executions ended in an executor error.
func (d *Daemon) Failed() int64 {
	return d.failed.Load()
}

// LastTick returns the result of the most recent tick.
func (d *Daemon) LastTick() TickResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastTick
}

// Close stops draining events. The emitter channel must be closed by its
// owner first for Close to return.
func (d *Daemon) Close() {
	if d.eventsDone != nil {
		<-d.eventsDone
	}
}

// tick runs expire, scan and allocate, then dispatches allocations on g.
// Scan validation errors are returned but do not stop allocation.
func (d *Daemon) tick(ctx context.Context, g *errgroup.Group) (TickResult, error) {
	var res TickResult
	var errs []error

	res.Expired = len(d.sched.ExpireItems())

	if d.opts.Signals != nil {
		if err := d.opts.Signals.Refresh(); err != nil {
			errs = append(errs, fmt.Errorf("refresh signals: %w", err))
		}
		created, err := d.sched.ScanAndCreateWorkItems(d.opts.Signals.Sources())
		res.Scanned = len(created)
		if err != nil {
			errs = append(errs, fmt.Errorf("scan: %w", err))
		}
	}

	res.Allocate = d.sched.Allocate(d.opts.AllocateBatch)
	d.opts.Logger.Log("[daemon] tick: expired=%d scanned=%d allocated=%d deferred=%d reason=%s",
		res.Expired, res.Scanned, len(res.Allocate.Allocations), len(res.Allocate.Deferred), res.Allocate.Reason)

	sem := d.sessionSlots()
	for _, alloc := range res.Allocate.Allocations {
		g.Go(func() error {
			return d.runAllocation(ctx, sem, alloc)
		})
	}

	d.mu.Lock()
	d.lastTick = res
	d.mu.Unlock()

	return res, errors.Join(errs...)
}

// runAllocation executes one allocation and always completes it so its
// session slot is released.
func (d *Daemon) runAllocation(ctx context.Context, sem *semaphore.Weighted, alloc *models.Allocation) error {
	details, execErr := d.execute(ctx, sem, alloc)
	if execErr != nil {
		d.failed.Add(1)
		details = failureDetails(execErr)
		log.Printf("[daemon] WARNING: allocation %s (%s) failed: %v", alloc.ID, alloc.Type, execErr)
	}

	done, err := d.sched.CompleteAllocation(alloc.ID, details)
	if errors.Is(err, scheduler.ErrInvalidStopReason) {
		d.opts.Logger.Log("[daemon] allocation %s returned invalid stop reason %q", alloc.ID, details.StopReason)
		details = failureDetails(err)
		done, err = d.sched.CompleteAllocation(alloc.ID, details)
	}
	if err != nil {
		return fmt.Errorf("complete allocation %s: %w", alloc.ID, err)
	}
	d.completed.Add(1)

	if d.opts.Archive != nil {
		if err := d.opts.Archive.ArchiveAllocation(done); err != nil {
			log.Printf("[daemon] WARNING: archive allocation %s: %v", done.ID, err)
		}
	}
	return nil
}

func (d *Daemon) execute(ctx context.Context, sem *semaphore.Weighted, alloc *models.Allocation) (scheduler.CompletionDetails, error) {
	if err := sem.Acquire(ctx, 1); err != nil {
		return scheduler.CompletionDetails{}, err
	}
	defer sem.Release(1)

	return d.exec.Execute(ctx, alloc, allocationTurns{sched: d.sched, allocationID: alloc.ID})
}

// failureDetails maps an execution error to a completion. Cancellation is
// reported as budget exhaustion since the run ran out of time rather than
// finding a flaw.
func failureDetails(err error) scheduler.CompletionDetails {
	reason := models.StopFatalFlawFound
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		reason = models.StopBudgetExhausted
	}
	return scheduler.CompletionDetails{
		StopReason:  reason,
		Description: fmt.Sprintf("execution ended early: %v", err),
	}
}

// startEvents drains the emitter, archiving closed cycles and forwarding
// every event to OnEvent. Only the first call starts the drain.
func (d *Daemon) startEvents() {
	if d.opts.Events == nil || d.eventsDone != nil {
		return
	}
	d.eventsDone = make(chan struct{})
	go func() {
		defer close(d.eventsDone)
		for ev := range d.opts.Events.Events() {
			d.handleEvent(ev)
		}
	}()
}

func (d *Daemon) handleEvent(ev scheduler.Event) {
	if ev.Type == scheduler.EventCycleReset && ev.Cycle != nil && d.opts.Archive != nil {
		if err := d.opts.Archive.ArchiveCycle(*ev.Cycle, d.sched.Budget(), ev.Timestamp); err != nil {
			log.Printf("[daemon] WARNING: archive cycle %s: %v", ev.Cycle.StartedAt.Format(time.RFC3339), err)
		}
	}
	if d.opts.OnEvent != nil {
		d.opts.OnEvent(ev)
	}
}
