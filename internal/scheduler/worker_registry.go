package scheduler

import (
	"sort"
	"sync"

	"github.com/ShayCichocki/attention/pkg/models"
)

// WorkerDirectory supplies the workers currently available for allocation.
// The scheduler reads it synchronously while holding its own lock, so
// implementations must be fast and must not call back into the scheduler.
type WorkerDirectory interface {
	ActiveWorkers() []models.Worker
}

// WorkerRegistry is an in-memory WorkerDirectory.
// It provides thread-safe registration and snapshot reads.
type WorkerRegistry struct {
	// workers maps worker IDs to their current reference.
	workers map[string]models.Worker
	// inactive holds IDs that are registered but not available.
	inactive map[string]bool
	// mu protects all fields.
	mu sync.RWMutex
}

// NewWorkerRegistry creates a registry holding the given workers, all active.
func NewWorkerRegistry(workers ...models.Worker) *WorkerRegistry {
	r := &WorkerRegistry{
		workers:  make(map[string]models.Worker),
		inactive: make(map[string]bool),
	}
	for _, w := range workers {
		r.workers[w.ID] = w
	}
	return r
}

// Register adds or replaces a worker and marks it active.
func (r *WorkerRegistry) Register(w models.Worker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers[w.ID] = w
	delete(r.inactive, w.ID)
}

// Unregister removes a worker.
func (r *WorkerRegistry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workers, id)
	delete(r.inactive, id)
}

// SetActive toggles whether a registered worker is offered for allocation.
func (r *WorkerRegistry) SetActive(id string, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workers[id]; !ok {
		return
	}
	if active {
		delete(r.inactive, id)
	} else {
		r.inactive[id] = true
	}
}

// Replace swaps the whole registry contents in one step.
func (r *WorkerRegistry) Replace(workers []models.Worker, inactive []string) {
	next := make(map[string]models.Worker, len(workers))
	for _, w := range workers {
		next[w.ID] = w
	}
	off := make(map[string]bool, len(inactive))
	for _, id := range inactive {
		off[id] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers = next
	r.inactive = off
}

// Get returns a worker by ID.
func (r *WorkerRegistry) Get(id string) (models.Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[id]
	return w, ok
}

// ActiveWorkers returns the active workers sorted by ID.
func (r *WorkerRegistry) ActiveWorkers() []models.Worker {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Worker, 0, len(r.workers))
	for id, w := range r.workers {
		if r.inactive[id] {
			continue
		}
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of registered workers, active or not.
func (r *WorkerRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}
