package roster

import (
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/ShayCichocki/attention/internal/scheduler"
)

// Watcher keeps a WorkerRegistry in step with a roster file. A reload that
// fails validation leaves the previous roster in place.
type Watcher struct {
	path     string
	registry *scheduler.WorkerRegistry

	mu       sync.Mutex
	lastErr  error
	reloads  int
	onReload func(*Snapshot, error)

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewWatcher loads path into registry once. Call Start to follow changes.
func NewWatcher(path string, registry *scheduler.WorkerRegistry) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		registry: registry,
		done:     make(chan struct{}),
	}
	if err := w.Reload(); err != nil {
		return nil, err
	}
	return w, nil
}

// OnReload registers a callback invoked after every reload attempt.
func (w *Watcher) OnReload(fn func(*Snapshot, error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onReload = fn
}

// Reload reads the roster file and swaps it into the registry.
func (w *Watcher) Reload() error {
	snap, err := Load(w.path)

	w.mu.Lock()
	w.lastErr = err
	if err == nil {
		w.registry.Replace(snap.Workers, snap.Inactive)
		w.reloads++
	}
	fn := w.onReload
	w.mu.Unlock()

	if fn != nil {
		fn(snap, err)
	}
	return err
}

// Start watches the roster's directory so that editors which replace the
// file (rename over it) are picked up as well as in-place writes. If the
// watcher cannot be created the roster stays at its last loaded state.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		fw.Close()
		return err
	}
	w.watcher = fw

	w.wg.Add(1)
	go w.watch()
	return nil
}

func (w *Watcher) watch() {
	defer w.wg.Done()
	target := filepath.Clean(w.path)

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if _, err := os.Stat(w.path); err != nil {
				// Mid-replace; the following Create will trigger the reload.
				continue
			}
			if err := w.Reload(); err != nil {
				log.Printf("[roster] WARNING: reload %s failed, keeping previous roster: %v", w.path, err)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[roster] watcher error: %v", err)
		}
	}
}

// LastError returns the error from the most recent reload, if any.
func (w *Watcher) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Reloads returns how many reloads have succeeded, including the initial load.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

// Close stops watching.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
		close(w.done)
	}
	var err error
	if w.watcher != nil {
		err = w.watcher.Close()
	}
	w.wg.Wait()
	return err
}
