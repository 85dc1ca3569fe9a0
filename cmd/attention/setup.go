package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fatih/color"

	"github.com/ShayCichocki/attention/internal/config"
	"github.com/ShayCichocki/attention/internal/roster"
	"github.com/ShayCichocki/attention/internal/scheduler"
	"github.com/ShayCichocki/attention/internal/signals"
	"github.com/ShayCichocki/attention/internal/state"
)

// loadConfig loads the --config file when given, otherwise the layered config.
func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFromPath(cfgFile)
	}
	return config.Load()
}

// environment is a scheduler wired to its configured collaborators.
type environment struct {
	cfg      *config.Config
	sched    *scheduler.Scheduler
	registry *scheduler.WorkerRegistry
	roster   *roster.Watcher
	signals  *signals.Store
	events   *scheduler.EventEmitter
	logger   *scheduler.DebugLogger
}

// newEnvironment builds the scheduler from cfg. When withEvents is set the
// scheduler publishes on an emitter the caller must drain.
func newEnvironment(cfg *config.Config, withEvents bool, logOut io.Writer) (*environment, error) {
	env := &environment{cfg: cfg, registry: scheduler.NewWorkerRegistry()}

	logger, err := scheduler.NewDebugLogger(cfg.Paths.LogFile)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	if cfg.Paths.LogFile == "" && verbose && logOut != nil {
		logger = scheduler.NewWriterLogger(logOut)
	}
	env.logger = logger

	if cfg.Paths.Roster != "" {
		w, err := roster.NewWatcher(cfg.Paths.Roster, env.registry)
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("load roster: %w", err)
		}
		env.roster = w
	}

	if cfg.Paths.Signals != "" {
		store, err := signals.Open(cfg.Paths.Signals)
		if err != nil {
			env.Close()
			return nil, fmt.Errorf("load signals: %w", err)
		}
		env.signals = store
	}

	opts := append(cfg.SchedulerOptions(), scheduler.WithLogger(logger))
	if withEvents {
		env.events = scheduler.NewEventEmitter(256)
		opts = append(opts, scheduler.WithEventEmitter(env.events))
	}
	env.sched = scheduler.New(env.registry, opts...)
	return env, nil
}

// scan queues work from the signal snapshot, if one is configured.
// Individual candidate failures are reported as warnings.
func (e *environment) scan(w io.Writer) int {
	if e.signals == nil {
		return 0
	}
	created, err := e.sched.ScanAndCreateWorkItems(e.signals.Sources())
	if err != nil {
		fmt.Fprintf(w, "%s some signals were skipped: %v\n", color.YellowString("⚠"), err)
	}
	return len(created)
}

// Close releases the roster watcher and log file.
func (e *environment) Close() {
	if e.roster != nil {
		if err := e.roster.Close(); err != nil {
			log.Printf("[attention] WARNING: close roster watcher: %v", err)
		}
	}
	if e.logger != nil {
		e.logger.Close()
	}
}

// openArchive opens and migrates the configured archive database.
func openArchive(cfg *config.Config) (*state.DB, error) {
	path := cfg.Paths.StateDB
	if path == "" {
		path = state.DefaultPath()
	}
	db, err := state.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return db, nil
}

// archiveExists reports whether the configured archive file is present.
func archiveExists(cfg *config.Config) bool {
	path := cfg.Paths.StateDB
	if path == "" {
		path = state.DefaultPath()
	}
	_, err := os.Stat(path)
	return err == nil
}

// printStatus prints a status line with color
func printStatus(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}
