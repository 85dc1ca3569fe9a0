// Package signals reads a point-in-time snapshot of the knowledge system's
// health signals from YAML and serves it to the scheduler's scan.
package signals

import (
	"fmt"
	"os"
	"sync"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/attention/internal/scheduler"
)

// Snapshot is the on-disk layout. Each section feeds one scan source.
type Snapshot struct {
	Contradictions []scheduler.ContradictionReport `yaml:"contradictions"`
	Records        []scheduler.RecordReport        `yaml:"records"`
	Governance     []scheduler.BacklogReport       `yaml:"governance"`
	IsolatedNodes  []scheduler.NodeReport          `yaml:"isolated_nodes"`
	HotNodes       []scheduler.HotNodeReport       `yaml:"hot_nodes"`
}

// Store serves a Snapshot through the scheduler source interfaces. It is
// safe to Refresh while a scan reads from it.
type Store struct {
	path string

	mu   sync.RWMutex
	snap Snapshot
}

var (
	_ scheduler.ContradictionSource = (*Store)(nil)
	_ scheduler.KnowledgeSource     = (*Store)(nil)
	_ scheduler.GovernanceSource    = (*Store)(nil)
	_ scheduler.GraphSource         = (*Store)(nil)
	_ scheduler.ActivationSource    = (*Store)(nil)
)

// Parse decodes snapshot YAML.
func Parse(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("parse signals: %w", err)
	}
	return s, nil
}

// NewStore returns a store holding snap. It has no backing file.
func NewStore(snap Snapshot) *Store {
	return &Store{snap: snap}
}

// Open loads the snapshot at path. Refresh re-reads the same file.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.Refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// Refresh re-reads the backing file. On error the previous snapshot is kept.
func (s *Store) Refresh() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read signals: %w", err)
	}
	snap, err := Parse(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	return nil
}

// Set replaces the snapshot in memory.
func (s *Store) Set(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
}

// Sources bundles the store as every scan source.
func (s *Store) Sources() scheduler.SignalSources {
	return scheduler.SignalSources{
		Contradictions: s,
		Knowledge:      s,
		Governance:     s,
		Graph:          s,
		Activation:     s,
	}
}

func (s *Store) OpenContradictions() []scheduler.ContradictionReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]scheduler.ContradictionReport(nil), s.snap.Contradictions...)
}

func (s *Store) Records() []scheduler.RecordReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]scheduler.RecordReport(nil), s.snap.Records...)
}

func (s *Store) Backlogs() []scheduler.BacklogReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]scheduler.BacklogReport(nil), s.snap.Governance...)
}

func (s *Store) IsolatedNodes() []scheduler.NodeReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]scheduler.NodeReport(nil), s.snap.IsolatedNodes...)
}

func (s *Store) HotNodes() []scheduler.HotNodeReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]scheduler.HotNodeReport(nil), s.snap.HotNodes...)
}
