// Package roster loads the worker roster from a YAML file and keeps a
// scheduler.WorkerRegistry in sync with it.
//
// Example roster file:
//
//	workers:
//	  - id: w-critic-1
//	    role: critic
//	    credibility: 0.82
//	  - id: w-builder-1
//	    role: builder
//	    credibility: 0.64
//	    active: false
package roster

import (
	"errors"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/attention/pkg/models"
)

// ErrInvalidRoster is returned when a roster file parses but fails validation.
var ErrInvalidRoster = errors.New("invalid roster")

// Entry is one worker as written in the roster file.
type Entry struct {
	ID          string  `yaml:"id"`
	Role        string  `yaml:"role"`
	Credibility float64 `yaml:"credibility"`
	// Active defaults to true when omitted.
	Active *bool `yaml:"active,omitempty"`
}

// File is the on-disk roster layout.
type File struct {
	Workers []Entry `yaml:"workers"`
}

// Snapshot is a validated roster.
type Snapshot struct {
	Workers  []models.Worker
	Inactive []string
}

// Parse decodes and validates roster YAML.
func Parse(data []byte) (*Snapshot, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}

	snap := &Snapshot{Workers: make([]models.Worker, 0, len(f.Workers))}
	seen := make(map[string]bool, len(f.Workers))
	for i, e := range f.Workers {
		if e.ID == "" {
			return nil, fmt.Errorf("%w: worker %d has no id", ErrInvalidRoster, i)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("%w: duplicate worker id %q", ErrInvalidRoster, e.ID)
		}
		seen[e.ID] = true

		role := models.Role(e.Role)
		if !role.Valid() {
			return nil, fmt.Errorf("%w: worker %q has unknown role %q", ErrInvalidRoster, e.ID, e.Role)
		}
		if e.Credibility < 0 || e.Credibility > 1 {
			return nil, fmt.Errorf("%w: worker %q credibility %.2f outside [0,1]", ErrInvalidRoster, e.ID, e.Credibility)
		}

		snap.Workers = append(snap.Workers, models.Worker{ID: e.ID, Role: role, Credibility: e.Credibility})
		if e.Active != nil && !*e.Active {
			snap.Inactive = append(snap.Inactive, e.ID)
		}
	}
	return snap, nil
}

// Load reads and validates the roster at path.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return Parse(data)
}

// Marshal renders workers back into roster YAML.
func Marshal(snap *Snapshot) ([]byte, error) {
	off := make(map[string]bool, len(snap.Inactive))
	for _, id := range snap.Inactive {
		off[id] = true
	}

	f := File{Workers: make([]Entry, 0, len(snap.Workers))}
	for _, w := range snap.Workers {
		e := Entry{ID: w.ID, Role: string(w.Role), Credibility: w.Credibility}
		if off[w.ID] {
			active := false
			e.Active = &active
		}
		f.Workers = append(f.Workers, e)
	}
	return yaml.Marshal(&f)
}
