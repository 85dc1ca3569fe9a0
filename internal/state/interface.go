package state

import (
	"io"
	"time"

	"github.com/ShayCichocki/attention/pkg/models"
)

// Archiver records finished allocations and cycles.
type Archiver interface {
	ArchiveAllocation(a *models.Allocation) error
	ArchiveCycle(c models.Cycle, budget models.Budget, endedAt time.Time) error
}

// HistoryReader reads the archive back for reports.
type HistoryReader interface {
	RecentAllocations(limit int) ([]AllocationRecord, error)
	RecentCycles(limit int) ([]CycleRecord, error)
	TurnStats(workType models.WorkItemType) (TurnStats, error)
	StopReasonCounts() (map[models.StopReason]int, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	Migrate() error
}

// Store composes every archive capability.
type Store interface {
	io.Closer
	Migrator
	Archiver
	HistoryReader
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store         = (*DB)(nil)
	_ Archiver      = (*DB)(nil)
	_ HistoryReader = (*DB)(nil)
)
