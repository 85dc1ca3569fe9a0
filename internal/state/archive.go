package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/ShayCichocki/attention/pkg/models"
)

// ErrNotCompleted is returned when archiving an allocation that is still active.
var ErrNotCompleted = errors.New("allocation not completed")

// AllocationRecord is one archived allocation row.
type AllocationRecord struct {
	ID            string  `db:"id" json:"allocation_id"`
	ItemID        string  `db:"item_id" json:"item_id"`
	Type          string  `db:"type" json:"type"`
	Scope         string  `db:"scope" json:"scope"`
	Team          string  `db:"team" json:"team"`
	Priority      float64 `db:"priority" json:"priority"`
	MaxTurns      int     `db:"max_turns" json:"max_turns"`
	TurnsUsed     int     `db:"turns_used" json:"turns_used"`
	ProposalCount int     `db:"proposal_count" json:"proposal_count"`
	StopReason    string  `db:"stop_reason" json:"stop_reason"`
	Summary       *string `db:"summary" json:"-"`
	StartedAt     string  `db:"started_at" json:"started_at"`
	CompletedAt   string  `db:"completed_at" json:"completed_at"`
}

// TeamMembers decodes the stored team.
func (r AllocationRecord) TeamMembers() []string {
	var team []string
	if err := json.Unmarshal([]byte(r.Team), &team); err != nil {
		return nil
	}
	return team
}

// DecodeSummary decodes the stored completion summary, if any.
func (r AllocationRecord) DecodeSummary() (*models.AllocationSummary, error) {
	if r.Summary == nil || *r.Summary == "" {
		return nil, nil
	}
	var sum models.AllocationSummary
	if err := json.Unmarshal([]byte(*r.Summary), &sum); err != nil {
		return nil, fmt.Errorf("decode summary for %s: %w", r.ID, err)
	}
	return &sum, nil
}

// Duration returns the wall time between start and completion.
func (r AllocationRecord) Duration() time.Duration {
	start, err := parseTime(r.StartedAt)
	if err != nil {
		return 0
	}
	end, err := parseTime(r.CompletedAt)
	if err != nil {
		return 0
	}
	return end.Sub(start)
}

// CycleRecord is one archived accounting window.
type CycleRecord struct {
	StartedAt        string `db:"started_at" json:"started_at"`
	EndedAt          string `db:"ended_at" json:"ended_at"`
	ItemsStarted     int    `db:"items_started" json:"items_started"`
	TurnsUsed        int    `db:"turns_used" json:"turns_used"`
	ProposalsEmitted int    `db:"proposals_emitted" json:"proposals_emitted"`
	MaxItems         int    `db:"max_items" json:"max_items"`
	MaxTurnsPerItem  int    `db:"max_turns_per_item" json:"max_turns_per_item"`
}

// TurnStats summarizes turns used across archived allocations.
type TurnStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
}

// ArchiveAllocation stores a completed allocation. Re-archiving the same
// allocation replaces the earlier row.
func (db *DB) ArchiveAllocation(a *models.Allocation) error {
	if a == nil || a.CompletedAt == nil || a.StopReason == nil {
		return ErrNotCompleted
	}

	team, err := json.Marshal(a.Team)
	if err != nil {
		return fmt.Errorf("encode team: %w", err)
	}

	var summary *string
	proposals := len(a.Proposals)
	if a.Summary != nil {
		data, err := json.Marshal(a.Summary)
		if err != nil {
			return fmt.Errorf("encode summary: %w", err)
		}
		s := string(data)
		summary = &s
		proposals = a.Summary.ProposalCount
	}

	_, err = db.Exec(`
		INSERT OR REPLACE INTO allocations
			(id, item_id, type, scope, team, priority, max_turns, turns_used,
			 proposal_count, stop_reason, summary, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.ItemID, string(a.Type), a.Scope, string(team), a.Priority, a.MaxTurns, a.TurnsUsed,
		proposals, string(*a.StopReason), summary, formatTime(a.StartedAt), formatTime(*a.CompletedAt))
	if err != nil {
		return fmt.Errorf("archive allocation %s: %w", a.ID, err)
	}
	return nil
}

// RecentAllocations returns up to limit archived allocations, newest first.
func (db *DB) RecentAllocations(limit int) ([]AllocationRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []AllocationRecord
	err := db.Select(&records, `
		SELECT id, item_id, type, scope, team, priority, max_turns, turns_used,
		       proposal_count, stop_reason, summary, started_at, completed_at
		FROM allocations
		ORDER BY completed_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	return records, nil
}

// ArchiveCycle stores a closed accounting window together with the budget
// that governed it.
func (db *DB) ArchiveCycle(c models.Cycle, budget models.Budget, endedAt time.Time) error {
	_, err := db.Exec(`
		INSERT OR REPLACE INTO cycles
			(started_at, ended_at, items_started, turns_used, proposals_emitted, max_items, max_turns_per_item)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, formatTime(c.StartedAt), formatTime(endedAt), c.ItemsStarted, c.TurnsUsed, c.ProposalsEmitted,
		budget.MaxItemsPerCycle, budget.MaxTurnsPerItem)
	if err != nil {
		return fmt.Errorf("archive cycle: %w", err)
	}
	return nil
}

// RecentCycles returns up to limit archived cycles, newest first.
func (db *DB) RecentCycles(limit int) ([]CycleRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var cycles []CycleRecord
	err := db.Select(&cycles, `
		SELECT started_at, ended_at, items_started, turns_used, proposals_emitted, max_items, max_turns_per_item
		FROM cycles
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list cycles: %w", err)
	}
	return cycles, nil
}

// TurnStats summarizes turns used by archived allocations. An empty
// workType covers every type.
func (db *DB) TurnStats(workType models.WorkItemType) (TurnStats, error) {
	query := "SELECT turns_used FROM allocations"
	var args []any
	if workType != "" {
		query += " WHERE type = ?"
		args = append(args, string(workType))
	}

	var turns []float64
	if err := db.Select(&turns, query, args...); err != nil {
		return TurnStats{}, fmt.Errorf("load turns: %w", err)
	}
	if len(turns) == 0 {
		return TurnStats{}, nil
	}

	data := stats.Float64Data(turns)
	out := TurnStats{Count: len(turns)}
	var err error
	if out.Mean, err = data.Mean(); err != nil {
		return TurnStats{}, fmt.Errorf("mean turns: %w", err)
	}
	if out.Median, err = data.Median(); err != nil {
		return TurnStats{}, fmt.Errorf("median turns: %w", err)
	}
	if out.P90, err = data.Percentile(90); err != nil {
		return TurnStats{}, fmt.Errorf("p90 turns: %w", err)
	}
	if out.Max, err = data.Max(); err != nil {
		return TurnStats{}, fmt.Errorf("max turns: %w", err)
	}
	return out, nil
}

// StopReasonCounts returns how often each stop reason was archived.
func (db *DB) StopReasonCounts() (map[models.StopReason]int, error) {
	var rows []struct {
		Reason string `db:"stop_reason"`
		Count  int    `db:"n"`
	}
	if err := db.Select(&rows, "SELECT stop_reason, COUNT(*) AS n FROM allocations GROUP BY stop_reason"); err != nil {
		return nil, fmt.Errorf("count stop reasons: %w", err)
	}
	out := make(map[models.StopReason]int, len(rows))
	for _, r := range rows {
		out[models.StopReason(r.Reason)] = r.Count
	}
	return out, nil
}
