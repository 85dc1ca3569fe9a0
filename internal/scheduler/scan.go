package scheduler

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ShayCichocki/attention/pkg/models"
)

// ScannerActor is recorded as createdBy on items raised by a scan.
const ScannerActor = "scanner"

// ContradictionReport is the open-contradiction count for one dialogue session.
type ContradictionReport struct {
	SessionID string `yaml:"session_id"`
	Scope     string `yaml:"scope"`
	Count     int    `yaml:"count"`
}

// RecordReport is the confidence and usage of one knowledge record.
type RecordReport struct {
	RecordID   string  `yaml:"record_id"`
	Scope      string  `yaml:"scope"`
	Confidence float64 `yaml:"confidence"`
	Usage      int     `yaml:"usage"`
}

// BacklogReport is the governance backlog for one scope.
type BacklogReport struct {
	Scope string `yaml:"scope"`
	Size  int    `yaml:"size"`
}

// NodeReport is one structurally isolated graph node.
type NodeReport struct {
	NodeID string `yaml:"node_id"`
	Scope  string `yaml:"scope"`
}

// HotNodeReport is the activation score of one node.
type HotNodeReport struct {
	NodeID string  `yaml:"node_id"`
	Scope  string  `yaml:"scope"`
	Score  float64 `yaml:"score"`
}

// ContradictionSource reports open contradictions from dialogue sessions.
type ContradictionSource interface {
	OpenContradictions() []ContradictionReport
}

// KnowledgeSource reports records with their confidence and usage.
type KnowledgeSource interface {
	Records() []RecordReport
}

// GovernanceSource reports governance backlogs.
type GovernanceSource interface {
	Backlogs() []BacklogReport
}

// GraphSource reports isolated nodes.
type GraphSource interface {
	IsolatedNodes() []NodeReport
}

// ActivationSource reports node activation scores.
type ActivationSource interface {
	HotNodes() []HotNodeReport
}

// SignalSources bundles the collaborators a scan consults. Nil sources are skipped.
type SignalSources struct {
	Contradictions ContradictionSource
	Knowledge      KnowledgeSource
	Governance     GovernanceSource
	Graph          GraphSource
	Activation     ActivationSource
}

// ScanThresholds decide when a reported signal becomes a work item.
type ScanThresholds struct {
	MinContradictions    int     `mapstructure:"min_contradictions"`
	MaxLowConfidence     float64 `mapstructure:"max_low_confidence"`
	MinUsage             int     `mapstructure:"min_usage"`
	MinGovernanceBacklog int     `mapstructure:"min_governance_backlog"`
	MinIsolatedNodes     int     `mapstructure:"min_isolated_nodes"`
	MinHotNodeScore      float64 `mapstructure:"min_hot_node_score"`
}

// DefaultScanThresholds returns the built-in thresholds.
func DefaultScanThresholds() ScanThresholds {
	return ScanThresholds{
		MinContradictions:    1,
		MaxLowConfidence:     0.4,
		MinUsage:             5,
		MinGovernanceBacklog: 10,
		MinIsolatedNodes:     5,
		MinHotNodeScore:      0.8,
	}
}

// ScanAndCreateWorkItems polls each source, read-only, and queues an item for
// every signal that crosses its threshold. A candidate is skipped when a
// queued item of the same type already references the same primary input.
// Validation failures on individual candidates are joined into the error;
// the other candidates are still created.
func (s *Scheduler) ScanAndCreateWorkItems(sources SignalSources) ([]*models.WorkItem, error) {
	s.mu.Lock()
	th := s.thresholds
	s.mu.Unlock()

	candidates := collectCandidates(sources, th)
	if len(candidates) == 0 {
		return nil, nil
	}

	var errs []error
	var created []*models.WorkItem
	var events []Event

	s.mu.Lock()
	for _, req := range candidates {
		if err := req.validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if s.hasQueuedLocked(req.Type, primaryInput(req.Inputs)) {
			continue
		}
		item := s.createLocked(req)
		created = append(created, item.Clone())
		events = append(events, Event{Type: EventItemQueued, ItemID: item.ID, WorkType: item.Type, Priority: item.Priority})
	}
	s.logger.Log("[scan] %d candidates, %d created, %d rejected", len(candidates), len(created), len(errs))
	s.mu.Unlock()

	s.emitAll(events)
	if len(errs) > 0 {
		return created, fmt.Errorf("scan: %w", errors.Join(errs...))
	}
	return created, nil
}

// hasQueuedLocked reports whether a queued item of type t references input.
// Caller must hold s.mu.
func (s *Scheduler) hasQueuedLocked(t models.WorkItemType, input string) bool {
	if input == "" {
		return false
	}
	for _, e := range s.queue.heap {
		if e.item.Type == t && primaryInput(e.item.Inputs) == input {
			return true
		}
	}
	return false
}

func primaryInput(inputs []string) string {
	if len(inputs) == 0 {
		return ""
	}
	return inputs[0]
}

// collectCandidates turns source reports into work item requests. It runs
// without the scheduler lock since sources are external collaborators.
func collectCandidates(src SignalSources, th ScanThresholds) []WorkItemRequest {
	var out []WorkItemRequest

	if src.Contradictions != nil {
		for _, r := range src.Contradictions.OpenContradictions() {
			if r.Count < th.MinContradictions || r.Count <= 0 {
				continue
			}
			out = append(out, WorkItemRequest{
				Type:        models.WorkTypeContradiction,
				Scope:       r.Scope,
				Inputs:      []string{r.SessionID},
				CreatedBy:   ScannerActor,
				Description: fmt.Sprintf("%d open contradiction(s) in session %s", r.Count, r.SessionID),
				Signals: models.SignalInput{
					Risk:                  models.Float(0.6),
					ContradictionPressure: models.Float(math.Min(1, float64(r.Count)/5)),
				},
			})
		}
	}

	if src.Knowledge != nil {
		for _, r := range src.Knowledge.Records() {
			if r.Confidence > th.MaxLowConfidence || r.Usage < th.MinUsage {
				continue
			}
			out = append(out, WorkItemRequest{
				Type:        models.WorkTypeLowConfidence,
				Scope:       r.Scope,
				Inputs:      []string{r.RecordID},
				CreatedBy:   ScannerActor,
				Description: fmt.Sprintf("record %s used %d times at confidence %.2f", r.RecordID, r.Usage, r.Confidence),
				Signals: models.SignalInput{
					Uncertainty: models.Float(1 - r.Confidence),
					Impact:      models.Float(math.Min(1, float64(r.Usage)/20)),
				},
			})
		}
	}

	if src.Governance != nil {
		for _, r := range src.Governance.Backlogs() {
			if r.Size < th.MinGovernanceBacklog {
				continue
			}
			out = append(out, WorkItemRequest{
				Type:        models.WorkTypeGovernanceBacklog,
				Scope:       r.Scope,
				Inputs:      []string{"governance:" + scopeKey(r.Scope)},
				CreatedBy:   ScannerActor,
				Description: fmt.Sprintf("governance backlog of %d in %s", r.Size, scopeKey(r.Scope)),
				Signals: models.SignalInput{
					GovernancePressure: models.Float(math.Min(1, float64(r.Size)/50)),
				},
			})
		}
	}

	if src.Graph != nil {
		out = append(out, isolatedNodeCandidates(src.Graph.IsolatedNodes(), th)...)
	}

	if src.Activation != nil {
		for _, r := range src.Activation.HotNodes() {
			if r.Score < th.MinHotNodeScore {
				continue
			}
			out = append(out, WorkItemRequest{
				Type:        models.WorkTypeHotNode,
				Scope:       r.Scope,
				Inputs:      []string{r.NodeID},
				CreatedBy:   ScannerActor,
				Description: fmt.Sprintf("node %s activation %.2f", r.NodeID, r.Score),
				Signals: models.SignalInput{
					Impact:  models.Float(r.Score),
					Novelty: models.Float(0.3),
				},
			})
		}
	}

	return out
}

// isolatedNodeCandidates groups isolated nodes by scope and raises one
// missing-edges item per scope that meets the threshold.
func isolatedNodeCandidates(nodes []NodeReport, th ScanThresholds) []WorkItemRequest {
	byScope := make(map[string][]string)
	for _, n := range nodes {
		if n.NodeID == "" {
			continue
		}
		key := scopeKey(n.Scope)
		byScope[key] = append(byScope[key], n.NodeID)
	}

	scopes := make([]string, 0, len(byScope))
	for scope := range byScope {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)

	var out []WorkItemRequest
	for _, scope := range scopes {
		ids := byScope[scope]
		if len(ids) < th.MinIsolatedNodes {
			continue
		}
		inputs := ids
		if len(inputs) > models.MaxWorkItemInputs {
			inputs = inputs[:models.MaxWorkItemInputs]
		}
		out = append(out, WorkItemRequest{
			Type:        models.WorkTypeMissingEdges,
			Scope:       scope,
			Inputs:      append([]string(nil), inputs...),
			CreatedBy:   ScannerActor,
			Description: fmt.Sprintf("%d isolated node(s) in %s", len(ids), scope),
			Signals: models.SignalInput{
				Impact:  models.Float(math.Min(1, float64(len(ids))/20)),
				Novelty: models.Float(0.4),
			},
		})
	}
	return out
}

func scopeKey(scope string) string {
	if scope == "" {
		return models.WildcardScope
	}
	return scope
}
