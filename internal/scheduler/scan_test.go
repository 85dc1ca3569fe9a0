package scheduler

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ShayCichocki/attention/pkg/models"
)

type fakeSources struct {
	contradictions []ContradictionReport
	records        []RecordReport
	backlogs       []BacklogReport
	isolated       []NodeReport
	hot            []HotNodeReport
}

func (f *fakeSources) OpenContradictions() []ContradictionReport { return f.contradictions }
func (f *fakeSources) Records() []RecordReport { return f.records }
func (f *fakeSources) Backlogs() []BacklogReport { return f.backlogs }
func (f *fakeSources) IsolatedNodes() []NodeReport { return f.isolated }
func (f *fakeSources) HotNodes() []HotNodeReport { return f.hot }

func (f *fakeSources) all() SignalSources {
	return SignalSources{
		Contradictions: f,
		Knowledge:      f,
		Governance:     f,
		Graph:          f,
		Activation:     f,
	}
}

func isolatedNodes(scope string, n int) []NodeReport {
	out := make([]NodeReport, n)
	for i := range out {
		out[i] = NodeReport{NodeID: fmt.Sprintf("%s-node-%d", scope, i), Scope: scope}
	}
	return out
}

func TestScanAndCreateWorkItems(t *testing.T) {
	s, _, _ := newTestScheduler(t, nil)
	src := &fakeSources{
		contradictions: []ContradictionReport{
			{SessionID: "sess-1", Scope: "billing", Count: 2},
			{SessionID: "sess-2", Scope: "billing", Count: 0},
		},
		records: []RecordReport{
			{RecordID: "rec-weak", Scope: "kb", Confidence: 0.3, Usage: 8},
			{RecordID: "rec-strong", Scope: "kb", Confidence: 0.9, Usage: 50},
			{RecordID: "rec-unused", Scope: "kb", Confidence: 0.1, Usage: 2},
		},
		backlogs: []BacklogReport{
			{Scope: "policy", Size: 12},
			{Scope: "ops", Size: 3},
		},
		isolated: append(isolatedNodes("graph", 5), isolatedNodes("tiny", 2)...),
		hot: []HotNodeReport{
			{NodeID: "n-hot", Scope: "graph", Score: 0.9},
			{NodeID: "n-cool", Scope: "graph", Score: 0.5},
		},
	}

	created, err := s.ScanAndCreateWorkItems(src.all())
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	byType := make(map[models.WorkItemType]*models.WorkItem)
	for _, item := range created {
		if _, dup := byType[item.Type]; dup {
			t.Errorf("unexpected second %s item", item.Type)
		}
		byType[item.Type] = item
		if item.CreatedBy != ScannerActor {
			t.Errorf("expected createdBy %q, got %q", ScannerActor, item.CreatedBy)
		}
	}

	want := map[models.WorkItemType]string{
		models.WorkTypeContradiction:     "sess-1",
		models.WorkTypeLowConfidence:     "rec-weak",
		models.WorkTypeGovernanceBacklog: "governance:policy",
		models.WorkTypeMissingEdges:      "graph-node-0",
		models.WorkTypeHotNode:           "n-hot",
	}
	if len(created) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(created))
	}
	for typ, input := range want {
		item, ok := byType[typ]
		if !ok {
			t.Errorf("missing %s item", typ)
			continue
		}
		if item.Inputs[0] != input {
			t.Errorf("%s: expected primary input %q, got %q", typ, input, item.Inputs[0])
		}
	}

	if edges := byType[models.WorkTypeMissingEdges]; len(edges.Inputs) != 5 || edges.Scope != "graph" {
		t.Errorf("expected 5 isolated nodes scoped to graph, got %v in %s", edges.Inputs, edges.Scope)
	}
	if c := byType[models.WorkTypeContradiction]; c.Signals.ContradictionPressure <= 0 {
		t.Errorf("expected contradiction pressure to be set, got %+v", c.Signals)
	}

	assertSorted(t, s.GetQueue())

	// A second scan over unchanged sources raises nothing new.
	again, err := s.ScanAndCreateWorkItems(src.all())
	if err != nil {
		t.Fatalf("rescan failed: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("expected dedup on rescan, got %d new items", len(again))
	}
	if got := len(s.GetQueue()); got != len(want) {
		t.Errorf("expected %d queued, got %d", len(want), got)
	}
}

func TestScan_NilSourcesAreSkipped(t *testing.T) {
	s, _, _ := newTestScheduler(t, nil)
	src := &fakeSources{hot: []HotNodeReport{{NodeID: "n1", Score: 0.95}}}

	created, err := s.ScanAndCreateWorkItems(SignalSources{Activation: src})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(created) != 1 || created[0].Scope != models.WildcardScope {
		t.Errorf("expected one wildcard hot node item, got %v", created)
	}

	none, err := s.ScanAndCreateWorkItems(SignalSources{})
	if err != nil || len(none) != 0 {
		t.Errorf("expected empty scan, got %v, %v", none, err)
	}
}

func TestScan_CapsIsolatedNodeInputs(t *testing.T) {
	s, _, _ := newTestScheduler(t, nil)
	src := &fakeSources{isolated: isolatedNodes("huge", models.MaxWorkItemInputs+20)}

	created, err := s.ScanAndCreateWorkItems(SignalSources{Graph: src})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(created) != 1 || len(created[0].Inputs) != models.MaxWorkItemInputs {
		t.Fatalf("expected one item with %d inputs, got %v", models.MaxWorkItemInputs, created)
	}
}

func TestScan_JoinsValidationErrors(t *testing.T) {
	s, _, _ := newTestScheduler(t, nil)
	src := &fakeSources{
		contradictions: []ContradictionReport{
			{SessionID: strings.Repeat("s", models.MaxDescriptionLength), Count: 3},
			{SessionID: "ok", Count: 1},
		},
	}

	created, err := s.ScanAndCreateWorkItems(SignalSources{Contradictions: src})
	if !errors.Is(err, ErrDescriptionTooLong) {
		t.Fatalf("expected description_too_long in the joined error, got %v", err)
	}
	if len(created) != 1 || created[0].Inputs[0] != "ok" {
		t.Errorf("expected the valid candidate to be created, got %v", created)
	}
}

func TestScan_ThresholdsOverride(t *testing.T) {
	th := DefaultScanThresholds()
	th.MinHotNodeScore = 0.4
	s, _, _ := newTestScheduler(t, nil, WithScanThresholds(th))

	src := &fakeSources{hot: []HotNodeReport{{NodeID: "warm", Score: 0.5}}}
	created, err := s.ScanAndCreateWorkItems(SignalSources{Activation: src})
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(created) != 1 {
		t.Errorf("expected lowered threshold to admit the node, got %d items", len(created))
	}
}
