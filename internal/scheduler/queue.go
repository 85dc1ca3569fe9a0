package scheduler

import (
	"container/heap"
	"sort"

	"github.com/ShayCichocki/attention/pkg/models"
)

// queueEntry is one pending item plus its ordering key.
type queueEntry struct {
	item  *models.WorkItem
	seq   uint64
	index int
}

// entryHeap orders entries by descending priority, then ascending sequence so
// earlier arrivals stay ahead of equal-priority peers.
type entryHeap []*queueEntry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	return ahead(h[i], h[j])
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*queueEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

func ahead(a, b *queueEntry) bool {
	if a.item.Priority != b.item.Priority {
		return a.item.Priority > b.item.Priority
	}
	return a.seq < b.seq
}

// workQueue is a max-priority queue with O(log n) insert, pop and removal by id.
// It is not safe for concurrent use; the owning Scheduler serializes access.
type workQueue struct {
	heap    entryHeap
	byID    map[string]*queueEntry
	nextSeq uint64
}

func newWorkQueue() *workQueue {
	return &workQueue{byID: make(map[string]*queueEntry)}
}

func (q *workQueue) Len() int {
	return len(q.heap)
}

// push inserts item behind every queued item of equal or higher priority.
func (q *workQueue) push(item *models.WorkItem) {
	q.nextSeq++
	e := &queueEntry{item: item, seq: q.nextSeq}
	heap.Push(&q.heap, e)
	q.byID[item.ID] = e
}

// pop removes and returns the highest-priority item, or nil when empty.
func (q *workQueue) pop() *models.WorkItem {
	if len(q.heap) == 0 {
		return nil
	}
	e := heap.Pop(&q.heap).(*queueEntry)
	delete(q.byID, e.item.ID)
	return e.item
}

// remove takes the item with the given id out of the queue.
func (q *workQueue) remove(id string) (*models.WorkItem, bool) {
	e, ok := q.byID[id]
	if !ok {
		return nil, false
	}
	heap.Remove(&q.heap, e.index)
	delete(q.byID, id)
	return e.item, true
}

func (q *workQueue) get(id string) (*models.WorkItem, bool) {
	e, ok := q.byID[id]
	if !ok {
		return nil, false
	}
	return e.item, true
}

// removeWhere removes every item matching pred and returns them in queue order.
func (q *workQueue) removeWhere(pred func(*models.WorkItem) bool) []*models.WorkItem {
	var matched []*queueEntry
	for _, e := range q.heap {
		if pred(e.item) {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return ahead(matched[i], matched[j]) })

	removed := make([]*models.WorkItem, 0, len(matched))
	for _, e := range matched {
		heap.Remove(&q.heap, e.index)
		delete(q.byID, e.item.ID)
		removed = append(removed, e.item)
	}
	return removed
}

// rescore recomputes every priority with score and restores heap order.
// Sequence numbers are kept, so ties still resolve by arrival.
func (q *workQueue) rescore(score func(*models.WorkItem) float64) {
	for _, e := range q.heap {
		e.item.Priority = score(e.item)
	}
	heap.Init(&q.heap)
}

// ordered returns the queued items from highest to lowest priority.
func (q *workQueue) ordered() []*models.WorkItem {
	entries := make([]*queueEntry, len(q.heap))
	copy(entries, q.heap)
	sort.Slice(entries, func(i, j int) bool { return ahead(entries[i], entries[j]) })

	items := make([]*models.WorkItem, len(entries))
	for i, e := range entries {
		items[i] = e.item
	}
	return items
}
