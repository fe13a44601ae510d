package queue

import (
	"container/heap"
	"sync"
)

// entry pairs a task with its arrival counter. The heap orders entries
// by the task's raw Priority (higher pops first) and then by arrival
// (earlier pops first), which gives the same pop order as spec §3's
// (priority_key, arrival_key) triple without storing negated keys.
type entry struct {
	task    Task
	arrival uint64
}

// less reports whether a ranks below b, i.e. a should be popped after b. Higher priority pops first; on a tie, the earlier
// arrival pops first.
func less(a, b entry) bool {
	if a.task.Priority != b.task.Priority {
		return a.task.Priority < b.task.Priority
	}
	return a.arrival > b.arrival
}

// maxHeap is a container/heap.Interface over entries, ordered so that
// Pop always returns the highest-priority, earliest-arrived entry.
type maxHeap []*entry

func (h maxHeap) Len() int { return len(h) }
func (h maxHeap) Less(i, j int) bool {
	// container/heap pops the *smallest* element by its Less; we want
	// the entry that should dispatch first to sort as "largest", so we
	// invert less() here.
	return !less(*h[i], *h[j])
}
func (h maxHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any) {
	*h = append(*h, x.(*entry))
}
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// TaskQueue is the priority- and arrival-ordered store of pending tasks
// described in spec §4.2. Safe for concurrent use.
type TaskQueue struct {
	mu       sync.Mutex
	h        maxHeap
	arrivals uint64
}

// New creates an empty TaskQueue.
func New() *TaskQueue {
	return &TaskQueue{}
}

// Enqueue assigns the next arrival counter and inserts t. O(log n).
func (q *TaskQueue) Enqueue(t Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.arrivals++
	heap.Push(&q.h, &entry{task: t, arrival: q.arrivals})
}

// PopBatch removes and returns up to n of the greatest entries (highest
// priority, earliest arrival first). Returns fewer, possibly zero, if
// the queue drains before n are collected.
func (q *TaskQueue) PopBatch(n int) []Task {
	if n <= 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	batch := make([]Task, 0, n)
	for len(batch) < n && q.h.Len() > 0 {
		e := heap.Pop(&q.h).(*entry)
		batch = append(batch, e.task)
	}
	return batch
}

// Size returns the number of pending tasks.
func (q *TaskQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.h.Len()
}

// Nonempty reports whether any task is pending.
func (q *TaskQueue) Nonempty() bool {
	return q.Size() > 0
}
