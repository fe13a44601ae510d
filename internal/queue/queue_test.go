package queue

import "testing"

func TestPriorityDispatchOrder(t *testing.T) {
	q := New()
	q.Enqueue(Task{ID: 1, Priority: 1})
	q.Enqueue(Task{ID: 2, Priority: 5})
	q.Enqueue(Task{ID: 3, Priority: 5})

	batch := q.PopBatch(3)
	if len(batch) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(batch))
	}

	// T2 and T3 share the highest priority; T2 arrived first so it must
	// dispatch first. T1 is lowest priority, dispatches last.
	want := []int64{2, 3, 1}
	for i, id := range want {
		if batch[i].ID != id {
			t.Errorf("batch[%d]: want task %d, got %d", i, id, batch[i].ID)
		}
	}
}

func TestTieBreakIsArrivalOrder(t *testing.T) {
	q := New()
	const n = 1000
	for i := 0; i < n; i++ {
		q.Enqueue(Task{ID: int64(i), Priority: 0})
	}

	batch := q.PopBatch(n)
	if len(batch) != n {
		t.Fatalf("expected %d tasks, got %d", n, len(batch))
	}
	for i, task := range batch {
		if task.ID != int64(i) {
			t.Fatalf("batch[%d]: want insertion order id %d, got %d", i, i, task.ID)
		}
	}
}

func TestPopBatchDrainsPartially(t *testing.T) {
	q := New()
	q.Enqueue(Task{ID: 1})
	q.Enqueue(Task{ID: 2})

	batch := q.PopBatch(10)
	if len(batch) != 2 {
		t.Fatalf("expected queue to drain with only 2 entries, got %d", len(batch))
	}
	if q.Nonempty() {
		t.Fatalf("expected queue to be empty after draining")
	}
}

func TestDefaultPriorityIsLowest(t *testing.T) {
	q := New()
	q.Enqueue(Task{ID: 1, Priority: DefaultPriority})
	q.Enqueue(Task{ID: 2, Priority: 10})

	batch := q.PopBatch(2)
	if batch[0].ID != 2 || batch[1].ID != 1 {
		t.Fatalf("expected explicit-priority task first, got %v", batch)
	}
}

func TestSizeReflectsPendingCount(t *testing.T) {
	q := New()
	if q.Size() != 0 {
		t.Fatalf("expected empty queue size 0, got %d", q.Size())
	}
	q.Enqueue(Task{ID: 1})
	q.Enqueue(Task{ID: 2})
	if q.Size() != 2 {
		t.Fatalf("expected size 2, got %d", q.Size())
	}
	q.PopBatch(1)
	if q.Size() != 1 {
		t.Fatalf("expected size 1 after popping one, got %d", q.Size())
	}
}
