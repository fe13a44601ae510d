// Package queue implements the priority-ordered pending task queue.
package queue

import "math"

// Task is an opaque unit of work submitted by a client. Payload is the
// original, undecoded wire bytes for the task; the Interchange never
// inspects it beyond the task_id and priority extracted at intake.
// Tasks are immutable once enqueued.
type Task struct {
	ID       int64
	Priority float64
	Payload  []byte
}

// DefaultPriority is used when a task carries no resource_spec.priority.
// Dispatch pops the highest Priority value first (spec §8 scenario 2:
// prio=5 dispatches ahead of prio=1), so "default meaning lowest" (spec
// §3) requires the smallest representable value here, not the largest —
// a task with no stated priority must never jump ahead of one that
// states any finite priority.
var DefaultPriority = math.Inf(-1)
