// Package selector implements the pluggable Manager-ordering strategy
// used by the dispatch step (spec §4.4, §4.7 step 7).
package selector

import "icx.sh/interchange/internal/registry"

// Selector orders a set of "interesting" Managers into the stack the
// dispatch step drains. The returned slice is a stack: the event loop
// pops from the end (last element popped first) until either the stack
// or the task queue empties. Implementations must be deterministic given
// their inputs and must not mutate reg or ids.
type Selector interface {
	// Order returns a permutation of ids as a pop-from-the-end stack.
	Order(reg *registry.Registry, ids []registry.ID) []registry.ID

	// Name identifies the strategy for logging and the manager_selector
	// config field (spec §6).
	Name() string
}

// New constructs a Selector by name. Unknown names fall back to the
// default random-permutation strategy (spec §4.4, §9: "default =
// unbiased random permutation... must be seedable").
func New(name string, seed int64) Selector {
	switch name {
	case "round-robin":
		return NewRoundRobin()
	case "hash-ring":
		return NewHashRing()
	default:
		return NewRandom(seed)
	}
}
