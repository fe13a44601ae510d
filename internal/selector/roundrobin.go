package selector

import (
	"sort"
	"sync/atomic"

	"icx.sh/interchange/internal/registry"
)

// RoundRobin orders the interesting set by a fixed, sorted base order
// rotated by an atomic counter each call — every Manager gets a turn at
// the top of the stack in sequence rather than the same Manager racing
// ahead every iteration.
type RoundRobin struct {
	counter atomic.Uint64
}

func NewRoundRobin() *RoundRobin { return &RoundRobin{} }

func (s *RoundRobin) Order(_ *registry.Registry, ids []registry.ID) []registry.ID {
	if len(ids) == 0 {
		return nil
	}

	base := make([]registry.ID, len(ids))
	copy(base, ids)
	sort.Slice(base, func(i, j int) bool { return base[i] < base[j] })

	offset := int(s.counter.Add(1)) % len(base)
	out := make([]registry.ID, len(base))
	copy(out, base[offset:])
	copy(out[len(base)-offset:], base[:offset])
	return out
}

func (s *RoundRobin) Name() string { return "round-robin" }
