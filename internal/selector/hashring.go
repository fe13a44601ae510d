package selector

import (
	"strconv"
	"sync/atomic"

	"github.com/serialx/hashring"

	"icx.sh/interchange/internal/registry"
)

// HashRing orders the interesting set via consistent hashing: each call
// picks a rotating key and asks the ring for every node's rank relative
// to that key. Managers therefore see a stable relative ordering across
// most ring topology changes, at the cost of perfect fairness — the
// tradeoff consistent hashing always makes in exchange for minimal
// reshuffling when Managers join or leave.
type HashRing struct {
	counter atomic.Uint64
}

func NewHashRing() *HashRing { return &HashRing{} }

func (s *HashRing) Order(_ *registry.Registry, ids []registry.ID) []registry.ID {
	if len(ids) == 0 {
		return nil
	}

	nodes := make([]string, len(ids))
	byNode := make(map[string]registry.ID, len(ids))
	for i, id := range ids {
		n := id.Display()
		nodes[i] = n
		byNode[n] = id
	}

	key := strconv.FormatUint(s.counter.Add(1), 10)
	ring := hashring.New(nodes)
	ranked, ok := ring.GetNodes(key, len(nodes))
	if !ok {
		out := make([]registry.ID, len(ids))
		copy(out, ids)
		return out
	}

	out := make([]registry.ID, 0, len(ranked))
	for _, n := range ranked {
		out = append(out, byNode[n])
	}
	return out
}

func (s *HashRing) Name() string { return "hash-ring" }
