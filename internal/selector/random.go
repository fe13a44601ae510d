package selector

import (
	"math/rand"
	"sync"

	"icx.sh/interchange/internal/registry"
)

// Random is the default ManagerSelector: an unbiased random permutation
// of the interesting set, seedable for deterministic tests (spec §9).
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom creates a Random selector seeded with seed. Two Random
// selectors built from the same seed and fed the same sequence of inputs
// produce the same sequence of orderings.
func NewRandom(seed int64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

func (s *Random) Order(_ *registry.Registry, ids []registry.ID) []registry.ID {
	out := make([]registry.ID, len(ids))
	copy(out, ids)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func (s *Random) Name() string { return "random" }
