package selector

import (
	"sort"
	"testing"

	"icx.sh/interchange/internal/registry"
)

func idSet(n int) []registry.ID {
	ids := make([]registry.ID, n)
	for i := range ids {
		ids[i] = registry.ID("mgr-" + string(rune('a'+i)))
	}
	return ids
}

func assertSamePermutation(t *testing.T, got, want []registry.ID) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	g := append([]registry.ID(nil), got...)
	w := append([]registry.ID(nil), want...)
	sort.Slice(g, func(i, j int) bool { return g[i] < g[j] })
	sort.Slice(w, func(i, j int) bool { return w[i] < w[j] })
	for i := range g {
		if g[i] != w[i] {
			t.Fatalf("not a permutation of the input set: got %v, want elements of %v", got, want)
		}
	}
}

func TestRandomOrderIsPermutationAndDeterministicPerSeed(t *testing.T) {
	ids := idSet(6)

	a := NewRandom(42).Order(nil, ids)
	b := NewRandom(42).Order(nil, ids)

	assertSamePermutation(t, a, ids)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed produced different orderings: %v vs %v", a, b)
		}
	}
}

func TestRandomDoesNotMutateInput(t *testing.T) {
	ids := idSet(4)
	original := append([]registry.ID(nil), ids...)

	NewRandom(1).Order(nil, ids)

	for i := range ids {
		if ids[i] != original[i] {
			t.Fatalf("Order mutated its input slice at index %d", i)
		}
	}
}

func TestRoundRobinRotatesEachCall(t *testing.T) {
	ids := idSet(3)
	s := NewRoundRobin()

	first := s.Order(nil, ids)
	second := s.Order(nil, ids)

	assertSamePermutation(t, first, ids)
	assertSamePermutation(t, second, ids)
	if first[0] == second[0] {
		t.Fatalf("expected rotation to change the lead element across calls, got %v then %v", first, second)
	}
}

func TestHashRingOrderIsPermutation(t *testing.T) {
	ids := idSet(5)
	got := NewHashRing().Order(nil, ids)
	assertSamePermutation(t, got, ids)
}

func TestEmptyInterestingSetYieldsEmptyStack(t *testing.T) {
	for _, s := range []Selector{NewRandom(1), NewRoundRobin(), NewHashRing()} {
		if out := s.Order(nil, nil); len(out) != 0 {
			t.Errorf("%s: expected empty stack for empty input, got %v", s.Name(), out)
		}
	}
}

func TestNewFallsBackToRandom(t *testing.T) {
	s := New("nonexistent-strategy", 7)
	if s.Name() != "random" {
		t.Fatalf("expected unknown strategy name to fall back to random, got %q", s.Name())
	}
}
