// Package lcg implements a deterministic 32-bit linear congruential PRNG.
//
// The generator state is a single uint32 so it can be captured inside
// game-state snapshots and restored on rollback. Every peer seeded the
// same way yields the same draw sequence; anything random in the
// simulation must come from here.
package lcg

// Classic LCG parameters (Numerical Recipes).
const (
	multiplier = 1664525
	increment  = 1013904223
)

// RNG is a seeded deterministic generator. Not safe for concurrent use;
// each game state owns exactly one.
type RNG struct {
	state uint32
}

// New creates a generator from seed. Seed 0 is remapped to 1 so a
// forgotten seed is still a valid state.
func New(seed uint32) *RNG {
	if seed == 0 {
		seed = 1
	}
	return &RNG{state: seed}
}

// NextUint32 advances the state and returns it.
func (r *RNG) NextUint32() uint32 {
	r.state = r.state*multiplier + increment
	return r.state
}

// Range returns an integer in [min, max] inclusive.
func (r *RNG) Range(min, max int) int {
	if min >= max {
		return min
	}
	span := uint32(max - min + 1)
	return min + int(r.NextUint32()%span)
}

// Uniform returns a float64 in [0, 1].
//
// The division is exact for every uint32, but callers that need
// cross-platform determinism should draw with Range instead.
func (r *RNG) Uniform() float64 {
	return float64(r.NextUint32()) / float64(0xFFFFFFFF)
}

// Chance returns true with probability p. Same caveat as Uniform.
func (r *RNG) Chance(p float64) bool {
	return r.Uniform() < p
}

// Pick returns a uniformly chosen index into a collection of length n,
// or -1 for an empty collection.
func (r *RNG) Pick(n int) int {
	if n <= 0 {
		return -1
	}
	return r.Range(0, n-1)
}

// Shuffle permutes items in place with a Fisher-Yates pass in
// descending index order, drawing each swap index from Range(0, i).
func (r *RNG) Shuffle(items []int) {
	for i := len(items) - 1; i > 0; i-- {
		j := r.Range(0, i)
		items[i], items[j] = items[j], items[i]
	}
}

// State returns the current generator state for snapshotting.
func (r *RNG) State() uint32 {
	return r.state
}

// SetState restores a previously captured state.
func (r *RNG) SetState(s uint32) {
	if s == 0 {
		s = 1
	}
	r.state = s
}
