package physics

import (
	"sort"

	"lockstep/internal/fixed"
	"lockstep/internal/protocol"
)

// Default physics constants, all Q16.16 at construction time.
var (
	// DefaultGravity is 980 world units per second squared.
	DefaultGravity = fixed.FromInt(980)

	// DefaultMaxVelocity caps each velocity axis at 1000 units/s.
	DefaultMaxVelocity = fixed.FromInt(1000)

	// DefaultFriction is the per-tick horizontal damping factor.
	DefaultFriction = fixed.FromFloat(0.9)

	// DefaultSpeed is the velocity applied per pressed movement axis.
	DefaultSpeed = fixed.FromInt(300)

	// Default world extents.
	DefaultWorldW = fixed.FromInt(1920)
	DefaultWorldH = fixed.FromInt(1080)
)

// Pair is a collision pair with IDLow < IDHigh.
type Pair struct {
	IDLow  int32
	IDHigh int32
}

// World steps entities deterministically and reports AABB collision
// pairs. Resolution is up to the caller: attach OnCollision to react
// (or use Separate for the built-in positional resolver).
type World struct {
	Gravity     fixed.Fixed
	MaxVelocity fixed.Fixed
	Friction    fixed.Fixed
	WorldW      fixed.Fixed
	WorldH      fixed.Fixed

	// OnCollision, when set, is invoked for each pair after the pair
	// list is built, in pair order.
	OnCollision func(a, b *Entity)

	entities map[int32]*Entity
	ids      []int32 // kept sorted; the only iteration order used
	grid     *grid
	pairs    []Pair
}

// NewWorld creates a world with the default constants and bounds.
func NewWorld() *World {
	return &World{
		Gravity:     DefaultGravity,
		MaxVelocity: DefaultMaxVelocity,
		Friction:    DefaultFriction,
		WorldW:      DefaultWorldW,
		WorldH:      DefaultWorldH,
		entities:    make(map[int32]*Entity),
		grid:        newGrid(DefaultWorldW, DefaultWorldH),
		pairs:       make([]Pair, 0, 16),
	}
}

// Add inserts an entity. An existing entity with the same id is
// replaced.
func (w *World) Add(e *Entity) {
	if _, ok := w.entities[e.ID]; !ok {
		w.ids = append(w.ids, e.ID)
		sort.Slice(w.ids, func(i, j int) bool { return w.ids[i] < w.ids[j] })
	}
	w.entities[e.ID] = e
}

// Remove deletes an entity; missing ids are a no-op.
func (w *World) Remove(id int32) {
	if _, ok := w.entities[id]; !ok {
		return
	}
	delete(w.entities, id)
	for i, v := range w.ids {
		if v == id {
			w.ids = append(w.ids[:i], w.ids[i+1:]...)
			break
		}
	}
}

// Get returns the entity with the given id, or nil.
func (w *World) Get(id int32) *Entity {
	return w.entities[id]
}

// IDs returns the entity ids in ascending order. The slice is shared;
// callers must not mutate it.
func (w *World) IDs() []int32 {
	return w.ids
}

// Len returns the entity count.
func (w *World) Len() int {
	return len(w.entities)
}

// Collisions returns the pair list from the last Update. The slice is
// reused between ticks.
func (w *World) Collisions() []Pair {
	return w.pairs
}

// ApplyInput translates an input flag set into entity velocity: each
// pressed axis contributes +-speed.
func (w *World) ApplyInput(entityID int32, flags protocol.Flags, speed fixed.Fixed) {
	e := w.entities[entityID]
	if e == nil {
		return
	}
	dx, dy := flags.Direction()
	e.VX = speed.MulInt(dx)
	e.VY = speed.MulInt(dy)
}

// Update advances every entity by dtMs milliseconds and rebuilds the
// collision pair list. Iteration is id-ascending throughout.
func (w *World) Update(dtMs int) {
	for _, id := range w.ids {
		e := w.entities[id]

		// Gravity, then clamp, then integrate.
		e.VY = e.VY.Add(divMs(w.Gravity, dtMs))
		e.VX = e.VX.Clamp(w.MaxVelocity.Neg(), w.MaxVelocity)
		e.VY = e.VY.Clamp(w.MaxVelocity.Neg(), w.MaxVelocity)
		e.X = e.X.Add(divMs(e.VX, dtMs))
		e.Y = e.Y.Add(divMs(e.VY, dtMs))

		w.clampToBounds(e)

		// Horizontal friction.
		e.VX = e.VX.Mul(w.Friction)
	}

	w.rebuildGrid()
	w.collide()
}

// divMs computes (v * dtMs) / 1000 on the raw value, truncating toward
// zero like every other division in the simulation.
func divMs(v fixed.Fixed, dtMs int) fixed.Fixed {
	return fixed.FromRaw(int32(int64(v.Raw()) * int64(dtMs) / 1000))
}

func (w *World) clampToBounds(e *Entity) {
	if e.X < 0 {
		e.X = 0
		e.VX = 0
	}
	if e.X.Add(e.W) > w.WorldW {
		e.X = w.WorldW.Sub(e.W)
		e.VX = 0
	}
	if e.Y < 0 {
		e.Y = 0
		e.VY = 0
	}
	if e.Y.Add(e.H) > w.WorldH {
		e.Y = w.WorldH.Sub(e.H)
		e.VY = 0
	}
}

func (w *World) rebuildGrid() {
	w.grid.clear()
	for _, id := range w.ids {
		e := w.entities[id]
		w.grid.insert(id, e.X, e.Y)
	}
}

// collide walks buckets in canonical (row, col) order. Within a bucket
// every (i, j) pair with i before j is tested; across buckets only the
// right and below neighbors are tested, so no pair is counted twice.
func (w *World) collide() {
	w.pairs = w.pairs[:0]

	for row := 0; row < w.grid.rows; row++ {
		for col := 0; col < w.grid.cols; col++ {
			ids := w.grid.bucket(row, col)
			if len(ids) == 0 {
				continue
			}

			for i := 0; i < len(ids); i++ {
				for j := i + 1; j < len(ids); j++ {
					w.testPair(ids[i], ids[j])
				}
			}

			for _, other := range [][]int32{
				w.grid.bucket(row, col+1),
				w.grid.bucket(row+1, col),
			} {
				for _, a := range ids {
					for _, b := range other {
						w.testPair(a, b)
					}
				}
			}
		}
	}

	if w.OnCollision != nil {
		for _, p := range w.pairs {
			w.OnCollision(w.entities[p.IDLow], w.entities[p.IDHigh])
		}
	}
}

func (w *World) testPair(a, b int32) {
	ea, eb := w.entities[a], w.entities[b]
	if !ea.Overlaps(eb) {
		return
	}
	if a > b {
		a, b = b, a
	}
	w.pairs = append(w.pairs, Pair{IDLow: a, IDHigh: b})
}

// Separate is an optional OnCollision handler that pushes a pair apart
// along the axis of least overlap and zeroes the velocity on that axis.
func Separate(a, b *Entity) {
	overlapX := minFixed(a.X.Add(a.W).Sub(b.X), b.X.Add(b.W).Sub(a.X))
	overlapY := minFixed(a.Y.Add(a.H).Sub(b.Y), b.Y.Add(b.H).Sub(a.Y))

	if overlapX < overlapY {
		half := fixed.FromRaw(overlapX.Raw() / 2)
		if a.X < b.X {
			a.X = a.X.Sub(half)
			b.X = b.X.Add(half)
		} else {
			a.X = a.X.Add(half)
			b.X = b.X.Sub(half)
		}
		a.VX, b.VX = 0, 0
	} else {
		half := fixed.FromRaw(overlapY.Raw() / 2)
		if a.Y < b.Y {
			a.Y = a.Y.Sub(half)
			b.Y = b.Y.Add(half)
		} else {
			a.Y = a.Y.Add(half)
			b.Y = b.Y.Sub(half)
		}
		a.VY, b.VY = 0, 0
	}
}

func minFixed(a, b fixed.Fixed) fixed.Fixed {
	if a < b {
		return a
	}
	return b
}
