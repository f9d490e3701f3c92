// Package physics implements the deterministic entity and physics step.
//
// All coordinates are Q16.16 fixed point and every pass iterates
// entities in id-ascending order, so two worlds fed the same inputs
// stay bit-identical. Broad-phase collision uses a uniform spatial grid
// with preallocated buckets walked in a canonical order.
package physics

import "lockstep/internal/fixed"

// Entity is a simulated body: an AABB with position, velocity and hit
// points. Width and height must be positive; ids are unique per world.
type Entity struct {
	ID     int32
	X, Y   fixed.Fixed
	VX, VY fixed.Fixed
	W, H   fixed.Fixed
	HP     int
	MaxHP  int
}

// NewEntity creates an entity with the default 32x32 extents and full
// health at the given fixed-point position.
func NewEntity(id int32, x, y fixed.Fixed) *Entity {
	return &Entity{
		ID: id, X: x, Y: y,
		W: fixed.FromInt(32), H: fixed.FromInt(32),
		HP: 100, MaxHP: 100,
	}
}

// Bounds returns the AABB corners (x1, y1, x2, y2).
func (e *Entity) Bounds() (x1, y1, x2, y2 fixed.Fixed) {
	return e.X, e.Y, e.X.Add(e.W), e.Y.Add(e.H)
}

// Overlaps reports AABB overlap with another entity, in pure
// fixed-point comparisons.
func (e *Entity) Overlaps(o *Entity) bool {
	return e.X < o.X.Add(o.W) && e.X.Add(e.W) > o.X &&
		e.Y < o.Y.Add(o.H) && e.Y.Add(e.H) > o.Y
}

// Clone returns a deep copy, used by snapshots.
func (e *Entity) Clone() *Entity {
	c := *e
	return &c
}

// DistanceSq returns the squared distance between two entity origins in
// Q16.16 (the product is renormalized once).
func DistanceSq(a, b *Entity) fixed.Fixed {
	dx := a.X.Sub(b.X)
	dy := a.Y.Sub(b.Y)
	return dx.Mul(dx).Add(dy.Mul(dy))
}

// Sqrt is the deterministic integer square root (Newton's method) on a
// raw fixed-point value. Negative input returns zero.
func Sqrt(n int64) int64 {
	if n <= 0 {
		return 0
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}
