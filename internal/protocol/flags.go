package protocol

// Flags is the single-byte input bitset carried in every player input.
type Flags uint8

const (
	FlagMoveUp    Flags = 0x01
	FlagMoveDown  Flags = 0x02
	FlagMoveLeft  Flags = 0x04
	FlagMoveRight Flags = 0x08
	FlagAttack    Flags = 0x10
	FlagSkill1    Flags = 0x20
	FlagSkill2    Flags = 0x40
	FlagJump      Flags = 0x80
)

// allFlags covers every defined bit. With all eight bits assigned this
// is the full byte, but validation still goes through Valid so a future
// reserved bit stays rejected.
const allFlags = FlagMoveUp | FlagMoveDown | FlagMoveLeft | FlagMoveRight |
	FlagAttack | FlagSkill1 | FlagSkill2 | FlagJump

// Has reports whether every bit of f2 is set in f.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// Set returns f with the bits of f2 set.
func (f Flags) Set(f2 Flags) Flags {
	return f | f2
}

// Clear returns f with the bits of f2 cleared.
func (f Flags) Clear(f2 Flags) Flags {
	return f &^ f2
}

// Valid reports whether f uses only defined bits.
func (f Flags) Valid() bool {
	return f&^allFlags == 0
}

// Direction resolves the movement bits into a unit step per axis,
// each in {-1, 0, 1}. Opposing bits cancel.
func (f Flags) Direction() (dx, dy int) {
	if f.Has(FlagMoveLeft) {
		dx--
	}
	if f.Has(FlagMoveRight) {
		dx++
	}
	if f.Has(FlagMoveUp) {
		dy--
	}
	if f.Has(FlagMoveDown) {
		dy++
	}
	return dx, dy
}
