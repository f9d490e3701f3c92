package game

import (
	"sort"

	"lockstep/internal/fixed"
	"lockstep/internal/physics"
)

// NewMatchState builds the initial state for a match from the shared
// seed and the roster. Server and clients call this with the same
// arguments and must end up bit-identical: the roster is sorted, each
// player's slot is its sorted index, and player i is bound to entity
// i+1 spawned at a slot-derived position.
func NewMatchState(seed uint32, roster []string) *State {
	sorted := make([]string, len(roster))
	copy(sorted, roster)
	sort.Strings(sorted)

	s := NewState(seed)
	s.Running = true
	for i, pid := range sorted {
		e := physics.NewEntity(int32(i+1), fixed.FromInt(200*(i+1)), fixed.FromInt(100))
		s.AddEntity(e)
		s.BindPlayer(pid, e.ID)
	}
	return s
}

// Slots returns the player-to-slot assignment for a roster: sorted
// order index as uint16. The slot is the numeric player id carried in
// the 16-byte wire inputs.
func Slots(roster []string) map[string]uint16 {
	sorted := make([]string, len(roster))
	copy(sorted, roster)
	sort.Strings(sorted)

	slots := make(map[string]uint16, len(sorted))
	for i, pid := range sorted {
		slots[pid] = uint16(i)
	}
	return slots
}
