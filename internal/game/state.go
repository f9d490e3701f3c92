// Package game aggregates the deterministic simulation state: the
// physics world, the per-player entity bindings, the PRNG, and the
// snapshot ring used for rollback and desync detection.
package game

import (
	"errors"
	"sort"

	"lockstep/internal/fixed"
	"lockstep/internal/lcg"
	"lockstep/internal/physics"
	"lockstep/internal/protocol"
)

// MaxSnapshots bounds the snapshot ring (two seconds at 30 Hz).
const MaxSnapshots = 60

// TickMs is the logical tick length in milliseconds at 30 Hz.
const TickMs = 33

// ErrSnapshotMiss is returned when a rollback target has been evicted
// from the ring.
var ErrSnapshotMiss = errors.New("game: snapshot not in ring")

// State is the complete deterministic game state. All mutation must be
// serialized by the owner (the room on the server, the predictor on the
// client); State itself holds no lock.
type State struct {
	FrameID uint32
	Running bool
	Paused  bool

	world   *physics.World
	rng     *lcg.RNG
	binding map[string]int32 // player id -> entity id
	players []string         // sorted; deterministic player iteration
	ring    *snapshotRing

	// Speed is the velocity granted per pressed movement axis.
	Speed fixed.Fixed
}

// NewState creates a state seeded with the shared room seed.
func NewState(seed uint32) *State {
	return &State{
		world:   physics.NewWorld(),
		rng:     lcg.New(seed),
		binding: make(map[string]int32),
		ring:    newSnapshotRing(MaxSnapshots),
		Speed:   physics.DefaultSpeed,
	}
}

// World exposes the physics world (read/step access for the owner).
func (s *State) World() *physics.World {
	return s.world
}

// RNG exposes the state-scoped PRNG. All gameplay randomness must be
// drawn from it or replays diverge.
func (s *State) RNG() *lcg.RNG {
	return s.rng
}

// AddEntity inserts an entity into the world.
func (s *State) AddEntity(e *physics.Entity) {
	s.world.Add(e)
}

// RemoveEntity deletes an entity and any bindings pointing at it.
func (s *State) RemoveEntity(id int32) {
	s.world.Remove(id)
	for pid, eid := range s.binding {
		if eid == id {
			delete(s.binding, pid)
			s.removePlayer(pid)
		}
	}
}

// GetEntity returns the entity with the given id, or nil.
func (s *State) GetEntity(id int32) *physics.Entity {
	return s.world.Get(id)
}

// BindPlayer associates a player with an entity. The entity must
// already exist in the world.
func (s *State) BindPlayer(playerID string, entityID int32) bool {
	if s.world.Get(entityID) == nil {
		return false
	}
	if _, ok := s.binding[playerID]; !ok {
		s.players = append(s.players, playerID)
		sort.Strings(s.players)
	}
	s.binding[playerID] = entityID
	return true
}

// PlayerEntity resolves a player's bound entity, or nil.
func (s *State) PlayerEntity(playerID string) *physics.Entity {
	eid, ok := s.binding[playerID]
	if !ok {
		return nil
	}
	return s.world.Get(eid)
}

// Players returns player ids in ascending order. Shared slice; do not
// mutate.
func (s *State) Players() []string {
	return s.players
}

func (s *State) removePlayer(pid string) {
	for i, v := range s.players {
		if v == pid {
			s.players = append(s.players[:i], s.players[i+1:]...)
			return
		}
	}
}

// AdvanceFrame bumps the logical frame counter.
func (s *State) AdvanceFrame() {
	s.FrameID++
}

// ApplyTick executes one committed tick: every player's input is
// decoded and applied in player-id-ascending order, then the world
// steps one tick. The state's frame counter is set to frameID + 1 (the
// tick produces the state for the next frame boundary).
func (s *State) ApplyTick(frameID uint32, inputs map[string][]byte) {
	for _, pid := range s.players {
		data, ok := inputs[pid]
		if !ok || len(data) == 0 {
			continue
		}
		in, err := protocol.UnmarshalInput(data)
		if err != nil {
			continue
		}
		eid, ok := s.binding[pid]
		if !ok {
			continue
		}
		s.world.ApplyInput(eid, in.Flags, s.Speed)
	}

	s.world.Update(TickMs)
	s.FrameID = frameID + 1
}
