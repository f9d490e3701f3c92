package game

import (
	"fmt"
	"sort"

	"lockstep/internal/physics"

	"github.com/vmihailenco/msgpack/v5"
)

// Snapshot is an immutable copy of the deterministic state at a frame
// boundary. Entities are value copies sorted by id.
type Snapshot struct {
	FrameID  uint32            `msgpack:"frame_id"`
	Entities []physics.Entity  `msgpack:"entities"`
	Binding  map[string]int32  `msgpack:"binding"`
	RNGState uint32            `msgpack:"rng_state"`
	Hash     string            `msgpack:"hash"`
}

// snapshotRing is a bounded circular buffer of snapshots keyed by
// frame id. On overflow the oldest entry is evicted.
type snapshotRing struct {
	slots []Snapshot
	used  []bool
	next  int
}

func newSnapshotRing(capacity int) *snapshotRing {
	return &snapshotRing{
		slots: make([]Snapshot, capacity),
		used:  make([]bool, capacity),
	}
}

func (r *snapshotRing) put(s Snapshot) {
	// Re-saving the same frame overwrites in place.
	for i := range r.slots {
		if r.used[i] && r.slots[i].FrameID == s.FrameID {
			r.slots[i] = s
			return
		}
	}
	r.slots[r.next] = s
	r.used[r.next] = true
	r.next = (r.next + 1) % len(r.slots)
}

func (r *snapshotRing) get(frameID uint32) (Snapshot, bool) {
	for i := range r.slots {
		if r.used[i] && r.slots[i].FrameID == frameID {
			return r.slots[i], true
		}
	}
	return Snapshot{}, false
}

// SaveSnapshot deep-copies the current state into the ring and returns
// the stored snapshot.
func (s *State) SaveSnapshot() Snapshot {
	snap := s.capture()
	s.ring.put(snap)
	return snap
}

// capture builds a snapshot without storing it.
func (s *State) capture() Snapshot {
	ids := s.world.IDs()
	entities := make([]physics.Entity, 0, len(ids))
	for _, id := range ids {
		entities = append(entities, *s.world.Get(id))
	}
	binding := make(map[string]int32, len(s.binding))
	for k, v := range s.binding {
		binding[k] = v
	}
	snap := Snapshot{
		FrameID:  s.FrameID,
		Entities: entities,
		Binding:  binding,
		RNGState: s.rng.State(),
	}
	snap.Hash = hashEntities(entities)
	return snap
}

// RestoreSnapshot replaces the live state with the ring entry for
// frameID. ErrSnapshotMiss if the frame has been evicted.
func (s *State) RestoreSnapshot(frameID uint32) error {
	snap, ok := s.ring.get(frameID)
	if !ok {
		return ErrSnapshotMiss
	}
	s.restore(snap)
	return nil
}

// RollbackTo is RestoreSnapshot under its historical name; the
// predictor calls it when the authoritative inputs disagree.
func (s *State) RollbackTo(frameID uint32) error {
	return s.RestoreSnapshot(frameID)
}

func (s *State) restore(snap Snapshot) {
	// Rebuild the world from the value copies.
	fresh := physics.NewWorld()
	fresh.Gravity = s.world.Gravity
	fresh.MaxVelocity = s.world.MaxVelocity
	fresh.Friction = s.world.Friction
	fresh.WorldW = s.world.WorldW
	fresh.WorldH = s.world.WorldH
	fresh.OnCollision = s.world.OnCollision
	for i := range snap.Entities {
		e := snap.Entities[i]
		fresh.Add(&e)
	}
	s.world = fresh

	s.FrameID = snap.FrameID
	s.rng.SetState(snap.RNGState)
	s.binding = make(map[string]int32, len(snap.Binding))
	s.players = s.players[:0]
	for k, v := range snap.Binding {
		s.binding[k] = v
		s.players = append(s.players, k)
	}
	sort.Strings(s.players)
}

// Serialize packs a full snapshot of the current state for the
// resync_full path.
func (s *State) Serialize() ([]byte, error) {
	data, err := msgpack.Marshal(s.capture())
	if err != nil {
		return nil, fmt.Errorf("serialize state: %w", err)
	}
	return data, nil
}

// Deserialize replaces the live state with a serialized snapshot, as a
// reconnecting client does on resync_full.
func (s *State) Deserialize(data []byte) error {
	var snap Snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("deserialize state: %w", err)
	}
	s.restore(snap)
	return nil
}
