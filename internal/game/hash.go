package game

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"

	"lockstep/internal/physics"
)

// ComputeStateHash digests the deterministic state for desync
// detection. Canonical form: entities sorted by id, each serialized as
// the decimal raw values of id,x,y,vx,vy,w,h,hp,max_hp joined by '|'.
// Wall-clock data and transport state never enter the hash.
func (s *State) ComputeStateHash() string {
	ids := s.world.IDs()
	entities := make([]physics.Entity, 0, len(ids))
	for _, id := range ids {
		entities = append(entities, *s.world.Get(id))
	}
	return hashEntities(entities)
}

func hashEntities(entities []physics.Entity) string {
	h := md5.New()
	var buf []byte
	for i := range entities {
		e := &entities[i]
		buf = buf[:0]
		buf = strconv.AppendInt(buf, int64(e.ID), 10)
		buf = append(buf, '|')
		buf = strconv.AppendInt(buf, int64(e.X.Raw()), 10)
		buf = append(buf, '|')
		buf = strconv.AppendInt(buf, int64(e.Y.Raw()), 10)
		buf = append(buf, '|')
		buf = strconv.AppendInt(buf, int64(e.VX.Raw()), 10)
		buf = append(buf, '|')
		buf = strconv.AppendInt(buf, int64(e.VY.Raw()), 10)
		buf = append(buf, '|')
		buf = strconv.AppendInt(buf, int64(e.W.Raw()), 10)
		buf = append(buf, '|')
		buf = strconv.AppendInt(buf, int64(e.H.Raw()), 10)
		buf = append(buf, '|')
		buf = strconv.AppendInt(buf, int64(e.HP), 10)
		buf = append(buf, '|')
		buf = strconv.AppendInt(buf, int64(e.MaxHP), 10)
		buf = append(buf, '|')
		h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil))
}
