package physics

// EntityPool recycles Entity values to keep the rollback/replay path
// from churning the allocator. Entities handed back are zeroed before
// reuse.
type EntityPool struct {
	free []*Entity
}

// NewEntityPool preallocates capacity entities.
func NewEntityPool(capacity int) *EntityPool {
	p := &EntityPool{free: make([]*Entity, 0, capacity)}
	for i := 0; i < capacity; i++ {
		p.free = append(p.free, &Entity{})
	}
	return p
}

// Get returns a zeroed entity, allocating only when the pool is empty.
func (p *EntityPool) Get() *Entity {
	n := len(p.free)
	if n == 0 {
		return &Entity{}
	}
	e := p.free[n-1]
	p.free = p.free[:n-1]
	return e
}

// Put returns an entity to the pool.
func (p *EntityPool) Put(e *Entity) {
	*e = Entity{}
	p.free = append(p.free, e)
}
