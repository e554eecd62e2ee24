package core

import (
	"fmt"
	"sync"
)

// InvalidID is never handed out by an IdentifierPool.
const InvalidID uint64 = 0

// IdentifierPool hands out 64-bit identifiers made of a slot index (low 32
// bits, offset by one so zero stays invalid) and the slot generation (high
// 32 bits). Releasing a slot bumps its generation, so an identifier is never
// handed out twice.
type IdentifierPool struct {
	mu          sync.Mutex
	owners      []interface{}
	generations []uint32
}

func NewIdentifierPool(capacity int) *IdentifierPool {
	if capacity < 1 {
		capacity = 1
	}
	return &IdentifierPool{
		owners:      make([]interface{}, 0, capacity),
		generations: make([]uint32, 0, capacity),
	}
}

func (p *IdentifierPool) Acquire(owner interface{}) uint64 {
	if owner == nil {
		owner = struct{}{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.owners {
		// Existing free spot. Take it.
		if p.owners[i] == nil {
			p.owners[i] = owner
			return makeID(i, p.generations[i])
		}
	}

	// If here, no existing free slots. Need a new one, so push one.
	p.owners = append(p.owners, owner)
	p.generations = append(p.generations, 1)
	return makeID(len(p.owners)-1, 1)
}

func (p *IdentifierPool) Release(id uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	index, generation := splitID(id)
	if index < 0 || index >= len(p.owners) {
		return fmt.Errorf("identifier release: id `%#x` out of range (max=%d). Nothing was done", id, len(p.owners))
	}
	if p.owners[index] == nil || p.generations[index] != generation {
		return fmt.Errorf("identifier release: id `%#x` is stale. Nothing was done", id)
	}

	// Zero out the entry, making it available for use with a new generation.
	p.owners[index] = nil
	p.generations[index]++
	if p.generations[index] == 0 {
		p.generations[index] = 1
	}
	return nil
}

// Lookup returns the owner of a live identifier.
func (p *IdentifierPool) Lookup(id uint64) (interface{}, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	index, generation := splitID(id)
	if index < 0 || index >= len(p.owners) || p.generations[index] != generation {
		return nil, false
	}
	owner := p.owners[index]
	return owner, owner != nil
}

// Len returns the number of live identifiers.
func (p *IdentifierPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for _, o := range p.owners {
		if o != nil {
			n++
		}
	}
	return n
}

func makeID(index int, generation uint32) uint64 {
	return uint64(index+1) | uint64(generation)<<32
}

func splitID(id uint64) (int, uint32) {
	return int(uint32(id)) - 1, uint32(id >> 32)
}
