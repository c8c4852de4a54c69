package ir

import (
	"github.com/orizon-lang/iris/internal/errors"
)

// Chunk geometry. Every chunk holds ChunkSlots instruction headers and a
// ChunkWords-word payload slab; both are bump-allocated together.
const (
	ChunkSlots = 256
	ChunkWords = 2048
)

type chunk struct {
	insts     [ChunkSlots]Inst
	words     [ChunkWords]uint64
	usedInsts int
	usedWords int
}

// Pool owns the storage of every instruction of the functions built with it.
// Freed slots go to a free list indexed by their payload capacity (the size
// class); allocation scans the free lists from the requested class upward
// before bump-allocating. Chunks are never released individually.
type Pool struct {
	kinds  *KindTable
	chunks []*chunk
	free   [][]InstID
	live   int
}

// PoolStats is a snapshot of pool occupancy.
type PoolStats struct {
	Chunks    int
	Live      int
	Free      int
	FreeByCap map[int]int
}

// NewPool creates a pool able to hold any kind of the given table.
func NewPool(kinds *KindTable) *Pool {
	if kinds == nil {
		kinds = GenericKinds()
	}

	return &Pool{
		kinds: kinds,
		free:  make([][]InstID, kinds.MaxPayload()+1),
	}
}

// Kinds returns the size and trait table the pool was built for.
func (p *Pool) Kinds() *KindTable { return p.kinds }

// Alloc returns a zeroed, kind-invalid instruction with room for extra
// payload words.
func (p *Pool) Alloc(extra int) (InstID, error) {
	if extra < 0 || extra > p.kinds.MaxPayload() {
		return NoInst, errors.PayloadTooLarge(extra, p.kinds.MaxPayload())
	}

	for class := extra; class < len(p.free); class++ {
		list := p.free[class]
		if len(list) == 0 {
			continue
		}

		id := list[len(list)-1]
		p.free[class] = list[:len(list)-1]

		in := p.Inst(id)
		in.payload = in.payload[:extra]
		in.freed = false
		p.live++

		return id, nil
	}

	c := p.current()
	if c == nil || c.usedInsts == ChunkSlots || c.usedWords+extra > ChunkWords {
		c = &chunk{}
		p.chunks = append(p.chunks, c)
	}

	slot := c.usedInsts
	c.usedInsts++

	in := &c.insts[slot]
	in.payload = c.words[c.usedWords : c.usedWords+extra : c.usedWords+extra]
	c.usedWords += extra
	p.live++

	return InstID((len(p.chunks)-1)*ChunkSlots + slot + 1), nil
}

func (p *Pool) current() *chunk {
	if len(p.chunks) == 0 {
		return nil
	}

	return p.chunks[len(p.chunks)-1]
}

// Free zeroes the instruction and puts it on the free list of its size class.
func (p *Pool) Free(id InstID) {
	in := p.Inst(id)
	errors.Assert(!in.freed, "DOUBLE_FREE", "instruction %d freed twice", id)

	full := in.payload[:cap(in.payload)]
	clear(full)

	*in = Inst{payload: full[:0], freed: true}

	class := cap(full)
	p.free[class] = append(p.free[class], id)
	p.live--
}

// Inst resolves an instruction ID.
func (p *Pool) Inst(id InstID) *Inst {
	n := int(id) - 1
	if id == NoInst || n/ChunkSlots >= len(p.chunks) {
		panic(errors.IndexOutOfBounds("instruction", int(id), len(p.chunks)*ChunkSlots))
	}

	c := p.chunks[n/ChunkSlots]
	if n%ChunkSlots >= c.usedInsts {
		panic(errors.IndexOutOfBounds("instruction", int(id), len(p.chunks)*ChunkSlots))
	}

	return &c.insts[n%ChunkSlots]
}

// Stats reports chunk count, live instructions and free slots.
func (p *Pool) Stats() PoolStats {
	s := PoolStats{Chunks: len(p.chunks), Live: p.live, FreeByCap: make(map[int]int)}

	for class, list := range p.free {
		if len(list) > 0 {
			s.Free += len(list)
			s.FreeByCap[class] = len(list)
		}
	}

	return s
}
