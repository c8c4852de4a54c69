package ir

import (
	"github.com/orizon-lang/iris/internal/errors"
)

// SymbolID indexes the module symbol table.
type SymbolID uint32

// Symbol is a named global: a function or an external object.
type Symbol struct {
	ID   SymbolID
	Name string
	Func *Function
}

// Module bundles functions compiled for one target.
type Module struct {
	Name   string
	Target Target
	Funcs  []*Function

	syms   []*Symbol
	byName map[string]SymbolID
}

// NewModule creates an empty module for t.
func NewModule(name string, t Target) *Module {
	return &Module{
		Name:   name,
		Target: t,
		byName: make(map[string]SymbolID),
	}
}

// Symbol interns name and returns its ID.
func (m *Module) Symbol(name string) SymbolID {
	if id, ok := m.byName[name]; ok {
		return id
	}

	id := SymbolID(len(m.syms))
	m.syms = append(m.syms, &Symbol{ID: id, Name: name})
	m.byName[name] = id

	return id
}

// SymbolInfo resolves a symbol ID.
func (m *Module) SymbolInfo(id SymbolID) *Symbol {
	if int(id) >= len(m.syms) {
		panic(errors.IndexOutOfBounds("symbol", int(id), len(m.syms)))
	}

	return m.syms[id]
}

// NewFunction creates a function that allocates from pool and vregs. The
// entry block is created eagerly.
func (m *Module) NewFunction(name string, sig Signature, pool *Pool, vregs *VRegs) *Function {
	f := &Function{
		Name:   name,
		Sig:    sig,
		Module: m,
		Pool:   pool,
		VRegs:  vregs,
	}
	f.Sym = m.Symbol(name)
	m.syms[f.Sym].Func = f
	m.Funcs = append(m.Funcs, f)
	f.NewBlock()

	return f
}

// Function is a list of blocks plus the stack frame they share.
type Function struct {
	Name   string
	Sym    SymbolID
	Sig    Signature
	Module *Module

	Entry, Last *Block
	Pool        *Pool
	VRegs       *VRegs

	// FrameBytes is filled in by FrameSize and read by emitters.
	FrameBytes int

	blocks     []*Block
	frameFirst *StackItem
	frameLast  *StackItem
	items      []*StackItem
}

// Block is a basic block. Its bookend instruction is both head and tail of
// the circular instruction list.
type Block struct {
	ID   int
	Next *Block

	fn      *Function
	bookend InstID

	// CFG and Live are derived data; they go stale after structural edits.
	CFG  *CFGNode
	Live *Liveness
}

// CFGNode is the adjacency record of one block. Edges holds In incoming
// blocks followed by Out outgoing blocks.
type CFGNode struct {
	In, Out int
	Edges   []*Block
	// RPO is the reverse-postorder number, -1 when unreachable from the entry.
	RPO int
}

func (n *CFGNode) Preds() []*Block { return n.Edges[:n.In] }
func (n *CFGNode) Succs() []*Block { return n.Edges[n.In:] }

// Liveness holds the live-in and live-out virtual registers of a block.
type Liveness struct {
	In, Out []VRegID
}

// AddIn inserts v into the live-in set and reports whether it was new.
func (l *Liveness) AddIn(v VRegID) bool {
	var added bool
	l.In, added = addVReg(l.In, v)

	return added
}

// AddOut inserts v into the live-out set and reports whether it was new.
func (l *Liveness) AddOut(v VRegID) bool {
	var added bool
	l.Out, added = addVReg(l.Out, v)

	return added
}

func (l *Liveness) HasIn(v VRegID) bool  { return hasVReg(l.In, v) }
func (l *Liveness) HasOut(v VRegID) bool { return hasVReg(l.Out, v) }

func addVReg(set []VRegID, v VRegID) ([]VRegID, bool) {
	if hasVReg(set, v) {
		return set, false
	}

	return append(set, v), true
}

func hasVReg(set []VRegID, v VRegID) bool {
	for _, x := range set {
		if x == v {
			return true
		}
	}

	return false
}

// NewBlock appends a fresh, empty block to the function's block list.
func (f *Function) NewBlock() *Block {
	id, err := f.Pool.Alloc(0)
	if err != nil {
		panic(err)
	}

	in := f.Pool.Inst(id)
	in.Kind = KindBookend
	in.prev, in.next = id, id

	b := &Block{ID: len(f.blocks), fn: f, bookend: id}
	f.blocks = append(f.blocks, b)

	if f.Last == nil {
		f.Entry = b
	} else {
		f.Last.Next = b
	}

	f.Last = b

	return b
}

// Block resolves a block ID.
func (f *Function) Block(id int) *Block {
	if id < 0 || id >= len(f.blocks) {
		panic(errors.IndexOutOfBounds("block", id, len(f.blocks)))
	}

	return f.blocks[id]
}

// Blocks returns the blocks in list order.
func (f *Function) Blocks() []*Block {
	out := make([]*Block, 0, len(f.blocks))
	for b := f.Entry; b != nil; b = b.Next {
		out = append(out, b)
	}

	return out
}

// NumBlocks returns how many blocks were created.
func (f *Function) NumBlocks() int { return len(f.blocks) }

// Func returns the owning function.
func (b *Block) Func() *Function { return b.fn }

// Bookend returns the sentinel instruction of the block.
func (b *Block) Bookend() InstID { return b.bookend }

// StackItem is one slot of a function's frame.
type StackItem struct {
	ID     int
	Name   string
	Size   int
	Align  int
	Offset int

	prev, next *StackItem
}

func (s *StackItem) Next() *StackItem { return s.next }
func (s *StackItem) Prev() *StackItem { return s.prev }

// NewStackItem appends a frame slot.
func (f *Function) NewStackItem(name string, size, align int) *StackItem {
	errors.Assert(align > 0 && align&(align-1) == 0, "BAD_ALIGNMENT",
		"stack item %q has alignment %d", name, align)

	s := &StackItem{ID: len(f.items), Name: name, Size: size, Align: align, prev: f.frameLast}
	f.items = append(f.items, s)

	if f.frameLast == nil {
		f.frameFirst = s
	} else {
		f.frameLast.next = s
	}

	f.frameLast = s

	return s
}

// RemoveStackItem unlinks s from the frame list; its ID stays reserved.
func (f *Function) RemoveStackItem(s *StackItem) {
	if s.prev == nil {
		f.frameFirst = s.next
	} else {
		s.prev.next = s.next
	}

	if s.next == nil {
		f.frameLast = s.prev
	} else {
		s.next.prev = s.prev
	}

	s.prev, s.next = nil, nil
}

// FirstStackItem returns the bottom of the frame list.
func (f *Function) FirstStackItem() *StackItem { return f.frameFirst }

func (f *Function) stackItem(id int) *StackItem {
	if id < 0 || id >= len(f.items) {
		panic(errors.IndexOutOfBounds("stack item", id, len(f.items)))
	}

	return f.items[id]
}

// FrameSize lays the frame out bottom-up and returns its size rounded to
// the largest alignment in use.
func (f *Function) FrameSize() int {
	off, maxAlign := 0, 1

	for s := f.frameFirst; s != nil; s = s.next {
		off = alignUp(off, s.Align)
		s.Offset = off
		off += s.Size

		if s.Align > maxAlign {
			maxAlign = s.Align
		}
	}

	f.FrameBytes = alignUp(off, maxAlign)

	return f.FrameBytes
}

func alignUp(n, align int) int { return (n + align - 1) &^ (align - 1) }
