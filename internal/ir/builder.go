package ir

import (
	"math"

	"github.com/orizon-lang/iris/internal/errors"
)

// NewInst allocates a free-floating instruction of kind with room for n
// variadic operands. Operands and tail words start out empty.
func (f *Function) NewInst(kind Kind, typ Type, n int) InstID {
	info := f.Pool.kinds.Info(kind)
	if info.Layout != LayoutFixed && n > MaxOperands {
		panic(errors.IndexOutOfBounds(info.Name+" operand", n, MaxOperands+1))
	}

	id, err := f.Pool.Alloc(info.Words(n))
	if err != nil {
		panic(err)
	}

	in := f.Pool.Inst(id)
	in.Kind = kind
	in.Type = typ

	return id
}

// NewOp builds a fixed or variadic instruction from its operands and tail
// words. Backends use it for their extension kinds.
func (f *Function) NewOp(kind Kind, typ Type, operands []InstID, tail ...uint64) InstID {
	info := f.Pool.kinds.Info(kind)

	n := 0
	switch info.Layout {
	case LayoutVariadic:
		n = len(operands) - info.Inputs
	case LayoutPaired:
		panic(errors.Invariant("BAD_LAYOUT", "%s must be built with NewPhi", info.Name))
	}

	errors.Assert(n >= 0 && len(operands) == info.Inputs+n, "OPERAND_COUNT",
		"%s takes %d operands, got %d", info.Name, info.Inputs, len(operands))
	errors.Assert(len(tail) == info.Tail, "TAIL_COUNT",
		"%s takes %d tail words, got %d", info.Name, info.Tail, len(tail))

	id := f.NewInst(kind, typ, n)
	for i, op := range operands {
		if op != NoInst {
			f.SetOperand(id, i, op)
		}
	}

	copy(f.tailWords(id), tail)

	return id
}

func (f *Function) NewParam(typ Type, index int) InstID {
	return f.NewOp(KindParam, typ, nil, uint64(index))
}

func (f *Function) NewConst(typ Type, v int64) InstID {
	return f.NewOp(KindConst, typ, nil, uint64(v))
}

func (f *Function) NewFloatConst(typ Type, v float64) InstID {
	return f.NewOp(KindConst, typ, nil, math.Float64bits(v))
}

func (f *Function) NewSymbolAddr(sym SymbolID) InstID {
	return f.NewOp(KindSymbol, TypePtr, nil, uint64(sym))
}

func (f *Function) NewStackAddr(s *StackItem) InstID {
	return f.NewOp(KindStackAddr, TypePtr, nil, uint64(s.ID))
}

func (f *Function) NewUnary(kind Kind, typ Type, x InstID) InstID {
	return f.NewOp(kind, typ, []InstID{x})
}

func (f *Function) NewBinary(kind Kind, typ Type, lhs, rhs InstID) InstID {
	return f.NewOp(kind, typ, []InstID{lhs, rhs})
}

func (f *Function) NewLoad(typ Type, mem, ptr InstID) InstID {
	return f.NewOp(KindLoad, typ, []InstID{mem, ptr})
}

func (f *Function) NewStore(mem, ptr, val InstID) InstID {
	return f.NewOp(KindStore, TypeVoid, []InstID{mem, ptr, val})
}

// NewCall builds an indirect call through the callee value.
func (f *Function) NewCall(typ Type, mem, callee InstID, args ...InstID) InstID {
	return f.NewOp(KindCall, typ, append([]InstID{mem, callee}, args...))
}

// NewCallDirect builds a call to a module symbol.
func (f *Function) NewCallDirect(typ Type, mem InstID, sym SymbolID, args ...InstID) InstID {
	return f.NewOp(KindCallDirect, typ, append([]InstID{mem}, args...), uint64(sym))
}

func (f *Function) NewReturn(vals ...InstID) InstID {
	return f.NewOp(KindReturn, TypeVoid, vals)
}

func (f *Function) NewJump(target *Block) InstID {
	return f.NewOp(KindJump, TypeVoid, nil, uint64(target.ID))
}

func (f *Function) NewBranch(cond InstID, ifTrue, ifFalse *Block) InstID {
	return f.NewOp(KindBranch, TypeVoid, []InstID{cond}, uint64(ifTrue.ID), uint64(ifFalse.ID))
}

// NewPhi builds a phi with one incoming value per predecessor.
func (f *Function) NewPhi(typ Type, preds []*Block, vals []InstID) InstID {
	errors.Assert(len(preds) == len(vals), "PHI_ARITY", "phi has %d predecessors and %d values",
		len(preds), len(vals))

	id := f.NewInst(KindPhi, typ, len(preds))
	tail := f.tailWords(id)

	for i := range preds {
		f.SetOperand(id, i, vals[i])
		tail[i] = uint64(preds[i].ID)
	}

	return id
}

// NewUpsilon builds the write of val into phi's storage.
func (f *Function) NewUpsilon(val, phi InstID) InstID {
	return f.NewOp(KindUpsilon, TypeVoid, []InstID{val}, uint64(phi))
}

// Builder appends instructions at the end of one block and threads the
// memory state through loads, stores and calls.
type Builder struct {
	F   *Function
	B   *Block
	Mem InstID
}

// NewBuilder positions a builder at the end of b.
func NewBuilder(f *Function, b *Block) *Builder { return &Builder{F: f, B: b} }

// SetBlock moves the builder to the end of b.
func (b *Builder) SetBlock(blk *Block) { b.B = blk }

func (b *Builder) emit(id InstID) InstID {
	b.F.Append(b.B, id)
	return id
}

func (b *Builder) Param(typ Type, index int) InstID { return b.emit(b.F.NewParam(typ, index)) }
func (b *Builder) Const(typ Type, v int64) InstID   { return b.emit(b.F.NewConst(typ, v)) }
func (b *Builder) FloatConst(typ Type, v float64) InstID {
	return b.emit(b.F.NewFloatConst(typ, v))
}
func (b *Builder) SymbolAddr(sym SymbolID) InstID        { return b.emit(b.F.NewSymbolAddr(sym)) }
func (b *Builder) StackAddr(s *StackItem) InstID         { return b.emit(b.F.NewStackAddr(s)) }
func (b *Builder) Unary(k Kind, t Type, x InstID) InstID { return b.emit(b.F.NewUnary(k, t, x)) }
func (b *Builder) Binary(k Kind, t Type, l, r InstID) InstID {
	return b.emit(b.F.NewBinary(k, t, l, r))
}
func (b *Builder) Add(t Type, l, r InstID) InstID { return b.Binary(KindAdd, t, l, r) }
func (b *Builder) Sub(t Type, l, r InstID) InstID { return b.Binary(KindSub, t, l, r) }
func (b *Builder) Mul(t Type, l, r InstID) InstID { return b.Binary(KindMul, t, l, r) }

func (b *Builder) Load(t Type, ptr InstID) InstID { return b.emit(b.F.NewLoad(t, b.Mem, ptr)) }

func (b *Builder) Store(ptr, val InstID) InstID {
	b.Mem = b.emit(b.F.NewStore(b.Mem, ptr, val))
	return b.Mem
}

func (b *Builder) Call(t Type, callee InstID, args ...InstID) InstID {
	b.Mem = b.emit(b.F.NewCall(t, b.Mem, callee, args...))
	return b.Mem
}

func (b *Builder) CallDirect(t Type, sym SymbolID, args ...InstID) InstID {
	b.Mem = b.emit(b.F.NewCallDirect(t, b.Mem, sym, args...))
	return b.Mem
}

func (b *Builder) Return(vals ...InstID) InstID { return b.emit(b.F.NewReturn(vals...)) }
func (b *Builder) Jump(target *Block) InstID    { return b.emit(b.F.NewJump(target)) }
func (b *Builder) Branch(cond InstID, t, e *Block) InstID {
	return b.emit(b.F.NewBranch(cond, t, e))
}
func (b *Builder) Phi(t Type, preds []*Block, vals []InstID) InstID {
	return b.emit(b.F.NewPhi(t, preds, vals))
}
