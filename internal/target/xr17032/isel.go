package xr17032

import (
	"github.com/orizon-lang/iris/internal/ir"
)

// immOf returns the value of x when it is a constant that fits the
// immediate field of kind k.
func immOf(f *ir.Function, x ir.InstID, k ir.Kind) (int64, bool) {
	in := f.Inst(x)

	var v int64
	switch in.Kind {
	case KindLI:
		v = int64(f.Tail(x, 0))
	case ir.KindConst:
		if !in.Type.IsInt() {
			return 0, false
		}

		v = f.ConstValue(x)
	default:
		return 0, false
	}

	return v, fitsImm(k, v)
}

func single(f *ir.Function, id ir.InstID) ir.Chain {
	var c ir.Chain
	c.Append(f, id)

	return c
}

// Isel rewrites constants, immediates, addresses and memory accesses into
// extension kinds. Everything else is emitted from its generic form.
func (b *Backend) Isel(f *ir.Function, _ *ir.Block, id ir.InstID) (ir.Chain, bool) {
	in := f.Inst(id)

	switch in.Kind {
	case ir.KindConst:
		if !in.Type.IsInt() {
			return ir.Chain{}, false
		}

		return b.iselConst(f, in.Type, f.ConstValue(id))

	case ir.KindSub:
		lhs, rhs := f.Operand(id, 0), f.Operand(id, 1)
		if v, ok := immOf(f, rhs, KindAddI); ok && fitsSigned16(-v) {
			return single(f, f.NewOp(KindAddI, in.Type, []ir.InstID{lhs}, uint64(-v))), true
		}

	case ir.KindAdd, ir.KindAnd, ir.KindOr, ir.KindXor, ir.KindShl, ir.KindLShr, ir.KindAShr:
		k := immForms[in.Kind]
		lhs, rhs := f.Operand(id, 0), f.Operand(id, 1)

		if v, ok := immOf(f, rhs, k); ok {
			return single(f, f.NewOp(k, in.Type, []ir.InstID{lhs}, uint64(v))), true
		}

		if f.Is(id, ir.TraitCommutative) {
			if v, ok := immOf(f, lhs, k); ok {
				return single(f, f.NewOp(k, in.Type, []ir.InstID{rhs}, uint64(v))), true
			}
		}

	case ir.KindSymbol:
		return single(f, f.NewOp(KindLA, ir.TypePtr, nil, uint64(f.SymbolOf(id)))), true

	case ir.KindStackAddr:
		return single(f, f.NewOp(KindFrameAddr, ir.TypePtr, nil, uint64(f.StackItemOf(id).ID))), true

	case ir.KindMove:
		return single(f, f.NewOp(KindMov, in.Type, []ir.InstID{f.Operand(id, 0)})), true

	case ir.KindLoad:
		base, off := splitAddress(f, f.Operand(id, 1))
		return single(f, f.NewOp(KindLoadOff, in.Type, []ir.InstID{f.Operand(id, 0), base}, uint64(off))), true

	case ir.KindStore:
		base, off := splitAddress(f, f.Operand(id, 1))
		ops := []ir.InstID{f.Operand(id, 0), base, f.Operand(id, 2)}

		return single(f, f.NewOp(KindStoreOff, ir.TypeVoid, ops, uint64(off))), true
	}

	return ir.Chain{}, false
}

func (b *Backend) iselConst(f *ir.Function, typ ir.Type, v int64) (ir.Chain, bool) {
	switch {
	case fitsSigned16(v):
		return single(f, f.NewOp(KindLI, typ, nil, uint64(v))), true

	case v == int64(int32(v)):
		var c ir.Chain

		hi := f.NewOp(KindLUI, typ, nil, uint64(uint32(v)>>16))
		c.Append(f, hi)

		if lo := uint64(v) & 0xffff; lo != 0 {
			c.Append(f, f.NewOp(KindOrI, typ, []ir.InstID{hi}, lo))
		}

		return c, true
	}

	return ir.Chain{}, false
}

// splitAddress folds an add-immediate feeding a memory access into the
// access's displacement.
func splitAddress(f *ir.Function, ptr ir.InstID) (ir.InstID, int64) {
	if f.Inst(ptr).Kind == KindAddI {
		return f.Operand(ptr, 0), int64(f.Tail(ptr, 0))
	}

	return ptr, 0
}

// PreRegallocOpt merges chains of add-immediates. The inner instruction is
// left for dead code elimination.
func (b *Backend) PreRegallocOpt(f *ir.Function) {
	for blk := f.Entry; blk != nil; blk = blk.Next {
		for id := f.First(blk); id != ir.NoInst; id = f.Next(id) {
			if f.Inst(id).Kind != KindAddI {
				continue
			}

			inner := f.Operand(id, 0)
			if f.Inst(inner).Kind != KindAddI {
				continue
			}

			sum := int64(f.Tail(id, 0)) + int64(f.Tail(inner, 0))
			if !fitsSigned16(sum) {
				continue
			}

			f.SetOperand(id, 0, f.Operand(inner, 0))
			f.SetTail(id, 0, uint64(sum))
		}
	}
}
