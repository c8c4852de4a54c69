package x64

import (
	"github.com/orizon-lang/iris/internal/ir"
)

const (
	// KindMov copies its input; the allocator tries to give both the same register.
	KindMov = ir.KindTargetBase + iota
	// KindALU is "op dst, src" with dst tied to the first input. Tail: op.
	KindALU
	// KindALUImm is "op dst, imm" with dst tied to the input. Tail: op, imm.
	KindALUImm
)

var kinds = ir.NewKindTable([]ir.KindInfo{
	KindMov - ir.KindTargetBase:    {Name: "mov", Inputs: 1, Traits: ir.TraitMoveHint},
	KindALU - ir.KindTargetBase:    {Name: "alu", Inputs: 2, Tail: 1, Traits: ir.TraitMoveHint},
	KindALUImm - ir.KindTargetBase: {Name: "alui", Inputs: 1, Tail: 2, Traits: ir.TraitMoveHint},
})

var aluOps = map[ir.Kind]string{
	ir.KindAdd:  "add",
	ir.KindSub:  "sub",
	ir.KindMul:  "imul",
	ir.KindAnd:  "and",
	ir.KindOr:   "or",
	ir.KindXor:  "xor",
	ir.KindShl:  "shl",
	ir.KindLShr: "shr",
	ir.KindAShr: "sar",
}

func isShift(k ir.Kind) bool { return k == ir.KindShl || k == ir.KindLShr || k == ir.KindAShr }

func imm32(f *ir.Function, x ir.InstID) (int64, bool) {
	in := f.Inst(x)
	if in.Kind != ir.KindConst || !in.Type.IsInt() {
		return 0, false
	}

	v := f.ConstValue(x)

	return v, v == int64(int32(v))
}

// Isel turns three-address arithmetic into copy-then-modify pairs.
func (b *Backend) Isel(f *ir.Function, _ *ir.Block, id ir.InstID) (ir.Chain, bool) {
	in := f.Inst(id)
	if _, ok := aluOps[in.Kind]; !ok {
		return ir.Chain{}, false
	}

	lhs, rhs := f.Operand(id, 0), f.Operand(id, 1)

	if _, ok := imm32(f, lhs); ok && f.Is(id, ir.TraitCommutative) {
		if _, ok := imm32(f, rhs); !ok {
			lhs, rhs = rhs, lhs
		}
	}

	var c ir.Chain

	mov := f.NewOp(KindMov, in.Type, []ir.InstID{lhs})
	c.Append(f, mov)

	if v, ok := imm32(f, rhs); ok {
		c.Append(f, f.NewOp(KindALUImm, in.Type, []ir.InstID{mov}, uint64(in.Kind), uint64(v)))
	} else {
		c.Append(f, f.NewOp(KindALU, in.Type, []ir.InstID{mov, rhs}, uint64(in.Kind)))
	}

	return c, true
}
