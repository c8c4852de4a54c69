package opt

import (
	"github.com/orizon-lang/iris/internal/ir"
)

// Rule says that applying Kind with a constant Identity operand yields the
// other operand unchanged. Commutative kinds match the constant on either
// side, all others on the right only.
type Rule struct {
	Kind     ir.Kind
	Identity int64
}

// DefaultRules is the identity table used by Optimize.
var DefaultRules = []Rule{
	{ir.KindAdd, 0},
	{ir.KindSub, 0},
	{ir.KindMul, 1},
	{ir.KindSDiv, 1},
	{ir.KindUDiv, 1},
	{ir.KindAnd, -1},
	{ir.KindOr, 0},
	{ir.KindXor, 0},
	{ir.KindShl, 0},
	{ir.KindLShr, 0},
	{ir.KindAShr, 0},
}

// AlgSimp makes the users of every identity operation refer to its
// surviving operand. The bypassed instructions stay behind for TDCE. One
// pass only: rewrites that expose new identities are not revisited.
func AlgSimp(f *ir.Function, rules []Rule) int {
	byKind := make(map[ir.Kind][]int64, len(rules))
	for _, r := range rules {
		byKind[r.Kind] = append(byKind[r.Kind], r.Identity)
	}

	n := 0

	for b := f.Entry; b != nil; b = b.Next {
		for id := f.First(b); id != ir.NoInst; id = f.Next(id) {
			ids, ok := byKind[f.Inst(id).Kind]
			if !ok || f.NumOperands(id) != 2 {
				continue
			}

			if x := identityOperand(f, id, ids); x != ir.NoInst {
				f.ReplaceAllUses(id, x)
				n++
			}
		}
	}

	return n
}

func identityOperand(f *ir.Function, id ir.InstID, ids []int64) ir.InstID {
	lhs, rhs := f.Operand(id, 0), f.Operand(id, 1)
	typ := f.Inst(id).Type

	for _, v := range ids {
		if f.IsConst(rhs, v) && f.Inst(lhs).Type == typ {
			return lhs
		}

		if f.Is(id, ir.TraitCommutative) && f.IsConst(lhs, v) && f.Inst(rhs).Type == typ {
			return rhs
		}
	}

	return ir.NoInst
}
