package target

import (
	"fmt"
	"sort"

	"github.com/orizon-lang/iris/internal/errors"
	"github.com/orizon-lang/iris/internal/ir"
)

// BlockLabel returns the local assembler label of b.
func BlockLabel(f *ir.Function, b *ir.Block) string {
	return fmt.Sprintf(".L%s_b%d", f.Name, b.ID)
}

// RegOf returns the physical register holding the result of id.
func RegOf(f *ir.Function, id ir.InstID) ir.Reg {
	in := f.Inst(id)
	errors.Assert(in.VReg != ir.NoVReg, "NO_VREG", "%s has no virtual register", f.Info(id).Name)

	v := f.VRegs.Get(in.VReg)
	errors.Assert(v.Assigned(), "UNALLOCATED", "v%d reached emission without a register", in.VReg)

	return v.Reg
}

// UsedRegs lists, in ascending order, the registers of class that some
// instruction of f was assigned and that have the given status under the
// function's calling convention.
func UsedRegs(f *ir.Function, be Backend, class ir.RegClass, status RegStatus) []ir.Reg {
	seen := make(map[ir.Reg]bool)

	for b := f.Entry; b != nil; b = b.Next {
		for id := f.First(b); id != ir.NoInst; id = f.Next(id) {
			in := f.Inst(id)
			if in.VReg == ir.NoVReg {
				continue
			}

			v := f.VRegs.Get(in.VReg)
			if v.Class != class || !v.Assigned() {
				continue
			}

			if be.RegStatus(f.Sig.CallConv, class, v.Reg) == status {
				seen[v.Reg] = true
			}
		}
	}

	out := make([]ir.Reg, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// HasCalls reports whether f contains a call of either flavour.
func HasCalls(f *ir.Function) bool {
	for b := f.Entry; b != nil; b = b.Next {
		for id := f.First(b); id != ir.NoInst; id = f.Next(id) {
			if k := f.Inst(id).Kind; k == ir.KindCall || k == ir.KindCallDirect {
				return true
			}
		}
	}

	return false
}

// FallsThrough reports whether control reaching the end of b continues in
// target without a jump.
func FallsThrough(b, target *ir.Block) bool { return b.Next == target }
