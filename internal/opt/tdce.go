package opt

import (
	"github.com/orizon-lang/iris/internal/ir"
)

const deadMark = 1

// TDCE removes every non-volatile instruction whose result nobody uses,
// transitively, and returns how many it removed. A phi that upsilons still
// write to is kept. Scratch is overwritten.
func TDCE(f *ir.Function) int {
	f.RecountUses()

	var work []ir.InstID

	written := make(map[ir.InstID]bool)

	for b := f.Entry; b != nil; b = b.Next {
		for id := f.First(b); id != ir.NoInst; id = f.Next(id) {
			f.Inst(id).Scratch = 0
			work = append(work, id)

			if f.Inst(id).Kind == ir.KindUpsilon {
				written[f.UpsilonPhi(id)] = true
			}
		}
	}

	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]

		in := f.Inst(id)
		if in.Scratch == deadMark || in.Uses != 0 || f.Is(id, ir.TraitVolatile) || written[id] {
			continue
		}

		in.Scratch = deadMark

		for i := 0; i < f.NumOperands(id); i++ {
			op := f.Operand(id, i)
			if op == ir.NoInst {
				continue
			}

			u := f.Inst(op)
			u.Uses--

			if u.Uses == 0 {
				work = append(work, op)
			}
		}
	}

	removed := 0

	for b := f.Entry; b != nil; b = b.Next {
		for id := f.First(b); id != ir.NoInst; {
			next := f.Next(id)

			if f.Inst(id).Scratch == deadMark {
				f.Remove(id)
				f.Pool.Free(id)
				removed++
			}

			id = next
		}
	}

	return removed
}
