package analysis

import (
	"github.com/orizon-lang/iris/internal/ir"
)

// CalculateLiveness recomputes the CFG and then the live-in and live-out
// sets of every block. It returns the number of fixed-point rounds.
//
// Seeding: an input whose virtual register is defined in another block is
// live-in where it is used; an upsilon keeps its phi's register live-out
// of its block. The fixed point then visits every block each round.
func CalculateLiveness(f *ir.Function, l Lister) int {
	CalculateCFG(f, l)

	blocks := f.Blocks()
	for _, b := range blocks {
		b.Live = &ir.Liveness{}
	}

	for _, b := range blocks {
		for id := f.First(b); id != ir.NoInst; id = f.Next(id) {
			for _, op := range l.ListInputs(f, id) {
				v := f.Inst(op).VReg
				if v == ir.NoVReg {
					continue
				}

				if f.VRegs.Get(v).DefBlock != b {
					b.Live.AddIn(v)
				}
			}

			if in := f.Inst(id); in.Kind == ir.KindUpsilon && in.VReg != ir.NoVReg {
				b.Live.AddOut(in.VReg)
			}
		}
	}

	rounds := 0

	for changed := true; changed; {
		changed = false
		rounds++

		for _, b := range blocks {
			for _, s := range b.CFG.Succs() {
				for _, v := range s.Live.In {
					if b.Live.AddOut(v) {
						changed = true
					}

					if f.VRegs.Get(v).DefBlock != b && b.Live.AddIn(v) {
						changed = true
					}
				}
			}
		}
	}

	return rounds
}
