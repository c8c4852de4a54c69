package codegen

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/orizon-lang/iris/internal/analysis"
	"github.com/orizon-lang/iris/internal/errors"
	"github.com/orizon-lang/iris/internal/ir"
	"github.com/orizon-lang/iris/internal/target"
)

// checkAllocation recomputes liveness on the allocated function and walks
// every block backwards, failing when two virtual registers of one class
// are live at the same point in the same physical register.
func checkAllocation(f *ir.Function, be target.Backend) error {
	analysis.CalculateLiveness(f, be)

	type slot struct {
		class ir.RegClass
		reg   ir.Reg
	}

	for b := f.Entry; b != nil; b = b.Next {
		live := make(map[ir.VRegID]bool)
		for _, v := range b.Live.Out {
			live[v] = true
		}

		check := func(at ir.InstID) error {
			owner := make(map[slot]ir.VRegID)

			for v := range live {
				vr := f.VRegs.Get(v)
				if !vr.Assigned() {
					return errors.Invariant("UNASSIGNED", "v%d is live in b%d without a register", v, b.ID)
				}

				s := slot{vr.Class, vr.Reg}
				if o, ok := owner[s]; ok {
					return errors.Invariant("CLASH", "v%d and v%d share %s in b%d at %s",
						o, v, be.RegName(vr.Class, vr.Reg), b.ID, f.InstString(at))
				}

				owner[s] = v
			}

			return nil
		}

		for id := f.LastInst(b); id != ir.NoInst; id = f.Prev(id) {
			if v := f.Inst(id).VReg; v != ir.NoVReg {
				live[v] = true
				if err := check(id); err != nil {
					return err
				}

				if f.VRegs.Get(v).Def == id {
					delete(live, v)
				}
			}

			for _, op := range be.ListInputs(f, id) {
				if v := f.Inst(op).VReg; v != ir.NoVReg {
					live[v] = true
				}
			}

			if err := check(id); err != nil {
				return err
			}
		}
	}

	return nil
}

// Loops whose phis feed each other and values computed in the loop go
// through the whole pipeline without two live values sharing a register.
func TestPhiLoopsAllocateSafely(t *testing.T) {
	kinds := []ir.Kind{ir.KindAdd, ir.KindSub, ir.KindAnd, ir.KindOr, ir.KindXor}

	for _, tg := range []ir.Target{xrTarget, x64Target} {
		t.Run(tg.String(), func(t *testing.T) {
			be := backend(t, tg)

			rapid.Check(t, func(rt *rapid.T) {
				f, b := newFunc(ir.NewModule("m", tg), be, "loop", ir.TypeI64, ir.TypeI64)
				header, exit := f.NewBlock(), f.NewBlock()

				var latch *ir.Block
				if rapid.Bool().Draw(rt, "latch") {
					latch = f.NewBlock()
				}

				p0 := b.Param(ir.TypeI64, 0)
				p1 := b.Param(ir.TypeI64, 1)
				c := b.Const(ir.TypeI64, int64(rapid.IntRange(-100, 100).Draw(rt, "const")))
				vals := []ir.InstID{p0, p1, c}
				b.Jump(header)

				back := header
				if latch != nil {
					back = latch
				}

				b.SetBlock(header)

				phis := make([]ir.InstID, rapid.IntRange(1, 4).Draw(rt, "phis"))
				for i := range phis {
					init := vals[rapid.IntRange(0, len(vals)-1).Draw(rt, "init")]
					phis[i] = b.Phi(ir.TypeI64, []*ir.Block{f.Entry, back}, []ir.InstID{init, init})
				}

				vals = append(vals, phis...)

				grow := func(label string, limit int) {
					for n := rapid.IntRange(1, limit).Draw(rt, label); n > 0; n-- {
						lhs := vals[rapid.IntRange(0, len(vals)-1).Draw(rt, "lhs")]
						rhs := vals[rapid.IntRange(0, len(vals)-1).Draw(rt, "rhs")]
						kind := rapid.SampledFrom(kinds).Draw(rt, "kind")
						vals = append(vals, b.Binary(kind, ir.TypeI64, lhs, rhs))
					}
				}

				grow("header", 4)
				inHeader := len(vals)
				cond := b.Binary(ir.KindSLt, ir.TypeBool, vals[len(vals)-1], p0)

				if latch != nil {
					b.Branch(cond, latch, exit)
					b.SetBlock(latch)
					grow("latch", 3)
					b.Jump(header)
				} else {
					b.Branch(cond, header, exit)
				}

				for _, phi := range phis {
					f.SetOperand(phi, 1, vals[rapid.IntRange(0, len(vals)-1).Draw(rt, "feedback")])
				}

				b.SetBlock(exit)
				b.Return(vals[rapid.IntRange(0, inHeader-1).Draw(rt, "result")])

				if err := f.Verify(); err != nil {
					rt.Fatalf("%v\n%s", err, f)
				}

				err := Run(f, be)
				if errors.Is(err, errors.ErrNoFreeRegister) {
					return
				}

				if err != nil {
					rt.Fatalf("%v\n%s", err, f)
				}

				for blk := f.Entry; blk != nil; blk = blk.Next {
					for id := f.First(blk); id != ir.NoInst; id = f.Next(id) {
						if f.Inst(id).Kind == ir.KindUpsilon && f.Inst(id).VReg != f.Inst(f.UpsilonPhi(id)).VReg {
							rt.Fatalf("upsilon %s does not share its phi's register", f.InstString(id))
						}
					}
				}

				if err := checkAllocation(f, be); err != nil {
					rt.Fatalf("%v\n%s", err, f)
				}
			})
		})
	}
}
