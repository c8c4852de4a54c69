package regalloc

import (
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"pgregory.net/rapid"

	"github.com/orizon-lang/iris/internal/analysis"
	"github.com/orizon-lang/iris/internal/errors"
	"github.com/orizon-lang/iris/internal/ir"
	"github.com/orizon-lang/iris/internal/target"
)

// toyTarget has registers r0..r7: r0 and r1 reserved, r2-r4 clobbered,
// r5-r7 preserved.
type toyTarget struct {
	target.Generic
	regs int
}

func (t toyTarget) NumRegs(ir.RegClass) int { return t.regs }

func (t toyTarget) RegName(_ ir.RegClass, r ir.Reg) string { return "r" + string(rune('0'+r)) }

func (t toyTarget) RegStatus(_ ir.CallConv, _ ir.RegClass, r ir.Reg) target.RegStatus {
	switch {
	case r < 2:
		return target.RegReserved
	case r < 5:
		return target.RegClobbered
	default:
		return target.RegPreserved
	}
}

func newFunc() (*ir.Function, *ir.Builder) {
	m := ir.NewModule("ra", ir.Target{Arch: ir.ArchXR17032, System: ir.SystemNone})
	f := m.NewFunction("f", ir.Signature{Params: []ir.Type{ir.TypeI64}, Results: []ir.Type{ir.TypeI64}},
		ir.NewPool(ir.GenericKinds()), ir.NewVRegs())

	return f, ir.NewBuilder(f, f.Entry)
}

func assignVRegs(f *ir.Function) {
	for b := f.Entry; b != nil; b = b.Next {
		for id := f.First(b); id != ir.NoInst; id = f.Next(id) {
			if in := f.Inst(id); in.Type.HasValue() {
				in.VReg = f.VRegs.New(0, id, b)
			}
		}
	}
}

func regOf(f *ir.Function, id ir.InstID) ir.Reg {
	return f.VRegs.Get(f.Inst(id).VReg).Reg
}

// checkSafe replays the backward walk and fails when two virtual registers
// live at the same point share a physical register.
func checkSafe(f *ir.Function, t Target) error {
	for b := f.Entry; b != nil; b = b.Next {
		live := make(map[ir.VRegID]bool)
		for _, v := range b.Live.Out {
			live[v] = true
		}

		check := func(at ir.InstID) error {
			owner := make(map[ir.Reg]ir.VRegID)

			for v := range live {
				vr := f.VRegs.Get(v)
				if !vr.Assigned() {
					return errors.Invariant("UNASSIGNED", "v%d live without a register", v)
				}

				if o, ok := owner[vr.Reg]; ok {
					return errors.Invariant("CLASH", "v%d and v%d share r%d in b%d at %d", o, v, vr.Reg, b.ID, at)
				}

				if t.RegStatus(f.Sig.CallConv, vr.Class, vr.Reg) == target.RegReserved {
					return errors.Invariant("RESERVED", "v%d got reserved r%d", v, vr.Reg)
				}

				owner[vr.Reg] = v
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

			for _, op := range t.ListInputs(f, id) {
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

func TestAllocatePrefersClobbered(t *testing.T) {
	f, b := newFunc()
	x := b.Param(ir.TypeI64, 0)
	y := b.Add(ir.TypeI64, x, b.Const(ir.TypeI64, 1))
	b.Return(y)
	assignVRegs(f)

	tt := toyTarget{regs: 8}
	assert.NilError(t, Allocate(f, tt))
	assert.NilError(t, checkSafe(f, tt))

	for _, id := range f.Insts(f.Entry) {
		if f.Inst(id).VReg != ir.NoVReg {
			r := regOf(f, id)
			assert.Assert(t, r >= 2 && r < 5, "%s got r%d", f.InstString(id), r)
		}
	}
}

func TestAllocateCoalescesMoves(t *testing.T) {
	f, b := newFunc()
	x := b.Param(ir.TypeI64, 0)
	y := b.Add(ir.TypeI64, x, x)
	mv := b.Unary(ir.KindMove, ir.TypeI64, y)
	b.Return(mv)
	assignVRegs(f)

	assert.NilError(t, Allocate(f, toyTarget{regs: 8}))
	assert.Equal(t, regOf(f, mv), regOf(f, y))
	assert.Equal(t, f.VRegs.Get(f.Inst(mv).VReg).Hint, f.Inst(y).VReg)
}

func TestAllocateRunsOutOfRegisters(t *testing.T) {
	f, b := newFunc()

	// Seven values live at once, six allocatable registers.
	var vals []ir.InstID
	for i := 0; i < 7; i++ {
		vals = append(vals, b.Const(ir.TypeI64, int64(i)))
	}

	sum := vals[0]
	for _, v := range vals[1:] {
		sum = b.Add(ir.TypeI64, sum, v)
	}

	b.Return(sum)
	assignVRegs(f)

	err := Allocate(f, toyTarget{regs: 8})
	assert.Assert(t, errors.Is(err, errors.ErrNoFreeRegister), "got %v", err)
	assert.ErrorContains(t, err, "in b0")
}

func TestAllocateFitsExactly(t *testing.T) {
	f, b := newFunc()

	var vals []ir.InstID
	for i := 0; i < 6; i++ {
		vals = append(vals, b.Const(ir.TypeI64, int64(i)))
	}

	sum := vals[0]
	for _, v := range vals[1:] {
		sum = b.Add(ir.TypeI64, sum, v)
	}

	b.Return(sum)
	assignVRegs(f)

	tt := toyTarget{regs: 8}
	assert.NilError(t, Allocate(f, tt))
	assert.NilError(t, checkSafe(f, tt))
	assert.Check(t, is.Contains(Summary(f, tt), "v1 -> r"))
}

func TestAllocateAcrossBlocks(t *testing.T) {
	f, b := newFunc()
	exit := f.NewBlock()
	body := f.NewBlock()

	x := b.Param(ir.TypeI64, 0)
	c := b.Binary(ir.KindSLt, ir.TypeBool, x, b.Const(ir.TypeI64, 10))
	b.Branch(c, body, exit)

	b.SetBlock(body)
	y := b.Add(ir.TypeI64, x, x)
	b.Jump(exit)

	b.SetBlock(exit)
	b.Return(b.Sub(ir.TypeI64, y, x))
	assignVRegs(f)

	tt := toyTarget{regs: 8}
	assert.NilError(t, Allocate(f, tt))
	assert.NilError(t, checkSafe(f, tt))
	assert.Assert(t, regOf(f, x) != regOf(f, y))
}

func TestWalkStopsAtFirstRefusal(t *testing.T) {
	f, b := newFunc()
	x := b.Param(ir.TypeI64, 0)
	y := b.Add(ir.TypeI64, x, x)
	b.Return(y)
	assignVRegs(f)

	tt := toyTarget{regs: 8}
	analysis.CalculateLiveness(f, tt)
	a := newAllocator(f, tt)

	var entered, left []ir.VRegID

	a.walk(f.Entry, func(v ir.VRegID) bool {
		entered = append(entered, v)
		return false
	}, func(v ir.VRegID) { left = append(left, v) })

	assert.DeepEqual(t, entered, []ir.VRegID{f.Inst(y).VReg})
	assert.Check(t, is.Len(left, 0))
	assert.Equal(t, a.live.Count(), uint(0))

	entered, left = nil, nil
	a.walk(f.Entry, func(v ir.VRegID) bool {
		entered = append(entered, v)
		return true
	}, func(v ir.VRegID) { left = append(left, v) })

	assert.DeepEqual(t, entered, []ir.VRegID{f.Inst(y).VReg, f.Inst(x).VReg})
	assert.DeepEqual(t, left, []ir.VRegID{f.Inst(y).VReg, f.Inst(x).VReg})
}

// Random control flow and random operand choices never produce two live
// virtual registers in one physical register.
func TestAllocationSafetyProperty(t *testing.T) {
	kinds := []ir.Kind{ir.KindAdd, ir.KindSub, ir.KindMul, ir.KindXor, ir.KindSLt}

	rapid.Check(t, func(rt *rapid.T) {
		f, b := newFunc()

		nblocks := rapid.IntRange(1, 6).Draw(rt, "blocks")
		blocks := []*ir.Block{f.Entry}
		for len(blocks) < nblocks {
			blocks = append(blocks, f.NewBlock())
		}

		vals := []ir.InstID{b.Param(ir.TypeI64, 0)}

		for i, blk := range blocks {
			b.SetBlock(blk)

			n := rapid.IntRange(0, 8).Draw(rt, "insts")
			for j := 0; j < n; j++ {
				lhs := vals[rapid.IntRange(0, len(vals)-1).Draw(rt, "lhs")]

				if rapid.Bool().Draw(rt, "const") {
					vals = append(vals, b.Const(ir.TypeI64, int64(j)))
					continue
				}

				rhs := vals[rapid.IntRange(0, len(vals)-1).Draw(rt, "rhs")]
				k := rapid.SampledFrom(kinds).Draw(rt, "kind")
				vals = append(vals, b.Binary(k, ir.TypeI64, lhs, rhs))
			}

			last := vals[rapid.IntRange(0, len(vals)-1).Draw(rt, "term")]

			switch {
			case i == len(blocks)-1:
				b.Return(last)
			case rapid.Bool().Draw(rt, "branch"):
				t1 := blocks[rapid.IntRange(0, len(blocks)-1).Draw(rt, "t1")]
				t2 := blocks[rapid.IntRange(0, len(blocks)-1).Draw(rt, "t2")]
				b.Branch(last, t1, t2)
			default:
				b.Jump(blocks[i+1])
			}
		}

		assignVRegs(f)

		tt := toyTarget{regs: 8}
		if err := Allocate(f, tt); err != nil {
			if !errors.Is(err, errors.ErrNoFreeRegister) {
				rt.Fatalf("unexpected error: %v", err)
			}

			return
		}

		if err := checkSafe(f, tt); err != nil {
			rt.Fatalf("%v\n%s", err, f)
		}
	})
}
