// Package regalloc assigns physical registers to virtual registers with a
// backward scan over each block. There is no spilling: when every register
// of a class is taken the allocation fails with errors.ErrNoFreeRegister.
package regalloc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"

	"github.com/orizon-lang/iris/internal/analysis"
	"github.com/orizon-lang/iris/internal/errors"
	"github.com/orizon-lang/iris/internal/ir"
	"github.com/orizon-lang/iris/internal/target"
)

// Target is the part of a backend the allocator consults.
type Target interface {
	analysis.Lister
	NumRegs(class ir.RegClass) int
	RegName(class ir.RegClass, reg ir.Reg) string
	RegStatus(cc ir.CallConv, class ir.RegClass, reg ir.Reg) target.RegStatus
}

type allocator struct {
	f *ir.Function
	t Target

	// interference[v] holds every vreg live at the same time as v somewhere.
	interference []*bitset.BitSet
	occupied     map[ir.RegClass]*bitset.BitSet
	live         *bitset.BitSet
}

// Allocate recomputes liveness and gives every virtual register of f that
// is defined or used in its blocks a physical register.
//
// Blocks are visited in list order. Inside a block the live set starts as
// the block's live-out set and is walked bottom-up: a register becomes live
// at its last use and dies at its canonical definition. A virtual register
// is assigned when it is first seen live, preferring its hint's register,
// then call-clobbered, then call-preserved registers. Registers that are
// occupied, reserved, or held by an interfering virtual register are never
// chosen.
func Allocate(f *ir.Function, t Target) error {
	analysis.CalculateLiveness(f, t)
	propagateHints(f, t)

	a := newAllocator(f, t)

	for b := f.Entry; b != nil; b = b.Next {
		a.walk(b, a.interfere, func(ir.VRegID) {})
	}

	for b := f.Entry; b != nil; b = b.Next {
		var err error

		blk := b
		a.walk(b, func(v ir.VRegID) bool {
			err = a.enter(blk, v)
			return err == nil
		}, a.leave)

		if err != nil {
			return err
		}
	}

	return nil
}

func newAllocator(f *ir.Function, t Target) *allocator {
	n := f.VRegs.Len() + 1
	a := &allocator{
		f:            f,
		t:            t,
		interference: make([]*bitset.BitSet, n),
		occupied:     make(map[ir.RegClass]*bitset.BitSet),
		live:         bitset.New(uint(n)),
	}

	for i := range a.interference {
		a.interference[i] = bitset.New(uint(n))
	}

	return a
}

// propagateHints links the output and first input of move-like kinds so
// that whichever is assigned second tries the other's register.
func propagateHints(f *ir.Function, t Target) {
	for b := f.Entry; b != nil; b = b.Next {
		for id := f.First(b); id != ir.NoInst; id = f.Next(id) {
			dst := f.Inst(id).VReg
			if dst == ir.NoVReg || !f.Is(id, ir.TraitMoveHint) {
				continue
			}

			ins := t.ListInputs(f, id)
			if len(ins) == 0 {
				continue
			}

			src := f.Inst(ins[0]).VReg
			if src == ir.NoVReg || src == dst {
				continue
			}

			if d := f.VRegs.Get(dst); d.Hint == ir.NoVReg {
				d.Hint = src
			}

			if s := f.VRegs.Get(src); s.Hint == ir.NoVReg {
				s.Hint = dst
			}
		}
	}
}

// walk visits b backwards. enter is called when a virtual register joins
// the live set, leave when it drops out, including at block entry. The walk
// stops as soon as enter returns false.
func (a *allocator) walk(b *ir.Block, enter func(ir.VRegID) bool, leave func(ir.VRegID)) {
	f := a.f
	live := a.live
	live.ClearAll()

	defer live.ClearAll()

	add := func(v ir.VRegID) bool {
		if live.Test(uint(v)) {
			return true
		}

		if !enter(v) {
			return false
		}

		live.Set(uint(v))

		return true
	}

	for _, v := range b.Live.Out {
		if !add(v) {
			return
		}
	}

	for id := f.LastInst(b); id != ir.NoInst; id = f.Prev(id) {
		if v := f.Inst(id).VReg; v != ir.NoVReg {
			if !add(v) {
				return
			}

			if f.VRegs.Get(v).Def == id {
				leave(v)
				live.Clear(uint(v))
			}
		}

		for _, op := range a.t.ListInputs(f, id) {
			if v := f.Inst(op).VReg; v != ir.NoVReg && !add(v) {
				return
			}
		}
	}

	for v, ok := live.NextSet(0); ok; v, ok = live.NextSet(v + 1) {
		leave(ir.VRegID(v))
	}
}

func (a *allocator) interfere(v ir.VRegID) bool {
	a.interference[v].InPlaceUnion(a.live)

	for u, ok := a.live.NextSet(0); ok; u, ok = a.live.NextSet(u + 1) {
		a.interference[u].Set(uint(v))
	}

	return true
}

func (a *allocator) occupancy(class ir.RegClass) *bitset.BitSet {
	occ, ok := a.occupied[class]
	if !ok {
		occ = bitset.New(uint(a.t.NumRegs(class)))
		a.occupied[class] = occ
	}

	return occ
}

func (a *allocator) enter(b *ir.Block, v ir.VRegID) error {
	vr := a.f.VRegs.Get(v)

	if !vr.Assigned() {
		r, err := a.choose(b, v)
		if err != nil {
			return err
		}

		vr.Assign(r)
	}

	a.occupancy(vr.Class).Set(uint(vr.Reg))

	return nil
}

func (a *allocator) leave(v ir.VRegID) {
	vr := a.f.VRegs.Get(v)
	a.occupancy(vr.Class).Clear(uint(vr.Reg))
}

func (a *allocator) choose(b *ir.Block, v ir.VRegID) (ir.Reg, error) {
	vr := a.f.VRegs.Get(v)
	class := vr.Class
	cc := a.f.Sig.CallConv
	n := a.t.NumRegs(class)

	taken := a.occupancy(class).Clone()
	in := a.interference[v]

	for u, ok := in.NextSet(0); ok; u, ok = in.NextSet(u + 1) {
		if uv := a.f.VRegs.Get(ir.VRegID(u)); uv.Class == class && uv.Assigned() {
			taken.Set(uint(uv.Reg))
		}
	}

	usable := func(r ir.Reg) bool {
		return !taken.Test(uint(r)) && a.t.RegStatus(cc, class, r) != target.RegReserved
	}

	if vr.Hint != ir.NoVReg {
		if h := a.f.VRegs.Get(vr.Hint); h.Assigned() && h.Class == class && usable(h.Reg) {
			return h.Reg, nil
		}
	}

	for _, want := range []target.RegStatus{target.RegClobbered, target.RegPreserved} {
		for r := ir.Reg(0); int(r) < n; r++ {
			if a.t.RegStatus(cc, class, r) == want && usable(r) {
				return r, nil
			}
		}
	}

	return ir.NoReg, errors.NoFreeRegister("class "+strconv.Itoa(int(class)), int(v), b.ID)
}

// Summary renders the assignment of every virtual register of f, one per
// line, sorted by virtual register.
func Summary(f *ir.Function, t Target) string {
	seen := make(map[ir.VRegID]bool)

	for b := f.Entry; b != nil; b = b.Next {
		for id := f.First(b); id != ir.NoInst; id = f.Next(id) {
			if v := f.Inst(id).VReg; v != ir.NoVReg {
				seen[v] = true
			}
		}
	}

	ids := make([]ir.VRegID, 0, len(seen))
	for v := range seen {
		ids = append(ids, v)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var sb strings.Builder
	fmt.Fprintf(&sb, "allocation for %s:\n", f.Name)

	for _, v := range ids {
		vr := f.VRegs.Get(v)
		if !vr.Assigned() {
			fmt.Fprintf(&sb, "  v%d -> unassigned\n", v)
			continue
		}

		fmt.Fprintf(&sb, "  v%d -> %s\n", v, t.RegName(vr.Class, vr.Reg))
	}

	return sb.String()
}
