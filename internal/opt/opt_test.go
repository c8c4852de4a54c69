package opt

import (
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"pgregory.net/rapid"

	"github.com/orizon-lang/iris/internal/errors"
	"github.com/orizon-lang/iris/internal/ir"
)

func newFunc(params ...ir.Type) (*ir.Function, *ir.Builder) {
	m := ir.NewModule("opt", ir.Target{Arch: ir.ArchX64, System: ir.SystemLinux})
	f := m.NewFunction("f", ir.Signature{Params: params, Results: []ir.Type{ir.TypeI64}},
		ir.NewPool(ir.GenericKinds()), ir.NewVRegs())

	return f, ir.NewBuilder(f, f.Entry)
}

func kindsOf(f *ir.Function, b *ir.Block) []ir.Kind {
	var out []ir.Kind
	for _, id := range f.Insts(b) {
		out = append(out, f.Inst(id).Kind)
	}

	return out
}

func TestLocalOptForwardsStoreToLoad(t *testing.T) {
	f, b := newFunc(ir.TypePtr)
	p := b.Param(ir.TypePtr, 0)
	v := b.Const(ir.TypeI64, 42)
	st := b.Store(p, v)
	r := b.Load(ir.TypeI64, p)
	ret := b.Return(r)

	assert.Equal(t, LocalOpt(f), 1)

	assert.DeepEqual(t, kindsOf(f, f.Entry), []ir.Kind{ir.KindParam, ir.KindConst, ir.KindStore, ir.KindReturn})
	assert.Equal(t, f.Operand(ret, 0), v)
	assert.Equal(t, f.Inst(st).Uses, int32(0))
	assert.NilError(t, f.Verify())
}

func TestLocalOptKeepsLoadOfOtherPointer(t *testing.T) {
	f, b := newFunc(ir.TypePtr, ir.TypePtr)
	p := b.Param(ir.TypePtr, 0)
	q := b.Param(ir.TypePtr, 1)
	b.Store(p, b.Const(ir.TypeI64, 1))
	r := b.Load(ir.TypeI64, q)
	b.Return(r)

	assert.Equal(t, LocalOpt(f), 0)
	assert.Check(t, is.Len(f.Insts(f.Entry), 6))
}

func TestLocalOptDropsOverwrittenStore(t *testing.T) {
	f, b := newFunc(ir.TypePtr)
	p := b.Param(ir.TypePtr, 0)
	v1 := b.Const(ir.TypeI64, 1)
	v2 := b.Const(ir.TypeI64, 2)
	first := b.Store(p, v1)
	second := b.Store(p, v2)
	b.Return(v2)

	assert.Equal(t, f.MemOperand(second), first)
	assert.Equal(t, LocalOpt(f), 1)

	assert.DeepEqual(t, kindsOf(f, f.Entry),
		[]ir.Kind{ir.KindParam, ir.KindConst, ir.KindConst, ir.KindStore, ir.KindReturn})
	assert.Equal(t, f.MemOperand(second), ir.NoInst)
	assert.Equal(t, f.Operand(second, 2), v2)
	assert.NilError(t, f.Verify())
}

func TestLocalOptChainsToFixedPoint(t *testing.T) {
	f, b := newFunc(ir.TypePtr)
	p := b.Param(ir.TypePtr, 0)
	b.Store(p, b.Const(ir.TypeI64, 1))
	b.Store(p, b.Const(ir.TypeI64, 2))
	last := b.Store(p, b.Const(ir.TypeI64, 3))
	r := b.Load(ir.TypeI64, p)
	ret := b.Return(r)

	assert.Equal(t, LocalOpt(f), 3)
	assert.Equal(t, f.MemOperand(last), ir.NoInst)
	assert.Assert(t, f.IsConst(f.Operand(ret, 0), 3))
	assert.NilError(t, f.Verify())
}

func TestLocalOptKeepsObservedStore(t *testing.T) {
	f, b := newFunc(ir.TypePtr)
	p := b.Param(ir.TypePtr, 0)
	first := b.Store(p, b.Const(ir.TypeI64, 1))
	b.CallDirect(ir.TypeVoid, f.Module.Symbol("observe"), p)
	second := b.Store(p, b.Const(ir.TypeI64, 2))
	b.Return(p)

	assert.Equal(t, LocalOpt(f), 0)
	assert.Assert(t, f.Inst(first).Linked())
	assert.Assert(t, f.MemOperand(second) != first)
}

func TestAlgSimpIdentities(t *testing.T) {
	f, b := newFunc(ir.TypeI64)
	x := b.Param(ir.TypeI64, 0)
	zero := b.Const(ir.TypeI64, 0)
	five := b.Const(ir.TypeI64, 5)
	plusZero := b.Add(ir.TypeI64, x, zero)
	zeroPlus := b.Add(ir.TypeI64, zero, x)
	plusFive := b.Add(ir.TypeI64, plusZero, five)
	minus := b.Sub(ir.TypeI64, zero, zeroPlus)
	ret := b.Return(b.Mul(ir.TypeI64, plusFive, minus))

	assert.Equal(t, AlgSimp(f, DefaultRules), 2)

	mul := f.Operand(ret, 0)
	assert.Equal(t, f.Operand(mul, 0), plusFive)
	assert.Equal(t, f.Operand(plusFive, 0), x)
	assert.Equal(t, f.Operand(plusFive, 1), five)
	// 0 - x is not an identity: sub is not commutative.
	assert.Equal(t, f.Operand(mul, 1), minus)
	assert.Equal(t, f.Operand(minus, 1), x)

	assert.Equal(t, TDCE(f), 2)
	assert.NilError(t, f.Verify())
}

func TestAlgSimpCustomRule(t *testing.T) {
	f, b := newFunc(ir.TypeI64)
	x := b.Param(ir.TypeI64, 0)
	ret := b.Return(b.Binary(ir.KindOr, ir.TypeI64, x, b.Const(ir.TypeI64, 0)))

	assert.Equal(t, AlgSimp(f, nil), 0)
	assert.Equal(t, AlgSimp(f, []Rule{{ir.KindOr, 0}}), 1)
	assert.Equal(t, f.Operand(ret, 0), x)
}

func TestTDCEKeepsVolatile(t *testing.T) {
	f, b := newFunc(ir.TypePtr)
	p := b.Param(ir.TypePtr, 0)
	unused := b.Add(ir.TypeI64, b.Const(ir.TypeI64, 1), b.Const(ir.TypeI64, 2))
	b.Load(ir.TypeI64, p)
	st := b.Store(p, b.Const(ir.TypeI64, 3))
	call := b.CallDirect(ir.TypeI64, f.Module.Symbol("g"))
	ret := b.Return()

	assert.Equal(t, TDCE(f), 4)

	for _, id := range []ir.InstID{p, st, call, ret} {
		assert.Assert(t, f.Inst(id).Linked(), "%s was removed", f.InstString(id))
	}

	assert.Equal(t, f.Inst(unused).Kind, ir.KindInvalid)
	assert.Check(t, is.Len(f.Insts(f.Entry), 5))
	assert.NilError(t, f.Verify())
}

func TestTDCEKeepsPhisWrittenByUpsilons(t *testing.T) {
	f, b := newFunc(ir.TypeI64)
	loop := f.NewBlock()

	p := b.Param(ir.TypeI64, 0)
	jump := b.Jump(loop)

	b.SetBlock(loop)
	written := b.Phi(ir.TypeI64, []*ir.Block{f.Entry}, []ir.InstID{p})
	unwritten := b.Phi(ir.TypeI64, []*ir.Block{f.Entry}, []ir.InstID{p})
	b.Return(p)

	f.SetOperand(written, 0, ir.NoInst)
	up := f.NewUpsilon(p, written)
	f.InsertBefore(jump, up)

	assert.Equal(t, TDCE(f), 1)
	assert.Check(t, f.Inst(written).Linked())
	assert.Check(t, f.Inst(up).Linked())
	assert.Equal(t, f.Inst(unwritten).Kind, ir.KindInvalid)
	assert.DeepEqual(t, kindsOf(f, loop), []ir.Kind{ir.KindPhi, ir.KindReturn})
	assert.NilError(t, f.Verify())
}

// After TDCE every surviving instruction is either volatile or used, and
// every volatile instruction survives.
func TestTDCEProperty(t *testing.T) {
	binops := []ir.Kind{ir.KindAdd, ir.KindSub, ir.KindMul, ir.KindXor, ir.KindEq}

	rapid.Check(t, func(rt *rapid.T) {
		f, b := newFunc(ir.TypePtr)
		vals := []ir.InstID{b.Param(ir.TypePtr, 0)}
		var volatile []ir.InstID

		n := rapid.IntRange(1, 60).Draw(rt, "n")
		for i := 0; i < n; i++ {
			pick := func(label string) ir.InstID {
				return vals[rapid.IntRange(0, len(vals)-1).Draw(rt, label)]
			}

			switch rapid.IntRange(0, 3).Draw(rt, "op") {
			case 0:
				vals = append(vals, b.Const(ir.TypeI64, rapid.Int64().Draw(rt, "c")))
			case 1:
				k := rapid.SampledFrom(binops).Draw(rt, "kind")
				vals = append(vals, b.Binary(k, ir.TypeI64, pick("lhs"), pick("rhs")))
			case 2:
				vals = append(vals, b.Load(ir.TypeI64, vals[0]))
			case 3:
				volatile = append(volatile, b.Store(vals[0], pick("val")))
			}
		}

		volatile = append(volatile, b.Return(vals[rapid.IntRange(0, len(vals)-1).Draw(rt, "ret")]))

		TDCE(f)

		for _, id := range volatile {
			if !f.Inst(id).Linked() {
				rt.Fatalf("volatile %d removed", id)
			}
		}

		f.RecountUses()

		for _, id := range f.Insts(f.Entry) {
			if f.Inst(id).Uses == 0 && !f.Is(id, ir.TraitVolatile) {
				rt.Fatalf("dead %s survived", f.InstString(id))
			}
		}

		if err := f.Verify(); err != nil {
			rt.Fatalf("verify: %v", err)
		}
	})
}

func TestRunPasses(t *testing.T) {
	f, b := newFunc(ir.TypePtr)
	p := b.Param(ir.TypePtr, 0)
	b.Store(p, b.Const(ir.TypeI64, 9))
	r := b.Load(ir.TypeI64, p)
	b.Return(b.Add(ir.TypeI64, r, b.Const(ir.TypeI64, 0)))

	counts, err := Run(f, DefaultSequence)
	assert.NilError(t, err)
	assert.DeepEqual(t, counts, map[string]int{"localopt": 1, "algsimp": 1, "tdce": 2})

	_, err = Run(f, []string{"gvn"})
	assert.Assert(t, errors.Is(err, errors.ErrInvalidConfig))
	assert.ErrorContains(t, err, `unknown optimization pass "gvn"`)
	assert.DeepEqual(t, Names(), []string{"algsimp", "localopt", "tdce"})
}
