package xr17032

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/orizon-lang/iris/internal/errors"
	"github.com/orizon-lang/iris/internal/ir"
	"github.com/orizon-lang/iris/internal/target"
)

func newBackend(t *testing.T) *Backend {
	t.Helper()

	be, err := New(ir.Target{Arch: ir.ArchXR17032, System: ir.SystemNone})
	assert.NilError(t, err)

	return be
}

func newFunc(be *Backend) (*ir.Function, *ir.Builder) {
	m := ir.NewModule("xr", be.Target())
	f := m.NewFunction("f", ir.Signature{Params: []ir.Type{ir.TypeI64}, Results: []ir.Type{ir.TypeI64}},
		ir.NewPool(be.Kinds()), ir.NewVRegs())

	return f, ir.NewBuilder(f, f.Entry)
}

func chainKinds(f *ir.Function, c ir.Chain) []string {
	var out []string
	for _, id := range c.Insts(f) {
		out = append(out, kinds.Name(f.Inst(id).Kind))
	}

	return out
}

func TestNewRejectsHostedSystems(t *testing.T) {
	_, err := New(ir.Target{Arch: ir.ArchXR17032, System: ir.SystemLinux})
	assert.Check(t, errors.Is(err, errors.ErrUnsupportedTarget))

	_, err = New(ir.Target{Arch: ir.ArchX64, System: ir.SystemNone})
	assert.Check(t, errors.Is(err, errors.ErrUnsupportedTarget))
}

func TestRegStatus(t *testing.T) {
	be := newBackend(t)

	cases := []struct {
		reg  string
		cc   ir.CallConv
		want target.RegStatus
	}{
		{"zero", ir.CallConvDefault, target.RegReserved},
		{"t0", ir.CallConvDefault, target.RegClobbered},
		{"t5", ir.CallConvDefault, target.RegClobbered},
		{"a0", ir.CallConvDefault, target.RegReserved},
		{"a3", ir.CallConvDefault, target.RegReserved},
		{"s0", ir.CallConvDefault, target.RegPreserved},
		{"s17", ir.CallConvDefault, target.RegPreserved},
		{"s17", ir.CallConvFast, target.RegClobbered},
		{"tp", ir.CallConvFast, target.RegReserved},
		{"sp", ir.CallConvDefault, target.RegReserved},
		{"lr", ir.CallConvDefault, target.RegReserved},
	}

	index := make(map[string]ir.Reg)
	for r := 0; r < be.NumRegs(ClassGPR); r++ {
		index[be.RegName(ClassGPR, ir.Reg(r))] = ir.Reg(r)
	}

	for _, tc := range cases {
		assert.Equal(t, be.RegStatus(tc.cc, ClassGPR, index[tc.reg]), tc.want, "%s under %v", tc.reg, tc.cc)
	}

	assert.Equal(t, be.NumRegs(ClassGPR), 32)
	assert.Equal(t, be.NumRegs(1), 0)
	assert.Equal(t, be.ChooseRegClass(ir.KindConst, ir.TypeF64), ir.NoRegClass)
}

func TestIselConstants(t *testing.T) {
	be := newBackend(t)

	cases := []struct {
		name string
		v    int64
		want []string
		tail []uint64
	}{
		{"small", -5, []string{"li"}, nil},
		{"upper only", 0x70000, []string{"lui"}, nil},
		{"split", 0x12345, []string{"lui", "ori"}, []uint64{0x1, 0x2345}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, b := newFunc(be)
			c := b.Const(ir.TypeI64, tc.v)

			chain, ok := be.Isel(f, f.Entry, c)
			assert.Assert(t, ok)
			assert.DeepEqual(t, chainKinds(f, chain), tc.want)

			for i, w := range tc.tail {
				assert.Equal(t, f.Tail(chain.Insts(f)[i], 0), w)
			}
		})
	}

	f, b := newFunc(be)
	_, ok := be.Isel(f, f.Entry, b.Const(ir.TypeI64, 1<<40))
	assert.Check(t, !ok)
}

func TestIselImmediateForms(t *testing.T) {
	be := newBackend(t)
	f, b := newFunc(be)

	p := b.Param(ir.TypeI64, 0)
	big := b.Const(ir.TypeI64, 70000)
	small := b.Const(ir.TypeI64, 12)

	add := b.Add(ir.TypeI64, small, p)
	sub := b.Sub(ir.TypeI64, p, small)
	and := b.Binary(ir.KindAnd, ir.TypeI64, p, big)
	mul := b.Mul(ir.TypeI64, p, small)

	c, ok := be.Isel(f, f.Entry, add)
	assert.Assert(t, ok)
	assert.DeepEqual(t, chainKinds(f, c), []string{"addi"})
	assert.Equal(t, f.Operand(c.Head, 0), p)

	c, ok = be.Isel(f, f.Entry, sub)
	assert.Assert(t, ok)
	assert.Equal(t, int64(f.Tail(c.Head, 0)), int64(-12))

	_, ok = be.Isel(f, f.Entry, and)
	assert.Check(t, !ok)

	_, ok = be.Isel(f, f.Entry, mul)
	assert.Check(t, !ok)
}

func TestPreRegallocOptMergesAddImmediates(t *testing.T) {
	be := newBackend(t)
	f, b := newFunc(be)

	p := b.Param(ir.TypeI64, 0)
	inner := f.NewOp(KindAddI, ir.TypeI64, []ir.InstID{p}, 40)
	f.Append(f.Entry, inner)
	outer := f.NewOp(KindAddI, ir.TypeI64, []ir.InstID{inner}, 32760)
	f.Append(f.Entry, outer)
	last := f.NewOp(KindAddI, ir.TypeI64, []ir.InstID{inner}, 2)
	f.Append(f.Entry, last)
	b.Return(outer, last)

	be.PreRegallocOpt(f)

	assert.Equal(t, f.Operand(outer, 0), inner)
	assert.Equal(t, f.Operand(last, 0), p)
	assert.Equal(t, f.Tail(last, 0), uint64(42))
}
