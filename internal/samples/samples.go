// Package samples builds small IR programs for the command line driver
// and for end-to-end tests.
package samples

import (
	"sort"

	"github.com/orizon-lang/iris/internal/errors"
	"github.com/orizon-lang/iris/internal/ir"
)

// Sample adds one or more functions to a module.
type Sample struct {
	Name  string
	Doc   string
	build func(m *ir.Module, kinds *ir.KindTable)
}

var registry = map[string]Sample{}

func register(name, doc string, build func(m *ir.Module, kinds *ir.KindTable)) {
	registry[name] = Sample{Name: name, Doc: doc, build: build}
}

// All returns the samples sorted by name.
func All() []Sample {
	out := make([]Sample, 0, len(registry))
	for _, s := range registry {
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// Module builds a module for target t holding the named samples, in the
// order given. Every function gets its own pool and vreg buffer.
func Module(t ir.Target, kinds *ir.KindTable, names ...string) (*ir.Module, error) {
	m := ir.NewModule("samples", t)

	for _, n := range names {
		s, ok := registry[n]
		if !ok {
			return nil, errors.InvalidConfig("sample", "unknown sample %q", n)
		}

		s.build(m, kinds)
	}

	return m, nil
}

func newFunc(m *ir.Module, kinds *ir.KindTable, name string, params ...ir.Type) (*ir.Function, *ir.Builder) {
	sig := ir.Signature{Params: params, Results: []ir.Type{ir.TypeI64}}
	f := m.NewFunction(name, sig, ir.NewPool(kinds), ir.NewVRegs())

	return f, ir.NewBuilder(f, f.Entry)
}

func init() {
	register("foo", "a + 0x20 - 0x10, folded into one add-immediate", buildFoo)
	register("sum", "counted loop summing 0..n-1 through two phis", buildSum)
	register("swap", "loop that swaps two phis on every iteration", buildSwap)
	register("memory", "stores and loads through a frame slot and a pointer parameter", buildMemory)
	register("calls", "direct and indirect calls with values live across them", buildCalls)
	register("identities", "arithmetic identities removed by the optimizer", buildIdentities)
}

func buildFoo(m *ir.Module, kinds *ir.KindTable) {
	_, b := newFunc(m, kinds, "foo", ir.TypeI64, ir.TypeI64)
	a := b.Param(ir.TypeI64, 0)
	b.Param(ir.TypeI64, 1)
	x := b.Add(ir.TypeI64, a, b.Const(ir.TypeI64, 0x20))
	b.Return(b.Sub(ir.TypeI64, x, b.Const(ir.TypeI64, 0x10)))
}

func buildSum(m *ir.Module, kinds *ir.KindTable) {
	f, b := newFunc(m, kinds, "sum", ir.TypeI64)
	loop, exit := f.NewBlock(), f.NewBlock()

	n := b.Param(ir.TypeI64, 0)
	zero := b.Const(ir.TypeI64, 0)
	one := b.Const(ir.TypeI64, 1)
	b.Jump(loop)

	b.SetBlock(loop)
	preds := []*ir.Block{f.Entry, loop}
	i := b.Phi(ir.TypeI64, preds, []ir.InstID{zero, zero})
	acc := b.Phi(ir.TypeI64, preds, []ir.InstID{zero, zero})
	acc2 := b.Add(ir.TypeI64, acc, i)
	i2 := b.Add(ir.TypeI64, i, one)
	b.Branch(b.Binary(ir.KindSLt, ir.TypeBool, i2, n), loop, exit)

	f.SetOperand(i, 1, i2)
	f.SetOperand(acc, 1, acc2)

	b.SetBlock(exit)
	b.Return(acc2)
}

func buildSwap(m *ir.Module, kinds *ir.KindTable) {
	f, b := newFunc(m, kinds, "swap", ir.TypeI64, ir.TypeI64)
	loop, exit := f.NewBlock(), f.NewBlock()

	p0 := b.Param(ir.TypeI64, 0)
	p1 := b.Param(ir.TypeI64, 1)
	b.Jump(loop)

	b.SetBlock(loop)
	preds := []*ir.Block{f.Entry, loop}
	x := b.Phi(ir.TypeI64, preds, []ir.InstID{p0, p0})
	y := b.Phi(ir.TypeI64, preds, []ir.InstID{p1, p1})
	b.Branch(b.Binary(ir.KindSLt, ir.TypeBool, x, y), loop, exit)

	f.SetOperand(x, 1, y)
	f.SetOperand(y, 1, x)

	b.SetBlock(exit)
	b.Return(b.Sub(ir.TypeI64, x, y))
}

func buildMemory(m *ir.Module, kinds *ir.KindTable) {
	f, b := newFunc(m, kinds, "memory", ir.TypePtr, ir.TypeI64)
	slot := f.NewStackItem("tmp", 8, 8)

	p := b.Param(ir.TypePtr, 0)
	v := b.Param(ir.TypeI64, 1)
	field := b.Add(ir.TypePtr, p, b.Const(ir.TypeI64, 8))
	local := b.StackAddr(slot)

	b.Store(local, v)
	b.Store(field, v)
	b.Store(field, b.Add(ir.TypeI64, v, b.Const(ir.TypeI64, 1)))

	x := b.Load(ir.TypeI64, local)
	y := b.Load(ir.TypeI64, field)
	b.Return(b.Add(ir.TypeI64, x, y))
}

func buildCalls(m *ir.Module, kinds *ir.KindTable) {
	_, b := newFunc(m, kinds, "calls", ir.TypeI64, ir.TypeI64)
	a := b.Param(ir.TypeI64, 0)
	c := b.Param(ir.TypeI64, 1)

	r1 := b.CallDirect(ir.TypeI64, m.Symbol("foo"), a, c)
	fn := b.SymbolAddr(m.Symbol("sum"))
	r2 := b.Call(ir.TypeI64, fn, r1)
	b.Return(b.Add(ir.TypeI64, b.Add(ir.TypeI64, r2, a), c))
}

func buildIdentities(m *ir.Module, kinds *ir.KindTable) {
	_, b := newFunc(m, kinds, "identities", ir.TypeI64)
	x := b.Param(ir.TypeI64, 0)
	zero := b.Const(ir.TypeI64, 0)
	one := b.Const(ir.TypeI64, 1)

	y := b.Add(ir.TypeI64, zero, x)
	y = b.Mul(ir.TypeI64, y, one)
	y = b.Binary(ir.KindXor, ir.TypeI64, y, zero)
	y = b.Binary(ir.KindShl, ir.TypeI64, y, zero)
	b.Return(y)
}
