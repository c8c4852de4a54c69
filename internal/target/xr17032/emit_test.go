package xr17032_test

import (
	"bytes"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/orizon-lang/iris/internal/codegen"
	"github.com/orizon-lang/iris/internal/errors"
	"github.com/orizon-lang/iris/internal/ir"
	"github.com/orizon-lang/iris/internal/target/xr17032"
)

func build(t *testing.T, cc ir.CallConv, body func(f *ir.Function, b *ir.Builder)) (*ir.Function, *xr17032.Backend) {
	t.Helper()

	be, err := xr17032.New(ir.Target{Arch: ir.ArchXR17032, System: ir.SystemNone})
	assert.NilError(t, err)

	m := ir.NewModule("xr", be.Target())
	sig := ir.Signature{CallConv: cc, Params: []ir.Type{ir.TypeI64}, Results: []ir.Type{ir.TypeI64}}
	f := m.NewFunction("f", sig, ir.NewPool(be.Kinds()), ir.NewVRegs())
	body(f, ir.NewBuilder(f, f.Entry))

	return f, be
}

func emit(t *testing.T, f *ir.Function, be *xr17032.Backend) string {
	t.Helper()

	assert.NilError(t, codegen.Run(f, be))

	var buf bytes.Buffer
	assert.NilError(t, codegen.EmitMachineCode(f, be, &buf))

	return buf.String()
}

func TestEmitFrameAccess(t *testing.T) {
	f, be := build(t, ir.CallConvDefault, func(f *ir.Function, b *ir.Builder) {
		buf := f.NewStackItem("buf", 8, 4)
		p := b.Param(ir.TypeI64, 0)
		ptr := b.Add(ir.TypePtr, b.StackAddr(buf), b.Const(ir.TypeI64, 4))
		b.Store(ptr, p)
		b.Return(b.Load(ir.TypeI64, ptr))
	})

	want := `f:
  addi sp, sp, -8
  mov t1, a0
  addi t0, sp, 0
  mov long [t0 + 4], t1
  mov t0, long [t0 + 4]
  mov a0, t0
  addi sp, sp, 8
  ret
`
	assert.Equal(t, emit(t, f, be), want)
	assert.Equal(t, f.FrameBytes, 8)
}

func TestEmitSavesPreservedRegisters(t *testing.T) {
	// Eight values live at once exhaust t0-t5 and spill into s0 and s1.
	body := func(f *ir.Function, b *ir.Builder) {
		var vals []ir.InstID
		for i := 0; i < 8; i++ {
			vals = append(vals, b.Param(ir.TypeI64, 0))
		}

		sum := vals[0]
		for _, v := range vals[1:] {
			sum = b.Add(ir.TypeI64, sum, v)
		}

		b.Return(sum)
	}

	f, be := build(t, ir.CallConvDefault, body)
	asm := emit(t, f, be)

	assert.Check(t, is.Contains(asm, "mov long [sp + 4], s0"))
	assert.Check(t, is.Contains(asm, "mov long [sp + 0], s1"))
	assert.Check(t, is.Contains(asm, "mov s1, long [sp + 0]"))
	assert.Equal(t, f.FrameBytes, 8)

	f, be = build(t, ir.CallConvFast, body)
	asm = emit(t, f, be)

	assert.Check(t, !bytes.Contains([]byte(asm), []byte("[sp + ")))
	assert.Equal(t, f.FrameBytes, 0)
}

func TestEmitRejectsWideConstants(t *testing.T) {
	f, be := build(t, ir.CallConvDefault, func(f *ir.Function, b *ir.Builder) {
		b.Return(b.Const(ir.TypeI64, 1<<40))
	})

	assert.NilError(t, codegen.Run(f, be))

	var buf bytes.Buffer
	err := codegen.EmitMachineCode(f, be, &buf)
	assert.Check(t, errors.Is(err, errors.ErrUnimplemented))
	assert.ErrorContains(t, err, "64-bit constant")
}
