package xr17032

import (
	"fmt"
	"io"
	"strings"

	"github.com/orizon-lang/iris/internal/errors"
	"github.com/orizon-lang/iris/internal/ir"
	"github.com/orizon-lang/iris/internal/target"
)

// FinalTouchups sizes the frame: locals first, then one word per saved
// register and one for the link register when the function calls out.
func (b *Backend) FinalTouchups(f *ir.Function) {
	saves := len(target.UsedRegs(f, b, ClassGPR, target.RegPreserved))
	if target.HasCalls(f) {
		saves++
	}

	f.FrameBytes = alignUp(f.FrameSize()+saves*wordSize, wordSize)
}

func alignUp(n, align int) int { return (n + align - 1) &^ (align - 1) }

type emitter struct {
	be  *Backend
	f   *ir.Function
	buf strings.Builder

	preserved []ir.Reg
	scratch   []ir.Reg
	calls     bool
}

// EmitAsm writes f as assembler text. The function must have been through
// the whole codegen pipeline.
func (b *Backend) EmitAsm(f *ir.Function, w io.Writer) error {
	e := &emitter{
		be:        b,
		f:         f,
		preserved: target.UsedRegs(f, b, ClassGPR, target.RegPreserved),
		scratch:   target.UsedRegs(f, b, ClassGPR, target.RegClobbered),
		calls:     target.HasCalls(f),
	}

	if err := e.function(); err != nil {
		return errors.Wrapf(err, "emit %s", f.Name)
	}

	_, err := io.WriteString(w, e.buf.String())

	return err
}

func (e *emitter) printf(format string, args ...interface{}) {
	e.buf.WriteString("  ")
	fmt.Fprintf(&e.buf, format, args...)
	e.buf.WriteByte('\n')
}

func (e *emitter) reg(id ir.InstID) string {
	return gprNames[target.RegOf(e.f, id)]
}

func (e *emitter) saveSlot(i int) int { return e.f.FrameBytes - (i+1)*wordSize }

func (e *emitter) function() error {
	f := e.f
	fmt.Fprintf(&e.buf, "%s:\n", f.Name)

	if f.FrameBytes > 0 {
		e.printf("addi sp, sp, %d", -f.FrameBytes)
	}

	slot := 0
	if e.calls {
		e.printf("mov long [sp + %d], lr", e.saveSlot(slot))
		slot++
	}

	for _, r := range e.preserved {
		e.printf("mov long [sp + %d], %s", e.saveSlot(slot), gprNames[r])
		slot++
	}

	for b := f.Entry; b != nil; b = b.Next {
		if b != f.Entry {
			fmt.Fprintf(&e.buf, "%s:\n", target.BlockLabel(f, b))
		}

		for id := f.First(b); id != ir.NoInst; id = f.Next(id) {
			if err := e.inst(b, id); err != nil {
				return err
			}
		}
	}

	return nil
}

func (e *emitter) epilogue() {
	slot := 0
	if e.calls {
		e.printf("mov lr, long [sp + %d]", e.saveSlot(slot))
		slot++
	}

	for _, r := range e.preserved {
		e.printf("mov %s, long [sp + %d]", gprNames[r], e.saveSlot(slot))
		slot++
	}

	if e.f.FrameBytes > 0 {
		e.printf("addi sp, sp, %d", e.f.FrameBytes)
	}

	e.printf("ret")
}

func (e *emitter) move(dst, src string) {
	if dst != src {
		e.printf("mov %s, %s", dst, src)
	}
}

func sizeName(t ir.Type) string {
	switch t.Size() {
	case 1:
		return "byte"
	case 2:
		return "int"
	default:
		return "long"
	}
}

var binaryOps = map[ir.Kind]string{
	ir.KindAdd:  "add",
	ir.KindSub:  "sub",
	ir.KindMul:  "mul",
	ir.KindSDiv: "divs",
	ir.KindUDiv: "div",
	ir.KindSRem: "mods",
	ir.KindURem: "mod",
	ir.KindAnd:  "and",
	ir.KindOr:   "or",
	ir.KindXor:  "xor",
	ir.KindShl:  "lsh",
	ir.KindLShr: "rsh",
	ir.KindAShr: "ash",
	ir.KindSLt:  "slt",
	ir.KindULt:  "sltu",
}

func (e *emitter) inst(b *ir.Block, id ir.InstID) error {
	f := e.f
	in := f.Inst(id)

	if op, ok := binaryOps[in.Kind]; ok {
		e.printf("%s %s, %s, %s", op, e.reg(id), e.reg(f.Operand(id, 0)), e.reg(f.Operand(id, 1)))
		return nil
	}

	switch in.Kind {
	case ir.KindPhi:
	case ir.KindParam:
		i := f.ParamIndex(id)
		if i < numArgRegs {
			e.printf("mov %s, a%d", e.reg(id), i)
		} else {
			e.printf("mov %s, long [sp + %d]", e.reg(id), f.FrameBytes+(i-numArgRegs)*wordSize)
		}

	case ir.KindConst:
		if in.Type.IsFloat() {
			return errors.Unimplemented("floating point constants on xr17032")
		}

		return errors.Unimplemented(fmt.Sprintf("64-bit constant %d on xr17032", f.ConstValue(id)))

	case KindLI:
		e.printf("addi %s, zero, %d", e.reg(id), int64(f.Tail(id, 0)))
	case KindLUI:
		e.printf("lui %s, zero, %d", e.reg(id), f.Tail(id, 0))
	case KindAddI, KindAndI, KindOrI, KindXorI, KindSllI, KindSrlI, KindSraI:
		e.printf("%s %s, %s, %d", e.be.kinds.Name(in.Kind), e.reg(id), e.reg(f.Operand(id, 0)), int64(f.Tail(id, 0)))
	case KindLA:
		e.printf("la %s, %s", e.reg(id), f.Module.SymbolInfo(ir.SymbolID(f.Tail(id, 0))).Name)
	case KindFrameAddr:
		e.printf("addi %s, sp, %d", e.reg(id), f.StackItemOf(id).Offset)
	case ir.KindMove, KindMov, ir.KindTrunc:
		e.move(e.reg(id), e.reg(f.Operand(id, 0)))
	case ir.KindNeg:
		e.printf("sub %s, zero, %s", e.reg(id), e.reg(f.Operand(id, 0)))
	case ir.KindNot:
		e.printf("nor %s, %s, %s", e.reg(id), e.reg(f.Operand(id, 0)), e.reg(f.Operand(id, 0)))
	case ir.KindZExt, ir.KindSExt:
		e.extend(id)
	case ir.KindEq, ir.KindNe:
		rd := e.reg(id)
		e.printf("xor %s, %s, %s", rd, e.reg(f.Operand(id, 0)), e.reg(f.Operand(id, 1)))

		if in.Kind == ir.KindEq {
			e.printf("sltiu %s, %s, 1", rd, rd)
		} else {
			e.printf("sltu %s, zero, %s", rd, rd)
		}

	case ir.KindSLe, ir.KindULe:
		op := "slt"
		if in.Kind == ir.KindULe {
			op = "sltu"
		}

		rd := e.reg(id)
		e.printf("%s %s, %s, %s", op, rd, e.reg(f.Operand(id, 1)), e.reg(f.Operand(id, 0)))
		e.printf("xori %s, %s, 1", rd, rd)

	case KindLoadOff:
		e.printf("mov %s, %s [%s + %d]", e.reg(id), sizeName(in.Type), e.reg(f.Operand(id, 1)), int64(f.Tail(id, 0)))
	case KindStoreOff:
		val := f.Operand(id, 2)
		e.printf("mov %s [%s + %d], %s", sizeName(f.Inst(val).Type), e.reg(f.Operand(id, 1)), int64(f.Tail(id, 0)), e.reg(val))

	case ir.KindCall, ir.KindCallDirect:
		return e.call(id)

	case ir.KindReturn:
		vals := f.Inputs(id)
		if len(vals) > 1 {
			return errors.Unimplemented("multiple return values on xr17032")
		}

		if len(vals) == 1 {
			e.printf("mov a0, %s", e.reg(vals[0]))
		}

		e.epilogue()

	case ir.KindJump:
		if t := f.Targets(id)[0]; !target.FallsThrough(b, t) {
			e.printf("b %s", target.BlockLabel(f, t))
		}

	case ir.KindBranch:
		succ := f.Targets(id)
		cond := e.reg(f.Operand(id, 0))

		if target.FallsThrough(b, succ[0]) {
			e.printf("beq %s, %s", cond, target.BlockLabel(f, succ[1]))
			break
		}

		e.printf("bne %s, %s", cond, target.BlockLabel(f, succ[0]))

		if !target.FallsThrough(b, succ[1]) {
			e.printf("b %s", target.BlockLabel(f, succ[1]))
		}

	case ir.KindUpsilon:
		e.move(e.reg(id), e.reg(f.Operand(id, 0)))

	default:
		return errors.Unimplemented(e.be.kinds.Name(in.Kind) + " on xr17032")
	}

	return nil
}

func (e *emitter) extend(id ir.InstID) {
	f := e.f
	src := f.Operand(id, 0)
	rd, rs := e.reg(id), e.reg(src)

	bits := f.Inst(src).Type.Size() * 8
	if bits >= 32 || f.Inst(src).Type == ir.TypeBool {
		e.move(rd, rs)
		return
	}

	if f.Inst(id).Kind == ir.KindZExt {
		e.printf("andi %s, %s, %d", rd, rs, (1<<bits)-1)
		return
	}

	e.printf("slli %s, %s, %d", rd, rs, 32-bits)
	e.printf("srai %s, %s, %d", rd, rd, 32-bits)
}

// call saves the scratch registers in use around the call, except the one
// receiving the result.
func (e *emitter) call(id ir.InstID) error {
	f := e.f
	in := f.Inst(id)

	first := 1
	if in.Kind == ir.KindCall {
		first = 2
	}

	args := make([]ir.InstID, 0, f.NumOperands(id))
	for i := first; i < f.NumOperands(id); i++ {
		args = append(args, f.Operand(id, i))
	}

	if len(args) > numArgRegs {
		return errors.Unimplemented(fmt.Sprintf("call with %d arguments on xr17032", len(args)))
	}

	dst := ir.NoReg
	if in.Type.HasValue() {
		dst = target.RegOf(f, id)
	}

	var saved []ir.Reg
	for _, r := range e.scratch {
		if r != dst {
			saved = append(saved, r)
		}
	}

	if len(saved) > 0 {
		e.printf("addi sp, sp, %d", -len(saved)*wordSize)

		for i, r := range saved {
			e.printf("mov long [sp + %d], %s", i*wordSize, gprNames[r])
		}
	}

	for i, a := range args {
		e.printf("mov a%d, %s", i, e.reg(a))
	}

	if in.Kind == ir.KindCallDirect {
		e.printf("jal %s", f.Module.SymbolInfo(ir.SymbolID(f.Tail(id, 0))).Name)
	} else {
		e.printf("jalr lr, %s, 0", e.reg(f.Operand(id, 1)))
	}

	if dst != ir.NoReg {
		e.printf("mov %s, a0", gprNames[dst])
	}

	if len(saved) > 0 {
		for i, r := range saved {
			e.printf("mov %s, long [sp + %d]", gprNames[r], i*wordSize)
		}

		e.printf("addi sp, sp, %d", len(saved)*wordSize)
	}

	return nil
}
