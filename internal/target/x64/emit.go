package x64

import (
	"fmt"
	"io"
	"strings"

	"github.com/orizon-lang/iris/internal/errors"
	"github.com/orizon-lang/iris/internal/ir"
	"github.com/orizon-lang/iris/internal/target"
)

// FinalTouchups lays out the locals below rbp and rounds the area to the
// 16-byte call alignment.
func (b *Backend) FinalTouchups(f *ir.Function) {
	f.FrameBytes = (f.FrameSize() + 15) &^ 15
}

type emitter struct {
	be  *Backend
	f   *ir.Function
	buf strings.Builder

	preserved []ir.Reg
	scratch   []ir.Reg
}

func (b *Backend) EmitAsm(f *ir.Function, w io.Writer) error {
	e := &emitter{
		be:        b,
		f:         f,
		preserved: target.UsedRegs(f, b, ClassGPR, target.RegPreserved),
		scratch:   target.UsedRegs(f, b, ClassGPR, target.RegClobbered),
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

func (e *emitter) reg(id ir.InstID) string { return gprNames[target.RegOf(e.f, id)] }

// sized names the register of id at the width of its type. Only the low
// bits of a register narrower than 64 bits are defined.
func (e *emitter) sized(id ir.InstID) string {
	return sizedName(target.RegOf(e.f, id), e.f.Inst(id).Type.Size())
}

func (e *emitter) move(dst, src string) {
	if dst != src {
		e.printf("mov %s, %s", dst, src)
	}
}

// pad keeps rsp 16-byte aligned after an odd number of pushes.
func pad(pushes int) int { return (pushes % 2) * 8 }

func (e *emitter) function() error {
	f := e.f
	fmt.Fprintf(&e.buf, "%s:\n", f.Name)

	e.printf("push rbp")
	e.printf("mov rbp, rsp")

	if n := f.FrameBytes + pad(len(e.preserved)); n > 0 {
		e.printf("sub rsp, %d", n)
	}

	for _, r := range e.preserved {
		e.printf("push %s", gprNames[r])
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
	for i := len(e.preserved) - 1; i >= 0; i-- {
		e.printf("pop %s", gprNames[e.preserved[i]])
	}

	e.printf("mov rsp, rbp")
	e.printf("pop rbp")
	e.printf("ret")
}

var setcc = map[ir.Kind]string{
	ir.KindEq:  "sete",
	ir.KindNe:  "setne",
	ir.KindSLt: "setl",
	ir.KindSLe: "setle",
	ir.KindULt: "setb",
	ir.KindULe: "setbe",
}

func ptrSize(t ir.Type) string {
	switch t.Size() {
	case 1:
		return "byte ptr"
	case 2:
		return "word ptr"
	case 4:
		return "dword ptr"
	default:
		return "qword ptr"
	}
}

func (e *emitter) inst(b *ir.Block, id ir.InstID) error {
	f := e.f
	in := f.Inst(id)

	if cc, ok := setcc[in.Kind]; ok {
		e.printf("cmp %s, %s", e.sized(f.Operand(id, 0)), e.sized(f.Operand(id, 1)))
		e.printf("%s al", cc)
		e.printf("movzx %s, al", e.reg(id))

		return nil
	}

	switch in.Kind {
	case ir.KindPhi:
	case ir.KindParam:
		i := f.ParamIndex(id)
		if i < len(e.be.abi.args) {
			e.printf("mov %s, %s", e.reg(id), gprNames[e.be.abi.args[i]])
		} else {
			e.printf("mov %s, qword ptr [rbp+%d]", e.reg(id), e.be.abi.stackAt+8*(i-len(e.be.abi.args)))
		}

	case ir.KindConst:
		if in.Type.IsFloat() {
			return errors.Unimplemented("floating point constants on x64")
		}

		e.printf("mov %s, %d", e.reg(id), f.ConstValue(id))

	case ir.KindSymbol:
		e.printf("lea %s, [rip+%s]", e.reg(id), f.Module.SymbolInfo(f.SymbolOf(id)).Name)
	case ir.KindStackAddr:
		e.printf("lea %s, [rbp-%d]", e.reg(id), f.FrameBytes-f.StackItemOf(id).Offset)
	case ir.KindMove, KindMov, ir.KindTrunc, ir.KindUpsilon:
		e.move(e.reg(id), e.reg(f.Operand(id, 0)))
	case ir.KindNeg, ir.KindNot:
		rd := e.reg(id)
		e.move(rd, e.reg(f.Operand(id, 0)))

		op := "neg"
		if in.Kind == ir.KindNot {
			op = "not"
		}

		e.printf("%s %s", op, rd)

	case ir.KindZExt, ir.KindSExt:
		e.extend(id)

	case KindALU:
		e.alu(id)
	case KindALUImm:
		op := ir.Kind(f.Tail(id, 0))
		e.move(e.reg(id), e.reg(f.Operand(id, 0)))

		rd := e.reg(id)
		if isShift(op) {
			rd = e.sized(id)
		}

		e.printf("%s %s, %d", aluOps[op], rd, int64(f.Tail(id, 1)))

	case ir.KindAdd, ir.KindSub, ir.KindMul, ir.KindAnd, ir.KindOr, ir.KindXor, ir.KindShl, ir.KindLShr, ir.KindAShr:
		return errors.Invariant("NOT_SELECTED", "%s reached x64 emission without selection", f.Info(id).Name)

	case ir.KindSDiv, ir.KindUDiv, ir.KindSRem, ir.KindURem:
		return e.divide(id)

	case ir.KindLoad:
		ptr := e.reg(f.Operand(id, 1))
		if in.Type.Size() < 4 {
			e.printf("movzx %s, %s [%s]", e.reg(id), ptrSize(in.Type), ptr)
		} else {
			e.printf("mov %s, %s [%s]", e.sized(id), ptrSize(in.Type), ptr)
		}

	case ir.KindStore:
		val := f.Operand(id, 2)
		e.printf("mov %s [%s], %s", ptrSize(f.Inst(val).Type), e.reg(f.Operand(id, 1)), e.sized(val))

	case ir.KindCall, ir.KindCallDirect:
		return e.call(id)

	case ir.KindReturn:
		vals := f.Inputs(id)
		if len(vals) > 1 {
			return errors.Unimplemented("multiple return values on x64")
		}

		if len(vals) == 1 {
			e.printf("mov rax, %s", e.reg(vals[0]))
		}

		e.epilogue()

	case ir.KindJump:
		if t := f.Targets(id)[0]; !target.FallsThrough(b, t) {
			e.printf("jmp %s", target.BlockLabel(f, t))
		}

	case ir.KindBranch:
		succ := f.Targets(id)
		cond := e.sized(f.Operand(id, 0))
		e.printf("test %s, %s", cond, cond)

		if target.FallsThrough(b, succ[0]) {
			e.printf("jz %s", target.BlockLabel(f, succ[1]))
			break
		}

		e.printf("jnz %s", target.BlockLabel(f, succ[0]))

		if !target.FallsThrough(b, succ[1]) {
			e.printf("jmp %s", target.BlockLabel(f, succ[1]))
		}

	default:
		return errors.Unimplemented(e.be.kinds.Name(in.Kind) + " on x64")
	}

	return nil
}

// alu emits a tied two-address operation. When the destination was given
// the right operand's register the left operand cannot be copied first.
func (e *emitter) alu(id ir.InstID) {
	f := e.f
	op := ir.Kind(f.Tail(id, 0))
	rd, s0, s1 := e.reg(id), e.reg(f.Operand(id, 0)), e.reg(f.Operand(id, 1))

	if isShift(op) {
		e.printf("mov rcx, %s", s1)
		e.move(rd, s0)
		e.printf("%s %s, cl", aluOps[op], e.sized(id))

		return
	}

	switch {
	case rd == s0:
		e.printf("%s %s, %s", aluOps[op], rd, s1)
	case rd == s1 && e.be.kinds.Has(op, ir.TraitCommutative):
		e.printf("%s %s, %s", aluOps[op], rd, s0)
	case rd == s1:
		e.printf("mov rax, %s", s0)
		e.printf("%s rax, %s", aluOps[op], s1)
		e.printf("mov %s, rax", rd)
	default:
		e.printf("mov %s, %s", rd, s0)
		e.printf("%s %s, %s", aluOps[op], rd, s1)
	}
}

// divide uses rax and rdx at the operand width. Byte and word division
// leave their results in different registers and are not supported.
func (e *emitter) divide(id ir.InstID) error {
	f := e.f
	in := f.Inst(id)
	k := in.Kind

	size := in.Type.Size()
	if size < 4 {
		return errors.Unimplemented(in.Type.String() + " division on x64")
	}

	ax, dx := sizedName(rax, size), sizedName(rdx, size)
	e.printf("mov %s, %s", ax, e.sized(f.Operand(id, 0)))

	switch {
	case (k == ir.KindSDiv || k == ir.KindSRem) && size == 4:
		e.printf("cdq")
		e.printf("idiv %s", e.sized(f.Operand(id, 1)))
	case k == ir.KindSDiv || k == ir.KindSRem:
		e.printf("cqo")
		e.printf("idiv %s", e.sized(f.Operand(id, 1)))
	default:
		e.printf("xor edx, edx")
		e.printf("div %s", e.sized(f.Operand(id, 1)))
	}

	if k == ir.KindSRem || k == ir.KindURem {
		e.printf("mov %s, %s", e.sized(id), dx)
	} else {
		e.printf("mov %s, %s", e.sized(id), ax)
	}

	return nil
}

func (e *emitter) extend(id ir.InstID) {
	f := e.f
	src := f.Operand(id, 0)
	rd := e.reg(id)
	e.move(rd, e.reg(src))

	bits := f.Inst(src).Type.Size() * 8
	if bits >= 64 || f.Inst(src).Type == ir.TypeBool {
		return
	}

	if f.Inst(id).Kind == ir.KindZExt {
		if bits == 32 {
			e.printf("shl %s, 32", rd)
			e.printf("shr %s, 32", rd)
		} else {
			e.printf("and %s, %d", rd, (1<<bits)-1)
		}

		return
	}

	e.printf("shl %s, %d", rd, 64-bits)
	e.printf("sar %s, %d", rd, 64-bits)
}

// call preserves the scratch registers in use around the call, except the
// result register.
func (e *emitter) call(id ir.InstID) error {
	f := e.f
	in := f.Inst(id)
	a := e.be.abi

	first := 1
	if in.Kind == ir.KindCall {
		first = 2
	}

	args := make([]ir.InstID, 0, f.NumOperands(id))
	for i := first; i < f.NumOperands(id); i++ {
		args = append(args, f.Operand(id, i))
	}

	if len(args) > len(a.args) {
		return errors.Unimplemented(fmt.Sprintf("call with %d arguments under %s", len(args), a.name))
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

	for _, r := range saved {
		e.printf("push %s", gprNames[r])
	}

	reserve := a.shadow + pad(len(saved))
	if reserve > 0 {
		e.printf("sub rsp, %d", reserve)
	}

	callee := ""
	if in.Kind == ir.KindCall {
		callee = e.reg(f.Operand(id, 1))
	}

	for i, arg := range args {
		e.printf("mov %s, %s", gprNames[a.args[i]], e.reg(arg))
	}

	if in.Kind == ir.KindCallDirect {
		e.printf("call %s", f.Module.SymbolInfo(ir.SymbolID(f.Tail(id, 0))).Name)
	} else {
		e.printf("call %s", callee)
	}

	if reserve > 0 {
		e.printf("add rsp, %d", reserve)
	}

	if dst != ir.NoReg {
		e.printf("mov %s, rax", gprNames[dst])
	}

	for i := len(saved) - 1; i >= 0; i-- {
		e.printf("pop %s", gprNames[saved[i]])
	}

	return nil
}
