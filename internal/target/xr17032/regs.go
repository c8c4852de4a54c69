package xr17032

import (
	"github.com/orizon-lang/iris/internal/errors"
	"github.com/orizon-lang/iris/internal/ir"
	"github.com/orizon-lang/iris/internal/target"
)

// ClassGPR is the only register class: 32 general purpose registers.
const ClassGPR ir.RegClass = 0

var gprNames = [...]string{
	"zero",
	"t0", "t1", "t2", "t3", "t4", "t5",
	"a0", "a1", "a2", "a3",
	"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8",
	"s9", "s10", "s11", "s12", "s13", "s14", "s15", "s16", "s17",
	"tp", "sp", "lr",
}

const (
	regZero ir.Reg = 0
	regT0   ir.Reg = 1
	regA0   ir.Reg = 7
	regS0   ir.Reg = 11
	regTP   ir.Reg = 29
	regSP   ir.Reg = 30
	regLR   ir.Reg = 31

	numArgRegs = 4
	wordSize   = 4
)

func (b *Backend) ChooseRegClass(_ ir.Kind, typ ir.Type) ir.RegClass {
	if typ.IsInt() {
		return ClassGPR
	}

	return ir.NoRegClass
}

func (b *Backend) NumRegs(class ir.RegClass) int {
	if class != ClassGPR {
		return 0
	}

	return len(gprNames)
}

func (b *Backend) RegName(_ ir.RegClass, r ir.Reg) string {
	if int(r) >= len(gprNames) {
		return "?"
	}

	return gprNames[r]
}

// RegStatus reserves the argument registers: values are copied in and out
// of them around calls, returns and parameter reads, so they never hold an
// allocated value. The fast convention treats the saved registers as
// scratch as well.
func (b *Backend) RegStatus(cc ir.CallConv, _ ir.RegClass, r ir.Reg) target.RegStatus {
	switch {
	case r == regZero, r >= regTP:
		return target.RegReserved
	case r >= regA0 && r < regS0:
		return target.RegReserved
	case r < regA0:
		return target.RegClobbered
	case cc == ir.CallConvFast:
		return target.RegClobbered
	default:
		return target.RegPreserved
	}
}

func errUnsupported(t ir.Target) error {
	return errors.UnsupportedTarget(string(t.Arch), string(t.System), "")
}
