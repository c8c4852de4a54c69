package x64

import (
	"github.com/orizon-lang/iris/internal/ir"
	"github.com/orizon-lang/iris/internal/target"
)

// ClassGPR holds the sixteen 64-bit general purpose registers.
const ClassGPR ir.RegClass = 0

const (
	rax ir.Reg = iota
	rcx
	rdx
	rbx
	rsp
	rbp
	rsi
	rdi
	r8
	r9
	r10
	r11
	r12
	r13
	r14
	r15
)

var gprNames = [...]string{
	"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
}

var (
	gpr32Names = [...]string{
		"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi",
		"r8d", "r9d", "r10d", "r11d", "r12d", "r13d", "r14d", "r15d",
	}
	gpr16Names = [...]string{
		"ax", "cx", "dx", "bx", "sp", "bp", "si", "di",
		"r8w", "r9w", "r10w", "r11w", "r12w", "r13w", "r14w", "r15w",
	}
	gpr8Names = [...]string{
		"al", "cl", "dl", "bl", "spl", "bpl", "sil", "dil",
		"r8b", "r9b", "r10b", "r11b", "r12b", "r13b", "r14b", "r15b",
	}
)

// sizedName names the low size bytes of r.
func sizedName(r ir.Reg, size int) string {
	switch size {
	case 1:
		return gpr8Names[r]
	case 2:
		return gpr16Names[r]
	case 4:
		return gpr32Names[r]
	default:
		return gprNames[r]
	}
}

// abi describes one calling convention. Argument registers, rax, rcx and
// rdx are reserved: emission uses them for argument transfer, division,
// shift counts and flag materialization.
type abi struct {
	name    string
	args    []ir.Reg
	saved   []ir.Reg
	shadow  int
	stackAt int
}

var (
	sysV = abi{
		name:    "sysv",
		args:    []ir.Reg{rdi, rsi, rdx, rcx, r8, r9},
		saved:   []ir.Reg{rbx, r12, r13, r14, r15},
		stackAt: 16,
	}
	win64 = abi{
		name:    "win64",
		args:    []ir.Reg{rcx, rdx, r8, r9},
		saved:   []ir.Reg{rbx, rsi, rdi, r12, r13, r14, r15},
		shadow:  32,
		stackAt: 16 + 32,
	}
)

func (a *abi) isArg(r ir.Reg) bool {
	for _, x := range a.args {
		if x == r {
			return true
		}
	}

	return false
}

func (a *abi) isSaved(r ir.Reg) bool {
	for _, x := range a.saved {
		if x == r {
			return true
		}
	}

	return false
}

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

func (b *Backend) RegStatus(cc ir.CallConv, _ ir.RegClass, r ir.Reg) target.RegStatus {
	switch {
	case r == rsp, r == rbp, r == rax, r == rcx, r == rdx, b.abi.isArg(r):
		return target.RegReserved
	case b.abi.isSaved(r) && cc != ir.CallConvFast:
		return target.RegPreserved
	default:
		return target.RegClobbered
	}
}
