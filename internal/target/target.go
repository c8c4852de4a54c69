// Package target defines the contract every code generation backend
// implements, and a registry that resolves a module's target descriptor to
// a versioned backend.
package target

import (
	"io"

	"github.com/orizon-lang/iris/internal/ir"
)

// RegStatus tells the allocator how a physical register behaves under a
// calling convention.
type RegStatus uint8

const (
	// RegReserved registers are never handed out (stack pointer, zero, ...).
	RegReserved RegStatus = iota
	// RegClobbered registers may be destroyed by a call; preferred for allocation.
	RegClobbered
	// RegPreserved registers survive calls but must be saved by the callee.
	RegPreserved
)

func (s RegStatus) String() string {
	switch s {
	case RegClobbered:
		return "clobbered"
	case RegPreserved:
		return "preserved"
	default:
		return "reserved"
	}
}

// Backend is the architecture-specific half of the pipeline.
type Backend interface {
	// Target returns the descriptor the backend was built for.
	Target() ir.Target
	// Kinds returns the size and trait table, generic kinds included.
	Kinds() *ir.KindTable

	ListInputs(f *ir.Function, id ir.InstID) []ir.InstID
	// ListTargets returns the successors of a terminator. Calling it on a
	// non-terminator is an invariant violation.
	ListTargets(f *ir.Function, id ir.InstID) []*ir.Block

	// Isel lowers one instruction. ok == false leaves it in place.
	Isel(f *ir.Function, b *ir.Block, id ir.InstID) (chain ir.Chain, ok bool)

	ChooseRegClass(kind ir.Kind, typ ir.Type) ir.RegClass
	// NumRegs returns how many registers the class has.
	NumRegs(class ir.RegClass) int
	RegName(class ir.RegClass, reg ir.Reg) string
	RegStatus(cc ir.CallConv, class ir.RegClass, reg ir.Reg) RegStatus

	PreRegallocOpt(f *ir.Function)
	FinalTouchups(f *ir.Function)
	EmitAsm(f *ir.Function, w io.Writer) error
}

// Generic implements the target-independent parts of Backend on top of the
// IR's own operand layout. Backends embed it.
type Generic struct{}

// ListInputs returns the value operands of id. The memory operand of a
// memory kind orders it against other memory kinds but is not a value.
func (Generic) ListInputs(f *ir.Function, id ir.InstID) []ir.InstID {
	in := f.Inputs(id)
	if f.Is(id, ir.TraitMemory) && f.Operand(id, 0) != ir.NoInst {
		return in[1:]
	}

	return in
}

func (Generic) ListTargets(f *ir.Function, id ir.InstID) []*ir.Block { return f.Targets(id) }

func (Generic) PreRegallocOpt(*ir.Function) {}
