package ir

import (
	"github.com/orizon-lang/iris/internal/errors"
)

// VRegID names a virtual register inside a VRegs buffer. 0 means none.
type VRegID uint32

const NoVReg VRegID = 0

// VReg is an abstract storage slot for one instruction result.
type VReg struct {
	Class RegClass
	// Def and DefBlock identify the single canonical definer.
	Def      InstID
	DefBlock *Block
	// Hint names a virtual register whose physical register should be reused.
	Hint VRegID
	Reg  Reg
}

// Assigned reports whether the allocator gave the register a home.
func (v *VReg) Assigned() bool { return v.Reg != NoReg }

// Assign sets the physical register. It may happen exactly once.
func (v *VReg) Assign(r Reg) {
	errors.Assert(v.Reg == NoReg, "VREG_REASSIGNED", "virtual register already assigned to r%d", v.Reg)
	v.Reg = r
}

// VRegs is the virtual register buffer shared by the functions built with it.
type VRegs struct {
	regs []*VReg
}

func NewVRegs() *VRegs {
	return &VRegs{regs: []*VReg{nil}}
}

// New creates a virtual register defined by def in blk.
func (vs *VRegs) New(class RegClass, def InstID, blk *Block) VRegID {
	vs.regs = append(vs.regs, &VReg{Class: class, Def: def, DefBlock: blk, Reg: NoReg})

	return VRegID(len(vs.regs) - 1)
}

// Get resolves id. Resolving NoVReg is an invariant violation.
func (vs *VRegs) Get(id VRegID) *VReg {
	if id == NoVReg || int(id) >= len(vs.regs) {
		panic(errors.IndexOutOfBounds("vreg", int(id), len(vs.regs)))
	}

	return vs.regs[id]
}

// Len returns the number of registers created so far, excluding NoVReg.
func (vs *VRegs) Len() int { return len(vs.regs) - 1 }
