// Package x64 is a two-address x86-64 backend. Binary operations are
// selected as a move-hinted copy of the left operand followed by an
// in-place ALU instruction, which lets the allocator coalesce the copy
// away whenever the left operand dies.
//
// Values narrower than 64 bits only define the low bits of their register.
// Compares, tests, stores, shifts and divisions therefore use the register
// name of the operand width; byte and word division is not implemented.
package x64

import (
	"github.com/orizon-lang/iris/internal/errors"
	"github.com/orizon-lang/iris/internal/ir"
	"github.com/orizon-lang/iris/internal/target"
)

// Version is the registered backend version.
const Version = "1.1.0"

// Backend implements target.Backend for System V (linux, none) and Win64
// (windows) conventions.
type Backend struct {
	target.Generic

	t     ir.Target
	kinds *ir.KindTable
	abi   *abi
}

var _ target.Backend = (*Backend)(nil)

func New(t ir.Target) (*Backend, error) {
	if t.Arch != ir.ArchX64 {
		return nil, errors.UnsupportedTarget(string(t.Arch), string(t.System), "")
	}

	a := &sysV
	switch t.System {
	case ir.SystemNone, ir.SystemLinux:
	case ir.SystemWindows:
		a = &win64
	default:
		return nil, errors.UnsupportedTarget(string(t.Arch), string(t.System), "")
	}

	return &Backend{t: t, kinds: kinds, abi: a}, nil
}

func (b *Backend) Target() ir.Target { return b.t }

func (b *Backend) Kinds() *ir.KindTable { return b.kinds }

func init() {
	systems := []ir.System{ir.SystemNone, ir.SystemLinux, ir.SystemWindows}
	target.Default.MustRegister(ir.ArchX64, Version, systems,
		func(t ir.Target) (target.Backend, error) { return New(t) })
}
