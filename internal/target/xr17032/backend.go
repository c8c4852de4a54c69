// Package xr17032 is a three-address RISC backend for the XR/17032
// architecture. It selects immediate and displacement forms and emits
// assembler text; there is no binary encoder.
//
// Registers are 32 bits wide and every integer type lives in one register,
// so i64 arithmetic wraps modulo 2^32. Constants that do not fit in 32 bits
// are rejected with errors.ErrUnimplemented.
package xr17032

import (
	"github.com/orizon-lang/iris/internal/ir"
	"github.com/orizon-lang/iris/internal/target"
)

// Version is the registered backend version.
const Version = "1.0.0"

// Backend implements target.Backend.
type Backend struct {
	target.Generic

	t     ir.Target
	kinds *ir.KindTable
}

var _ target.Backend = (*Backend)(nil)

// New returns a backend for t. Only freestanding code is supported.
func New(t ir.Target) (*Backend, error) {
	if t.Arch != ir.ArchXR17032 || t.System != ir.SystemNone {
		return nil, errUnsupported(t)
	}

	return &Backend{t: t, kinds: kinds}, nil
}

func (b *Backend) Target() ir.Target { return b.t }

func (b *Backend) Kinds() *ir.KindTable { return b.kinds }

func init() {
	target.Default.MustRegister(ir.ArchXR17032, Version, []ir.System{ir.SystemNone},
		func(t ir.Target) (target.Backend, error) { return New(t) })
}
