package xr17032

import (
	"github.com/orizon-lang/iris/internal/ir"
)

// Extension kinds. Immediate forms carry a signed 16-bit value in their
// tail; logical immediates are zero-extended by the hardware.
const (
	KindLI        = ir.KindTargetBase + iota // li rd, imm
	KindLUI                                  // lui rd, zero, hi
	KindAddI                                 // addi rd, ra, imm
	KindAndI                                 // andi rd, ra, imm
	KindOrI                                  // ori rd, ra, imm
	KindXorI                                 // xori rd, ra, imm
	KindSllI                                 // slli rd, ra, imm
	KindSrlI                                 // srli rd, ra, imm
	KindSraI                                 // srai rd, ra, imm
	KindLA                                   // la rd, sym
	KindMov                                  // mov rd, ra
	KindLoadOff                              // mov rd, SIZE [ra + off]
	KindStoreOff                             // mov SIZE [ra + off], rb
	KindFrameAddr                            // addi rd, sp, off(item)
)

var kinds = ir.NewKindTable([]ir.KindInfo{
	KindLI - ir.KindTargetBase:        {Name: "li", Tail: 1},
	KindLUI - ir.KindTargetBase:       {Name: "lui", Tail: 1},
	KindAddI - ir.KindTargetBase:      {Name: "addi", Inputs: 1, Tail: 1},
	KindAndI - ir.KindTargetBase:      {Name: "andi", Inputs: 1, Tail: 1},
	KindOrI - ir.KindTargetBase:       {Name: "ori", Inputs: 1, Tail: 1},
	KindXorI - ir.KindTargetBase:      {Name: "xori", Inputs: 1, Tail: 1},
	KindSllI - ir.KindTargetBase:      {Name: "slli", Inputs: 1, Tail: 1},
	KindSrlI - ir.KindTargetBase:      {Name: "srli", Inputs: 1, Tail: 1},
	KindSraI - ir.KindTargetBase:      {Name: "srai", Inputs: 1, Tail: 1},
	KindLA - ir.KindTargetBase:        {Name: "la", Tail: 1},
	KindMov - ir.KindTargetBase:       {Name: "mov", Inputs: 1, Traits: ir.TraitMoveHint},
	KindLoadOff - ir.KindTargetBase:   {Name: "load", Inputs: 2, Tail: 1, Traits: ir.TraitMemory},
	KindStoreOff - ir.KindTargetBase:  {Name: "store", Inputs: 3, Tail: 1, Traits: ir.TraitMemory | ir.TraitVolatile},
	KindFrameAddr - ir.KindTargetBase: {Name: "frameaddr", Tail: 1},
})

// immediate forms of the generic binary kinds.
var immForms = map[ir.Kind]ir.Kind{
	ir.KindAdd:  KindAddI,
	ir.KindAnd:  KindAndI,
	ir.KindOr:   KindOrI,
	ir.KindXor:  KindXorI,
	ir.KindShl:  KindSllI,
	ir.KindLShr: KindSrlI,
	ir.KindAShr: KindSraI,
}

func fitsSigned16(v int64) bool { return v >= -1<<15 && v < 1<<15 }

func fitsUnsigned16(v int64) bool { return v >= 0 && v < 1<<16 }

func fitsImm(k ir.Kind, v int64) bool {
	switch k {
	case KindAndI, KindOrI, KindXorI:
		return fitsUnsigned16(v)
	case KindSllI, KindSrlI, KindSraI:
		return v >= 0 && v < 32
	default:
		return fitsSigned16(v)
	}
}
