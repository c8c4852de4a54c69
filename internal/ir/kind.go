package ir

import (
	"fmt"

	"github.com/orizon-lang/iris/internal/errors"
)

// Kind tags an instruction. Generic kinds live below KindTargetBase; every
// backend may define extension kinds at and above it in its own KindTable.
type Kind uint16

const (
	KindInvalid Kind = iota
	KindBookend
	KindParam
	KindConst
	KindSymbol
	KindStackAddr

	KindNeg
	KindNot
	KindTrunc
	KindSExt
	KindZExt
	KindMove

	KindAdd
	KindSub
	KindMul
	KindSDiv
	KindUDiv
	KindSRem
	KindURem
	KindAnd
	KindOr
	KindXor
	KindShl
	KindLShr
	KindAShr
	KindEq
	KindNe
	KindSLt
	KindULt
	KindSLe
	KindULe

	KindLoad
	KindStore
	KindCall
	KindCallDirect
	KindReturn
	KindJump
	KindBranch
	KindPhi
	KindUpsilon

	numGenericKinds
)

// KindTargetBase is the first kind number available to backends.
const KindTargetBase Kind = 256

// TargetKind returns the n-th extension kind of a backend.
func TargetKind(n int) Kind { return KindTargetBase + Kind(n) }

// IsGeneric reports whether k belongs to the architecture-independent range.
func (k Kind) IsGeneric() bool { return k < KindTargetBase }

// Trait is a bitset of structural and algebraic properties of a kind.
type Trait uint32

const (
	TraitCommutative Trait = 1 << iota
	TraitAssociative
	// Volatile instructions survive dead code elimination whatever their use count.
	TraitVolatile
	TraitTerminator
	// Branch kinds store successor block IDs in their tail words.
	TraitBranch
	// MoveHint kinds have one input whose register should be shared with the output.
	TraitMoveHint
	TraitMemory
	TraitPseudo
)

func (t Trait) Has(x Trait) bool { return t&x == x }

// Layout describes how a payload is split into inputs and tail words.
type Layout uint8

const (
	// LayoutFixed: [Inputs refs][Tail words].
	LayoutFixed Layout = iota
	// LayoutVariadic: [Inputs refs][n refs][Tail words].
	LayoutVariadic
	// LayoutPaired: [n refs][n words]. Used by phi (values then predecessor blocks).
	LayoutPaired
)

// MaxOperands bounds the variadic part of calls, returns and phis.
const MaxOperands = 16

// KindInfo is one row of the trait and size table.
type KindInfo struct {
	Name   string
	Traits Trait
	Layout Layout
	Inputs int
	Tail   int
}

// Words returns the payload size in words for n variadic operands.
func (k *KindInfo) Words(n int) int {
	switch k.Layout {
	case LayoutVariadic:
		return k.Inputs + n + k.Tail
	case LayoutPaired:
		return 2 * n
	default:
		return k.Inputs + k.Tail
	}
}

// MaxWords is the largest payload the kind can request.
func (k *KindInfo) MaxWords() int {
	if k.Layout == LayoutFixed {
		return k.Words(0)
	}

	return k.Words(MaxOperands)
}

const memory = TraitMemory | TraitVolatile

var genericKinds = [numGenericKinds]KindInfo{
	KindInvalid:   {Name: "invalid"},
	KindBookend:   {Name: "bookend", Traits: TraitPseudo | TraitVolatile},
	KindParam:     {Name: "param", Traits: TraitVolatile, Tail: 1},
	KindConst:     {Name: "const", Tail: 1},
	KindSymbol:    {Name: "symbol", Tail: 1},
	KindStackAddr: {Name: "stackaddr", Tail: 1},

	KindNeg:   {Name: "neg", Inputs: 1},
	KindNot:   {Name: "not", Inputs: 1},
	KindTrunc: {Name: "trunc", Inputs: 1},
	KindSExt:  {Name: "sext", Inputs: 1},
	KindZExt:  {Name: "zext", Inputs: 1},
	KindMove:  {Name: "move", Inputs: 1, Traits: TraitMoveHint},

	KindAdd:  {Name: "add", Inputs: 2, Traits: TraitCommutative | TraitAssociative},
	KindSub:  {Name: "sub", Inputs: 2},
	KindMul:  {Name: "mul", Inputs: 2, Traits: TraitCommutative | TraitAssociative},
	KindSDiv: {Name: "sdiv", Inputs: 2},
	KindUDiv: {Name: "udiv", Inputs: 2},
	KindSRem: {Name: "srem", Inputs: 2},
	KindURem: {Name: "urem", Inputs: 2},
	KindAnd:  {Name: "and", Inputs: 2, Traits: TraitCommutative | TraitAssociative},
	KindOr:   {Name: "or", Inputs: 2, Traits: TraitCommutative | TraitAssociative},
	KindXor:  {Name: "xor", Inputs: 2, Traits: TraitCommutative | TraitAssociative},
	KindShl:  {Name: "shl", Inputs: 2},
	KindLShr: {Name: "lshr", Inputs: 2},
	KindAShr: {Name: "ashr", Inputs: 2},
	KindEq:   {Name: "eq", Inputs: 2, Traits: TraitCommutative},
	KindNe:   {Name: "ne", Inputs: 2, Traits: TraitCommutative},
	KindSLt:  {Name: "slt", Inputs: 2},
	KindULt:  {Name: "ult", Inputs: 2},
	KindSLe:  {Name: "sle", Inputs: 2},
	KindULe:  {Name: "ule", Inputs: 2},

	KindLoad:       {Name: "load", Inputs: 2, Traits: TraitMemory},
	KindStore:      {Name: "store", Inputs: 3, Traits: memory},
	KindCall:       {Name: "call", Layout: LayoutVariadic, Inputs: 2, Traits: memory},
	KindCallDirect: {Name: "call", Layout: LayoutVariadic, Inputs: 1, Tail: 1, Traits: memory},
	KindReturn:     {Name: "return", Layout: LayoutVariadic, Traits: TraitTerminator | TraitVolatile},
	KindJump:       {Name: "jump", Tail: 1, Traits: TraitTerminator | TraitBranch | TraitVolatile},
	KindBranch:     {Name: "branch", Inputs: 1, Tail: 2, Traits: TraitTerminator | TraitBranch | TraitVolatile},
	KindPhi:        {Name: "phi", Layout: LayoutPaired, Traits: TraitVolatile},
	KindUpsilon:    {Name: "upsilon", Inputs: 1, Tail: 1, Traits: TraitPseudo | TraitVolatile | TraitMoveHint},
}

// KindTable is the combined size and trait table of one backend: the
// generic kinds followed by the backend's extension kinds.
type KindTable struct {
	ext      []KindInfo
	maxWords int
}

var genericTable = NewKindTable(nil)

// GenericKinds returns the table holding only the generic kinds.
func GenericKinds() *KindTable { return genericTable }

// NewKindTable builds a table whose extension kind i is TargetKind(i).
func NewKindTable(ext []KindInfo) *KindTable {
	t := &KindTable{ext: append([]KindInfo(nil), ext...)}

	for i := range genericKinds {
		if w := genericKinds[i].MaxWords(); w > t.maxWords {
			t.maxWords = w
		}
	}

	for i := range t.ext {
		if w := t.ext[i].MaxWords(); w > t.maxWords {
			t.maxWords = w
		}
	}

	return t
}

// Lookup returns the row for k.
func (t *KindTable) Lookup(k Kind) (*KindInfo, bool) {
	if k.IsGeneric() {
		if k == KindInvalid || k >= numGenericKinds {
			return nil, false
		}

		return &genericKinds[k], true
	}

	i := int(k - KindTargetBase)
	if i >= len(t.ext) {
		return nil, false
	}

	return &t.ext[i], true
}

// Info is Lookup for kinds that must exist.
func (t *KindTable) Info(k Kind) *KindInfo {
	info, ok := t.Lookup(k)
	if !ok {
		panic(errors.Invariant("UNKNOWN_KIND", "unknown instruction kind %d", k))
	}

	return info
}

func (t *KindTable) Traits(k Kind) Trait { return t.Info(k).Traits }

func (t *KindTable) Has(k Kind, tr Trait) bool { return t.Info(k).Traits.Has(tr) }

func (t *KindTable) Name(k Kind) string {
	if info, ok := t.Lookup(k); ok {
		return info.Name
	}

	return fmt.Sprintf("kind%d", k)
}

// MaxPayload is the largest payload, in words, any kind of the table uses.
func (t *KindTable) MaxPayload() int { return t.maxWords }

// NumExtensions reports how many backend kinds the table carries.
func (t *KindTable) NumExtensions() int { return len(t.ext) }
