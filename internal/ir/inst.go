package ir

import (
	"math"

	"github.com/orizon-lang/iris/internal/errors"
)

// InstID is the stable address of an instruction inside its Pool.
type InstID uint32

// NoInst is the nil instruction reference. As a memory operand it stands
// for the memory state at function entry.
const NoInst InstID = 0

// Inst is one IR instruction. Instances live inside a Pool chunk and are
// linked into their block's circular list through prev/next.
type Inst struct {
	Kind Kind
	Type Type
	// Scratch belongs to whichever pass is running; never trust a value left
	// by another pass.
	Scratch int32
	Uses    int32
	VReg    VRegID

	prev, next InstID
	payload    []uint64
	freed      bool
}

// Words exposes the raw payload.
func (in *Inst) Words() []uint64 { return in.payload }

// Linked reports whether the instruction sits in a list or chain.
func (in *Inst) Linked() bool { return in.prev != NoInst || in.next != NoInst }

// Inst resolves id through the function's pool.
func (f *Function) Inst(id InstID) *Inst { return f.Pool.Inst(id) }

// Info returns the table row of the instruction's kind.
func (f *Function) Info(id InstID) *KindInfo { return f.Pool.kinds.Info(f.Inst(id).Kind) }

// Is reports whether the kind of id carries the trait.
func (f *Function) Is(id InstID, tr Trait) bool {
	return f.Pool.kinds.Has(f.Inst(id).Kind, tr)
}

// inputWords returns the slice of the payload holding instruction references.
func (f *Function) inputWords(id InstID) []uint64 {
	in := f.Inst(id)
	info := f.Pool.kinds.Info(in.Kind)

	switch info.Layout {
	case LayoutPaired:
		return in.payload[:len(in.payload)/2]
	default:
		return in.payload[:len(in.payload)-info.Tail]
	}
}

// tailWords returns the non-reference words of the payload.
func (f *Function) tailWords(id InstID) []uint64 {
	in := f.Inst(id)
	info := f.Pool.kinds.Info(in.Kind)

	switch info.Layout {
	case LayoutPaired:
		return in.payload[len(in.payload)/2:]
	default:
		return in.payload[len(in.payload)-info.Tail:]
	}
}

// NumOperands returns the number of operand slots, including empty ones.
func (f *Function) NumOperands(id InstID) int { return len(f.inputWords(id)) }

// Operand returns operand slot i, which may be NoInst.
func (f *Function) Operand(id InstID, i int) InstID {
	w := f.inputWords(id)
	if i < 0 || i >= len(w) {
		panic(errors.IndexOutOfBounds("operand", i, len(w)))
	}

	return InstID(w[i])
}

// SetOperand rewires operand slot i and keeps both use counts right.
func (f *Function) SetOperand(id InstID, i int, v InstID) {
	w := f.inputWords(id)
	if i < 0 || i >= len(w) {
		panic(errors.IndexOutOfBounds("operand", i, len(w)))
	}

	if old := InstID(w[i]); old != NoInst {
		f.Inst(old).Uses--
	}

	if v != NoInst {
		f.Inst(v).Uses++
	}

	w[i] = uint64(v)
}

// Inputs lists the non-empty operands of id in payload order.
func (f *Function) Inputs(id InstID) []InstID {
	w := f.inputWords(id)
	out := make([]InstID, 0, len(w))

	for _, x := range w {
		if x != 0 {
			out = append(out, InstID(x))
		}
	}

	return out
}

// Tail returns tail word i.
func (f *Function) Tail(id InstID, i int) uint64 {
	w := f.tailWords(id)
	if i < 0 || i >= len(w) {
		panic(errors.IndexOutOfBounds("tail word", i, len(w)))
	}

	return w[i]
}

// SetTail sets tail word i.
func (f *Function) SetTail(id InstID, i int, v uint64) {
	w := f.tailWords(id)
	if i < 0 || i >= len(w) {
		panic(errors.IndexOutOfBounds("tail word", i, len(w)))
	}

	w[i] = v
}

// Targets returns the successor blocks of a branch-tagged terminator.
func (f *Function) Targets(id InstID) []*Block {
	in := f.Inst(id)
	info := f.Pool.kinds.Info(in.Kind)
	errors.Assert(info.Traits.Has(TraitTerminator), "NOT_TERMINATOR",
		"%s is queried for targets but is not a terminator", info.Name)

	if !info.Traits.Has(TraitBranch) {
		return nil
	}

	tail := f.tailWords(id)
	out := make([]*Block, len(tail))

	for i, w := range tail {
		out[i] = f.Block(int(w))
	}

	return out
}

// ConstValue returns the bits of a const instruction as a signed integer.
func (f *Function) ConstValue(id InstID) int64 { return int64(f.Tail(id, 0)) }

// ConstFloat returns a const of float type.
func (f *Function) ConstFloat(id InstID) float64 { return math.Float64frombits(f.Tail(id, 0)) }

// IsConst reports whether id is a const whose value is v.
func (f *Function) IsConst(id InstID, v int64) bool {
	in := f.Inst(id)

	return in.Kind == KindConst && in.Type.IsInt() && int64(in.payload[0]) == v
}

func (f *Function) ParamIndex(id InstID) int         { return int(f.Tail(id, 0)) }
func (f *Function) SymbolOf(id InstID) SymbolID      { return SymbolID(f.Tail(id, 0)) }
func (f *Function) StackItemOf(id InstID) *StackItem { return f.stackItem(int(f.Tail(id, 0))) }

// MemOperand returns the memory dependency of a load, store or call.
func (f *Function) MemOperand(id InstID) InstID {
	errors.Assert(f.Is(id, TraitMemory), "NOT_MEMORY", "%s has no memory operand", f.Info(id).Name)

	return f.Operand(id, 0)
}

// PhiEdges returns the predecessor blocks and incoming values of a phi.
func (f *Function) PhiEdges(id InstID) ([]*Block, []InstID) {
	errors.Assert(f.Inst(id).Kind == KindPhi, "NOT_PHI", "instruction %d is not a phi", id)

	vals := f.inputWords(id)
	preds := f.tailWords(id)
	bs := make([]*Block, len(preds))
	vs := make([]InstID, len(vals))

	for i := range preds {
		bs[i] = f.Block(int(preds[i]))
		vs[i] = InstID(vals[i])
	}

	return bs, vs
}

// UpsilonPhi returns the phi an upsilon writes to.
func (f *Function) UpsilonPhi(id InstID) InstID { return InstID(f.Tail(id, 0)) }
