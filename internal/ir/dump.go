package ir

import (
	"fmt"
	"strconv"
	"strings"
)

func (m *Module) String() string {
	if m == nil {
		return "<nil-module>"
	}

	var b strings.Builder

	fmt.Fprintf(&b, "module %s target %s\n", m.Name, m.Target)

	for _, f := range m.Funcs {
		b.WriteByte('\n')
		b.WriteString(f.String())
	}

	return b.String()
}

// String prints the function in block list order. Operands are numbered
// by position in the listing, so the text is stable across pool layouts.
func (f *Function) String() string {
	if f == nil {
		return "<nil-func>"
	}

	p := printer{f: f, names: make(map[InstID]int)}

	n := 0
	for b := f.Entry; b != nil; b = b.Next {
		for id := f.First(b); id != NoInst; id = f.Next(id) {
			p.names[id] = n
			n++
		}
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "func %s%s {\n", f.Name, f.Sig)

	for b := f.Entry; b != nil; b = b.Next {
		fmt.Fprintf(&sb, "b%d:\n", b.ID)

		for id := f.First(b); id != NoInst; id = f.Next(id) {
			sb.WriteString("  ")
			sb.WriteString(p.inst(id))
			sb.WriteByte('\n')
		}
	}

	sb.WriteString("}\n")

	return sb.String()
}

// InstString renders one instruction with operands named by instruction ID.
func (f *Function) InstString(id InstID) string {
	return (&printer{f: f}).inst(id)
}

type printer struct {
	f     *Function
	names map[InstID]int
}

func (p *printer) ref(id InstID) string {
	if id == NoInst {
		return "_"
	}

	if p.names == nil {
		return "%" + strconv.Itoa(int(id))
	}

	if n, ok := p.names[id]; ok {
		return "%" + strconv.Itoa(n)
	}

	return "%?" + strconv.Itoa(int(id))
}

func (p *printer) mem(id InstID) string {
	if id == NoInst {
		return "entry"
	}

	return p.ref(id)
}

func (p *printer) refs(ids []InstID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = p.ref(id)
	}

	return strings.Join(parts, ", ")
}

func (p *printer) inst(id InstID) string {
	f := p.f
	in := f.Inst(id)
	info := f.Pool.kinds.Info(in.Kind)

	var b strings.Builder

	if in.Type.HasValue() {
		fmt.Fprintf(&b, "%s = %s.%s", p.ref(id), info.Name, in.Type)
	} else {
		b.WriteString(info.Name)
	}

	ops := make([]InstID, 0, len(in.payload))
	for _, w := range f.inputWords(id) {
		ops = append(ops, InstID(w))
	}

	switch in.Kind {
	case KindParam:
		fmt.Fprintf(&b, " %d", f.ParamIndex(id))
	case KindConst:
		if in.Type.IsFloat() {
			fmt.Fprintf(&b, " %g", f.ConstFloat(id))
		} else {
			fmt.Fprintf(&b, " %d", f.ConstValue(id))
		}
	case KindSymbol:
		fmt.Fprintf(&b, " @%s", p.symbol(f.SymbolOf(id)))
	case KindStackAddr:
		s := f.StackItemOf(id)
		fmt.Fprintf(&b, " $%d", s.ID)

		if s.Name != "" {
			fmt.Fprintf(&b, " (%s)", s.Name)
		}
	case KindLoad:
		fmt.Fprintf(&b, " [%s] mem %s", p.ref(ops[1]), p.mem(ops[0]))
	case KindStore:
		fmt.Fprintf(&b, " [%s], %s mem %s", p.ref(ops[1]), p.ref(ops[2]), p.mem(ops[0]))
	case KindCall:
		fmt.Fprintf(&b, " %s(%s) mem %s", p.ref(ops[1]), p.refs(ops[2:]), p.mem(ops[0]))
	case KindCallDirect:
		fmt.Fprintf(&b, " @%s(%s) mem %s", p.symbol(SymbolID(f.Tail(id, 0))), p.refs(ops[1:]), p.mem(ops[0]))
	case KindPhi:
		preds, vals := f.PhiEdges(id)
		for i := range preds {
			if i > 0 {
				b.WriteByte(',')
			}

			fmt.Fprintf(&b, " [b%d %s]", preds[i].ID, p.ref(vals[i]))
		}
	case KindUpsilon:
		fmt.Fprintf(&b, " %s -> %s", p.ref(ops[0]), p.ref(f.UpsilonPhi(id)))
	default:
		if len(ops) > 0 {
			b.WriteByte(' ')
			b.WriteString(p.refs(ops))
		}

		for i, w := range f.tailWords(id) {
			if i > 0 || len(ops) > 0 {
				b.WriteByte(',')
			}

			if info.Traits.Has(TraitBranch) {
				fmt.Fprintf(&b, " b%d", w)
			} else {
				fmt.Fprintf(&b, " #%d", int64(w))
			}
		}
	}

	if in.VReg != NoVReg && f.VRegs != nil {
		v := f.VRegs.Get(in.VReg)
		if v.Assigned() {
			fmt.Fprintf(&b, "  ; v%d:r%d", in.VReg, v.Reg)
		} else {
			fmt.Fprintf(&b, "  ; v%d", in.VReg)
		}
	}

	return b.String()
}

func (p *printer) symbol(id SymbolID) string {
	if p.f.Module == nil {
		return "sym" + strconv.Itoa(int(id))
	}

	return p.f.Module.SymbolInfo(id).Name
}
