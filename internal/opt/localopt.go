// Package opt holds the machine-independent peephole passes: load/store
// elimination, algebraic identities and trivial dead code elimination.
package opt

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/orizon-lang/iris/internal/ir"
)

// worklist is a LIFO of instructions that never holds a duplicate.
type worklist struct {
	stack   []ir.InstID
	members mapset.Set[ir.InstID]
}

func newWorklist() *worklist {
	return &worklist{members: mapset.NewThreadUnsafeSet[ir.InstID]()}
}

func (w *worklist) push(id ir.InstID) {
	if w.members.Add(id) {
		w.stack = append(w.stack, id)
	}
}

func (w *worklist) pop() (ir.InstID, bool) {
	if len(w.stack) == 0 {
		return ir.NoInst, false
	}

	id := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]
	w.members.Remove(id)

	return id, true
}

// users maps every instruction to the instructions naming it as operand.
// Entries go stale as rewrites happen; readers recheck the operands.
type users map[ir.InstID][]ir.InstID

func collectUsers(f *ir.Function) users {
	u := make(users)

	for b := f.Entry; b != nil; b = b.Next {
		for id := f.First(b); id != ir.NoInst; id = f.Next(id) {
			for i := 0; i < f.NumOperands(id); i++ {
				if op := f.Operand(id, i); op != ir.NoInst {
					u[op] = append(u[op], id)
				}
			}
		}
	}

	return u
}

// LocalOpt forwards stored values to loads that read them back and drops
// stores overwritten before anything observes them, until neither applies.
// It returns the number of deleted instructions.
func LocalOpt(f *ir.Function) int {
	f.RecountUses()

	u := collectUsers(f)
	w := newWorklist()
	dead := make(map[ir.InstID]bool)

	for b := f.Entry; b != nil; b = b.Next {
		for id := f.First(b); id != ir.NoInst; id = f.Next(id) {
			w.push(id)
		}
	}

	removed := 0

	for {
		id, ok := w.pop()
		if !ok {
			break
		}

		if dead[id] {
			continue
		}

		switch f.Inst(id).Kind {
		case ir.KindLoad:
			st := f.MemOperand(id)
			if !forwardable(f, id, st) {
				continue
			}

			val := f.Operand(st, 2)
			for _, user := range u[id] {
				if !dead[user] {
					u[val] = append(u[val], user)
				}
			}

			f.ReplaceAllUses(id, val)
			f.Delete(id)
			dead[id] = true
			removed++

			w.push(st)

			for _, user := range u[st] {
				if !dead[user] {
					w.push(user)
				}
			}

		case ir.KindStore:
			prev := f.MemOperand(id)
			if !overwritten(f, prev, id) {
				continue
			}

			f.SetOperand(id, 0, f.MemOperand(prev))
			if pm := f.MemOperand(id); pm != ir.NoInst {
				u[pm] = append(u[pm], id)
			}

			f.Delete(prev)
			dead[prev] = true
			removed++

			w.push(id)
		}
	}

	return removed
}

// forwardable reports whether load reads back exactly what st wrote.
func forwardable(f *ir.Function, load, st ir.InstID) bool {
	if st == ir.NoInst || f.Inst(st).Kind != ir.KindStore {
		return false
	}

	if f.Operand(st, 1) != f.Operand(load, 1) {
		return false
	}

	return f.Inst(f.Operand(st, 2)).Type == f.Inst(load).Type
}

// overwritten reports whether prev is a store that later fully replaces
// and that nothing else depends on.
func overwritten(f *ir.Function, prev, later ir.InstID) bool {
	if prev == ir.NoInst || f.Inst(prev).Kind != ir.KindStore || f.Inst(prev).Uses != 1 {
		return false
	}

	if f.Operand(prev, 1) != f.Operand(later, 1) {
		return false
	}

	return f.Inst(f.Operand(prev, 2)).Type.Size() <= f.Inst(f.Operand(later, 2)).Type.Size()
}
