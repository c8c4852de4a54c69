package ir

import (
	"github.com/orizon-lang/iris/internal/errors"
)

// First returns the first instruction of b, or NoInst when b is empty.
func (f *Function) First(b *Block) InstID {
	if n := f.Inst(b.bookend).next; n != b.bookend {
		return n
	}

	return NoInst
}

// LastInst returns the last instruction of b, or NoInst when b is empty.
func (f *Function) LastInst(b *Block) InstID {
	if p := f.Inst(b.bookend).prev; p != b.bookend {
		return p
	}

	return NoInst
}

// Terminator returns the terminator of b, or NoInst when b does not end with one.
func (f *Function) Terminator(b *Block) InstID {
	last := f.LastInst(b)
	if last != NoInst && f.Is(last, TraitTerminator) {
		return last
	}

	return NoInst
}

// Next returns the instruction after id in its block or chain.
func (f *Function) Next(id InstID) InstID {
	n := f.Inst(id).next
	if n == NoInst || f.Inst(n).Kind == KindBookend {
		return NoInst
	}

	return n
}

// Prev returns the instruction before id in its block or chain.
func (f *Function) Prev(id InstID) InstID {
	p := f.Inst(id).prev
	if p == NoInst || f.Inst(p).Kind == KindBookend {
		return NoInst
	}

	return p
}

// Insts snapshots the instructions of b in list order.
func (f *Function) Insts(b *Block) []InstID {
	var out []InstID
	for id := f.First(b); id != NoInst; id = f.Next(id) {
		out = append(out, id)
	}

	return out
}

func (f *Function) link(prev, id, next InstID) {
	in := f.Inst(id)
	errors.Assert(!in.Linked(), "ALREADY_LINKED", "instruction %d is already in a list", id)

	in.prev, in.next = prev, next
	f.Inst(prev).next = id
	f.Inst(next).prev = id
}

// Append adds id at the end of b. Nothing may follow a terminator.
func (f *Function) Append(b *Block, id InstID) {
	if last := f.LastInst(b); last != NoInst {
		errors.Assert(!f.Is(last, TraitTerminator), "APPEND_AFTER_TERMINATOR",
			"b%d already ends with %s", b.ID, f.Info(last).Name)
	}

	bk := f.Inst(b.bookend)
	f.link(bk.prev, id, b.bookend)
}

// InsertBefore links id in front of at. A terminator can never be inserted
// this way since something would follow it.
func (f *Function) InsertBefore(at, id InstID) {
	errors.Assert(!f.Is(id, TraitTerminator), "TERMINATOR_NOT_LAST",
		"%s inserted before another instruction", f.Info(id).Name)

	f.link(f.Inst(at).prev, id, at)
}

// InsertAfter links id behind at.
func (f *Function) InsertAfter(at, id InstID) {
	errors.Assert(!f.Is(at, TraitTerminator), "APPEND_AFTER_TERMINATOR",
		"instruction inserted after %s", f.Info(at).Name)

	next := f.Inst(at).next
	if f.Is(id, TraitTerminator) {
		errors.Assert(f.Inst(next).Kind == KindBookend, "TERMINATOR_NOT_LAST",
			"%s inserted before another instruction", f.Info(id).Name)
	}

	f.link(at, id, next)
}

// Remove unlinks id, leaving it free-floating. Operands and uses are untouched.
func (f *Function) Remove(id InstID) {
	in := f.Inst(id)
	if in.prev != NoInst {
		f.Inst(in.prev).next = in.next
	}

	if in.next != NoInst {
		f.Inst(in.next).prev = in.prev
	}

	in.prev, in.next = NoInst, NoInst
}

// Delete removes id, releases its operands and returns it to the pool.
func (f *Function) Delete(id InstID) {
	if f.Inst(id).Linked() {
		f.Remove(id)
	}

	w := f.inputWords(id)
	for i, x := range w {
		if x != 0 {
			f.Inst(InstID(x)).Uses--
			w[i] = 0
		}
	}

	f.Pool.Free(id)
}

// Chain is a free-floating instruction sequence, typically produced by
// instruction selection, waiting to be spliced into a block.
type Chain struct {
	Head, Tail InstID
	// Result is the instruction that stands in for the replaced one. It
	// defaults to Tail.
	Result InstID
}

// Empty reports whether the chain holds no instruction.
func (c *Chain) Empty() bool { return c.Head == NoInst }

// Append adds a free-floating instruction at the end of the chain.
func (c *Chain) Append(f *Function, id InstID) {
	in := f.Inst(id)
	errors.Assert(!in.Linked(), "ALREADY_LINKED", "instruction %d is already in a list", id)

	if c.Head == NoInst {
		c.Head, c.Tail = id, id
		return
	}

	f.Inst(c.Tail).next = id
	in.prev = c.Tail
	c.Tail = id
}

// Insts lists the chain members.
func (c *Chain) Insts(f *Function) []InstID {
	var out []InstID
	for id := c.Head; id != NoInst; id = f.Inst(id).next {
		out = append(out, id)
	}

	return out
}

// Replace splices chain in place of old. old ends up free-floating; the
// caller decides whether to Delete it. A terminator must be replaced by a
// chain ending in a terminator and vice versa.
func (f *Function) Replace(old InstID, c Chain) {
	errors.Assert(!c.Empty(), "EMPTY_CHAIN", "replacing instruction %d with an empty chain", old)
	errors.Assert(f.Is(old, TraitTerminator) == f.Is(c.Tail, TraitTerminator), "TERMINATOR_MISMATCH",
		"%s replaced by a chain ending in %s", f.Info(old).Name, f.Info(c.Tail).Name)

	o := f.Inst(old)
	prev, next := o.prev, o.next

	f.Inst(prev).next = c.Head
	f.Inst(c.Head).prev = prev
	f.Inst(c.Tail).next = next
	f.Inst(next).prev = c.Tail

	o.prev, o.next = NoInst, NoInst
}

// ReplaceAllUses rewires every operand referring to old so that it refers
// to repl instead, and returns how many operands changed.
func (f *Function) ReplaceAllUses(old, repl InstID) int {
	n := 0

	for b := f.Entry; b != nil; b = b.Next {
		for id := f.First(b); id != NoInst; id = f.Next(id) {
			w := f.inputWords(id)
			for i, x := range w {
				if InstID(x) == old {
					f.SetOperand(id, i, repl)
					n++
				}
			}
		}
	}

	return n
}

// RecountUses recomputes every use count from the operands in the blocks.
func (f *Function) RecountUses() {
	for b := f.Entry; b != nil; b = b.Next {
		for id := f.First(b); id != NoInst; id = f.Next(id) {
			f.Inst(id).Uses = 0
		}
	}

	for b := f.Entry; b != nil; b = b.Next {
		for id := f.First(b); id != NoInst; id = f.Next(id) {
			for _, x := range f.inputWords(id) {
				if x != 0 {
					f.Inst(InstID(x)).Uses++
				}
			}
		}
	}
}
