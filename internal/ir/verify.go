package ir

import (
	"sort"

	"github.com/orizon-lang/iris/internal/errors"
)

// Verify checks the structural invariants of f: intact circular lists,
// exactly one terminator per block in last position, operands that refer
// to live instructions and use counts that match the operands.
func (f *Function) Verify() error {
	uses := make(map[InstID]int32)
	seen := make(map[InstID]*Block)

	for b := f.Entry; b != nil; b = b.Next {
		bk := f.Inst(b.bookend)
		if bk.Kind != KindBookend {
			return errors.Invariant("BAD_BOOKEND", "b%d sentinel has kind %s", b.ID, f.Pool.kinds.Name(bk.Kind))
		}

		if f.Terminator(b) == NoInst {
			return errors.Invariant("MISSING_TERMINATOR", "b%d does not end with a terminator", b.ID)
		}

		prev := b.bookend
		for id := f.First(b); id != NoInst; id = f.Next(id) {
			in := f.Inst(id)
			if in.prev != prev {
				return errors.Invariant("BROKEN_LIST", "b%d: back link of %d is %d, want %d", b.ID, id, in.prev, prev)
			}

			if in.freed || in.Kind == KindInvalid {
				return errors.Invariant("FREED_IN_LIST", "b%d holds freed instruction %d", b.ID, id)
			}

			if other, ok := seen[id]; ok {
				return errors.Invariant("SHARED_INST", "instruction %d is in b%d and b%d", id, other.ID, b.ID)
			}

			seen[id] = b

			if f.Is(id, TraitTerminator) && f.Next(id) != NoInst {
				return errors.Invariant("TERMINATOR_NOT_LAST", "b%d: %s is followed by another instruction",
					b.ID, f.Info(id).Name)
			}

			for _, op := range f.Inputs(id) {
				if f.Inst(op).freed {
					return errors.Invariant("DANGLING_OPERAND", "b%d: %s uses freed instruction %d",
						b.ID, f.Info(id).Name, op)
				}

				uses[op]++
			}

			prev = id
		}

		if bk.prev != prev {
			return errors.Invariant("BROKEN_LIST", "b%d: tail link is %d, want %d", b.ID, bk.prev, prev)
		}
	}

	ids := make([]InstID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if got, want := f.Inst(id).Uses, uses[id]; got != want {
			return errors.Invariant("USE_COUNT", "instruction %d has use count %d, operands say %d", id, got, want)
		}
	}

	return nil
}
