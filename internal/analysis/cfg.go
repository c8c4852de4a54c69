// Package analysis derives control flow and liveness information from a
// function. Results are stored on the blocks and go stale after any
// structural change; rerun the analysis instead of patching them.
package analysis

import (
	"sort"

	"github.com/orizon-lang/iris/internal/errors"
	"github.com/orizon-lang/iris/internal/ir"
)

// Lister is the part of a backend the analyses depend on.
type Lister interface {
	ListInputs(f *ir.Function, id ir.InstID) []ir.InstID
	ListTargets(f *ir.Function, id ir.InstID) []*ir.Block
}

// CalculateCFG (re)builds the CFG node of every block and numbers the
// blocks reachable from the entry in reverse postorder.
func CalculateCFG(f *ir.Function, l Lister) {
	blocks := f.Blocks()
	succs := make([][]*ir.Block, f.NumBlocks())

	for _, b := range blocks {
		b.CFG = &ir.CFGNode{RPO: -1}
	}

	for _, b := range blocks {
		term := f.LastInst(b)
		errors.Assert(term != ir.NoInst, "MISSING_TERMINATOR", "b%d is empty", b.ID)

		out := l.ListTargets(f, term)
		succs[b.ID] = out
		b.CFG.Out = len(out)

		for _, s := range out {
			s.CFG.In++
		}
	}

	for _, b := range blocks {
		n := b.CFG
		n.Edges = make([]*ir.Block, n.In+n.Out)
		copy(n.Edges[n.In:], succs[b.ID])
	}

	for _, b := range blocks {
		for _, s := range b.CFG.Succs() {
			preds := s.CFG.Preds()
			slot := 0

			for slot < len(preds) && preds[slot] != nil {
				slot++
			}

			errors.Assert(slot < len(preds), "CFG_OVERFLOW", "b%d has more incoming edges than counted", s.ID)
			preds[slot] = b
		}
	}

	visited := make([]bool, f.NumBlocks())
	post := make([]*ir.Block, 0, len(blocks))

	var dfs func(b *ir.Block)
	dfs = func(b *ir.Block) {
		visited[b.ID] = true

		for _, s := range b.CFG.Succs() {
			if !visited[s.ID] {
				dfs(s)
			}
		}

		post = append(post, b)
	}

	dfs(f.Entry)

	for i, b := range post {
		b.CFG.RPO = len(post) - 1 - i
	}
}

// ReversePostorder returns the reachable blocks sorted by RPO number. The
// CFG must be current.
func ReversePostorder(f *ir.Function) []*ir.Block {
	var out []*ir.Block

	for b := f.Entry; b != nil; b = b.Next {
		errors.Assert(b.CFG != nil, "STALE_CFG", "b%d has no CFG node", b.ID)

		if b.CFG.RPO >= 0 {
			out = append(out, b)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CFG.RPO < out[j].CFG.RPO })

	return out
}

// Successors returns the outgoing edges of b in terminator order.
func Successors(b *ir.Block) []*ir.Block { return b.CFG.Succs() }

// Predecessors returns the incoming edges of b.
func Predecessors(b *ir.Block) []*ir.Block { return b.CFG.Preds() }
