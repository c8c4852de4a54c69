// Package codegen lowers verified IR functions to assembler text through a
// fixed sequence of stages: phi lowering, instruction selection, late
// cleanup, virtual register assignment, register allocation and final
// touchups.
//
// The first stage also moves every parameter read to the head of the entry
// block, ahead of any division, variable shift or call that overwrites an
// argument register.
package codegen

import (
	"context"
	"io"

	"github.com/containerd/log"

	"github.com/orizon-lang/iris/internal/codegen/regalloc"
	"github.com/orizon-lang/iris/internal/errors"
	"github.com/orizon-lang/iris/internal/ir"
	"github.com/orizon-lang/iris/internal/opt"
	"github.com/orizon-lang/iris/internal/target"
)

// Stage identifies one step of Run. Each stage requires all earlier ones.
type Stage uint8

const (
	StageLowerPhis Stage = iota
	StageOrdinals
	StageIsel
	StageCleanup
	StageVRegs
	StageRegalloc
	StageTouchups
	StageDone
)

var stageNames = [...]string{
	StageLowerPhis: "lower-phis",
	StageOrdinals:  "ordinals",
	StageIsel:      "isel",
	StageCleanup:   "cleanup",
	StageVRegs:     "vregs",
	StageRegalloc:  "regalloc",
	StageTouchups:  "touchups",
	StageDone:      "done",
}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}

	return "unknown"
}

// Run takes f through every codegen stage for be.
func Run(f *ir.Function, be target.Backend) error {
	return RunContext(context.Background(), f, be)
}

// RunContext is Run with a context for logging and cancellation between
// stages.
func RunContext(ctx context.Context, f *ir.Function, be target.Backend) error {
	logger := log.G(ctx).WithField("func", f.Name)

	for s := StageLowerPhis; s < StageDone; s++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		logger.WithField("stage", s).Debug("codegen stage")

		if err := runStage(s, f, be); err != nil {
			return errors.Wrapf(err, "%s: stage %s", f.Name, s)
		}
	}

	return nil
}

func runStage(s Stage, f *ir.Function, be target.Backend) error {
	switch s {
	case StageLowerPhis:
		HoistParams(f)
		LowerPhis(f)
	case StageOrdinals:
		AssignOrdinals(f)
	case StageIsel:
		Select(f, be)
	case StageCleanup:
		be.PreRegallocOpt(f)
		opt.TDCE(f)
	case StageVRegs:
		return AssignVRegs(f, be)
	case StageRegalloc:
		return regalloc.Allocate(f, be)
	case StageTouchups:
		be.FinalTouchups(f)
	}

	return nil
}

// EmitMachineCode writes the assembler text of a function that went
// through Run.
func EmitMachineCode(f *ir.Function, be target.Backend, w io.Writer) error {
	return be.EmitAsm(f, w)
}

// HoistParams moves every parameter instruction to the head of the entry
// block, keeping their relative order. Parameters have no operands, so the
// move never breaks a definition-before-use order.
func HoistParams(f *ir.Function) {
	var params []ir.InstID

	for b := f.Entry; b != nil; b = b.Next {
		for id := f.First(b); id != ir.NoInst; id = f.Next(id) {
			if f.Inst(id).Kind == ir.KindParam {
				params = append(params, id)
			}
		}
	}

	at := f.First(f.Entry)
	for _, id := range params {
		if id == at {
			at = f.Next(at)
			continue
		}

		f.Remove(id)
		f.InsertBefore(at, id)
	}
}

// LowerPhis moves every phi input into an upsilon at the end of the
// corresponding predecessor and clears the phi's value operands. A value
// that is itself a phi of the same block is copied first, so that no
// upsilon overwrites a phi another upsilon still reads.
func LowerPhis(f *ir.Function) {
	type edge struct {
		pred *ir.Block
		phi  ir.InstID
		val  ir.InstID
	}

	for b := f.Entry; b != nil; b = b.Next {
		var edges []edge

		phis := make(map[ir.InstID]bool)

		for id := f.First(b); id != ir.NoInst; id = f.Next(id) {
			if f.Inst(id).Kind != ir.KindPhi {
				continue
			}

			phis[id] = true
			preds, vals := f.PhiEdges(id)

			for i := range preds {
				if vals[i] == ir.NoInst {
					continue
				}

				edges = append(edges, edge{preds[i], id, vals[i]})
				f.SetOperand(id, i, ir.NoInst)
			}
		}

		for i, e := range edges {
			if !phis[e.val] {
				continue
			}

			cp := f.NewUnary(ir.KindMove, f.Inst(e.val).Type, e.val)
			f.InsertBefore(f.Terminator(e.pred), cp)
			edges[i].val = cp
		}

		for _, e := range edges {
			f.InsertBefore(f.Terminator(e.pred), f.NewUpsilon(e.val, e.phi))
		}
	}
}

// AssignOrdinals numbers the instructions of f densely in list order.
func AssignOrdinals(f *ir.Function) {
	var n int32

	for b := f.Entry; b != nil; b = b.Next {
		for id := f.First(b); id != ir.NoInst; id = f.Next(id) {
			f.Inst(id).Scratch = n
			n++
		}
	}
}

// Select offers every instruction to the backend's instruction selector and
// splices the chains it returns in place of the originals.
func Select(f *ir.Function, be target.Backend) {
	for b := f.Entry; b != nil; b = b.Next {
		for id := f.First(b); id != ir.NoInst; {
			next := f.Next(id)

			if k := f.Inst(id).Kind; k == ir.KindPhi || f.Is(id, ir.TraitPseudo) {
				id = next
				continue
			}

			chain, ok := be.Isel(f, b, id)
			if ok {
				f.Replace(id, chain)

				res := chain.Result
				if res == ir.NoInst {
					res = chain.Tail
				}

				f.ReplaceAllUses(id, res)
				f.Delete(id)
			}

			id = next
		}
	}
}

// AssignVRegs gives a virtual register to every value-producing
// instruction lacking one. Upsilons share the register of their phi.
func AssignVRegs(f *ir.Function, be target.Backend) error {
	var upsilons []ir.InstID

	for b := f.Entry; b != nil; b = b.Next {
		for id := f.First(b); id != ir.NoInst; id = f.Next(id) {
			in := f.Inst(id)

			if in.Kind == ir.KindUpsilon {
				upsilons = append(upsilons, id)
				continue
			}

			if in.VReg != ir.NoVReg || !in.Type.HasValue() {
				continue
			}

			class := be.ChooseRegClass(in.Kind, in.Type)
			if class == ir.NoRegClass {
				return errors.Unimplemented(in.Type.String() + " values on " + be.Target().String())
			}

			in.VReg = f.VRegs.New(class, id, b)
		}
	}

	for _, id := range upsilons {
		phi := f.Inst(f.UpsilonPhi(id))
		errors.Assert(phi.Kind == ir.KindPhi && phi.VReg != ir.NoVReg, "ORPHAN_UPSILON",
			"upsilon %d writes to an instruction without a register", id)

		f.Inst(id).VReg = phi.VReg
	}

	return nil
}
