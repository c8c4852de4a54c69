package codegen

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/containerd/log"
	"golang.org/x/sync/errgroup"

	"github.com/orizon-lang/iris/internal/codegen/regalloc"
	"github.com/orizon-lang/iris/internal/errors"
	"github.com/orizon-lang/iris/internal/ir"
	"github.com/orizon-lang/iris/internal/opt"
	"github.com/orizon-lang/iris/internal/target"
)

// Options controls CompileModule.
type Options struct {
	// Passes run before codegen, by name. Nil means opt.DefaultSequence;
	// an empty non-nil slice disables optimization.
	Passes []string
	// Parallelism bounds the number of concurrently compiled function
	// groups. Zero or less means unbounded.
	Parallelism int
	// Verify checks every function before and after optimization.
	Verify bool
	// DumpIR keeps the optimized IR and the allocation of each function.
	DumpIR bool
}

// FuncResult is the output for one function.
type FuncResult struct {
	Name string
	// IR is the optimized IR before codegen, when Options.DumpIR is set.
	IR string
	// Allocation lists the register of each virtual register, when
	// Options.DumpIR is set.
	Allocation string
	Asm        string
	// Changes counts instructions touched per optimization pass.
	Changes map[string]int
}

// Result is the output of CompileModule, in module function order.
type Result struct {
	Module string
	Target ir.Target
	Funcs  []FuncResult
}

// Asm concatenates the assembler text of every function.
func (r *Result) Asm() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "; module %s target %s\n", r.Module, r.Target)

	for _, fr := range r.Funcs {
		sb.WriteString(fr.Asm)
	}

	return sb.String()
}

// groups partitions fns so that functions sharing a pool or a virtual
// register buffer end up in the same group. Groups are ordered by their
// first function and list their members in module order.
func groups(fns []*ir.Function) [][]int {
	parent := make([]int, len(fns))
	for i := range parent {
		parent[i] = i
	}

	var find func(i int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}

		return parent[i]
	}

	union := func(i, j int) {
		ri, rj := find(i), find(j)
		if ri > rj {
			ri, rj = rj, ri
		}

		parent[rj] = ri
	}

	byPool := make(map[*ir.Pool]int)
	byVRegs := make(map[*ir.VRegs]int)

	for i, f := range fns {
		if j, ok := byPool[f.Pool]; ok {
			union(i, j)
		} else {
			byPool[f.Pool] = i
		}

		if j, ok := byVRegs[f.VRegs]; ok {
			union(i, j)
		} else {
			byVRegs[f.VRegs] = i
		}
	}

	var out [][]int

	slot := make(map[int]int)

	for i := range fns {
		r := find(i)

		g, ok := slot[r]
		if !ok {
			g = len(out)
			slot[r] = g
			out = append(out, nil)
		}

		out[g] = append(out[g], i)
	}

	return out
}

// CompileModule optimizes and compiles every function of m. Functions
// that share allocation state are compiled one after another on the same
// goroutine; independent groups run concurrently.
func CompileModule(ctx context.Context, m *ir.Module, be target.Backend, opts Options) (*Result, error) {
	if m.Target != be.Target() {
		return nil, errors.UnsupportedTarget(string(m.Target.Arch), string(m.Target.System),
			"backend built for "+be.Target().String())
	}

	passes := opts.Passes
	if passes == nil {
		passes = opt.DefaultSequence
	}

	res := &Result{Module: m.Name, Target: m.Target, Funcs: make([]FuncResult, len(m.Funcs))}

	g, ctx := errgroup.WithContext(ctx)
	if opts.Parallelism > 0 {
		g.SetLimit(opts.Parallelism)
	}

	for _, grp := range groups(m.Funcs) {
		grp := grp

		g.Go(func() error {
			for _, i := range grp {
				if err := compileFunc(ctx, m.Funcs[i], be, passes, opts, &res.Funcs[i]); err != nil {
					return err
				}
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return res, nil
}

func compileFunc(ctx context.Context, f *ir.Function, be target.Backend, passes []string, opts Options, out *FuncResult) (err error) {
	defer errors.Recover(&err)

	logger := log.G(ctx).WithFields(log.Fields{"func": f.Name, "target": be.Target().String()})
	out.Name = f.Name

	if opts.Verify {
		if err := f.Verify(); err != nil {
			return errors.Wrapf(err, "%s: malformed input", f.Name)
		}
	}

	if out.Changes, err = opt.Run(f, passes); err != nil {
		return err
	}

	logger.WithField("changes", out.Changes).Debug("optimized")

	if opts.Verify {
		if err := f.Verify(); err != nil {
			return errors.Wrapf(err, "%s: after optimization", f.Name)
		}
	}

	if opts.DumpIR {
		out.IR = f.String()
	}

	if err := RunContext(ctx, f, be); err != nil {
		return err
	}

	if opts.DumpIR {
		out.Allocation = regalloc.Summary(f, be)
	}

	var buf bytes.Buffer
	if err := EmitMachineCode(f, be, &buf); err != nil {
		return err
	}

	out.Asm = buf.String()
	logger.WithField("bytes", buf.Len()).Debug("emitted")

	return nil
}
