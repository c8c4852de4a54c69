package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/containerd/log"
	"github.com/spf13/cobra"

	"github.com/orizon-lang/iris/internal/codegen"
	"github.com/orizon-lang/iris/internal/config"
	"github.com/orizon-lang/iris/internal/errors"
	"github.com/orizon-lang/iris/internal/samples"
	"github.com/orizon-lang/iris/internal/target"
	"github.com/orizon-lang/iris/internal/watch"
)

type compileOptions struct {
	root *rootOptions

	target      string
	version     string
	samples     []string
	passes      []string
	noOpt       bool
	parallelism int
	dumpIR      bool
	output      string
	watch       bool
}

func newCompileCommand(root *rootOptions) *cobra.Command {
	opts := compileOptions{root: root}

	cmd := &cobra.Command{
		Use:   "compile [OPTIONS]",
		Short: "Compile sample programs to assembler text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd.Context(), cmd.OutOrStdout(), cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.target, "target", "t", "", "Target as arch-system, overrides the configuration")
	flags.StringVar(&opts.version, "backend-version", "", "Semver constraint on the backend version")
	flags.StringSliceVarP(&opts.samples, "sample", "s", nil, "Samples to compile (default all)")
	flags.StringSliceVar(&opts.passes, "passes", nil, "Optimization passes in order")
	flags.BoolVar(&opts.noOpt, "no-opt", false, "Skip optimization")
	flags.IntVarP(&opts.parallelism, "parallelism", "j", 0, "Functions compiled concurrently (0 means unbounded)")
	flags.BoolVar(&opts.dumpIR, "dump-ir", false, "Print optimized IR and register assignments")
	flags.StringVarP(&opts.output, "output", "o", "", "Write assembler text to a file instead of stdout")
	flags.BoolVarP(&opts.watch, "watch", "w", false, "Recompile whenever the configuration file changes")

	return cmd
}

// loadConfig applies the command line on top of the configuration file.
func loadConfig(cmd *cobra.Command, opts compileOptions) (*config.Config, error) {
	cfg := config.Default()

	if opts.root.config != "" {
		var err error
		if cfg, err = config.Load(opts.root.config); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("target") {
		cfg.Target.Name = opts.target
	}

	if flags.Changed("backend-version") {
		cfg.Target.Version = opts.version
	}

	if flags.Changed("passes") {
		cfg.Optimize.Passes = opts.passes
	}

	if opts.noOpt {
		cfg.Optimize.Passes = []string{}
	}

	if flags.Changed("parallelism") {
		cfg.Codegen.Parallelism = opts.parallelism
	}

	if opts.dumpIR {
		cfg.Codegen.DumpIR = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if opts.root.logLevel == "" {
		if err := log.SetLevel(cfg.Log.Level); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func runCompile(ctx context.Context, stdout io.Writer, cmd *cobra.Command, opts compileOptions) error {
	once := func(ctx context.Context) error {
		cfg, err := loadConfig(cmd, opts)
		if err != nil {
			return err
		}

		return compileOnce(ctx, stdout, cfg, opts)
	}

	if !opts.watch {
		return once(ctx)
	}

	if opts.root.config == "" {
		return errors.InvalidConfig("watch", "--watch needs --config")
	}

	return watch.Run(ctx, opts.root.config, 200*time.Millisecond, once)
}

func compileOnce(ctx context.Context, stdout io.Writer, cfg *config.Config, opts compileOptions) (err error) {
	defer errors.Recover(&err)

	tg, err := cfg.ParsedTarget()
	if err != nil {
		return err
	}

	be, ver, err := target.Default.Lookup(tg, cfg.Target.Version)
	if err != nil {
		return err
	}

	names := opts.samples
	if len(names) == 0 {
		for _, s := range samples.All() {
			names = append(names, s.Name)
		}
	}

	m, err := samples.Module(tg, be.Kinds(), names...)
	if err != nil {
		return err
	}

	log.G(ctx).WithFields(log.Fields{"target": tg.String(), "backend": ver.String(), "funcs": len(m.Funcs)}).
		Debug("compiling")

	res, err := codegen.CompileModule(ctx, m, be, codegen.Options{
		Passes:      cfg.Optimize.Passes,
		Parallelism: cfg.Codegen.Parallelism,
		Verify:      cfg.Codegen.Verify,
		DumpIR:      cfg.Codegen.DumpIR,
	})
	if err != nil {
		return err
	}

	out := stdout
	if opts.output != "" {
		f, cerr := os.Create(opts.output)
		if cerr != nil {
			return errors.Wrap(cerr, "output")
		}

		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = errors.Wrap(cerr, "output")
			}
		}()

		out = f
	}

	if cfg.Codegen.DumpIR {
		for _, fr := range res.Funcs {
			fmt.Fprintf(stdout, "; %s changes %v\n%s", fr.Name, fr.Changes, fr.IR)
			fmt.Fprintf(stdout, "; %s registers\n%s\n", fr.Name, fr.Allocation)
		}
	}

	if _, err := io.WriteString(out, res.Asm()); err != nil {
		return errors.Wrap(err, "output")
	}

	return nil
}
