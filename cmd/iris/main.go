// Command iris compiles the built-in sample programs with the registered
// backends and prints IR, allocations and assembler text.
package main

import (
	"context"
	"os"

	"github.com/containerd/log"
	"github.com/spf13/cobra"

	"github.com/orizon-lang/iris/internal/errors"
	_ "github.com/orizon-lang/iris/internal/target/x64"
	_ "github.com/orizon-lang/iris/internal/target/xr17032"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

type rootOptions struct {
	config   string
	logLevel string
}

func newRootCommand() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:           "iris",
		Short:         "Compiler back end driver",
		Version:       version + " (" + commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.logLevel == "" {
				return nil
			}

			return log.SetLevel(opts.logLevel)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.config, "config", "c", "", "TOML configuration file")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level, overrides the configuration")

	cmd.AddCommand(
		newCompileCommand(&opts),
		newTargetsCommand(),
		newSamplesCommand(),
	)

	return cmd
}

func run(ctx context.Context, args []string) (err error) {
	defer errors.Recover(&err)

	cmd := newRootCommand()
	cmd.SetArgs(args)

	return cmd.ExecuteContext(ctx)
}

func main() {
	stop := errors.InstallSignalHandler()
	defer stop()

	if err := run(context.Background(), os.Args[1:]); err != nil {
		if cat, ok := errors.Category(err); ok && cat == errors.CategoryInvariant {
			errors.Fatal(err)
		}

		log.L.WithError(err).Error("iris failed")
		os.Exit(1)
	}
}
