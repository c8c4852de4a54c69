package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/orizon-lang/iris/internal/samples"
	"github.com/orizon-lang/iris/internal/target"
)

func newTargetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "targets",
		Short: "List registered backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ARCH\tVERSION\tSYSTEMS")

			for _, e := range target.Default.Entries() {
				systems := make([]string, len(e.Systems))
				for i, s := range e.Systems {
					systems[i] = string(s)
				}

				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Arch, e.Version, strings.Join(systems, ","))
			}

			return w.Flush()
		},
	}
}

func newSamplesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "samples",
		Short: "List the built-in sample programs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, s := range samples.All() {
				fmt.Fprintf(w, "%s\t%s\n", s.Name, s.Doc)
			}

			return w.Flush()
		},
	}
}
