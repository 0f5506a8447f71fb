package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/thirteen37/ngxconf/internal/inspect"
)

type inspectOpts struct {
	inputOpts
	depth int
}

func newInspectCmd(root *rootOpts, logger *logrus.Logger) *cobra.Command {
	opts := &inspectOpts{}
	cmd := &cobra.Command{
		Use:   "inspect [file]",
		Short: "List the directives of a configuration tree with their type",
		Long: `List every directive of the input after overlays and rules, with the
chain of blocks it sits in, its resolved type and its number of values
or instances.`,
		Example: `  ngxconf inspect nginx.yaml
  ngxconf inspect site.json -c server --depth 1`,
		Args: userArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.renderer(cmd, root, logger)
			if err != nil {
				return err
			}
			t, err := r.Tree(inputFile(args))
			if err != nil {
				return err
			}

			entries, err := inspect.Directives(r.Context(), t, inspect.Options{
				Classifier: r.Classifier(),
				Depth:      opts.depth,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No directives")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintln(out, e.String())
			}
			return nil
		},
	}
	opts.addFlags(cmd.Flags())
	cmd.Flags().IntVar(&opts.depth, "depth", 0, "number of block levels to list, 0 for all")
	return cmd
}
