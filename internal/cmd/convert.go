package cmd

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/thirteen37/ngxconf/internal/format"
	"github.com/thirteen37/ngxconf/internal/render"
)

type convertOpts struct {
	inputOpts
	to     string
	output string
}

func newConvertCmd(root *rootOpts, logger *logrus.Logger) *cobra.Command {
	opts := &convertOpts{}
	cmd := &cobra.Command{
		Use:   "convert [file]",
		Short: "Convert a configuration tree to another input format",
		Long: `Write the input, after overlays and rules, in another format.

INI output names nested blocks in section headers, e.g.
[http > server > location /api]. TOML cannot hold directives without
values; converting them to TOML fails.`,
		Example: `  ngxconf convert nginx.json --to yaml
  ngxconf convert nginx.yaml --to ini -o nginx.ini`,
		Args: userArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.to == "" {
				return &render.UserError{Err: errors.New("--to is required")}
			}
			r, err := opts.renderer(cmd, root, logger)
			if err != nil {
				return err
			}
			data, err := r.Convert(inputFile(args), opts.to)
			if err != nil {
				return err
			}
			return render.WriteOutput(opts.output, string(data), false, cmd.OutOrStdout())
		},
	}
	opts.addFlags(cmd.Flags())
	cmd.Flags().StringVar(&opts.to, "to", "", "output format: "+strings.Join(format.Names, ", ")+" (required)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default is stdout)")
	return cmd
}
