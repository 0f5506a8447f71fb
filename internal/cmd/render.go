package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/thirteen37/ngxconf/internal/render"
	"github.com/thirteen37/ngxconf/internal/rules"
	"github.com/thirteen37/ngxconf/internal/stringify"
	"github.com/thirteen37/ngxconf/internal/watch"
)

// inputOpts are the flags shared by the commands that read an input tree.
type inputOpts struct {
	context       string
	format        string
	indent        string
	overlays      []string
	blocks        []string
	stripComments bool
}

func (o *inputOpts) addFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.context, "context", "c", "", "context the input is the body of: a short name (http), a path (main/http) or a JSON array")
	fs.StringVarP(&o.format, "format", "f", "", "input format (json, yaml, toml, ini), detected from the file name by default")
	fs.StringVar(&o.indent, "indent", "", `indentation: a number of spaces, "tab", or a literal string`)
	fs.StringArrayVar(&o.overlays, "overlay", nil, "file merged over the input (can specify multiple)")
	fs.StringArrayVar(&o.blocks, "block", nil, "slash path of an additional parameterless block, e.g. main/http/upstream (can specify multiple)")
	fs.BoolVar(&o.stripComments, "strip-comments", false, "strip // comments from JSON input")
}

// renderer builds a Renderer from the tool config and the flags.
func (o *inputOpts) renderer(cmd *cobra.Command, root *rootOpts, logger *logrus.Logger) (*render.Renderer, error) {
	cfg, err := loadConfig(cmd, root, logger)
	if err != nil {
		return nil, err
	}

	ctx, err := cfg.ContextPath()
	if err != nil {
		return nil, &render.UserError{Err: err}
	}
	ruleList, err := rules.FromConfig(cfg.Rules)
	if err != nil {
		return nil, &render.UserError{Err: errors.Wrapf(err, "invalid rules in tool config")}
	}
	blocks := cfg.Blocks().With(o.blocks...)

	opts := render.Options{
		Context:       ctx,
		Format:        cfg.Format,
		StripComments: o.stripComments,
		Blocks:        &blocks,
		Overlays:      o.overlays,
		Rules:         ruleList,
	}
	if cfg.Indent != "" {
		opts.Indentation = stringify.ParseIndentation(cfg.Indent)
	}

	logger.WithFields(logrus.Fields{
		"context": ctx.String(),
		"rules":   len(ruleList),
	}).Debug("renderer ready")

	r := render.New(opts, logger)
	r.Stdin = cmd.InOrStdin()
	return r, nil
}

// inputFile returns the input named in args, or "-" for stdin.
func inputFile(args []string) string {
	if len(args) == 0 {
		return render.Stdin
	}
	return args[0]
}

type renderOpts struct {
	inputOpts
	output   string
	watch    bool
	preserve bool
}

func newRenderCmd(root *rootOpts, logger *logrus.Logger) *cobra.Command {
	opts := &renderOpts{}
	cmd := &cobra.Command{
		Use:   "render [file]",
		Short: "Render a configuration tree to nginx syntax",
		Long: `Render a JSON, YAML, TOML or INI configuration tree to nginx syntax.

The input is read from file, or from stdin when file is omitted or "-".
Overlays are merged over it in order and the rules of the tool config
are applied before rendering.

When writing to a file, regions between "# ngxconf:ignored" and the next
marker in the existing file are kept.`,
		Example: `  ngxconf render nginx.yaml -o /etc/nginx/nginx.conf
  ngxconf render site.json -c server --indent 4
  ngxconf render base.yaml --overlay prod.yaml -o nginx.conf --watch`,
		Args: userArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, opts, root, logger, inputFile(args))
		},
	}
	opts.addFlags(cmd.Flags())
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default is stdout)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "render again whenever the input or an overlay changes")
	cmd.Flags().BoolVar(&opts.preserve, "preserve", true, "keep marked hand-edited regions of the output file")
	return cmd
}

func runRender(cmd *cobra.Command, opts *renderOpts, root *rootOpts, logger *logrus.Logger, file string) error {
	if opts.watch && file == render.Stdin {
		return &render.UserError{Err: errors.New("--watch needs an input file")}
	}

	r, err := opts.renderer(cmd, root, logger)
	if err != nil {
		return err
	}

	run := func() error {
		out, err := r.Render(file)
		if err != nil {
			return err
		}
		if err := render.WriteOutput(opts.output, out, opts.preserve, cmd.OutOrStdout()); err != nil {
			return err
		}
		if opts.output != "" {
			logger.WithField("file", opts.output).Debug("wrote output")
		}
		return nil
	}

	if !opts.watch {
		return run()
	}

	if err := run(); err != nil {
		logger.WithError(err).Error("render failed")
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return watch.Watch(ctx, r.Files(file), watch.DefaultDebounce, run, logger)
}
