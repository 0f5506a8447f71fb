package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/thirteen37/ngxconf/internal/format"
	"github.com/thirteen37/ngxconf/internal/path"
	"github.com/thirteen37/ngxconf/internal/render"
	"github.com/thirteen37/ngxconf/internal/script"
)

type initOpts struct {
	from     string
	output   string
	context  string
	format   string
	indent   string
	blocks   []string
	header   []string
	strip    bool
	force    bool
	shebang  string
	fileMode os.FileMode
}

func newInitCmd(root *rootOpts, logger *logrus.Logger) *cobra.Command {
	opts := &initOpts{shebang: "#!/usr/bin/env ngxconf", fileMode: 0o755}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a self-rendering script from a configuration tree",
		Long: `Create an executable script that renders itself to nginx syntax.

The script holds the ngxconf directives (version, context, format, indent,
blocks) followed by the configuration tree read from --from. Running the
script prints the rendered configuration; when the current file is piped
to it, marked hand-edited regions are kept.`,
		Example: `  ngxconf init --from site.yaml -o site.conf.ngx --context server
  ngxconf init --from nginx.json -o nginx.conf.ngx --header "Managed by ngxconf"`,
		Args: userArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.from == "" || opts.output == "" {
				return &render.UserError{Err: errors.New("--from and --output are required")}
			}
			if _, err := loadConfig(cmd, root, logger); err != nil {
				return err
			}

			content, err := opts.script()
			if err != nil {
				return err
			}
			// The script must parse back and render before it is written.
			s, err := script.Parse(content)
			if err != nil {
				return &render.UserError{Err: errors.Wrapf(err, "generated script is invalid")}
			}
			if _, err := render.RenderScript(s, render.Options{}, logger); err != nil {
				return err
			}

			if !opts.force {
				if _, err := os.Stat(opts.output); err == nil {
					return &render.UserError{Err: errors.Errorf("%s already exists, use --force to overwrite", opts.output)}
				}
			}
			if dir := filepath.Dir(opts.output); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return errors.Wrapf(err, "failed to create directory %s", dir)
				}
			}
			if err := os.WriteFile(opts.output, []byte(content), opts.fileMode); err != nil {
				return errors.Wrapf(err, "failed to write script")
			}
			// WriteFile keeps the mode of an existing file.
			if err := os.Chmod(opts.output, opts.fileMode); err != nil {
				return errors.Wrapf(err, "failed to make script executable")
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", opts.output)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.from, "from", "", "configuration tree to embed (required)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "script file to create (required)")
	cmd.Flags().StringVarP(&opts.context, "context", "c", "", "context the tree is the body of")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "format of --from, detected from the file name by default")
	cmd.Flags().StringVar(&opts.indent, "indent", "", `indentation: a number of spaces, "tab", or a literal string`)
	cmd.Flags().StringArrayVar(&opts.blocks, "block", nil, "slash path of an additional parameterless block (can specify multiple)")
	cmd.Flags().StringArrayVar(&opts.header, "header", nil, "comment line copied to the rendered output (can specify multiple)")
	cmd.Flags().BoolVar(&opts.strip, "strip-comments", false, "strip // comments from a JSON body")
	cmd.Flags().BoolVar(&opts.force, "force", false, "overwrite an existing script")
	return cmd
}

// script builds the script text.
func (o *initOpts) script() (string, error) {
	data, err := os.ReadFile(expandPath(o.from))
	if err != nil {
		return "", &render.UserError{Err: errors.Wrapf(err, "failed to read %s", o.from)}
	}
	body := strings.TrimSpace(string(data))
	if body == "" {
		return "", &render.UserError{Err: errors.Errorf("%s is empty", o.from)}
	}

	formatName := o.format
	if formatName == "" {
		detected, ok := format.Detect(o.from)
		if !ok {
			return "", &render.UserError{Err: errors.Errorf("cannot detect the format of %s, use --format", o.from)}
		}
		formatName = detected
	}
	if formatName, err = format.Normalize(formatName); err != nil {
		return "", &render.UserError{Err: err}
	}

	var sb strings.Builder
	sb.WriteString(o.shebang + "\n")
	fmt.Fprintf(&sb, "# version %d\n", script.CurrentVersion)
	if o.context != "" {
		p, err := path.Parse(o.context)
		if err != nil {
			return "", &render.UserError{Err: errors.Wrapf(err, "invalid context %q", o.context)}
		}
		fmt.Fprintf(&sb, "# context %s\n", p)
	}
	fmt.Fprintf(&sb, "# format %s\n", formatName)
	if o.indent != "" {
		fmt.Fprintf(&sb, "# indent %s\n", o.indent)
	}
	if o.strip {
		sb.WriteString("# strip-comments true\n")
	}
	for _, b := range o.blocks {
		fmt.Fprintf(&sb, "# block %s\n", strings.Trim(b, path.Separator))
	}
	for _, h := range o.header {
		sb.WriteString(strings.TrimRight("# "+h, " ") + "\n")
	}
	sb.WriteString(script.Separator + "\n")
	sb.WriteString(body + "\n")
	return sb.String(), nil
}

// expandPath expands ~ to the home directory.
func expandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, p[2:])
	}
	return p
}
