// Package render turns configuration trees read from files into nginx
// configuration text.
package render

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/iancoleman/orderedmap"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/thirteen37/ngxconf/internal/directive"
	"github.com/thirteen37/ngxconf/internal/format"
	"github.com/thirteen37/ngxconf/internal/format/ini"
	"github.com/thirteen37/ngxconf/internal/format/json"
	"github.com/thirteen37/ngxconf/internal/format/toml"
	"github.com/thirteen37/ngxconf/internal/format/yaml"
	"github.com/thirteen37/ngxconf/internal/merge"
	"github.com/thirteen37/ngxconf/internal/path"
	"github.com/thirteen37/ngxconf/internal/preserve"
	"github.com/thirteen37/ngxconf/internal/script"
	"github.com/thirteen37/ngxconf/internal/stringify"
	"github.com/thirteen37/ngxconf/internal/transform"
	"github.com/thirteen37/ngxconf/internal/tree"
)

// Stdin is the file name that reads standard input.
const Stdin = "-"

// Options configures a Renderer.
type Options struct {
	// Context is the context the input tree is the body of. Defaults to main.
	Context path.Path

	// Format forces the input format. Empty means detect from the file name.
	Format string

	// StripComments removes // comments from JSON input.
	StripComments bool

	Indentation stringify.Indentation

	// Blocks is the parameterless block set. The zero value means
	// directive.DefaultBlocks().
	Blocks *directive.BlockSet

	// Overlays are merged over the input in order.
	Overlays []string

	// Rules run over the merged tree.
	Rules []transform.Transformer

	// Header is written before the configuration, usually nginx comments.
	Header string
}

// Renderer reads, merges, rewrites and renders configuration trees.
type Renderer struct {
	Options Options
	Logger  logrus.FieldLogger

	// Stdin is read for the file name "-". Defaults to os.Stdin.
	Stdin io.Reader
}

// New creates a Renderer.
func New(opts Options, logger logrus.FieldLogger) *Renderer {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Renderer{Options: opts, Logger: logger, Stdin: os.Stdin}
}

// UserError is an error caused by the input or the invocation rather than
// by ngxconf itself.
type UserError struct {
	Err error
}

func (e *UserError) Error() string { return e.Err.Error() }
func (e *UserError) Unwrap() error { return e.Err }

// IsUserError reports whether err was caused by bad input: malformed files,
// unsupported formats or values that cannot be rendered.
func IsUserError(err error) bool {
	var userErr *UserError
	var inputErr *directive.InputError
	var parseErr *format.ParseError
	return errors.As(err, &userErr) ||
		errors.As(err, &inputErr) ||
		errors.As(err, &parseErr) ||
		errors.Is(err, stringify.ErrNotScalar)
}

// HandlerFor returns the handler of a format name or alias.
func HandlerFor(name string) (format.Handler, error) {
	normalized, err := format.Normalize(name)
	if err != nil {
		return nil, &UserError{Err: err}
	}
	switch normalized {
	case format.YAML:
		return yaml.New(), nil
	case format.TOML:
		return toml.New(), nil
	case format.INI:
		return ini.New(), nil
	default:
		return json.New(), nil
	}
}

// Context returns the context the input is the body of.
func (r *Renderer) Context() path.Path {
	if r.Options.Context.Len() == 0 {
		return path.Resolve(path.Main)
	}
	return r.Options.Context
}

// Classifier returns the classifier for the configured parameterless blocks.
func (r *Renderer) Classifier() directive.Classifier {
	if r.Options.Blocks != nil {
		return directive.NewClassifier(*r.Options.Blocks)
	}
	return directive.NewClassifier(directive.DefaultBlocks())
}

// formatOf returns the format to parse filename with.
func (r *Renderer) formatOf(filename string) (string, error) {
	if r.Options.Format != "" {
		return r.Options.Format, nil
	}
	if f, ok := format.Detect(filename); ok {
		return f, nil
	}
	if filename == Stdin {
		return format.JSON, nil
	}
	return "", &UserError{Err: errors.Errorf("cannot detect the format of %s, use --format", filename)}
}

// Files returns the input file and the overlays, for watching.
func (r *Renderer) Files(filename string) []string {
	files := make([]string, 0, len(r.Options.Overlays)+1)
	if filename != Stdin {
		files = append(files, filename)
	}
	return append(files, r.Options.Overlays...)
}

// Load reads and parses one file, or standard input for "-".
func (r *Renderer) Load(filename string) (*orderedmap.OrderedMap, error) {
	formatName, err := r.formatOf(filename)
	if err != nil {
		return nil, err
	}

	var data []byte
	if filename == Stdin {
		data, err = io.ReadAll(r.Stdin)
	} else {
		data, err = os.ReadFile(filename)
	}
	if err != nil {
		return nil, &UserError{Err: errors.Wrapf(err, "failed to read %s", filename)}
	}

	r.Logger.WithFields(logrus.Fields{"file": filename, "format": formatName}).Debug("loading input")
	t, err := r.Parse(data, formatName)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", filename)
	}
	return t, nil
}

// Parse parses data in the given format.
func (r *Renderer) Parse(data []byte, formatName string) (*orderedmap.OrderedMap, error) {
	handler, err := HandlerFor(formatName)
	if err != nil {
		return nil, err
	}
	t, err := handler.Parse(data, format.ParseOptions{StripComments: r.Options.StripComments})
	if err != nil {
		return nil, &UserError{Err: err}
	}
	return t, nil
}

// Tree loads filename, merges the overlays over it and applies the rules.
// A nil tree means a rule removed the whole context.
func (r *Renderer) Tree(filename string) (*orderedmap.OrderedMap, error) {
	base, err := r.Load(filename)
	if err != nil {
		return nil, err
	}
	return r.Process(base)
}

// Process merges the overlays over base and applies the rules.
func (r *Renderer) Process(base *orderedmap.OrderedMap) (*orderedmap.OrderedMap, error) {
	layers := make([]*orderedmap.OrderedMap, 0, len(r.Options.Overlays))
	for _, overlay := range r.Options.Overlays {
		t, err := r.Load(overlay)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load overlay")
		}
		layers = append(layers, t)
	}
	if len(layers) > 0 {
		base = merge.Merge(base, layers...)
		r.Logger.WithField("overlays", len(layers)).Debug("merged overlays")
	}

	if len(r.Options.Rules) == 0 {
		return base, nil
	}
	result, err := transform.Transform(r.Context(), base, r.Options.Rules, nil, transform.Options{Classifier: r.Classifier()})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to apply rules")
	}
	if result == nil {
		r.Logger.WithField("context", r.Context().String()).Warn("rules removed the whole context")
	}
	return result, nil
}

// Render renders filename with its overlays and rules to nginx text.
func (r *Renderer) Render(filename string) (string, error) {
	t, err := r.Tree(filename)
	if err != nil {
		return "", err
	}
	return r.Stringify(t)
}

// Stringify renders a processed tree with the header.
func (r *Renderer) Stringify(t *orderedmap.OrderedMap) (string, error) {
	text, err := stringify.Stringify(r.Context(), t, stringify.Options{
		Indentation: r.Options.Indentation,
		Classifier:  r.Classifier(),
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to render")
	}
	if r.Options.Header != "" {
		text = r.Options.Header + "\n" + text
	}
	return text, nil
}

// Convert re-serializes the processed tree of filename in another format.
func (r *Renderer) Convert(filename, to string) ([]byte, error) {
	handler, err := HandlerFor(to)
	if err != nil {
		return nil, err
	}
	t, err := r.Tree(filename)
	if err != nil {
		return nil, err
	}
	if t == nil {
		t = tree.New()
	}

	data, err := handler.Serialize(t, format.SerializeOptions{
		Indent:     r.Options.Indentation.String(),
		Classifier: r.Classifier(),
	})
	if err != nil {
		return nil, &UserError{Err: err}
	}
	return data, nil
}

// ScriptOptions returns opts with the settings of s applied: its context,
// format, indentation, comment stripping, header, and its blocks added to
// the parameterless set.
func ScriptOptions(s *script.Script, opts Options) Options {
	opts.Context = s.Context
	opts.Format = s.BodyFormat()
	opts.StripComments = s.StripComments
	if s.Indent != nil {
		opts.Indentation = *s.Indent
	}
	if len(s.Blocks) > 0 {
		blocks := directive.DefaultBlocks()
		if opts.Blocks != nil {
			blocks = *opts.Blocks
		}
		blocks = blocks.With(s.Blocks...)
		opts.Blocks = &blocks
	}
	opts.Header = s.Comment()
	return opts
}

// RenderScript renders the body of a parsed script. Settings from the
// script header override opts.
func RenderScript(s *script.Script, opts Options, logger logrus.FieldLogger) (string, error) {
	r := New(ScriptOptions(s, opts), logger)
	base, err := r.Parse([]byte(s.Body), r.Options.Format)
	if err != nil {
		return "", errors.Wrapf(err, "script body")
	}
	t, err := r.Process(base)
	if err != nil {
		return "", err
	}
	return r.Stringify(t)
}

// WriteOutput writes content with a trailing newline to filename, creating
// parent directories, or to stdout when filename is "" or "-". With
// keepRegions, marked hand-edited regions of an existing file survive.
func WriteOutput(filename, content string, keepRegions bool, stdout io.Writer) error {
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}

	if filename == "" || filename == Stdin {
		_, err := io.WriteString(stdout, content)
		return err
	}

	if keepRegions {
		current, err := os.ReadFile(filename)
		switch {
		case err == nil:
			content = preserve.Apply(content, string(current))
		case !os.IsNotExist(err):
			return errors.Wrapf(err, "failed to read %s", filename)
		}
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create directory %s", dir)
		}
	}
	if current, err := os.ReadFile(filename); err == nil && bytes.Equal(current, []byte(content)) {
		return nil
	}
	if err := os.WriteFile(filename, []byte(content), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", filename)
	}
	return nil
}
