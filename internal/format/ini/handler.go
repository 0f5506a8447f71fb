// Package ini provides an INI format handler.
//
// Section headers name nested contexts, with " > " between levels:
//
//	user = nginx
//
//	[http]
//	sendfile = on
//
//	[http > server]
//	listen = 80
//
//	[http > server > location /api]
//	proxy_pass = http://backend
//
// The first word of a level is the block directive and the rest is its
// parameter. Keys before any section belong to the top context. A key given
// more than once is a repeated directive, and a key with an empty value is a
// directive without value. Repeating a header for a block without parameter
// starts a new instance of that block.
package ini

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/iancoleman/orderedmap"
	"gopkg.in/ini.v1"

	"github.com/thirteen37/ngxconf/internal/directive"
	"github.com/thirteen37/ngxconf/internal/format"
	"github.com/thirteen37/ngxconf/internal/path"
	"github.com/thirteen37/ngxconf/internal/stringify"
	"github.com/thirteen37/ngxconf/internal/traverse"
	"github.com/thirteen37/ngxconf/internal/tree"
)

// LevelSeparator separates context levels in section headers.
const LevelSeparator = ">"

var loadOptions = ini.LoadOptions{
	AllowShadows:               true,
	AllowNonUniqueSections:     true,
	SpaceBeforeInlineComment:   true,
	AllowDuplicateShadowValues: true,
}

// Handler implements format.Handler for INI files.
type Handler struct{}

// New creates a new INI handler.
func New() *Handler {
	return &Handler{}
}

// Parse reads INI bytes and returns the configuration tree. All values are
// strings, or nil for keys with an empty value.
func (h *Handler) Parse(data []byte, opts format.ParseOptions) (*orderedmap.OrderedMap, error) {
	if opts.StripComments {
		return nil, fmt.Errorf("strip-comments is not supported for INI format")
	}

	cfg, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse INI: %w", err)
	}

	b := &builder{root: tree.New(), headed: make(map[*orderedmap.OrderedMap]bool)}
	for _, section := range cfg.Sections() {
		ctx := b.root
		if section.Name() != ini.DefaultSection {
			if ctx, err = b.section(section.Name()); err != nil {
				return nil, fmt.Errorf("failed to parse INI: section [%s]: %w", section.Name(), err)
			}
		}

		for _, key := range section.Keys() {
			if err := setKey(ctx, key.Name(), key.ValueWithShadows()); err != nil {
				return nil, fmt.Errorf("failed to parse INI: section [%s]: %w", section.Name(), err)
			}
		}
	}

	return b.root, nil
}

// builder assembles contexts from section headers. headed records the
// contexts that already had a header of their own.
type builder struct {
	root   *orderedmap.OrderedMap
	headed map[*orderedmap.OrderedMap]bool
}

// section returns the context named by a section header.
func (b *builder) section(header string) (*orderedmap.OrderedMap, error) {
	levels := strings.Split(header, LevelSeparator)
	ctx := b.root
	for i, level := range levels {
		fields := strings.SplitN(strings.TrimSpace(level), " ", 2)
		name := fields[0]
		if name == "" {
			return nil, fmt.Errorf("empty context level %d", i+1)
		}
		var param string
		if len(fields) == 2 {
			param = strings.TrimSpace(fields[1])
		}

		next, err := b.enter(ctx, name, param, i == len(levels)-1)
		if err != nil {
			return nil, err
		}
		ctx = next
	}
	b.headed[ctx] = true
	return ctx, nil
}

// enter returns the context of block name (with param) inside parent,
// creating it if needed. For a block without parameter, last asks for a
// new instance when the latest one already had its own header.
func (b *builder) enter(parent *orderedmap.OrderedMap, name, param string, last bool) (*orderedmap.OrderedMap, error) {
	existing, ok := parent.Get(name)

	if param != "" {
		blocks := tree.AsMap(existing)
		if !ok {
			blocks = tree.New()
			parent.Set(name, blocks)
		} else if blocks == nil {
			return nil, fmt.Errorf("%q is not a block", name)
		}
		if v, ok := blocks.Get(param); ok {
			if ctx := tree.AsMap(v); ctx != nil {
				return ctx, nil
			}
			return nil, fmt.Errorf("%q %q is not a block", name, param)
		}
		ctx := tree.New()
		blocks.Set(param, ctx)
		return ctx, nil
	}

	if !ok {
		ctx := tree.New()
		parent.Set(name, ctx)
		return ctx, nil
	}

	var instances []any
	if m := tree.AsMap(existing); m != nil {
		instances = []any{m}
	} else if s, ok := existing.([]any); ok && len(s) > 0 {
		instances = s
	}
	latest := tree.AsMap(lastOf(instances))
	if latest == nil {
		return nil, fmt.Errorf("%q is not a block", name)
	}
	if !last || !b.headed[latest] {
		return latest, nil
	}

	ctx := tree.New()
	parent.Set(name, append(append([]any(nil), instances...), ctx))
	return ctx, nil
}

func lastOf(s []any) any {
	if len(s) == 0 {
		return nil
	}
	return s[len(s)-1]
}

// setKey stores the values of one key as a directive.
func setKey(ctx *orderedmap.OrderedMap, name string, values []string) error {
	if existing, ok := ctx.Get(name); ok && !tree.IsScalar(existing) && existing != nil {
		return fmt.Errorf("%q is already a block", name)
	}

	switch {
	case len(values) == 1 && values[0] == "":
		ctx.Set(name, nil)
	case len(values) == 1:
		ctx.Set(name, values[0])
	default:
		list := make([]any, len(values))
		for i, v := range values {
			list[i] = v
		}
		ctx.Set(name, list)
	}
	return nil
}

// Serialize writes the tree to INI bytes, one section per block instance.
// Simple directives in key-value form become repeated keys holding
// "key value". Block parameters containing brackets or the level separator
// cannot be written.
func (h *Handler) Serialize(t *orderedmap.OrderedMap, opts format.SerializeOptions) ([]byte, error) {
	if t == nil {
		t = tree.New()
	}

	w := &writer{file: ini.Empty(loadOptions)}
	visitor := traverse.Visitor{
		VisitSimple:  w.visitSimple,
		EnterContext: w.enterContext,
		LeaveContext: w.leaveContext,
	}
	if err := traverse.Traverse(path.New(path.Main), t, visitor, nil, traverse.Options{Classifier: opts.Classifier}); err != nil {
		return nil, fmt.Errorf("failed to serialize INI: %w", err)
	}

	var buf bytes.Buffer
	if _, err := w.file.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize INI: %w", err)
	}
	return buf.Bytes(), nil
}

// writer is the traversal state of Serialize. sections is the stack of
// open sections; levels holds the header labels below the top context.
type writer struct {
	file     *ini.File
	sections []*ini.Section
	levels   []string
}

func (w *writer) enterContext(name string, param directive.Param, _ *orderedmap.OrderedMap, _ string, _ any) error {
	if len(w.sections) == 0 {
		w.sections = append(w.sections, w.file.Section(ini.DefaultSection))
		return nil
	}

	label := name
	if param.Keyed {
		key := strings.TrimSpace(param.Key)
		if key == "" || strings.ContainsAny(key, "[]"+LevelSeparator) {
			return fmt.Errorf("%s: parameter %q cannot be written as an INI section", name, param.Key)
		}
		label += " " + key
	}
	w.levels = append(w.levels, label)

	section, err := w.file.NewSection(strings.Join(w.levels, " "+LevelSeparator+" "))
	if err != nil {
		return err
	}
	w.sections = append(w.sections, section)
	return nil
}

func (w *writer) leaveContext(string, directive.Param, *orderedmap.OrderedMap, string, any) error {
	w.sections = w.sections[:len(w.sections)-1]
	if len(w.levels) > 0 {
		w.levels = w.levels[:len(w.levels)-1]
	}
	return nil
}

func (w *writer) visitSimple(name string, values *directive.SimpleValues, _ string, _ any) error {
	var lines []string
	switch {
	case values == nil:
		lines = []string{""}
	case values.Pairs != nil:
		for _, k := range values.Pairs.Keys() {
			v, _ := values.Pairs.Get(k)
			s, err := stringify.DefaultValue(v, name)
			if err != nil {
				return fmt.Errorf("%s %s: %w", name, k, err)
			}
			lines = append(lines, strings.TrimSpace(k+" "+s))
		}
	default:
		for _, v := range values.List {
			s, err := stringify.DefaultValue(v, name)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			lines = append(lines, s)
		}
	}
	if len(lines) == 0 {
		return nil
	}

	section := w.sections[len(w.sections)-1]
	key, err := section.NewKey(name, lines[0])
	if err != nil {
		return fmt.Errorf("failed to create key %q: %w", name, err)
	}
	for _, line := range lines[1:] {
		if err := key.AddShadow(line); err != nil {
			return fmt.Errorf("failed to repeat key %q: %w", name, err)
		}
	}
	return nil
}

// Ensure Handler implements format.Handler.
var _ format.Handler = (*Handler)(nil)
