// Package transform rewrites a configuration tree with ordered rules.
//
// Transform never mutates its input. A node is copied only when one of its
// descendants changed; every untouched subtree in the result is the very
// same object as in the input. Change detection is by reference (see
// tree.Same): a rule returning a new but equal value counts as a change.
package transform

import (
	"github.com/iancoleman/orderedmap"

	"github.com/thirteen37/ngxconf/internal/directive"
	"github.com/thirteen37/ngxconf/internal/path"
	"github.com/thirteen37/ngxconf/internal/tree"
)

// Remove is returned by a Simple transform function to delete the directive.
var Remove = tree.Absent

// Order selects when a Block rule runs relative to the block's children.
type Order int

const (
	// Pre runs the rule before the children are visited.
	Pre Order = iota
	// Post runs the rule after the children are visited.
	Post
)

// Transformer is a Simple or a Block rule.
type Transformer interface {
	isBlock() bool
	names() []string
	contexts() []string
}

// Simple rewrites simple and nullary directives. It runs once per directive
// per context, with the raw value: a scalar, a []any, an ordered map of
// key-value pairs, or nil for a nullary directive.
//
// Transform must not mutate values; return a modified copy instead, or
// Remove to delete the directive.
type Simple struct {
	// Names restricts the rule to these directive names. Empty matches all.
	Names []string
	// Context restricts the rule to directives whose immediate parent
	// context is one of these names. Nil matches all.
	Context []string
	// If, when set, gates Transform; the arguments are the same.
	If        func(values any, state any, name, context string) bool
	Transform func(values any, state any, name, context string) any
}

// Block rewrites block instances. It runs once per instance; param is the
// block parameter, or the instance position for parameterless blocks.
//
// Transform must not mutate ctx; return a modified copy, or nil to delete
// the instance.
type Block struct {
	// Names restricts the rule to these directive names. Empty matches all.
	Names []string
	// Context restricts the rule to blocks whose immediate parent context is
	// one of these names. Nil matches all.
	Context []string
	Order   Order
	// If, when set, gates Transform; the arguments are the same.
	If        func(ctx *orderedmap.OrderedMap, state any, name string, param directive.Param, parent string) bool
	Transform func(ctx *orderedmap.OrderedMap, state any, name string, param directive.Param, parent string) *orderedmap.OrderedMap
}

func (Simple) isBlock() bool        { return false }
func (t Simple) names() []string    { return t.Names }
func (t Simple) contexts() []string { return t.Context }

func (Block) isBlock() bool        { return true }
func (t Block) names() []string    { return t.Names }
func (t Block) contexts() []string { return t.Context }

// Options configures a transformation.
type Options struct {
	// Classifier resolves directive types. Defaults to a ShapeClassifier
	// over directive.DefaultBlocks().
	Classifier directive.Classifier
}

// Transform applies transformers to input, the body of the context at p, and
// returns the transformed tree. It returns nil if a Block rule removed the
// root context.
//
// At each directive, rules registered for its name run first, then rules
// without names, each group in declaration order.
func Transform(p path.Path, input *orderedmap.OrderedMap, transformers []Transformer, state any, opts Options) (*orderedmap.OrderedMap, error) {
	classifier := opts.Classifier
	if classifier == nil {
		classifier = directive.NewClassifier(directive.DefaultBlocks())
	}
	r := &rewriter{
		index:      newIndex(transformers),
		state:      state,
		classifier: classifier,
	}
	return r.visitContext(p.Last(), directive.IndexParam(0), input, p.Parent())
}

// bucket groups rules by kind and directive name; "" holds unnamed rules.
type bucket struct {
	block bool
	name  string
}

type index map[bucket][]Transformer

func newIndex(transformers []Transformer) index {
	idx := make(index)
	for _, t := range transformers {
		switch rule := t.(type) {
		case *Simple:
			t = *rule
		case *Block:
			t = *rule
		}
		names := t.names()
		if len(names) == 0 {
			names = []string{""}
		}
		for _, name := range names {
			key := bucket{block: t.isBlock(), name: name}
			idx[key] = append(idx[key], t)
		}
	}
	return idx
}

// candidates returns the rules applying to directive name in context.
func (idx index) candidates(block bool, name, context string) []Transformer {
	var result []Transformer
	for _, key := range []bucket{{block, name}, {block, ""}} {
		for _, t := range idx[key] {
			if matchesContext(t.contexts(), context) {
				result = append(result, t)
			}
		}
		if name == "" {
			break
		}
	}
	return result
}

func matchesContext(allowed []string, context string) bool {
	if allowed == nil {
		return true
	}
	for _, c := range allowed {
		if c == context {
			return true
		}
	}
	return false
}

type rewriter struct {
	index      index
	state      any
	classifier directive.Classifier
}

// visit rewrites one directive found in the context at p. It returns the
// original value when nothing changed, or tree.Absent to delete it.
func (r *rewriter) visit(name string, value any, p path.Path) (any, error) {
	t, err := r.classifier.Classify(p.Child(name), value, r.state)
	if err != nil {
		return nil, err
	}
	d, err := directive.Decode(t, value)
	if err != nil {
		return nil, &directive.InputError{Path: p.Child(name), Value: value}
	}

	switch d := d.(type) {
	case *directive.Blocks:
		return r.visitBlocks(name, value, d, p)
	case *directive.ParamBlocks:
		return r.visitParamBlocks(name, value, d, p)
	default:
		return r.visitSimple(name, value, p.Last()), nil
	}
}

func (r *rewriter) visitSimple(name string, value any, context string) any {
	for _, t := range r.index.candidates(false, name, context) {
		rule := t.(Simple)
		if rule.Transform != nil && (rule.If == nil || rule.If(value, r.state, name, context)) {
			value = rule.Transform(value, r.state, name, context)
		}
		if tree.IsAbsent(value) {
			break
		}
	}
	return value
}

// visitBlocks rewrites the instances of a parameterless block. The sequence
// is rebuilt only if an instance changed; removed instances are dropped and
// the survivors keep their relative order.
func (r *rewriter) visitBlocks(name string, raw any, d *directive.Blocks, p path.Path) (any, error) {
	var result []any
	changed := false
	for i, ctx := range d.Contexts {
		next, err := r.visitContext(name, directive.IndexParam(i), ctx, p)
		if err != nil {
			return nil, err
		}
		if !changed && (next == nil || !tree.Same(next, ctx)) {
			changed = true
			result = make([]any, 0, len(d.Contexts))
			if !d.Single {
				result = append(result, raw.([]any)[:i]...)
			}
		}
		if changed && next != nil {
			result = append(result, next)
		}
	}
	if !changed {
		return raw, nil
	}
	if d.Single {
		if len(result) == 0 {
			return tree.Absent, nil
		}
		return result[0], nil
	}
	return result, nil
}

// visitParamBlocks rewrites the instances of a parameterized block in key
// order. A removed instance deletes its key.
func (r *rewriter) visitParamBlocks(name string, raw any, d *directive.ParamBlocks, p path.Path) (any, error) {
	var contexts *orderedmap.OrderedMap
	for _, param := range d.Contexts.Keys() {
		ctx := d.Context(param)
		next, err := r.visitContext(name, directive.KeyParam(param), ctx, p)
		if err != nil {
			return nil, err
		}
		if next != nil && tree.Same(next, ctx) {
			continue
		}
		if contexts == nil {
			contexts = tree.Copy(d.Contexts)
		}
		if next == nil {
			contexts.Delete(param)
		} else {
			contexts.Set(param, next)
		}
	}
	if contexts == nil {
		return raw, nil
	}
	return contexts, nil
}

// visitContext rewrites one block instance whose parent context is at p:
// pre-order rules, then the children, then post-order rules. It returns nil
// if the instance was removed.
func (r *rewriter) visitContext(name string, param directive.Param, ctx *orderedmap.OrderedMap, p path.Path) (*orderedmap.OrderedMap, error) {
	if ctx == nil {
		return nil, nil
	}
	parent := p.Last()
	rules := r.index.candidates(true, name, parent)

	ctx = r.applyBlockRules(rules, Pre, name, param, ctx, parent)
	if ctx == nil {
		return nil, nil
	}

	nested := p.Child(name)
	original := ctx
	for _, key := range original.Keys() {
		value, _ := original.Get(key)
		if tree.IsAbsent(value) {
			continue
		}
		next, err := r.visit(key, value, nested)
		if err != nil {
			return nil, err
		}
		if tree.Same(next, value) {
			continue
		}
		if ctx == original {
			ctx = tree.Copy(original)
		}
		if tree.IsAbsent(next) {
			ctx.Delete(key)
		} else {
			ctx.Set(key, next)
		}
	}

	return r.applyBlockRules(rules, Post, name, param, ctx, parent), nil
}

func (r *rewriter) applyBlockRules(rules []Transformer, order Order, name string, param directive.Param, ctx *orderedmap.OrderedMap, parent string) *orderedmap.OrderedMap {
	for _, t := range rules {
		rule := t.(Block)
		if rule.Order != order || rule.Transform == nil {
			continue
		}
		if rule.If == nil || rule.If(ctx, r.state, name, param, parent) {
			ctx = rule.Transform(ctx, r.state, name, param, parent)
		}
		if ctx == nil {
			return nil
		}
	}
	return ctx
}
