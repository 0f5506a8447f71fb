// Package traverse walks a configuration tree depth-first and calls visitor
// hooks for every directive and block instance.
package traverse

import (
	"errors"

	"github.com/iancoleman/orderedmap"

	"github.com/thirteen37/ngxconf/internal/directive"
	"github.com/thirteen37/ngxconf/internal/path"
	"github.com/thirteen37/ngxconf/internal/tree"
)

// Skip is returned by VisitBlock or EnterContext to skip the children of the
// current node. It is not returned as an error by Traverse.
var Skip = errors.New("skip this block")

// Visitor holds optional hooks. Nil hooks are not called. A hook returning an
// error other than Skip stops the traversal and Traverse returns it.
//
// context/parent is the name of the context containing the directive, or ""
// at the top. state is the value passed to Traverse, untouched.
type Visitor struct {
	// VisitSimple is called once per simple or nullary directive. values is
	// nil for a nullary directive; otherwise exactly one of values.List and
	// values.Pairs is set. Do not mutate values.
	VisitSimple func(name string, values *directive.SimpleValues, context string, state any) error

	// VisitBlock is called once per block directive with all its instances
	// (*directive.Blocks or *directive.ParamBlocks), before any instance is
	// entered. Returning Skip skips every instance.
	VisitBlock func(name string, blocks directive.Directive, context string, state any) error

	// EnterContext is called for each block instance before its children.
	// Returning Skip skips the children and the matching LeaveContext.
	EnterContext func(name string, param directive.Param, ctx *orderedmap.OrderedMap, parent string, state any) error

	// LeaveContext is called for each block instance after its children.
	LeaveContext func(name string, param directive.Param, ctx *orderedmap.OrderedMap, parent string, state any) error
}

// Options configures a traversal.
type Options struct {
	// Classifier resolves directive types. Defaults to a ShapeClassifier
	// over directive.DefaultBlocks().
	Classifier directive.Classifier
}

func (o Options) classifier() directive.Classifier {
	if o.Classifier != nil {
		return o.Classifier
	}
	return directive.NewClassifier(directive.DefaultBlocks())
}

// Traverse walks input, the body of the context at p. The root context is
// entered as instance 0 of the directive named p.Last() inside p.Parent().
func Traverse(p path.Path, input *orderedmap.OrderedMap, v Visitor, state any, opts Options) error {
	w := &walker{visitor: v, state: state, classifier: opts.classifier()}
	return w.visitContext(p.Last(), directive.IndexParam(0), input, p.Parent())
}

type walker struct {
	visitor    Visitor
	state      any
	classifier directive.Classifier
}

// visit dispatches one directive found in the context at p.
func (w *walker) visit(name string, value any, p path.Path) error {
	parent := p.Last()
	t, err := w.classifier.Classify(p.Child(name), value, w.state)
	if err != nil {
		return err
	}
	d, err := directive.Decode(t, value)
	if err != nil {
		return &directive.InputError{Path: p.Child(name), Value: value}
	}

	switch d := d.(type) {
	case directive.NullaryValue:
		if w.visitor.VisitSimple != nil {
			return ignoreSkip(w.visitor.VisitSimple(name, nil, parent, w.state))
		}
	case *directive.SimpleValues:
		if w.visitor.VisitSimple != nil {
			return ignoreSkip(w.visitor.VisitSimple(name, d, parent, w.state))
		}
	case *directive.Blocks:
		if skip, err := w.visitBlock(name, d, parent); skip || err != nil {
			return err
		}
		for i, ctx := range d.Contexts {
			if err := w.visitContext(name, directive.IndexParam(i), ctx, p); err != nil {
				return err
			}
		}
	case *directive.ParamBlocks:
		if skip, err := w.visitBlock(name, d, parent); skip || err != nil {
			return err
		}
		for _, param := range d.Contexts.Keys() {
			if err := w.visitContext(name, directive.KeyParam(param), d.Context(param), p); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *walker) visitBlock(name string, d directive.Directive, parent string) (bool, error) {
	if w.visitor.VisitBlock == nil {
		return false, nil
	}
	err := w.visitor.VisitBlock(name, d, parent, w.state)
	if errors.Is(err, Skip) {
		return true, nil
	}
	return false, err
}

// visitContext enters one block instance whose parent context is at p.
func (w *walker) visitContext(name string, param directive.Param, ctx *orderedmap.OrderedMap, p path.Path) error {
	if ctx == nil {
		return nil
	}
	parent := p.Last()

	if w.visitor.EnterContext != nil {
		err := w.visitor.EnterContext(name, param, ctx, parent, w.state)
		if errors.Is(err, Skip) {
			return nil
		}
		if err != nil {
			return err
		}
	}

	nested := p.Child(name)
	for _, key := range ctx.Keys() {
		value, _ := ctx.Get(key)
		if tree.IsAbsent(value) {
			continue
		}
		if err := w.visit(key, value, nested); err != nil {
			return err
		}
	}

	if w.visitor.LeaveContext != nil {
		return ignoreSkip(w.visitor.LeaveContext(name, param, ctx, parent, w.state))
	}
	return nil
}

func ignoreSkip(err error) error {
	if errors.Is(err, Skip) {
		return nil
	}
	return err
}
