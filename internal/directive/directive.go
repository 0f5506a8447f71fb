// Package directive classifies configuration tree nodes into directive shapes.
//
// The same JSON/YAML shape means different things depending on where it
// appears: a plain object may be a parameterless block (server { ... }), a
// set of parameterized blocks keyed by parameter (location / { ... }), or a
// repeated key-value directive (proxy_set_header Host $host). A Classifier
// resolves the ambiguity and Decode turns the raw value into a Directive that
// the engines consume without looking at the raw shape again.
package directive

import (
	"fmt"
	"strconv"

	"github.com/iancoleman/orderedmap"

	"github.com/thirteen37/ngxconf/internal/tree"
)

// Type is the shape of a directive.
type Type int

const (
	// Nullary is a directive without a value, e.g. "ip_hash;".
	Nullary Type = iota
	// Simple is a directive with scalar values, positional or key-value.
	Simple
	// BlockWithoutParam is a block whose opening line has no parameter.
	BlockWithoutParam
	// BlockWithParam is a block whose opening line has one parameter.
	BlockWithParam
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case Nullary:
		return "NULLARY"
	case Simple:
		return "SIMPLE"
	case BlockWithoutParam:
		return "BLOCK_WITHOUT_PARAM"
	case BlockWithParam:
		return "BLOCK_WITH_PARAM"
	default:
		return "Type(" + strconv.Itoa(int(t)) + ")"
	}
}

// IsBlock reports whether t is one of the block types.
func (t Type) IsBlock() bool {
	return t == BlockWithoutParam || t == BlockWithParam
}

// Directive is a classified directive value. The concrete type is one of
// NullaryValue, SimpleValues, Blocks or ParamBlocks.
type Directive interface {
	Type() Type
	directive()
}

// NullaryValue is a directive without a value.
type NullaryValue struct{}

// SimpleValues holds the normalized values of a simple directive: exactly one
// of List (positional values, a single scalar wrapped into a one-element list)
// and Pairs (key-value form) is set.
type SimpleValues struct {
	List  []any
	Pairs *orderedmap.OrderedMap
}

// Blocks holds the instances of a parameterless block directive in order.
// Single is set when the raw value was one object rather than a sequence.
type Blocks struct {
	Contexts []*orderedmap.OrderedMap
	Single   bool
}

// ParamBlocks holds the instances of a parameterized block directive: the
// keys of Contexts are the parameters, each value is a context object.
type ParamBlocks struct {
	Contexts *orderedmap.OrderedMap
}

func (NullaryValue) Type() Type  { return Nullary }
func (*SimpleValues) Type() Type { return Simple }
func (*Blocks) Type() Type       { return BlockWithoutParam }
func (*ParamBlocks) Type() Type  { return BlockWithParam }

func (NullaryValue) directive()  {}
func (*SimpleValues) directive() {}
func (*Blocks) directive()       {}
func (*ParamBlocks) directive()  {}

// Len returns the number of block instances.
func (b *Blocks) Len() int { return len(b.Contexts) }

// Len returns the number of block instances.
func (b *ParamBlocks) Len() int { return len(b.Contexts.Keys()) }

// Context returns the context object for the given parameter.
func (b *ParamBlocks) Context(param string) *orderedmap.OrderedMap {
	v, _ := b.Contexts.Get(param)
	return tree.AsMap(v)
}

// Decode builds the Directive of type t from a raw value. It fails when the
// value does not have the shape t requires, which only happens with a custom
// Classifier that disagrees with the value.
func Decode(t Type, value any) (Directive, error) {
	switch t {
	case Nullary:
		return NullaryValue{}, nil
	case Simple:
		if m := tree.AsMap(value); m != nil {
			return &SimpleValues{Pairs: m}, nil
		}
		if s, ok := value.([]any); ok {
			return &SimpleValues{List: s}, nil
		}
		if value == nil {
			return &SimpleValues{List: []any{}}, nil
		}
		return &SimpleValues{List: []any{value}}, nil
	case BlockWithoutParam:
		if m := tree.AsMap(value); m != nil {
			return &Blocks{Contexts: []*orderedmap.OrderedMap{m}, Single: true}, nil
		}
		s, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("%s value must be an object or a list of objects, got %T", t, value)
		}
		contexts := make([]*orderedmap.OrderedMap, len(s))
		for i, v := range s {
			if contexts[i] = tree.AsMap(v); contexts[i] == nil {
				return nil, fmt.Errorf("%s instance %d must be an object, got %T", t, i, v)
			}
		}
		return &Blocks{Contexts: contexts}, nil
	case BlockWithParam:
		m := tree.AsMap(value)
		if m == nil {
			return nil, fmt.Errorf("%s value must be an object, got %T", t, value)
		}
		for _, k := range m.Keys() {
			if v, _ := m.Get(k); !tree.IsMap(v) {
				return nil, fmt.Errorf("%s instance %q must be an object, got %T", t, k, v)
			}
		}
		return &ParamBlocks{Contexts: m}, nil
	default:
		return nil, fmt.Errorf("unknown directive type %s", t)
	}
}

// Param identifies one block instance: the parameter of a BlockWithParam
// instance, or the zero-based position of a BlockWithoutParam instance.
type Param struct {
	Key   string
	Index int
	Keyed bool
}

// KeyParam returns the Param of a parameterized instance.
func KeyParam(key string) Param {
	return Param{Key: key, Keyed: true}
}

// IndexParam returns the Param of a parameterless instance.
func IndexParam(index int) Param {
	return Param{Index: index}
}

// String returns the key, or the index in decimal.
func (p Param) String() string {
	if p.Keyed {
		return p.Key
	}
	return strconv.Itoa(p.Index)
}
