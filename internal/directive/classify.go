package directive

import (
	"sort"
	"strings"

	"github.com/thirteen37/ngxconf/internal/path"
	"github.com/thirteen37/ngxconf/internal/tree"
)

// ParamlessMarker is the name suffix that forces a directive whose value is
// an object to be treated as a parameterless block, e.g. "types{}".
const ParamlessMarker = "{}"

// Classifier decides the Type of a directive. p is the full path including
// the directive name as its last segment. state is the caller's shared state.
type Classifier interface {
	Classify(p path.Path, value any, state any) (Type, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(p path.Path, value any, state any) (Type, error)

// Classify calls f.
func (f ClassifierFunc) Classify(p path.Path, value any, state any) (Type, error) {
	return f(p, value, state)
}

// BlockSet is an immutable set of slash-joined paths of block directives
// that never take a parameter, e.g. "main/http/server".
type BlockSet struct {
	paths map[string]struct{}
}

// builtinBlocks lists nginx's built-in parameterless block directives.
var builtinBlocks = []string{
	"main/events",
	"main/http",
	"main/http/server",
	"main/mail",
	"main/mail/server",
	"main/stream",
	"main/stream/server",
}

// NewBlockSet creates a BlockSet from slash-joined paths.
func NewBlockSet(paths ...string) BlockSet {
	set := BlockSet{paths: make(map[string]struct{}, len(paths))}
	for _, p := range paths {
		set.paths[strings.Trim(p, path.Separator)] = struct{}{}
	}
	return set
}

// DefaultBlocks returns the set of nginx's built-in parameterless blocks.
func DefaultBlocks() BlockSet {
	return NewBlockSet(builtinBlocks...)
}

// Has reports whether the slash-joined path p is in the set.
func (s BlockSet) Has(p string) bool {
	_, ok := s.paths[p]
	return ok
}

// With returns a new set holding the receiver's paths and the given ones.
func (s BlockSet) With(paths ...string) BlockSet {
	return NewBlockSet(append(s.Paths(), paths...)...)
}

// Paths returns the paths in the set, sorted.
func (s BlockSet) Paths() []string {
	result := make([]string, 0, len(s.paths))
	for p := range s.paths {
		result = append(result, p)
	}
	sort.Strings(result)
	return result
}

// ShapeClassifier classifies directives by the shape of their value, the
// path they appear at and a set of parameterless blocks.
type ShapeClassifier struct {
	blocks BlockSet
}

// NewClassifier creates a ShapeClassifier for the given parameterless blocks.
func NewClassifier(blocks BlockSet) *ShapeClassifier {
	return &ShapeClassifier{blocks: blocks}
}

// Classify implements Classifier. Checks run in a fixed priority order:
// null, sequence, object, scalar. Parameterless-block membership is tested
// before any other object shape.
func (c *ShapeClassifier) Classify(p path.Path, value any, _ any) (Type, error) {
	if value == nil {
		return Nullary, nil
	}
	if s, ok := value.([]any); ok {
		if len(s) == 0 {
			return Simple, nil
		}
		if all(s, func(v any) bool { return c.isParamless(p, v) }) {
			return BlockWithoutParam, nil
		}
		if all(s, tree.IsScalar) {
			return Simple, nil
		}
		return 0, &InputError{Path: p, Value: value}
	}
	if m := tree.AsMap(value); m != nil {
		if c.isParamless(p, m) {
			return BlockWithoutParam, nil
		}
		values := make([]any, 0, len(m.Keys()))
		for _, k := range m.Keys() {
			v, _ := m.Get(k)
			values = append(values, v)
		}
		if all(values, tree.IsMap) {
			return BlockWithParam, nil
		}
		if all(values, tree.IsScalar) {
			return Simple, nil
		}
		return 0, &InputError{Path: p, Value: value}
	}
	if tree.IsScalar(value) {
		return Simple, nil
	}
	return 0, &InputError{Path: p, Value: value}
}

// isParamless reports whether value is a context object of a block that
// takes no parameter at path p.
func (c *ShapeClassifier) isParamless(p path.Path, value any) bool {
	if !tree.IsMap(value) {
		return false
	}
	return c.blocks.Has(p.String()) || strings.HasSuffix(p.Last(), ParamlessMarker)
}

func all(values []any, pred func(any) bool) bool {
	for _, v := range values {
		if !pred(v) {
			return false
		}
	}
	return true
}

var _ Classifier = (*ShapeClassifier)(nil)
