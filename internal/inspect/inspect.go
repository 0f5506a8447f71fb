// Package inspect lists the directives of a configuration tree together with
// their location and resolved type.
package inspect

import (
	"fmt"
	"strings"

	"github.com/iancoleman/orderedmap"

	"github.com/thirteen37/ngxconf/internal/directive"
	"github.com/thirteen37/ngxconf/internal/path"
	"github.com/thirteen37/ngxconf/internal/traverse"
)

// Entry describes one directive.
type Entry struct {
	// Location is the chain of enclosing block instances, e.g.
	// ["main", "http", "server[0]", "location /api"].
	Location []string
	Name     string
	Type     directive.Type
	// Count is the number of values of a simple directive or the number of
	// instances of a block. It is 0 for nullary directives.
	Count int
}

// String formats the entry as "main > http: sendfile SIMPLE (1)".
func (e Entry) String() string {
	return fmt.Sprintf("%s: %s %s (%d)", strings.Join(e.Location, " > "), e.Name, e.Type, e.Count)
}

// Options configures Directives.
type Options struct {
	// Classifier resolves directive types. Defaults to a ShapeClassifier
	// over directive.DefaultBlocks().
	Classifier directive.Classifier

	// Depth limits how many block levels below the root are listed.
	// Zero means unlimited.
	Depth int
}

type collector struct {
	trail   []string
	entries []Entry
	depth   int
}

func (c *collector) add(name string, t directive.Type, count int) {
	c.entries = append(c.entries, Entry{
		Location: append([]string(nil), c.trail...),
		Name:     name,
		Type:     t,
		Count:    count,
	})
}

// Directives lists every directive of input, the body of the context at p,
// in traversal order.
func Directives(p path.Path, input *orderedmap.OrderedMap, opts Options) ([]Entry, error) {
	v := traverse.Visitor{
		VisitSimple: func(name string, values *directive.SimpleValues, _ string, state any) error {
			c := state.(*collector)
			switch {
			case values == nil:
				c.add(name, directive.Nullary, 0)
			case values.Pairs != nil:
				c.add(name, directive.Simple, len(values.Pairs.Keys()))
			default:
				c.add(name, directive.Simple, len(values.List))
			}
			return nil
		},
		VisitBlock: func(name string, blocks directive.Directive, _ string, state any) error {
			c := state.(*collector)
			switch b := blocks.(type) {
			case *directive.Blocks:
				c.add(name, b.Type(), b.Len())
			case *directive.ParamBlocks:
				c.add(name, b.Type(), b.Len())
			}
			if opts.Depth > 0 && len(c.trail) > opts.Depth {
				return traverse.Skip
			}
			return nil
		},
		EnterContext: func(name string, param directive.Param, _ *orderedmap.OrderedMap, _ string, state any) error {
			c := state.(*collector)
			c.trail = append(c.trail, label(name, param, len(c.trail) == 0))
			return nil
		},
		LeaveContext: func(_ string, _ directive.Param, _ *orderedmap.OrderedMap, _ string, state any) error {
			c := state.(*collector)
			c.trail = c.trail[:len(c.trail)-1]
			return nil
		},
	}

	c := &collector{}
	if err := traverse.Traverse(p, input, v, c, traverse.Options{Classifier: opts.Classifier}); err != nil {
		return nil, err
	}
	return c.entries, nil
}

// label names a block instance: "location /api" for a parameterized block,
// "server[1]" for a parameterless one. The root is its bare name.
func label(name string, param directive.Param, root bool) string {
	switch {
	case root:
		return name
	case param.Keyed:
		return name + " " + param.Key
	default:
		return fmt.Sprintf("%s[%d]", strings.TrimSuffix(name, directive.ParamlessMarker), param.Index)
	}
}
