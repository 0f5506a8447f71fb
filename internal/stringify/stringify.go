// Package stringify renders a configuration tree as nginx configuration text.
package stringify

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/iancoleman/orderedmap"

	"github.com/thirteen37/ngxconf/internal/directive"
	"github.com/thirteen37/ngxconf/internal/path"
	"github.com/thirteen37/ngxconf/internal/traverse"
)

// RawDirective is the name of the pass-through directive. Its values are
// written verbatim, one line per embedded line, without a semicolon.
const RawDirective = "__raw"

// ErrNotScalar is returned when a value that is not a scalar reaches the
// value stringifier.
var ErrNotScalar = errors.New("expected a scalar value or null")

// ValueFunc converts a directive value, block parameter or key to text.
// name is the directive the value belongs to.
type ValueFunc func(value any, name string) (string, error)

// Options configures the output.
type Options struct {
	// Indentation is the unit written once per nesting level. Default is Tab.
	Indentation Indentation

	// StringifyValue overrides DefaultValue.
	StringifyValue ValueFunc

	// Blocks is the set of parameterless block paths. Nil means
	// directive.DefaultBlocks(). Ignored when Classifier is set.
	Blocks *directive.BlockSet

	// Classifier overrides directive classification entirely.
	Classifier directive.Classifier
}

func (o Options) classifier() directive.Classifier {
	switch {
	case o.Classifier != nil:
		return o.Classifier
	case o.Blocks != nil:
		return directive.NewClassifier(*o.Blocks)
	default:
		return directive.NewClassifier(directive.DefaultBlocks())
	}
}

// Stringify renders input, the body of the context at p. Lines are joined
// with "\n" and the result has no trailing newline.
func Stringify(p path.Path, input *orderedmap.OrderedMap, opts Options) (string, error) {
	w := &writer{
		indent: opts.Indentation.String(),
		value:  opts.StringifyValue,
		level:  -1,
	}
	if w.value == nil {
		w.value = DefaultValue
	}

	v := traverse.Visitor{
		VisitSimple:  w.visitSimple,
		EnterContext: w.enterContext,
		LeaveContext: w.leaveContext,
	}
	if err := traverse.Traverse(p, input, v, nil, traverse.Options{Classifier: opts.classifier()}); err != nil {
		return "", err
	}
	return strings.Join(w.lines, "\n"), nil
}

type writer struct {
	indent string
	value  ValueFunc
	level  int
	lines  []string
}

func (w *writer) writeln(line string) {
	if line != "" && w.level > 0 {
		line = strings.Repeat(w.indent, w.level) + line
	}
	w.lines = append(w.lines, line)
}

func (w *writer) visitSimple(name string, values *directive.SimpleValues, _ string, _ any) error {
	switch {
	case values == nil:
		w.writeln(name + ";")

	case values.Pairs != nil:
		w.writeln("")
		for _, key := range values.Pairs.Keys() {
			val, _ := values.Pairs.Get(key)
			k, err := w.value(key, name)
			if err != nil {
				return err
			}
			v, err := w.value(val, name)
			if err != nil {
				return err
			}
			w.writeln(name + " " + k + " " + v + ";")
		}

	case name == RawDirective:
		for _, val := range values.List {
			for _, line := range strings.Split(fmt.Sprint(val), "\n") {
				w.writeln(line)
			}
		}

	default:
		w.writeln("")
		for _, val := range values.List {
			v, err := w.value(val, name)
			if err != nil {
				return err
			}
			w.writeln(name + " " + v + ";")
		}
	}
	return nil
}

func (w *writer) enterContext(name string, param directive.Param, _ *orderedmap.OrderedMap, _ string, _ any) error {
	if w.level >= 0 {
		w.writeln("")
		if param.Keyed {
			v, err := w.value(param.Key, name)
			if err != nil {
				return err
			}
			w.writeln(name + " " + v + " {")
		} else {
			w.writeln(strings.TrimSuffix(name, directive.ParamlessMarker) + " {")
		}
	}
	w.level++
	return nil
}

func (w *writer) leaveContext(string, directive.Param, *orderedmap.OrderedMap, string, any) error {
	w.level--
	if w.level >= 0 {
		w.writeln("}")
	}
	return nil
}

// DefaultValue renders null as "", booleans as on/off, and strings and
// numbers in their trimmed textual form. Anything else is ErrNotScalar.
func DefaultValue(value any, _ string) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case bool:
		if v {
			return "on", nil
		}
		return "off", nil
	case string:
		return strings.TrimSpace(v), nil
	case json.Number:
		return strings.TrimSpace(v.String()), nil
	case float64:
		return formatFloat(v, 64), nil
	case float32:
		return formatFloat(float64(v), 32), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(v), nil
	default:
		return "", fmt.Errorf("%w, got %T", ErrNotScalar, value)
	}
}

// formatFloat writes v in plain decimal notation, switching to exponent
// notation ("1e+21", "1.5e-7") below 1e-6 and from 1e21 up.
func formatFloat(v float64, bitSize int) string {
	abs := math.Abs(v)
	if abs == 0 || (abs >= 1e-6 && abs < 1e21) {
		return strconv.FormatFloat(v, 'f', -1, bitSize)
	}
	s := strconv.FormatFloat(v, 'e', -1, bitSize)
	mantissa, exp, _ := strings.Cut(s, "e")
	sign, digits := exp[:1], strings.TrimLeft(exp[1:], "0")
	return mantissa + "e" + sign + digits
}
