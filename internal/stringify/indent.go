package stringify

import (
	"strconv"
	"strings"
)

// Indentation is the text written once per nesting level. The zero value is
// a single tab.
type Indentation struct {
	unit string
	set  bool
}

// Tab indents with one tab character per level.
var Tab = Literal("\t")

// Spaces indents with n spaces per level.
func Spaces(n int) Indentation {
	if n < 0 {
		n = 0
	}
	return Literal(strings.Repeat(" ", n))
}

// Literal indents with s per level. Literal("") disables indentation.
func Literal(s string) Indentation {
	return Indentation{unit: s, set: true}
}

// ParseIndentation reads a command-line or config value: a number of
// spaces, "tab", or any other literal string.
func ParseIndentation(s string) Indentation {
	if s == "tab" || s == `\t` {
		return Tab
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return Spaces(n)
	}
	return Literal(s)
}

// String returns the indentation unit.
func (i Indentation) String() string {
	if !i.set {
		return "\t"
	}
	return i.unit
}
