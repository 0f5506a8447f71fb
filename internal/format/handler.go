// Package format provides interfaces and implementations for reading and
// writing configuration trees in different file formats.
package format

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/iancoleman/orderedmap"

	"github.com/thirteen37/ngxconf/internal/directive"
)

// Names of the supported formats.
const (
	JSON = "json"
	YAML = "yaml"
	TOML = "toml"
	INI  = "ini"
)

// Names lists the supported formats.
var Names = []string{JSON, YAML, TOML, INI}

// ParseOptions configures parsing behavior.
type ParseOptions struct {
	StripComments bool // Strip comments (for JSON/JSONC)
}

// SerializeOptions configures serialization behavior.
type SerializeOptions struct {
	Indent string // Indentation string (e.g., "  " or "\t")

	// Classifier resolves directive types for formats that write contexts
	// differently from simple directives (INI). Nil means the built-in
	// parameterless blocks.
	Classifier directive.Classifier
}

// Handler defines the interface for configuration file format handlers.
//
// Parse returns a normalized tree: every object is a *orderedmap.OrderedMap
// in document order and every sequence is a []any.
type Handler interface {
	// Parse reads raw bytes and returns the configuration tree.
	Parse(data []byte, opts ParseOptions) (*orderedmap.OrderedMap, error)

	// Serialize writes the tree back to bytes.
	Serialize(tree *orderedmap.OrderedMap, opts SerializeOptions) ([]byte, error)
}

// Detect returns the format for a file name from its extension.
func Detect(filename string) (string, bool) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json", ".jsonc":
		return JSON, true
	case ".yml", ".yaml":
		return YAML, true
	case ".toml":
		return TOML, true
	case ".ini":
		return INI, true
	default:
		return "", false
	}
}

// Normalize maps aliases like "yml" to a format name.
func Normalize(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json", "jsonc":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "toml":
		return TOML, nil
	case "ini":
		return INI, nil
	default:
		return "", fmt.Errorf("unknown format %q (supported: %s)", name, strings.Join(Names, ", "))
	}
}

// ParseError is a syntax error with its position in the input.
type ParseError struct {
	Format  string
	Line    int
	Column  int
	Snippet string
	Err     error
}

// Error implements error.
func (e *ParseError) Error() string {
	pos := fmt.Sprintf("line %d", e.Line)
	if e.Column > 0 {
		pos += fmt.Sprintf(", column %d", e.Column)
	}
	msg := fmt.Sprintf("failed to parse %s at %s: %v", strings.ToUpper(e.Format), pos, e.Err)
	if e.Snippet != "" {
		msg += "\n  " + e.Snippet
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ErrorContext returns the 1-based line and column of a byte offset in
// content, and the text of that line. An offset outside content yields
// line 1, column 1 and no snippet.
func ErrorContext(content string, offset int) (line, col int, snippet string) {
	if offset < 0 || offset > len(content) {
		return 1, 1, ""
	}
	before := content[:offset]
	line = strings.Count(before, "\n") + 1
	start := strings.LastIndex(before, "\n") + 1
	col = offset - start + 1

	end := strings.IndexByte(content[start:], '\n')
	if end < 0 {
		snippet = content[start:]
	} else {
		snippet = content[start : start+end]
	}
	return line, col, strings.TrimRight(snippet, "\r")
}
