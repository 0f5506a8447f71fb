// Package json provides a JSON format handler.
package json

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/iancoleman/orderedmap"

	"github.com/thirteen37/ngxconf/internal/format"
	"github.com/thirteen37/ngxconf/internal/tree"
)

// Handler implements format.Handler for JSON/JSONC files.
type Handler struct{}

// New creates a new JSON handler.
func New() *Handler {
	return &Handler{}
}

// commentRegex matches single-line // comments.
var commentRegex = regexp.MustCompile(`(?m)^\s*//.*$|//[^"]*$`)

// StripComments removes single-line // comments from JSON.
// This allows parsing JSONC (JSON with comments) files.
func StripComments(data []byte) []byte {
	return commentRegex.ReplaceAll(data, nil)
}

// Parse reads a JSON object. Key order is preserved.
func (h *Handler) Parse(data []byte, opts format.ParseOptions) (*orderedmap.OrderedMap, error) {
	if opts.StripComments {
		data = StripComments(data)
	}

	result := tree.New()
	if err := json.Unmarshal(data, result); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			line, col, snippet := format.ErrorContext(string(data), int(syntaxErr.Offset)-1)
			return nil, &format.ParseError{Format: format.JSON, Line: line, Column: col, Snippet: snippet, Err: err}
		}
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return tree.AsMap(tree.Normalize(result)), nil
}

// Serialize writes the tree to formatted JSON bytes.
func (h *Handler) Serialize(t *orderedmap.OrderedMap, opts format.SerializeOptions) ([]byte, error) {
	indent := opts.Indent
	if indent == "" {
		indent = "  "
	}
	if t == nil {
		t = tree.New()
	}

	var compact bytes.Buffer
	encoder := json.NewEncoder(&compact)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(tree.Normalize(t)); err != nil {
		return nil, fmt.Errorf("failed to serialize JSON: %w", err)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimRight(compact.Bytes(), "\n"), "", indent); err != nil {
		return nil, fmt.Errorf("failed to serialize JSON: %w", err)
	}
	// Add trailing newline
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Ensure Handler implements format.Handler.
var _ format.Handler = (*Handler)(nil)
