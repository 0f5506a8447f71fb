// Package toml provides a TOML format handler.
package toml

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/iancoleman/orderedmap"

	"github.com/thirteen37/ngxconf/internal/format"
	"github.com/thirteen37/ngxconf/internal/tree"
)

// Handler implements format.Handler for TOML files.
type Handler struct{}

// New creates a new TOML handler.
func New() *Handler {
	return &Handler{}
}

// Parse reads TOML bytes and returns the configuration tree.
// Key order from the original TOML document is preserved and arrays of
// tables ([[http.server]]) become sequences of contexts. Date and time
// values are converted to RFC 3339 strings.
func (h *Handler) Parse(data []byte, opts format.ParseOptions) (*orderedmap.OrderedMap, error) {
	if opts.StripComments {
		return nil, fmt.Errorf("strip-comments is not supported for TOML format")
	}

	// Decode into a generic map to get values
	var raw map[string]any
	meta, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, parseError(data, err)
	}

	// Convert to ordered map using metadata for key order
	return tree.AsMap(convert(raw, meta, nil)), nil
}

func parseError(data []byte, err error) error {
	var pe toml.ParseError
	if !errors.As(err, &pe) || pe.Position.Line == 0 {
		return fmt.Errorf("failed to parse TOML: %w", err)
	}

	cause := err
	if pe.Message != "" {
		cause = errors.New(pe.Message)
	}
	line := pe.Position.Line
	lines := strings.Split(string(data), "\n")
	var snippet string
	if line <= len(lines) {
		snippet = strings.TrimRight(lines[line-1], "\r")
	}
	return &format.ParseError{Format: format.TOML, Line: line, Snippet: snippet, Err: cause}
}

// convert recursively converts decoded TOML values to tree values using
// the metadata to restore key order.
func convert(v any, meta toml.MetaData, prefix []string) any {
	switch val := v.(type) {
	case map[string]any:
		result := tree.New()
		for _, k := range keysInOrder(meta, prefix, val) {
			childPrefix := append(append([]string(nil), prefix...), k)
			result.Set(k, convert(val[k], meta, childPrefix))
		}
		return result
	case []map[string]any:
		// Array of tables; items share the table's prefix in the metadata.
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = convert(item, meta, prefix)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = convert(item, meta, prefix)
		}
		return result
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return val
	}
}

// keysInOrder returns map keys in document order using TOML metadata.
// Keys the metadata does not know about follow in sorted order.
func keysInOrder(meta toml.MetaData, prefix []string, m map[string]any) []string {
	seen := make(map[string]bool, len(m))
	ordered := make([]string, 0, len(m))

	for _, key := range meta.Keys() {
		if len(key) != len(prefix)+1 || !hasPrefix(key, prefix) {
			continue
		}
		k := key[len(prefix)]
		if _, ok := m[k]; ok && !seen[k] {
			ordered = append(ordered, k)
			seen[k] = true
		}
	}

	var rest []string
	for k := range m {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(ordered, rest...)
}

// hasPrefix checks if key starts with prefix.
func hasPrefix(key toml.Key, prefix []string) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if key[i] != p {
			return false
		}
	}
	return true
}

// Serialize writes the tree to formatted TOML bytes. The encoder sorts
// keys, so document order is not kept. TOML has no null, so nullary
// directives cannot be serialized.
func (h *Handler) Serialize(t *orderedmap.OrderedMap, opts format.SerializeOptions) ([]byte, error) {
	if t == nil {
		t = tree.New()
	}
	regular, err := toRegular(t, "")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize TOML: %w", err)
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if opts.Indent != "" {
		encoder.Indent = opts.Indent
	}
	if err := encoder.Encode(regular); err != nil {
		return nil, fmt.Errorf("failed to serialize TOML: %w", err)
	}

	return buf.Bytes(), nil
}

// toRegular recursively converts tree values to plain Go values the TOML
// encoder understands. Absent entries are dropped.
func toRegular(v any, key string) (any, error) {
	if m := tree.AsMap(v); m != nil {
		result := make(map[string]any, len(m.Keys()))
		for _, k := range m.Keys() {
			child, _ := m.Get(k)
			if tree.IsAbsent(child) {
				continue
			}
			converted, err := toRegular(child, joinKey(key, k))
			if err != nil {
				return nil, err
			}
			result[k] = converted
		}
		return result, nil
	}

	switch val := v.(type) {
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			converted, err := toRegular(item, key)
			if err != nil {
				return nil, err
			}
			result[i] = converted
		}
		return result, nil
	case nil:
		return nil, fmt.Errorf("%s: null values cannot be represented in TOML", key)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		return val.Float64()
	default:
		if !tree.IsScalar(val) {
			return nil, fmt.Errorf("%s: unsupported value of type %T", key, val)
		}
		return val, nil
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// Ensure Handler implements format.Handler.
var _ format.Handler = (*Handler)(nil)
