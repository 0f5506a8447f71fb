// Package yaml provides a YAML format handler.
package yaml

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/iancoleman/orderedmap"
	"gopkg.in/yaml.v3"

	"github.com/thirteen37/ngxconf/internal/format"
	"github.com/thirteen37/ngxconf/internal/tree"
)

// Handler implements format.Handler for YAML files.
type Handler struct{}

// New creates a new YAML handler.
func New() *Handler {
	return &Handler{}
}

// lineRegex extracts the position from yaml.v3 syntax errors.
var lineRegex = regexp.MustCompile(`^yaml: line (\d+): (.*)$`)

// Parse reads a YAML mapping. Key order is preserved, anchors and aliases
// are resolved and merge keys (<<) are applied. Timestamps stay strings.
func (h *Handler) Parse(data []byte, opts format.ParseOptions) (*orderedmap.OrderedMap, error) {
	if opts.StripComments {
		return nil, fmt.Errorf("strip-comments is not supported for YAML format")
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, parseError(data, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return tree.New(), nil
	}

	v, err := decode(doc.Content[0])
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	m := tree.AsMap(v)
	if m == nil {
		return nil, fmt.Errorf("failed to parse YAML: top-level value must be a mapping")
	}
	return m, nil
}

func parseError(data []byte, err error) error {
	match := lineRegex.FindStringSubmatch(err.Error())
	if match == nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	line, _ := strconv.Atoi(match[1])
	lines := strings.Split(string(data), "\n")
	var snippet string
	if line >= 1 && line <= len(lines) {
		snippet = strings.TrimRight(lines[line-1], "\r")
	}
	return &format.ParseError{Format: format.YAML, Line: line, Snippet: snippet, Err: errors.New(match[2])}
}

// decode converts a node to a tree value.
func decode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return decode(n.Content[0])
	case yaml.AliasNode:
		return decode(n.Alias)
	case yaml.SequenceNode:
		result := make([]any, len(n.Content))
		for i, item := range n.Content {
			v, err := decode(item)
			if err != nil {
				return nil, err
			}
			result[i] = v
		}
		return result, nil
	case yaml.MappingNode:
		return decodeMapping(n)
	case yaml.ScalarNode:
		return decodeScalar(n)
	default:
		return nil, fmt.Errorf("line %d: unsupported node kind %d", n.Line, n.Kind)
	}
}

func decodeMapping(n *yaml.Node) (*orderedmap.OrderedMap, error) {
	result := tree.New()
	explicit := make(map[string]bool)

	for i := 0; i+1 < len(n.Content); i += 2 {
		key, value := n.Content[i], n.Content[i+1]

		if key.Kind == yaml.ScalarNode && key.ShortTag() == "!!merge" {
			if err := applyMerge(result, explicit, value); err != nil {
				return nil, err
			}
			continue
		}
		if key.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
		}

		v, err := decode(value)
		if err != nil {
			return nil, err
		}
		result.Set(key.Value, v)
		explicit[key.Value] = true
	}
	return result, nil
}

// applyMerge copies the entries of a merge key's mapping (or sequence of
// mappings) into result. Explicit keys win over merged ones; among merged
// mappings the first one wins.
func applyMerge(result *orderedmap.OrderedMap, explicit map[string]bool, n *yaml.Node) error {
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	var sources []*yaml.Node
	switch n.Kind {
	case yaml.MappingNode:
		sources = []*yaml.Node{n}
	case yaml.SequenceNode:
		for _, item := range n.Content {
			if item.Kind == yaml.AliasNode {
				item = item.Alias
			}
			sources = append(sources, item)
		}
	default:
		return fmt.Errorf("line %d: merge value must be a mapping", n.Line)
	}

	merged := make(map[string]bool)
	for _, src := range sources {
		if src.Kind != yaml.MappingNode {
			return fmt.Errorf("line %d: merge value must be a mapping", src.Line)
		}
		m, err := decodeMapping(src)
		if err != nil {
			return err
		}
		for _, k := range m.Keys() {
			if explicit[k] || merged[k] {
				continue
			}
			v, _ := m.Get(k)
			result.Set(k, v)
			merged[k] = true
		}
	}
	return nil
}

func decodeScalar(n *yaml.Node) (any, error) {
	switch n.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool", "!!int", "!!float":
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	default:
		// Strings, timestamps, binary and custom tags keep their literal text.
		return n.Value, nil
	}
}

// Serialize writes the tree to YAML bytes. Opts.Indent sets the number of
// spaces per level (its length); the default is 2.
func (h *Handler) Serialize(t *orderedmap.OrderedMap, opts format.SerializeOptions) ([]byte, error) {
	if t == nil {
		t = tree.New()
	}
	root, err := encode(t)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize YAML: %w", err)
	}

	indent := len(opts.Indent)
	if indent < 2 {
		indent = 2
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(indent)
	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}); err != nil {
		return nil, fmt.Errorf("failed to serialize YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to serialize YAML: %w", err)
	}
	return buf.Bytes(), nil
}

// encode converts a tree value to a node.
func encode(v any) (*yaml.Node, error) {
	if m := tree.AsMap(v); m != nil {
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range m.Keys() {
			child, _ := m.Get(k)
			if tree.IsAbsent(child) {
				continue
			}
			value, err := encode(child)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, value)
		}
		return n, nil
	}
	if s, ok := v.([]any); ok {
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range s {
			value, err := encode(item)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, value)
		}
		return n, nil
	}
	if v != nil && !tree.IsScalar(v) {
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}

	n := &yaml.Node{}
	if err := n.Encode(v); err != nil {
		return nil, err
	}
	return n, nil
}

// Ensure Handler implements format.Handler.
var _ format.Handler = (*Handler)(nil)
