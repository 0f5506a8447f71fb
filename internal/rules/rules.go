// Package rules provides built-in rewrite rules for the transform engine.
package rules

import (
	"fmt"
	"strings"

	"github.com/iancoleman/orderedmap"

	"github.com/thirteen37/ngxconf/internal/config"
	"github.com/thirteen37/ngxconf/internal/directive"
	"github.com/thirteen37/ngxconf/internal/transform"
	"github.com/thirteen37/ngxconf/internal/tree"
)

// ProxyBlocks are the blocks ProxyHeaders applies to.
var ProxyBlocks = []string{"server", "location", "if"}

// IncludeDir rewrites relative include values to dir/<name><ext>. The result
// is always a list. Values that are already absolute are left alone, so
// applying the rule twice gives the same tree as applying it once.
// Without contexts, the rule applies in every context.
func IncludeDir(dir, ext string, contexts ...string) transform.Simple {
	dir = strings.TrimSuffix(dir, "/")
	return transform.Simple{
		Names:   []string{"include"},
		Context: contexts,
		If: func(values any, _ any, _, _ string) bool {
			for _, v := range asList(values) {
				if s, ok := v.(string); ok && !strings.HasPrefix(s, "/") {
					return true
				}
			}
			return false
		},
		Transform: func(values any, _ any, _, _ string) any {
			list := asList(values)
			result := make([]any, len(list))
			for i, v := range list {
				s, ok := v.(string)
				if !ok || strings.HasPrefix(s, "/") {
					result[i] = v
					continue
				}
				if ext != "" && !strings.HasSuffix(s, ext) {
					s += ext
				}
				result[i] = dir + "/" + s
			}
			return result
		},
	}
}

// ProxyHeaders adds proxy_set_header entries to every server, location and
// if block that contains proxy_pass. Headers the block already sets are left
// untouched. A nil headers map adds nothing.
func ProxyHeaders(headers *orderedmap.OrderedMap) transform.Block {
	if headers == nil {
		headers = tree.New()
	}
	return transform.Block{
		Names: ProxyBlocks,
		If: func(ctx *orderedmap.OrderedMap, _ any, _ string, _ directive.Param, _ string) bool {
			if _, ok := ctx.Get("proxy_pass"); !ok {
				return false
			}
			existing := headerNames(ctx)
			for _, name := range headers.Keys() {
				if !existing[strings.ToLower(name)] {
					return true
				}
			}
			return false
		},
		Transform: func(ctx *orderedmap.OrderedMap, _ any, _ string, _ directive.Param, _ string) *orderedmap.OrderedMap {
			existing := headerNames(ctx)
			current, _ := ctx.Get("proxy_set_header")

			var next any
			if list, ok := positional(current); ok {
				// Positional form: "Header value" strings.
				result := append([]any(nil), list...)
				for _, name := range headers.Keys() {
					if !existing[strings.ToLower(name)] {
						value, _ := headers.Get(name)
						result = append(result, fmt.Sprintf("%s %v", name, value))
					}
				}
				next = result
			} else {
				var result *orderedmap.OrderedMap
				if m := tree.AsMap(current); m != nil {
					result = tree.Copy(m)
				} else {
					result = tree.New()
				}
				for _, name := range headers.Keys() {
					if !existing[strings.ToLower(name)] {
						value, _ := headers.Get(name)
						result.Set(name, value)
					}
				}
				next = result
			}

			ctx = tree.Copy(ctx)
			ctx.Set("proxy_set_header", next)
			return ctx
		},
	}
}

// Remove deletes the simple directives with the given names. It matches
// nothing when names is empty.
func Remove(names ...string) transform.Simple {
	return transform.Simple{
		Names: names,
		If: func(any, any, string, string) bool {
			return len(names) > 0
		},
		Transform: func(any, any, string, string) any {
			return transform.Remove
		},
	}
}

// FromConfig builds the rule list enabled in the tool configuration.
func FromConfig(cfg config.Rules) ([]transform.Transformer, error) {
	var result []transform.Transformer
	if len(cfg.Remove) > 0 {
		result = append(result, Remove(cfg.Remove...))
	}
	if cfg.IncludeDir != "" {
		result = append(result, IncludeDir(cfg.IncludeDir, cfg.IncludeExt, nilIfEmpty(cfg.IncludeContexts)...))
	}
	if len(cfg.ProxyHeaders) > 0 {
		headers, err := ParseHeaders(cfg.ProxyHeaders)
		if err != nil {
			return nil, err
		}
		result = append(result, ProxyHeaders(headers))
	}
	return result, nil
}

// ParseHeaders parses "Header value" strings into an ordered map.
func ParseHeaders(lines []string) (*orderedmap.OrderedMap, error) {
	headers := tree.New()
	for _, entry := range lines {
		name, value, ok := strings.Cut(strings.TrimSpace(entry), " ")
		value = strings.TrimSpace(value)
		if !ok || name == "" || value == "" {
			return nil, fmt.Errorf("invalid proxy header %q: expected \"Name value\"", entry)
		}
		headers.Set(name, value)
	}
	return headers, nil
}

// headerNames returns the lower-cased names of the headers ctx already sets.
func headerNames(ctx *orderedmap.OrderedMap) map[string]bool {
	names := make(map[string]bool)
	current, ok := ctx.Get("proxy_set_header")
	if !ok {
		return names
	}
	if m := tree.AsMap(current); m != nil {
		for _, k := range m.Keys() {
			names[strings.ToLower(k)] = true
		}
		return names
	}
	list, _ := positional(current)
	for _, v := range list {
		if fields := strings.Fields(fmt.Sprint(v)); len(fields) > 0 {
			names[strings.ToLower(fields[0])] = true
		}
	}
	return names
}

// positional returns v as a list if it is a scalar or a list of scalars.
func positional(v any) ([]any, bool) {
	if list, ok := v.([]any); ok {
		return list, true
	}
	if tree.IsScalar(v) {
		return []any{v}, true
	}
	return nil, false
}

func asList(v any) []any {
	list, _ := positional(v)
	return list
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
