// Package path provides context paths: the ordered chain of context names
// from the root ("main") down to a position in a configuration tree.
package path

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Context names known to the resolver.
const (
	Main     = "main"
	Events   = "events"
	HTTP     = "http"
	Mail     = "mail"
	Stream   = "stream"
	Server   = "server"
	Location = "location"
	Unknown  = "unknown"
)

// Separator joins path segments in the canonical string form, e.g. "main/http/server".
const Separator = "/"

// Path is an ordered list of context names. The zero value is the empty path.
// Paths are values: Child and Parent never alias the receiver's storage.
type Path struct {
	segments []string
}

// New creates a Path from explicit segments.
func New(segments ...string) Path {
	return Path{segments: append([]string(nil), segments...)}
}

// Resolve maps a short context name to its full ancestor chain.
// Names outside the fixed set resolve to the single-element path [unknown].
func Resolve(name string) Path {
	switch name {
	case Main:
		return New(Main)
	case Server:
		// server lives in http, mail or stream; the parent is ambiguous.
		return New(Main, Unknown, Server)
	case Location:
		return New(Main, HTTP, Location)
	case HTTP, Mail, Stream:
		return New(Main, name)
	default:
		return New(Unknown)
	}
}

// Parse reads a context given as a short name ("server"), a slash-joined
// path ("main/http") or a JSON array (`["main", "http"]`).
func Parse(s string) (Path, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return Path{}, fmt.Errorf("empty context")
	case strings.HasPrefix(s, "["):
		var segments []string
		if err := json.Unmarshal([]byte(s), &segments); err != nil {
			return Path{}, fmt.Errorf("invalid context path array: %w", err)
		}
		if len(segments) == 0 {
			return Path{}, fmt.Errorf("empty context")
		}
		return New(segments...), nil
	case strings.Contains(s, Separator):
		return New(strings.Split(strings.Trim(s, Separator), Separator)...), nil
	default:
		return Resolve(s), nil
	}
}

// Segments returns a copy of the path segments.
func (p Path) Segments() []string {
	return append([]string(nil), p.segments...)
}

// Len returns the number of segments.
func (p Path) Len() int {
	return len(p.segments)
}

// Last returns the final segment, or "" for the empty path.
func (p Path) Last() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// Parent returns the path without its final segment.
func (p Path) Parent() Path {
	if len(p.segments) == 0 {
		return Path{}
	}
	return Path{segments: p.segments[: len(p.segments)-1 : len(p.segments)-1]}
}

// Child returns a new path with name appended.
func (p Path) Child(name string) Path {
	segments := make([]string, len(p.segments), len(p.segments)+1)
	copy(segments, p.segments)
	return Path{segments: append(segments, name)}
}

// String returns the slash-joined form used by parameterless-block sets.
func (p Path) String() string {
	return strings.Join(p.segments, Separator)
}

// JSON returns the path as a JSON array string.
func (p Path) JSON() string {
	segments := p.segments
	if segments == nil {
		segments = []string{}
	}
	data, _ := json.Marshal(segments)
	return string(data)
}
