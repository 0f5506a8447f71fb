// Package tree provides helpers for generic configuration trees built from
// ordered maps, slices and scalars.
//
// A tree node is one of:
//   - *orderedmap.OrderedMap (or an orderedmap.OrderedMap value) for objects
//   - []any for sequences
//   - string, bool, any integer or float kind, or json.Number for scalars
//   - nil for null
package tree

import (
	"encoding/json"
	"reflect"
	"sort"

	"github.com/iancoleman/orderedmap"
)

// absent marks a missing node.
type absent struct{}

// Absent is the "no value" marker. Map entries holding it are treated as if
// they did not exist, and rewrite functions return it to delete a node.
var Absent any = absent{}

// IsAbsent reports whether v is the Absent marker.
func IsAbsent(v any) bool {
	_, ok := v.(absent)
	return ok
}

// AsMap converts both value and pointer types of OrderedMap to a pointer.
// Returns nil if the value is not an OrderedMap.
//
// A pointer made from a value shares the value's storage, so Same reports it
// identical to the original.
func AsMap(v any) *orderedmap.OrderedMap {
	switch val := v.(type) {
	case *orderedmap.OrderedMap:
		return val
	case orderedmap.OrderedMap:
		return &val
	default:
		return nil
	}
}

// IsMap reports whether v is a non-nil ordered map.
func IsMap(v any) bool {
	return AsMap(v) != nil
}

// IsScalar reports whether v is a string, boolean or number. Null is not a scalar.
func IsScalar(v any) bool {
	switch v.(type) {
	case string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

// Map builds an ordered map from alternating key and value arguments.
func Map(pairs ...any) *orderedmap.OrderedMap {
	m := New()
	for i := 0; i+1 < len(pairs); i += 2 {
		m.Set(pairs[i].(string), pairs[i+1])
	}
	return m
}

// New returns an empty ordered map that does not escape HTML when encoded.
func New() *orderedmap.OrderedMap {
	m := orderedmap.New()
	m.SetEscapeHTML(false)
	return m
}

// Copy returns a shallow copy of m with the same key order.
func Copy(m *orderedmap.OrderedMap) *orderedmap.OrderedMap {
	result := New()
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		result.Set(k, v)
	}
	return result
}

// DeepCopy creates a deep copy of a value.
// Works with ordered maps and slices typically found in JSON structures.
func DeepCopy(v any) any {
	if m := AsMap(v); m != nil {
		result := New()
		for _, k := range m.Keys() {
			v, _ := m.Get(k)
			result.Set(k, DeepCopy(v))
		}
		return result
	}
	if s, ok := v.([]any); ok {
		result := make([]any, len(s))
		for i, v := range s {
			result[i] = DeepCopy(v)
		}
		return result
	}
	// Primitives (string, float64, bool, nil) are immutable
	return v
}

// Normalize converts a decoded tree into its canonical form: every object
// becomes a *orderedmap.OrderedMap and every sequence a []any. Plain Go maps
// have no order, so their keys are sorted.
func Normalize(v any) any {
	switch val := v.(type) {
	case *orderedmap.OrderedMap, orderedmap.OrderedMap:
		m := AsMap(val)
		result := New()
		for _, k := range m.Keys() {
			v, _ := m.Get(k)
			result.Set(k, Normalize(v))
		}
		return result
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		result := New()
		for _, k := range keys {
			result.Set(k, Normalize(val[k]))
		}
		return result
	case []map[string]any:
		result := make([]any, len(val))
		for i, v := range val {
			result[i] = Normalize(v)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, v := range val {
			result[i] = Normalize(v)
		}
		return result
	default:
		return val
	}
}

// Same reports whether a and b are the same node. Maps and slices compare by
// reference, scalars by value. A map value and a pointer sharing its storage
// are the same node. Two separately built but equal containers are not.
func Same(a, b any) bool {
	if ma, mb := AsMap(a), AsMap(b); ma != nil || mb != nil {
		if ma == nil || mb == nil {
			return false
		}
		if ma == mb {
			return true
		}
		return sameRef(ma.Values(), mb.Values()) && sameRef(ma.Keys(), mb.Keys())
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Type() != rb.Type() {
		return false
	}
	switch ra.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return sameRef(a, b)
	}
	if ra.Type().Comparable() {
		return a == b
	}
	return false
}

// sameRef compares reference-like values by pointer (and length for slices).
func sameRef(a, b any) bool {
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if ra.Kind() == reflect.Slice && ra.Len() != rb.Len() {
		return false
	}
	return ra.Pointer() == rb.Pointer()
}

// IsNil checks if v is nil, including typed nil pointers inside interfaces.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
