// Package merge layers configuration trees on top of each other.
package merge

import (
	"github.com/iancoleman/orderedmap"

	"github.com/thirteen37/ngxconf/internal/tree"
)

// Merge combines base with overlays, applied in order.
//
// Algorithm:
//  1. Start with a deep copy of base
//  2. For each overlay and each of its keys:
//     - If both values are objects, merge them recursively
//     - Otherwise the overlay value replaces the base value
//
// Keys keep their position in base; keys new in an overlay are appended.
// Sequences are replaced, not concatenated. Neither base nor the overlays
// are modified.
func Merge(base *orderedmap.OrderedMap, overlays ...*orderedmap.OrderedMap) *orderedmap.OrderedMap {
	var result *orderedmap.OrderedMap
	if tree.IsNil(base) {
		result = tree.New()
	} else {
		result = tree.AsMap(tree.DeepCopy(base))
	}

	for _, overlay := range overlays {
		// Note: We check for typed nil because interface comparison with nil
		// may fail for typed nil pointers
		if tree.IsNil(overlay) {
			continue
		}
		mergeInto(result, overlay)
	}
	return result
}

// mergeInto merges overlay into dst, which must be owned by the caller.
func mergeInto(dst, overlay *orderedmap.OrderedMap) {
	for _, k := range overlay.Keys() {
		v, _ := overlay.Get(k)
		if tree.IsAbsent(v) {
			continue
		}
		existing, ok := dst.Get(k)
		if ok && tree.IsMap(existing) && tree.IsMap(v) {
			// dst values are deep copies, so the map can be merged in place.
			mergeInto(tree.AsMap(existing), tree.AsMap(v))
			continue
		}
		dst.Set(k, tree.DeepCopy(v))
	}
}
