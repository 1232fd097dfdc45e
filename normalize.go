package liveproxy

import "sort"

// normalize converts an arbitrary already-deep-cloned Go value (as
// produced by deepClone) into the cache's internal shape: *OMap for
// mappings, []any for sequences, scalars unchanged. It also unwraps a
// *Value argument to its raw underlying value first (spec §4.1 "If the
// incoming value is itself a facade, unwrap it") and strips properties
// whose value is absent (nil), per §4.1's writes contract.
func normalize(v any) any {
	if val, ok := v.(*Value); ok {
		return normalize(val.Raw())
	}
	switch t := v.(type) {
	case map[string]any:
		o := NewOMap()
		for _, k := range sortedKeys(t) {
			if t[k] == nil {
				continue // strip absent properties
			}
			o.Set(k, normalize(t[k]))
		}
		return o
	case *OMap:
		o := NewOMap()
		t.Range(func(k string, val any) bool {
			if val != nil {
				o.Set(k, normalize(val))
			}
			return true
		})
		return o
	case []any:
		out := make([]any, 0, len(t))
		for _, e := range t {
			out = append(out, normalize(e))
		}
		return out
	default:
		return t
	}
}

// toWire converts a cache-shaped value (*OMap/[]any/scalars) back into
// plain Go values (map[string]any/[]any) for the external Store, which
// knows nothing about the cache's internal OMap representation.
func toWire(v any) any {
	switch t := v.(type) {
	case *OMap:
		m := make(map[string]any, t.Len())
		t.Range(func(k string, val any) bool {
			m[k] = toWire(val)
			return true
		})
		return m
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = toWire(e)
		}
		return out
	default:
		return t
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// deterministic (sorted) order for bare Go maps, which have no
	// insertion order to preserve.
	sort.Strings(keys)
	return keys
}
