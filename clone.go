package liveproxy

import (
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mitchellh/copystructure"
)

// deepClone severs aliasing between arbitrary caller-held Go values
// (plain map[string]any/[]any/struct graphs passed into Set or supplied
// as Options.DefaultValue) and anything the core retains, per spec §9
// "Deep cloning". Byte buffers, timestamps, and path refs are treated as
// opaque scalars and returned as-is, matching the spec's "no deep clone
// needed" carve-out.
func deepClone(v any) any {
	switch v.(type) {
	case nil, string, bool, int, int64, float64, float32, uint, uint64,
		[]byte, time.Time, PathRef:
		return v
	}
	out, err := copystructure.Copy(v)
	if err != nil {
		// The only inputs this sees are JSON-shaped caller values; a
		// failure here means a caller passed something pathological
		// (e.g. a value containing a channel or func). Fall back to the
		// original rather than lose the write; normalize then passes
		// unsupported shapes through unchanged.
		return v
	}
	return out
}

// cloneCacheValue deep-clones a value already in the cache's internal
// shape (*OMap / []any / scalar) — used for the "previous" and "value"
// snapshots taken by the mutation queue (spec §3), transaction baselines,
// reload diffs and ordered-collection item snapshots. Subtree-listener
// callbacks receive toWire copies instead. Because
// the shape is already known, this recurses directly over OMap/slice
// rather than going through reflection.
func cloneCacheValue(v any) any {
	switch t := v.(type) {
	case *OMap:
		out := NewOMap()
		t.Range(func(k string, val any) bool {
			out.Set(k, cloneCacheValue(val))
			return true
		})
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneCacheValue(e)
		}
		return out
	default:
		return v // scalars, time.Time, []byte, PathRef, nil
	}
}

// structurallyEqual implements the "structurally equal" test used for
// idempotent-write suppression (R1) and transaction-rollback
// verification (I5).
func structurallyEqual(a, b any) bool {
	return cmp.Equal(a, b,
		cmp.Comparer(func(x, y time.Time) bool { return x.Equal(y) }),
		cmp.Comparer(func(x, y *OMap) bool { return omapEqual(x, y) }),
	)
}

func omapEqual(a, b *OMap) bool {
	if a.Len() != b.Len() {
		return false
	}
	eq := true
	a.Range(func(k string, av any) bool {
		bv, ok := b.Get(k)
		if !ok || !structurallyEqual(av, bv) {
			eq = false
			return false
		}
		return true
	})
	return eq
}
