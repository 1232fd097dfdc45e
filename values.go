package liveproxy

import "time"

// Kind classifies a cache value per the data model in spec §3.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindTimestamp
	KindBytes
	KindPathRef
	KindMap
	KindSeq
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindTimestamp:
		return "timestamp"
	case KindBytes:
		return "bytes"
	case KindPathRef:
		return "path-ref"
	case KindMap:
		return "map"
	case KindSeq:
		return "seq"
	default:
		return "unknown"
	}
}

// PathRef is an opaque marker value pointing at another location in the
// external store. It is treated as an immutable scalar: never deep-cloned,
// never descended into.
type PathRef struct {
	Path string
}

// kindOf classifies a raw cache value.
func kindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case string:
		return KindString
	case int, int64, float64, float32, uint, uint64:
		return KindNumber
	case bool:
		return KindBool
	case time.Time:
		return KindTimestamp
	case []byte:
		return KindBytes
	case PathRef:
		return KindPathRef
	case *OMap:
		return KindMap
	case []any:
		return KindSeq
	default:
		return KindNull
	}
}

// isComposite reports whether a kind descends into children.
func isComposite(k Kind) bool { return k == KindMap || k == KindSeq }

// isAbsent reports whether v is the "absent" value of the host kind: nil,
// or — per §4.1's writes contract — a value whose removal makes the
// parent's property disappear.
func isAbsent(v any) bool { return v == nil }

// absentValueFor returns the special "absent" value returned when reading
// a missing property, parameterized by the parent's composite kind (both
// map and sequence reads simply yield nil — there is only one absent
// value in this model).
func absentValueFor(Kind) any { return nil }
