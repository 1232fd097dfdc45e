package liveproxy

import (
	"fmt"
	"strconv"
	"strings"
)

// Target is an ordered sequence of keys identifying a node relative to a
// proxy's root. Each key is either a string (map property) or an int
// (sequence index). The empty Target denotes the root.
type Target []any

// Root is the empty target, denoting the proxied value itself.
func Root() Target { return nil }

// Append returns a new target with key appended. The receiver is not
// mutated.
func (t Target) Append(key any) Target {
	out := make(Target, len(t)+1)
	copy(out, t)
	out[len(t)] = key
	return out
}

// Parent returns the target's parent and its trailing key. ok is false for
// the root target.
func (t Target) Parent() (parent Target, key any, ok bool) {
	if len(t) == 0 {
		return nil, nil, false
	}
	return t[:len(t)-1], t[len(t)-1], true
}

// Last returns the trailing key, or nil for the root target.
func (t Target) Last() any {
	if len(t) == 0 {
		return nil
	}
	return t[len(t)-1]
}

// IsRoot reports whether t addresses the proxy root.
func (t Target) IsRoot() bool { return len(t) == 0 }

// Equal reports whether a and b address the same node: same length,
// element-wise equal keys.
func (a Target) Equal(b Target) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !keyEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// IsAncestorOf reports whether a is a strict ancestor of b: a is shorter
// and a prefix of b.
func (a Target) IsAncestorOf(b Target) bool {
	if len(a) >= len(b) {
		return false
	}
	for i := range a {
		if !keyEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// IsDescendantOf reports whether a is a strict descendant of b.
func (a Target) IsDescendantOf(b Target) bool { return b.IsAncestorOf(a) }

// Covers reports whether a equals or is an ancestor of b — the "at or
// under" relation used throughout the transaction and transaction-flush
// logic.
func (a Target) Covers(b Target) bool { return a.Equal(b) || a.IsAncestorOf(b) }

// Key returns a canonical string encoding suitable for map lookups
// (dedup of pending mutations by target, facade-identity cache keys).
func (t Target) Key() string {
	var b strings.Builder
	for _, k := range t {
		b.WriteByte('/')
		switch v := k.(type) {
		case string:
			b.WriteByte('s')
			b.WriteString(v)
		case int:
			b.WriteByte('i')
			b.WriteString(strconv.Itoa(v))
		default:
			fmt.Fprintf(&b, "?%v", v)
		}
	}
	return b.String()
}

// Clone returns a shallow copy of t (the keys themselves are immutable
// scalars, so a shallow copy is a full copy).
func (t Target) Clone() Target {
	if t == nil {
		return nil
	}
	out := make(Target, len(t))
	copy(out, t)
	return out
}

func (t Target) String() string {
	if t.IsRoot() {
		return "<root>"
	}
	var b strings.Builder
	for i, k := range t {
		if i > 0 {
			b.WriteByte('.')
		}
		fmt.Fprintf(&b, "%v", k)
	}
	return b.String()
}

func keyEqual(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	default:
		return a == b
	}
}
