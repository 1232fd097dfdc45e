package liveproxy

import (
	"context"
	"fmt"
	"sort"
	"strconv"
)

// Value is the access interceptor (spec §4.1, C3): Go has no
// language-level proxy mechanism, so per §9's design note this is an
// explicit accessor object rather than a transparent wrapper. A stable
// Value is returned for each (target, kind) pair by Proxy.facadeFor, so
// identity equality holds across reads as long as the underlying kind
// does not change between them.
type Value struct {
	p      *Proxy
	target Target
}

// Target returns the relative target this Value is rooted at.
func (v *Value) Target() Target { return v.target }

// Kind reports the current kind of the live value at this Value's
// target.
func (v *Value) Kind() Kind {
	v.p.mu.Lock()
	defer v.p.mu.Unlock()
	raw, _ := v.p.cache.get(v.target)
	return kindOf(raw)
}

// Raw returns the live underlying cache value with no projection and no
// clone — the documented escape hatch. Mutating the returned value
// bypasses the mutation queue and subscription fanout entirely.
func (v *Value) Raw() any {
	v.p.mu.Lock()
	defer v.p.mu.Unlock()
	raw, _ := v.p.cache.get(v.target)
	return raw
}

// Entry is one (key, projected value) pair yielded by Entries/ForEach.
// Key is a string for mapping children, an int for sequence children.
type Entry struct {
	Key any
	Val any
}

// Get reads a property. Composite children are returned as a *Value;
// leaves are returned as-is; a missing property returns nil. Reading a
// non-numeric index of a sequence, or any property of a non-composite,
// panics with a *UsageError (spec §4.1 "Rejection" — a synchronous usage
// error, never a store/consistency error).
func (v *Value) Get(key any) any {
	v.p.mu.Lock()
	defer v.p.mu.Unlock()
	raw, ok := v.p.cache.get(v.target)
	if !ok {
		return nil
	}
	switch node := raw.(type) {
	case *OMap:
		s, isStr := key.(string)
		if !isStr {
			panic(usageErr("get", v.target, v.p.path, ErrKindMismatch))
		}
		child, exists := node.Get(s)
		if !exists {
			return nil
		}
		return v.p.projectLocked(v.target.Append(s), child)
	case []any:
		i, isInt := key.(int)
		if !isInt {
			panic(usageErr("get", v.target, v.p.path, ErrKindMismatch))
		}
		if i < 0 || i >= len(node) {
			return nil
		}
		return v.p.projectLocked(v.target.Append(i), node[i])
	default:
		panic(usageErr("get", v.target, v.p.path, ErrKindMismatch))
	}
}

// Entries returns the composite's children in insertion order (mappings)
// or index order (sequences).
func (v *Value) Entries() []Entry {
	v.p.mu.Lock()
	defer v.p.mu.Unlock()
	raw, ok := v.p.cache.get(v.target)
	if !ok {
		return nil
	}
	switch node := raw.(type) {
	case *OMap:
		out := make([]Entry, 0, node.Len())
		node.Range(func(k string, val any) bool {
			out = append(out, Entry{Key: k, Val: v.p.projectLocked(v.target.Append(k), val)})
			return true
		})
		return out
	case []any:
		out := make([]Entry, len(node))
		for i, val := range node {
			out[i] = Entry{Key: i, Val: v.p.projectLocked(v.target.Append(i), val)}
		}
		return out
	default:
		panic(usageErr("entries", v.target, v.p.path, ErrKindMismatch))
	}
}

// Keys returns a mapping's property names in insertion order.
func (v *Value) Keys() []string {
	v.p.mu.Lock()
	defer v.p.mu.Unlock()
	raw, ok := v.p.cache.get(v.target)
	if !ok {
		return nil
	}
	om, isMap := raw.(*OMap)
	if !isMap {
		panic(usageErr("keys", v.target, v.p.path, ErrKindMismatch))
	}
	return append([]string{}, om.Keys()...)
}

// Values returns the composite's children in iteration order.
func (v *Value) Values() []any {
	entries := v.Entries()
	out := make([]any, len(entries))
	for i, e := range entries {
		out[i] = e.Val
	}
	return out
}

// ForEach calls fn for each child in iteration order, stopping early if
// fn returns false.
func (v *Value) ForEach(fn func(key any, val any) bool) {
	for _, e := range v.Entries() {
		if !fn(e.Key, e.Val) {
			return
		}
	}
}

// Set assigns a property (spec §4.1 "Writes"). The incoming value is
// deep-cloned and normalized first (a *Value argument is unwrapped to
// its raw value); writing a non-numeric string property on a sequence,
// or any property when this Value is not currently a composite, panics
// with a *UsageError.
func (v *Value) Set(key any, newVal any) error {
	if err := v.p.checkDestroyed(); err != nil {
		return err
	}
	v.p.mu.Lock()
	defer v.p.mu.Unlock()

	parentRaw, ok := v.p.cache.get(v.target)
	if !ok {
		panic(usageErr("set", v.target, v.p.path, ErrKindMismatch))
	}
	switch parentRaw.(type) {
	case *OMap:
		if _, isStr := key.(string); !isStr {
			panic(usageErr("set", v.target, v.p.path, ErrKindMismatch))
		}
	case []any:
		if _, isInt := key.(int); !isInt {
			panic(usageErr("set", v.target, v.p.path, ErrKindMismatch))
		}
	default:
		panic(usageErr("set", v.target, v.p.path, ErrKindMismatch))
	}

	cloned := normalize(deepClone(newVal))
	return v.p.applyWriteLocked(v.target.Append(key), cloned)
}

// Delete removes a property. Deleting an already-absent key is a no-op.
func (v *Value) Delete(key any) error {
	if err := v.p.checkDestroyed(); err != nil {
		return err
	}
	v.p.mu.Lock()
	defer v.p.mu.Unlock()

	parentRaw, ok := v.p.cache.get(v.target)
	if !ok {
		panic(usageErr("delete", v.target, v.p.path, ErrKindMismatch))
	}
	switch parentRaw.(type) {
	case *OMap:
		if _, isStr := key.(string); !isStr {
			panic(usageErr("delete", v.target, v.p.path, ErrKindMismatch))
		}
	case []any:
		if _, isInt := key.(int); !isInt {
			panic(usageErr("delete", v.target, v.p.path, ErrKindMismatch))
		}
	default:
		panic(usageErr("delete", v.target, v.p.path, ErrKindMismatch))
	}
	return v.p.applyDeleteLocked(v.target.Append(key))
}

// Remove deletes this Value from its parent (or, at the root, sets the
// whole proxied value to absent).
func (v *Value) Remove() error {
	if v.target.IsRoot() {
		return v.p.SetValue(nil)
	}
	if err := v.p.checkDestroyed(); err != nil {
		return err
	}
	v.p.mu.Lock()
	defer v.p.mu.Unlock()
	return v.p.applyDeleteLocked(v.target)
}

// Push appends entry: to a mapping, under an auto-generated key; to a
// sequence, at the end. Returns the key (string) or index (int) used.
func (v *Value) Push(entry any) (any, error) {
	if err := v.p.checkDestroyed(); err != nil {
		return nil, err
	}
	v.p.mu.Lock()
	defer v.p.mu.Unlock()

	raw, ok := v.p.cache.get(v.target)
	if !ok {
		panic(usageErr("push", v.target, v.p.path, ErrKindMismatch))
	}
	cloned := normalize(deepClone(entry))
	switch node := raw.(type) {
	case *OMap:
		key := v.p.idgen()
		if err := v.p.applyWriteLocked(v.target.Append(key), cloned); err != nil {
			return nil, err
		}
		return key, nil
	case []any:
		newSeq := append(append([]any{}, node...), cloned)
		if err := v.p.applyWriteLocked(v.target, newSeq); err != nil {
			return nil, err
		}
		return len(newSeq) - 1, nil
	default:
		panic(usageErr("push", v.target, v.p.path, ErrKindMismatch))
	}
}

func (v *Value) seqOp(name string, mutate func([]any) []any) error {
	if err := v.p.checkDestroyed(); err != nil {
		return err
	}
	v.p.mu.Lock()
	defer v.p.mu.Unlock()
	raw, ok := v.p.cache.get(v.target)
	seq, isSeq := raw.([]any)
	if !ok || !isSeq {
		panic(usageErr(name, v.target, v.p.path, ErrKindMismatch))
	}
	newSeq := mutate(append([]any{}, seq...))
	return v.p.applyWriteLocked(v.target, newSeq)
}

// Pop removes and returns the last element.
func (v *Value) Pop() (any, error) {
	var popped any
	err := v.seqOp("pop", func(s []any) []any {
		if len(s) == 0 {
			return s
		}
		popped = s[len(s)-1]
		return s[:len(s)-1]
	})
	return popped, err
}

// Shift removes and returns the first element.
func (v *Value) Shift() (any, error) {
	var shifted any
	err := v.seqOp("shift", func(s []any) []any {
		if len(s) == 0 {
			return s
		}
		shifted = s[0]
		return s[1:]
	})
	return shifted, err
}

// Unshift prepends items, cloning and normalizing each.
func (v *Value) Unshift(items ...any) error {
	return v.seqOp("unshift", func(s []any) []any {
		cloned := make([]any, len(items))
		for i, it := range items {
			cloned[i] = normalize(deepClone(it))
		}
		return append(cloned, s...)
	})
}

// Splice removes deleteCount elements starting at start and inserts
// items in their place, returning the removed elements.
func (v *Value) Splice(start, deleteCount int, items ...any) ([]any, error) {
	var removed []any
	err := v.seqOp("splice", func(s []any) []any {
		if start < 0 {
			start = 0
		}
		if start > len(s) {
			start = len(s)
		}
		end := start + deleteCount
		if end > len(s) {
			end = len(s)
		}
		removed = append([]any{}, s[start:end]...)
		cloned := make([]any, len(items))
		for i, it := range items {
			cloned[i] = normalize(deepClone(it))
		}
		out := append([]any{}, s[:start]...)
		out = append(out, cloned...)
		out = append(out, s[end:]...)
		return out
	})
	return removed, err
}

// SortSeq reorders the sequence according to less.
func (v *Value) SortSeq(less func(a, b any) bool) error {
	return v.seqOp("sort", func(s []any) []any {
		sort.SliceStable(s, func(i, j int) bool { return less(s[i], s[j]) })
		return s
	})
}

// Reverse reverses the sequence in place.
func (v *Value) Reverse() error {
	return v.seqOp("reverse", func(s []any) []any {
		for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
			s[i], s[j] = s[j], s[i]
		}
		return s
	})
}

// GetRef returns the external-store Ref addressing this Value's target.
func (v *Value) GetRef() Ref {
	r := v.p.ref
	for _, k := range v.target {
		r = r.Child(keyToString(k))
	}
	return r
}

// OnChanged attaches a subtree change listener (spec §4.4). cb receives
// frozen copies of the new and previous values at this target; returning
// false auto-detaches.
func (v *Value) OnChanged(cb func(newVal, oldVal any) bool) (stop func()) {
	return v.p.internal.add(v.target, cb)
}

// Subscribe returns a SubscribeFunc rooted at this Value's target.
func (v *Value) Subscribe() SubscribeFunc {
	return func(onNext func(any)) (stop func()) {
		onNext(toWire(v.Raw()))
		return v.p.internal.add(v.target, func(newVal, _ any) bool {
			onNext(newVal)
			return true
		})
	}
}

// GetObservable wraps Subscribe in the configured ObservableFactory.
// Fails with ErrObservableUnavailable if none was configured (spec §4.4,
// §9 — the reactive adapter is optional and resolved at subscription
// time).
func (v *Value) GetObservable() (Observable, error) {
	if v.p.observableFactory == nil {
		return nil, ErrObservableUnavailable
	}
	return v.p.observableFactory(v.Subscribe()), nil
}

// StartTransaction starts a transaction scoped to this Value's target.
func (v *Value) StartTransaction(ctx context.Context) (*Transaction, error) {
	return v.p.startTransaction(ctx, v.target)
}

// GetOrderedCollection wraps this Value (which must be a mapping) in an
// OrderedCollection helper. prop defaults to "order", increment to 10.
func (v *Value) GetOrderedCollection(prop string, increment float64) (*OrderedCollection, error) {
	return newOrderedCollection(v.p, v.target, prop, increment)
}

func keyToString(k any) string {
	switch t := k.(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprint(t)
	}
}
