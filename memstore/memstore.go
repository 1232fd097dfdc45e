// Package memstore is an in-memory liveproxy.Store reference
// implementation, grounded on the naming convention of the teacher
// module's sync/memory package: a single mutex-guarded value tree plus a
// fan-out notifier, with no external dependency beyond the standard
// library — there being no credible third-party in-memory KV library in
// the retrieved pack to reach for here (see DESIGN.md).
package memstore

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/go-mizu/liveproxy"
)

// Store is a process-local, in-memory backend. The zero value is not
// usable; construct with New.
type Store struct {
	mu     sync.Mutex
	root   any
	cursor uint64
	subs   map[string][]*subscription
}

// New returns an empty Store.
func New() *Store {
	return &Store{subs: make(map[string][]*subscription)}
}

type subscription struct {
	path string
	cb   func(liveproxy.MutationBatch)
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func joinPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "/" + key
}

// Ref returns a Ref addressing path.
func (s *Store) Ref(path string) liveproxy.Ref {
	return &ref{store: s, path: path}
}

type ref struct {
	store *Store
	path  string
}

func (r *ref) Path() string { return r.path }

// Cursor reports the store's current global cursor — memstore has no
// per-path cursor tracking, so every Ref shares the one monotonic
// counter, consistent with "" meaning unsupported per the Store
// contract only for a backend with no cursor concept at all.
func (r *ref) Cursor() string {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.cursorString()
}

func (r *ref) Child(key string) liveproxy.Ref {
	return &ref{store: r.store, path: joinPath(r.path, key)}
}

type snapshot struct {
	val any
	ctx liveproxy.StoreContext
}

func (s *snapshot) Val() any                      { return s.val }
func (s *snapshot) Context() liveproxy.StoreContext { return s.ctx }

// Get implements liveproxy.Store.
func (s *Store) Get(ctx context.Context, path string, opts liveproxy.GetOptions) (liveproxy.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val := getAt(s.root, splitPath(path))
	return &snapshot{val: wireClone(val), ctx: liveproxy.StoreContext{Cursor: s.cursorString()}}, nil
}

// Set implements liveproxy.Store: it replaces the whole value at path.
func (s *Store) Set(ctx context.Context, path string, value any, wctx liveproxy.WriteContext) error {
	s.mu.Lock()
	segs := splitPath(path)
	prev := getAt(s.root, segs)
	s.root = setAt(s.root, segs, wireClone(value))
	s.cursor++
	cur := s.cursorString()
	targets, cbs := s.matchingSubscribersLocked(path)
	s.mu.Unlock()

	for i, target := range targets {
		cbs[i](liveproxy.StoreContext{Cursor: cur, Proxy: stampPtr(wctx)}, []liveproxy.StoreMutation{
			{Target: target, Val: wireClone(value), Previous: wireClone(prev)},
		})
	}
	return nil
}

// Update implements liveproxy.Store: each key in partial is set, or
// removed if its value is nil.
func (s *Store) Update(ctx context.Context, path string, partial map[string]any, wctx liveproxy.WriteContext) error {
	s.mu.Lock()
	segs := splitPath(path)
	var muts []liveproxy.StoreMutation
	cur := getAt(s.root, segs)
	m, isMap := cur.(map[string]any)
	if !isMap {
		m = map[string]any{}
	} else {
		clonedM := make(map[string]any, len(m))
		for k, v := range m {
			clonedM[k] = v
		}
		m = clonedM
	}
	for k, v := range partial {
		prev := m[k]
		if v == nil {
			delete(m, k)
		} else {
			m[k] = wireClone(v)
		}
		muts = append(muts, liveproxy.StoreMutation{Target: liveproxy.Target{k}, Val: wireClone(v), Previous: wireClone(prev)})
	}
	s.root = setAt(s.root, segs, m)
	s.cursor++
	curCursor := s.cursorString()
	targets, cbs := s.matchingSubscribersLocked(path)
	s.mu.Unlock()

	for i, base := range targets {
		relMuts := make([]liveproxy.StoreMutation, len(muts))
		for j, mu := range muts {
			relMuts[j] = liveproxy.StoreMutation{Target: append(append(liveproxy.Target{}, base...), mu.Target...), Val: mu.Val, Previous: mu.Previous}
		}
		cbs[i](liveproxy.StoreContext{Cursor: curCursor, Proxy: stampPtr(wctx)}, relMuts)
	}
	return nil
}

// matchingSubscribersLocked returns, for every subscription whose path
// equals or is an ancestor of path, the target relative to that
// subscription and a notifier bound to its callback. Callers must hold
// s.mu; the returned notifiers must be invoked only after releasing it.
func (s *Store) matchingSubscribersLocked(path string) ([]liveproxy.Target, []func(liveproxy.StoreContext, []liveproxy.StoreMutation)) {
	segs := splitPath(path)
	var targets []liveproxy.Target
	var notifiers []func(liveproxy.StoreContext, []liveproxy.StoreMutation)
	for subPath, subs := range s.subs {
		subSegs := splitPath(subPath)
		if len(subSegs) > len(segs) {
			continue
		}
		match := true
		for i, seg := range subSegs {
			if seg != segs[i] {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		rel := segs[len(subSegs):]
		target := make(liveproxy.Target, len(rel))
		for i, r := range rel {
			target[i] = r
		}
		for _, sub := range subs {
			cb := sub.cb
			notifiers = append(notifiers, func(sctx liveproxy.StoreContext, muts []liveproxy.StoreMutation) {
				cb(&batch{muts: muts, ctx: sctx})
			})
			targets = append(targets, target)
		}
	}
	return targets, notifiers
}

func stampPtr(wctx liveproxy.WriteContext) *liveproxy.ProxyStamp {
	if wctx.Proxy.ID == "" {
		return nil
	}
	stamp := wctx.Proxy
	return &stamp
}

type batch struct {
	muts []liveproxy.StoreMutation
	ctx  liveproxy.StoreContext
}

func (b *batch) Mutations() []liveproxy.StoreMutation  { return b.muts }
func (b *batch) Context() liveproxy.StoreContext        { return b.ctx }

type stream struct {
	store *Store
	path  string
}

// Mutations implements liveproxy.Store.
func (s *Store) Mutations(path string) liveproxy.MutationStream {
	return &stream{store: s, path: path}
}

func (st *stream) Subscribe(cb func(liveproxy.MutationBatch)) (stop func()) {
	sub := &subscription{path: st.path, cb: cb}
	st.store.mu.Lock()
	st.store.subs[st.path] = append(st.store.subs[st.path], sub)
	st.store.mu.Unlock()
	return func() {
		st.store.mu.Lock()
		defer st.store.mu.Unlock()
		list := st.store.subs[st.path]
		for i, x := range list {
			if x == sub {
				st.store.subs[st.path] = append(list[:i], list[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) cursorString() string {
	return strconv.FormatUint(s.cursor, 10)
}

func getAt(root any, segs []string) any {
	cur := root
	for _, seg := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[seg]
		if !ok {
			return nil
		}
	}
	return cur
}

func setAt(root any, segs []string, value any) any {
	if len(segs) == 0 {
		return value
	}
	m, ok := root.(map[string]any)
	if !ok || m == nil {
		m = map[string]any{}
	} else {
		clone := make(map[string]any, len(m))
		for k, v := range m {
			clone[k] = v
		}
		m = clone
	}
	if len(segs) == 1 {
		if value == nil {
			delete(m, segs[0])
		} else {
			m[segs[0]] = value
		}
		return m
	}
	m[segs[0]] = setAt(m[segs[0]], segs[1:], value)
	return m
}

func wireClone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = wireClone(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = wireClone(val)
		}
		return out
	default:
		return t
	}
}
