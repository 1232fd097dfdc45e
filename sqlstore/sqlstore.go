// Package sqlstore is a DuckDB-backed liveproxy.Store implementation,
// grounded on the teacher module's store/duckdb packages
// (blueprints/chat, blueprints/book, blueprints/forum): a *sql.DB handed
// in by the caller, plain parameterized SQL, no ORM.
// The document tree for each top-level path segment is persisted as one
// JSON row; nested paths are addressed by decoding, navigating, and
// re-encoding that row, matching memstore's path-segment model so the
// two Store implementations behave identically from the core's point of
// view.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/go-mizu/liveproxy"
)

// Store is a DuckDB-backed liveproxy.Store. The zero value is not usable;
// construct with Open or New.
type Store struct {
	db *sql.DB

	mu     sync.Mutex
	cursor uint64
	subs   map[string][]*subscription
}

// Open opens (creating if necessary) a DuckDB database file at path and
// returns a Store backed by it, matching the
// sql.Open("duckdb", ...)-then-wrap pattern used throughout the teacher's
// blueprints (e.g. blueprints/chat/app/web/server.go).
func Open(path string) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}
	return New(db)
}

// New wraps an existing *sql.DB, creating the documents table if absent.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS liveproxy_documents (
			root  VARCHAR PRIMARY KEY,
			value VARCHAR NOT NULL
		)
	`); err != nil {
		return nil, fmt.Errorf("sqlstore: create table: %w", err)
	}
	return &Store{db: db, subs: make(map[string][]*subscription)}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

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

// Cursor reports the store's global write counter. DuckDB rows carry no
// per-row version column here, so — like memstore — every Ref shares one
// monotonic counter rather than a per-path one.
func (r *ref) Cursor() string {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return fmt.Sprintf("%d", r.store.cursor)
}

func (r *ref) Child(key string) liveproxy.Ref {
	return &ref{store: r.store, path: joinPath(r.path, key)}
}

type snapshot struct {
	val any
	ctx liveproxy.StoreContext
}

func (s *snapshot) Val() any                        { return s.val }
func (s *snapshot) Context() liveproxy.StoreContext { return s.ctx }

// loadRoot reads and JSON-decodes the row for the top-level segment of
// path, returning nil if no row exists yet.
func (s *Store) loadRoot(ctx context.Context, rootKey string) (any, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM liveproxy_documents WHERE root = ?`, rootKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("sqlstore: decode %q: %w", rootKey, err)
	}
	return decoded, nil
}

func (s *Store) saveRoot(ctx context.Context, rootKey string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("sqlstore: encode %q: %w", rootKey, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO liveproxy_documents (root, value) VALUES (?, ?)
		ON CONFLICT (root) DO UPDATE SET value = excluded.value
	`, rootKey, string(encoded))
	return err
}

// Get implements liveproxy.Store.
func (s *Store) Get(ctx context.Context, path string, opts liveproxy.GetOptions) (liveproxy.Snapshot, error) {
	segs := splitPath(path)
	if len(segs) == 0 {
		return nil, fmt.Errorf("sqlstore: path must name at least a root segment")
	}
	root, err := s.loadRoot(ctx, segs[0])
	if err != nil {
		return nil, err
	}
	val := navigate(root, segs[1:])
	s.mu.Lock()
	cur := s.cursor
	s.mu.Unlock()
	return &snapshot{val: val, ctx: liveproxy.StoreContext{Cursor: fmt.Sprintf("%d", cur)}}, nil
}

// Set implements liveproxy.Store: it replaces the whole value at path.
func (s *Store) Set(ctx context.Context, path string, value any, wctx liveproxy.WriteContext) error {
	segs := splitPath(path)
	if len(segs) == 0 {
		return fmt.Errorf("sqlstore: path must name at least a root segment")
	}
	root, err := s.loadRoot(ctx, segs[0])
	if err != nil {
		return err
	}
	prev := navigate(root, segs[1:])
	newRoot := patch(root, segs[1:], value)
	if err := s.saveRoot(ctx, segs[0], newRoot); err != nil {
		return err
	}

	s.mu.Lock()
	s.cursor++
	cur := s.cursor
	targets, cbs := s.matchingSubscribersLocked(path)
	s.mu.Unlock()

	notifyAll(targets, cbs, fmt.Sprintf("%d", cur), wctx, []liveproxy.StoreMutation{{Target: liveproxy.Target{}, Val: value, Previous: prev}})
	return nil
}

// Update implements liveproxy.Store: each key in partial is set, or
// removed if its value is nil.
func (s *Store) Update(ctx context.Context, path string, partial map[string]any, wctx liveproxy.WriteContext) error {
	segs := splitPath(path)
	if len(segs) == 0 {
		return fmt.Errorf("sqlstore: path must name at least a root segment")
	}
	root, err := s.loadRoot(ctx, segs[0])
	if err != nil {
		return err
	}
	cur := navigate(root, segs[1:])
	m, _ := cur.(map[string]any)
	merged := make(map[string]any, len(m)+len(partial))
	for k, v := range m {
		merged[k] = v
	}
	var muts []liveproxy.StoreMutation
	for k, v := range partial {
		prev := merged[k]
		if v == nil {
			delete(merged, k)
		} else {
			merged[k] = v
		}
		muts = append(muts, liveproxy.StoreMutation{Target: liveproxy.Target{k}, Val: v, Previous: prev})
	}
	newRoot := patch(root, segs[1:], merged)
	if err := s.saveRoot(ctx, segs[0], newRoot); err != nil {
		return err
	}

	s.mu.Lock()
	s.cursor++
	curCursor := s.cursor
	targets, cbs := s.matchingSubscribersLocked(path)
	s.mu.Unlock()

	notifyAll(targets, cbs, fmt.Sprintf("%d", curCursor), wctx, muts)
	return nil
}

func notifyAll(targets []liveproxy.Target, cbs []func(liveproxy.StoreContext, []liveproxy.StoreMutation), cursor string, wctx liveproxy.WriteContext, muts []liveproxy.StoreMutation) {
	for i, base := range targets {
		relMuts := make([]liveproxy.StoreMutation, len(muts))
		for j, mu := range muts {
			relMuts[j] = liveproxy.StoreMutation{
				Target:   append(append(liveproxy.Target{}, base...), mu.Target...),
				Val:      mu.Val,
				Previous: mu.Previous,
			}
		}
		cbs[i](liveproxy.StoreContext{Cursor: cursor, Proxy: stampPtr(wctx)}, relMuts)
	}
}

// matchingSubscribersLocked mirrors memstore's subscriber matching:
// every subscription whose path equals or is an ancestor of path gets
// notified with a target relative to its own subscribed path. Callers
// must hold s.mu; returned notifiers must run only after releasing it.
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

func (b *batch) Mutations() []liveproxy.StoreMutation { return b.muts }
func (b *batch) Context() liveproxy.StoreContext      { return b.ctx }

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

// navigate walks segs inside a JSON-decoded value (maps only — sqlstore
// documents are always mapping-rooted at each segment boundary).
func navigate(v any, segs []string) any {
	cur := v
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

// patch returns a copy of root with the value at segs replaced by value.
func patch(root any, segs []string, value any) any {
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
	m[segs[0]] = patch(m[segs[0]], segs[1:], value)
	return m
}
