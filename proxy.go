package liveproxy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Options configures Create. All fields are optional.
type Options struct {
	// DefaultValue is written to the store (stamped source=default) and
	// used as the initial cache if the store has no value at path yet.
	DefaultValue any
	// Logger receives the core's narrow warning/error logging. Defaults
	// to slog.Default(), matching the teacher's WithLogger convention.
	Logger *slog.Logger
	// IDGenerator mints the proxy's identity and push keys. Defaults to
	// DefaultIDGenerator (ULID-based).
	IDGenerator IDGenerator
	// ObservableFactory backs GetObservable/observe(). Defaults to nil,
	// meaning GetObservable fails with ErrObservableUnavailable — pass
	// DefaultObservableFactory or a real reactive adapter to enable it.
	ObservableFactory ObservableFactory
}

// Proxy is the public handle returned by Create (spec §4.7, C9).
type Proxy struct {
	mu sync.Mutex

	store Store
	path  string
	ref   Ref
	id    string
	idgen IDGenerator

	cache     *cache
	queue     *mutationQueue
	txns      []*Transaction
	facades   map[string]*Value
	destroyed bool
	cursor    string

	sched       *scheduler
	flushQueued bool

	pub      *emitter
	internal *internalEmitter

	observableFactory ObservableFactory
	log               *slog.Logger

	stopRemote func()
}

// Create fetches the initial value at path from store (spec §4.7 step
// 1-4) and returns a live Proxy over it.
func Create(ctx context.Context, store Store, path string, opts Options) (*Proxy, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.IDGenerator == nil {
		opts.IDGenerator = DefaultIDGenerator
	}

	p := &Proxy{
		store:             store,
		path:              path,
		ref:               store.Ref(path),
		id:                opts.IDGenerator(),
		idgen:             opts.IDGenerator,
		cache:             newCache(),
		queue:             newMutationQueue(),
		facades:           make(map[string]*Value),
		sched:             newScheduler(),
		internal:          newInternalEmitter(),
		observableFactory: opts.ObservableFactory,
		log:               opts.Logger,
	}
	p.pub = newEmitter(func(source, msg string, err error) {
		p.log.Warn("liveproxy error event", slog.String("source", source), slog.String("message", msg), slog.Any("error", err))
	})

	snap, err := store.Get(ctx, path, GetOptions{CacheMode: CacheModeAllow})
	if err != nil {
		p.sched.stop()
		return nil, fmt.Errorf("liveproxy: initial fetch of %s: %w", path, err)
	}

	val := snap.Val()
	if val == nil && opts.DefaultValue != nil {
		wireVal := deepClone(opts.DefaultValue)
		wctx := WriteContext{Proxy: ProxyStamp{ID: p.id, Source: SourceDefault}}
		if err := store.Set(ctx, path, wireVal, wctx); err != nil {
			p.sched.stop()
			return nil, fmt.Errorf("liveproxy: writing default value to %s: %w", path, err)
		}
		val = wireVal
	}

	p.cache.root = normalize(deepClone(val))
	p.cache.hasValue = val != nil

	if sctx := snap.Context(); sctx.Cursor != "" {
		p.cursor = sctx.Cursor
	}

	stop := p.attachRemote()
	p.stopRemote = stop

	return p, nil
}

// Value returns the access interceptor rooted at the proxy root.
func (p *Proxy) Value() *Value { return p.facadeFor(Root()) }

// SetValue replaces the whole root value (spec §4.7 step 5).
func (p *Proxy) SetValue(v any) error {
	if err := p.checkDestroyed(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	cloned := normalize(deepClone(v))
	return p.applyWriteLocked(Root(), cloned)
}

// HasValue reports whether the proxied path currently holds a value.
func (p *Proxy) HasValue() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cache.hasValue
}

// Ref returns the external-store Ref this proxy mirrors.
func (p *Proxy) Ref() Ref { return p.ref }

// Cursor returns the latest sync cursor observed, or "" if none has been
// seen yet (spec §3 "Cursor").
func (p *Proxy) Cursor() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// On registers cb for event (one of "cursor", "mutation", "error").
func (p *Proxy) On(event string, cb func(any)) { p.pub.on(event, cb) }

// Off removes a handler previously passed to On.
func (p *Proxy) Off(event string, cb func(any)) { p.pub.off(event, cb) }

// OnMutation installs the legacy single-handler mutation callback,
// replacing any previous one. Independent of On("mutation", ...) per
// spec §9 Open Question 3.
func (p *Proxy) OnMutation(cb func(MutationEvent)) {
	p.pub.mu.Lock()
	p.pub.onMutation = cb
	p.pub.mu.Unlock()
}

// OnError installs the legacy single-handler error callback, replacing
// any previous one.
func (p *Proxy) OnError(cb func(ErrorEvent)) {
	p.pub.mu.Lock()
	p.pub.onError = cb
	p.pub.mu.Unlock()
}

// Destroy awaits any in-flight flush, implicitly commits any still-open
// transactions (spec §9 Open Question 1), stops the remote subscription
// and all subtree subscriptions, clears public handlers, and releases
// the cache. After Destroy returns, SetValue, Reload, StartTransaction and
// the Value write methods (Set, Delete, Remove, Push and the sequence
// mutators) return ErrDestroyed; the read accessors and the event
// registration methods do not check for destruction.
func (p *Proxy) Destroy(ctx context.Context) error {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return nil
	}
	txns := append([]*Transaction{}, p.txns...)
	p.mu.Unlock()

	for _, t := range txns {
		_ = t.Commit(ctx)
	}

	p.sched.sync() // await in-flight flush

	p.mu.Lock()
	p.destroyed = true
	stop := p.stopRemote
	p.mu.Unlock()

	if stop != nil {
		stop()
	}

	p.pub.mu.Lock()
	p.pub.handlers = map[string][]func(any){}
	p.pub.onMutation = nil
	p.pub.onError = nil
	p.pub.mu.Unlock()

	p.sched.stop()

	p.mu.Lock()
	p.cache = newCache()
	p.facades = map[string]*Value{}
	p.mu.Unlock()

	return nil
}

// Stop is an alias for Destroy.
func (p *Proxy) Stop(ctx context.Context) error { return p.Destroy(ctx) }

func (p *Proxy) checkDestroyed() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return ErrDestroyed
	}
	return nil
}
