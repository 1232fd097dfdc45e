package liveproxy

import "sync"

// MutationEvent is delivered on the "mutation" event for each mutation in
// a flushed or applied batch.
type MutationEvent struct {
	Target   Target
	Previous any
	Value    any
	IsRemote bool
}

// Batch is the payload of the internal "mutations" fanout (spec §4.4):
// a full set of mutations delivered together, tagged with where they
// came from and the proxy stamp of the write that produced them.
type Batch struct {
	Mutations []MutationEvent
	Origin    string // "local" or "remote"
	ProxyID   string // this proxy's ID for a flushed batch, the writer's stamp for a remote batch, "" for a reload
}

// emitter is the public multi-handler event surface: on/off for
// "cursor", "mutation", "error", plus the legacy single-handler slots
// onMutation/onError. Per spec §9 Open Question 3 the two surfaces are
// independent: replacing the legacy handler never touches on()/off()
// registrations and vice versa.
type emitter struct {
	mu       sync.Mutex
	handlers map[string][]func(any)

	onMutation func(MutationEvent)
	onError    func(ErrorEvent)

	log logFunc
}

type logFunc func(source, msg string, err error)

func newEmitter(log logFunc) *emitter {
	return &emitter{handlers: make(map[string][]func(any)), log: log}
}

func (e *emitter) on(event string, cb func(any)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[event] = append(e.handlers[event], cb)
}

func (e *emitter) off(event string, cb func(any)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	list := e.handlers[event]
	for i, h := range list {
		if funcEqual(h, cb) {
			e.handlers[event] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// funcEqual compares function values by pointer identity where possible.
// Go forbids comparing func values directly; callers are expected to pass
// the same func value they registered with on (common idiom: store the
// closure once, pass it to both on and off).
func funcEqual(a, b func(any)) bool {
	return fnPtr(a) == fnPtr(b)
}

func (e *emitter) emitCursor(cursor string) {
	e.dispatch("cursor", cursor)
}

func (e *emitter) emitMutation(ev MutationEvent) {
	e.mu.Lock()
	cb := e.onMutation
	e.mu.Unlock()
	if cb != nil {
		e.safeCall("mutation_callback", func() { cb(ev) })
	}
	e.dispatch("mutation", ev)
}

func (e *emitter) emitError(ev ErrorEvent) {
	e.mu.Lock()
	cb := e.onError
	e.mu.Unlock()
	if cb != nil {
		e.safeCall("mutation_callback", func() { cb(ev) })
	}
	e.dispatch("error", ev)
	if e.log != nil {
		e.log(ev.Source, ev.Message, ev.Details)
	}
}

func (e *emitter) dispatch(event string, payload any) {
	e.mu.Lock()
	list := append([]func(any){}, e.handlers[event]...)
	e.mu.Unlock()
	for _, cb := range list {
		e.safeCall(event, func() { cb(payload) })
	}
}

// safeCall catches panics raised by user callbacks and re-emits them as
// error events, per spec §7 "Callback errors" — they never escape into
// the core's control flow.
func (e *emitter) safeCall(source string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			ev := ErrorEvent{Source: source, Message: "callback panicked", Details: panicErr(r)}
			e.mu.Lock()
			list := append([]func(any){}, e.handlers["error"]...)
			onErr := e.onError
			e.mu.Unlock()
			if onErr != nil {
				func() {
					defer func() { recover() }()
					onErr(ev)
				}()
			}
			for _, cb := range list {
				func() {
					defer func() { recover() }()
					cb(ev)
				}()
			}
		}
	}()
	fn()
}

// changeListener is one subtree subscription (spec §4.4).
type changeListener struct {
	target Target
	cb     func(newVal, oldVal any) bool // false return => auto-detach
}

// internalEmitter fans batches out to subtree listeners.
type internalEmitter struct {
	mu        sync.Mutex
	listeners []*changeListener
}

func newInternalEmitter() *internalEmitter {
	return &internalEmitter{}
}

func (ie *internalEmitter) add(target Target, cb func(newVal, oldVal any) bool) (stop func()) {
	l := &changeListener{target: target, cb: cb}
	ie.mu.Lock()
	ie.listeners = append(ie.listeners, l)
	ie.mu.Unlock()
	return func() { ie.remove(l) }
}

func (ie *internalEmitter) remove(l *changeListener) {
	ie.mu.Lock()
	defer ie.mu.Unlock()
	for i, x := range ie.listeners {
		if x == l {
			ie.listeners = append(ie.listeners[:i], ie.listeners[i+1:]...)
			return
		}
	}
}

func (ie *internalEmitter) snapshot() []*changeListener {
	ie.mu.Lock()
	defer ie.mu.Unlock()
	return append([]*changeListener{}, ie.listeners...)
}
