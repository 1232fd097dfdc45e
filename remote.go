package liveproxy

import "context"

// attachRemote is the Remote Apply Engine (spec §4.5, C5): it subscribes
// to the store's mutation stream for this proxy's path and applies every
// non-echo batch to the cache, serialized onto the scheduler's worker
// goroutine alongside local writes and flushes.
func (p *Proxy) attachRemote() func() {
	stream := p.store.Mutations(p.path)
	return stream.Subscribe(func(batch MutationBatch) {
		p.sched.schedule(func() { p.applyRemoteBatch(batch) })
	})
}

// applyRemoteBatch runs on the scheduler goroutine. An echo of this
// proxy's own write (same ProxyStamp.ID) only advances the cursor, since
// the cache and local listeners were already updated at write/flush
// time. A genuine remote batch is applied mutation-by-mutation; if an
// intermediate node the batch expects is missing from the cache, the
// cache is out of sync with the store and a full Reload is triggered
// instead of risking a corrupt partial apply.
func (p *Proxy) applyRemoteBatch(batch MutationBatch) {
	sctx := batch.Context()

	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	if sctx.Proxy != nil && sctx.Proxy.ID == p.id {
		if sctx.Cursor != "" {
			p.cursor = sctx.Cursor
		}
		cursor := p.cursor
		p.mu.Unlock()
		if cursor != "" {
			p.pub.emitCursor(cursor)
		}
		return
	}

	var events []MutationEvent
	var applied []StoreMutation // targets written so far, with their prior cache values
	outdated := false
	for _, m := range batch.Mutations() {
		if parent, _, hasParent := m.Target.Parent(); hasParent {
			if _, ok := p.cache.get(parent); !ok {
				outdated = true
				break
			}
		}
		prior, _ := p.cache.get(m.Target)
		newVal := normalize(deepClone(m.Val))
		if err := p.cache.set(m.Target, newVal); err != nil {
			outdated = true
			break
		}
		applied = append(applied, StoreMutation{Target: m.Target, Previous: prior})
		events = append(events, MutationEvent{
			Target:   m.Target,
			Previous: toWire(deepClone(m.Previous)),
			Value:    toWire(deepClone(m.Val)),
			IsRemote: true,
		})
	}
	if outdated {
		// Undo the writes already made, newest first, so the batch is
		// never left half-applied in the cache.
		for i := len(applied) - 1; i >= 0; i-- {
			_ = p.cache.set(applied[i].Target, applied[i].Previous)
		}
	}
	if sctx.Cursor != "" {
		p.cursor = sctx.Cursor
	}
	cursor := p.cursor
	p.mu.Unlock()

	if outdated {
		p.pub.emitError(ErrorEvent{Source: "remote_apply", Message: "cache outdated relative to incoming batch, reloading", Details: ErrCacheOutdated})
		_ = p.Reload(context.Background())
		return
	}

	for _, ev := range events {
		p.pub.emitMutation(ev)
	}
	if len(events) > 0 && cursor != "" {
		p.pub.emitCursor(cursor)
	}
	originID := ""
	if sctx.Proxy != nil {
		originID = sctx.Proxy.ID
	}
	p.dispatchBatch(Batch{Mutations: events, Origin: "remote", ProxyID: originID})
}

// Reload bypasses the cache, re-fetches the proxied value in full, and
// synthesizes a mutation list from the diff against the current cache
// (spec §4.5's gap-handling path, also reachable directly when a caller
// suspects drift). Synthesized mutations are reported with Origin
// "local" since, unlike applyRemoteBatch, there is no single remote
// batch they came from.
func (p *Proxy) Reload(ctx context.Context) error {
	if err := p.checkDestroyed(); err != nil {
		return err
	}
	snap, err := p.store.Get(ctx, p.path, GetOptions{CacheMode: CacheModeBypass})
	if err != nil {
		p.pub.emitError(ErrorEvent{Source: "remote_apply", Message: "reload failed", Details: err})
		return err
	}
	newRoot := normalize(deepClone(snap.Val()))

	p.mu.Lock()
	oldRoot := p.cache.root
	diffs := diffCache(Root(), oldRoot, newRoot)
	p.cache.root = newRoot
	p.cache.hasValue = snap.Val() != nil
	if sctx := snap.Context(); sctx.Cursor != "" {
		p.cursor = sctx.Cursor
	}
	cursor := p.cursor
	p.mu.Unlock()

	events := make([]MutationEvent, len(diffs))
	for i, d := range diffs {
		events[i] = MutationEvent{Target: d.target, Previous: toWire(d.previous), Value: toWire(d.value), IsRemote: false}
	}
	for _, ev := range events {
		p.pub.emitMutation(ev)
	}
	if len(events) > 0 && cursor != "" {
		p.pub.emitCursor(cursor)
	}
	p.dispatchBatch(Batch{Mutations: events, Origin: "local"})
	return nil
}

// diffEntry is one synthesized change between an old and new cache tree.
type diffEntry struct {
	target   Target
	previous any
	value    any
}

// diffCache recurses through two cache trees rooted at the same target,
// descending into mappings key by key and falling back to a whole-node
// replacement entry wherever the kinds differ or either side is a
// sequence (sequences are always treated as a single unit elsewhere in
// this package, so a diff does the same).
func diffCache(target Target, old, new any) []diffEntry {
	if structurallyEqual(old, new) {
		return nil
	}
	oldOM, oldIsMap := old.(*OMap)
	newOM, newIsMap := new.(*OMap)
	if !oldIsMap || !newIsMap {
		return []diffEntry{{target: target, previous: cloneCacheValue(old), value: cloneCacheValue(new)}}
	}

	var out []diffEntry
	seen := make(map[string]bool)
	oldOM.Range(func(k string, v any) bool {
		seen[k] = true
		if nv, ok := newOM.Get(k); ok {
			out = append(out, diffCache(target.Append(k), v, nv)...)
		} else {
			out = append(out, diffEntry{target: target.Append(k), previous: cloneCacheValue(v), value: nil})
		}
		return true
	})
	newOM.Range(func(k string, v any) bool {
		if !seen[k] {
			out = append(out, diffEntry{target: target.Append(k), previous: nil, value: cloneCacheValue(v)})
		}
		return true
	})
	return out
}
