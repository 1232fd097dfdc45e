package liveproxy

import "context"

// refForTarget walks ref through target's keys, yielding the Ref
// addressing that node in the external store.
func refForTarget(ref Ref, target Target) Ref {
	r := ref
	for _, k := range target {
		r = r.Child(keyToString(k))
	}
	return r
}

// storeGroup is one outbound Store call: the root's whole-value Set, or
// an Update merging every sibling pendingMutation that shares a parent.
type storeGroup struct {
	isRoot  bool
	parent  Target
	partial map[string]any
	anchors []*pendingMutation // the dominant (non-subsumed) mutations this call covers
}

// pruneDominated drops any mutation whose target is a strict descendant
// of another flushable mutation's target (spec §4.2 "ancestor
// dominance") — the ancestor's freshly-read value already reflects the
// descendant's effect, so only the ancestor needs to reach the store.
func pruneDominated(muts []*pendingMutation) []*pendingMutation {
	out := make([]*pendingMutation, 0, len(muts))
	for _, m := range muts {
		dominated := false
		for _, other := range muts {
			if other != m && other.target.IsAncestorOf(m.target) {
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, m)
		}
	}
	return out
}

func buildGroups(anchors []*pendingMutation) []*storeGroup {
	var groups []*storeGroup
	byParent := map[string]*storeGroup{}
	for _, m := range anchors {
		if m.target.IsRoot() {
			groups = append(groups, &storeGroup{isRoot: true, anchors: []*pendingMutation{m}})
			continue
		}
		parent, key, _ := m.target.Parent()
		pk := parent.Key()
		g, ok := byParent[pk]
		if !ok {
			g = &storeGroup{parent: parent, partial: map[string]any{}}
			byParent[pk] = g
			groups = append(groups, g)
		}
		g.partial[keyToString(key)] = toWire(m.value)
		g.anchors = append(g.anchors, m)
	}
	return groups
}

// flush runs on the scheduler's worker goroutine (spec §4.2): it takes
// every currently flushable pending mutation, fills in its live value,
// writes it to the store (grouped per §4.2 steps 2-6), and on success
// advances the cursor and emits events; a group that fails to write is
// rolled back in the cache and reported as an error event, and the rest
// of the flush continues.
func (p *Proxy) flush() {
	p.mu.Lock()
	p.flushQueued = false

	var txnTargets []Target
	for _, t := range p.txns {
		if !t.isCompleted() {
			txnTargets = append(txnTargets, t.target)
		}
	}
	flushable := p.queue.partitionFlushable(txnTargets)
	if len(flushable) == 0 {
		p.mu.Unlock()
		return
	}
	for _, m := range flushable {
		raw, _ := p.cache.get(m.target)
		m.value = cloneCacheValue(raw)
		m.hasValue = true
	}

	anchors := pruneDominated(flushable)
	groups := buildGroups(anchors)

	ref := p.ref
	path := p.path
	store := p.store
	id := p.id
	p.mu.Unlock()

	ctx := context.Background()
	wctx := WriteContext{Proxy: ProxyStamp{ID: id, Source: SourceUpdate}}

	var cursor string
	var failed []*storeGroup
	for _, g := range groups {
		var err error
		var callRef Ref
		if g.isRoot {
			callRef = ref
			err = store.Set(ctx, path, toWire(g.anchors[0].value), wctx)
		} else {
			callRef = refForTarget(ref, g.parent)
			err = store.Update(ctx, callRef.Path(), g.partial, wctx)
		}
		if err != nil {
			failed = append(failed, g)
			p.pub.emitError(ErrorEvent{Source: "flush", Message: "store write failed", Details: err})
			continue
		}
		if c := callRef.Cursor(); c != "" {
			cursor = c
		}
	}

	p.mu.Lock()
	for _, g := range failed {
		for _, m := range g.anchors {
			_ = p.cache.set(m.target, m.previous)
		}
	}
	if cursor != "" {
		p.cursor = cursor
	}
	finalCursor := p.cursor
	p.mu.Unlock()

	var failedAnchors []Target
	for _, g := range failed {
		for _, m := range g.anchors {
			failedAnchors = append(failedAnchors, m.target)
		}
	}

	var delivered []*pendingMutation
	for _, m := range flushable {
		// A failed anchor's rollback also undid every mutation it subsumed.
		skip := false
		for _, ft := range failedAnchors {
			if ft.Covers(m.target) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		p.pub.emitMutation(MutationEvent{
			Target:   m.target,
			Previous: toWire(m.previous),
			Value:    toWire(m.value),
			IsRemote: false,
		})
		delivered = append(delivered, m)
	}
	if len(delivered) > 0 && finalCursor != "" {
		p.pub.emitCursor(finalCursor)
	}
	p.dispatchBatch(Batch{Mutations: toMutationEvents(delivered, false), Origin: "local", ProxyID: id})
}

func toMutationEvents(muts []*pendingMutation, isRemote bool) []MutationEvent {
	out := make([]MutationEvent, len(muts))
	for i, m := range muts {
		out[i] = MutationEvent{Target: m.target, Previous: toWire(m.previous), Value: toWire(m.value), IsRemote: isRemote}
	}
	return out
}
