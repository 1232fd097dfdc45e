package liveproxy

// dispatchBatch fans a batch of mutations out to every subtree listener
// whose target intersects one of the batch's targets (spec §4.4):
// listener and mutation targets always sit in an ancestor chain (never
// partially overlap) since both are rooted at the same proxy, so
// "intersects" reduces to one covering the other. Each qualifying
// listener is invoked exactly once per batch, with a single combined
// old/new value reconstructed across every mutation in the batch that
// touches its subtree — not once per mutation.
func (p *Proxy) dispatchBatch(batch Batch) {
	if len(batch.Mutations) == 0 {
		return
	}
	for _, l := range p.internal.snapshot() {
		var matches []MutationEvent
		for _, m := range batch.Mutations {
			if l.target.Covers(m.Target) || m.Target.Covers(l.target) {
				matches = append(matches, m)
			}
		}
		if len(matches) == 0 {
			continue
		}
		newVal := toWire(p.liveValueAt(l.target))
		oldVal := oldValueForListener(l.target, newVal, matches)
		if !p.callListener(l, newVal, oldVal) {
			p.internal.remove(l)
		}
	}
}

// oldValueForListener derives the pre-batch value at a listener's target
// by folding every matching mutation's previous value back onto the
// listener's current (post-batch) value.
func oldValueForListener(listenerTarget Target, newVal any, matches []MutationEvent) any {
	// If some mutation's target is a strict ancestor of the listener, it
	// replaced the listener's whole subtree outright, so its own Previous
	// is authoritative for the listener — any other matches are
	// necessarily nested underneath it and already reflected in it.
	for _, m := range matches {
		if m.Target.IsAncestorOf(listenerTarget) {
			suffix := []any(listenerTarget[len(m.Target):])
			return navigateWire(m.Previous, suffix)
		}
	}
	// Otherwise every match sits at or below listenerTarget: patch each
	// mutation's previous value back onto the listener's current value at
	// its own suffix, combining sibling changes into one prior subtree.
	old := newVal
	for _, m := range matches {
		suffix := []any(m.Target[len(listenerTarget):])
		old = patchWire(old, suffix, m.Previous)
	}
	return old
}

func (p *Proxy) liveValueAt(target Target) any {
	p.mu.Lock()
	defer p.mu.Unlock()
	raw, _ := p.cache.get(target)
	return raw
}

// callListener invokes l.cb, recovering a panic into an error event
// (spec §7 "Callback errors") and treating a panicking listener as if it
// had returned true (kept subscribed — a crash is not consent to
// unsubscribe).
func (p *Proxy) callListener(l *changeListener, newVal, oldVal any) (keep bool) {
	defer func() {
		if r := recover(); r != nil {
			keep = true
			p.pub.emitError(ErrorEvent{Source: "mutation_callback", Message: "subtree listener panicked", Details: panicErr(r)})
		}
	}()
	return l.cb(newVal, oldVal)
}

func navigateWire(v any, path []any) any {
	cur := v
	for _, k := range path {
		switch node := cur.(type) {
		case map[string]any:
			s, ok := k.(string)
			if !ok {
				return nil
			}
			cur = node[s]
		case []any:
			i, ok := k.(int)
			if !ok || i < 0 || i >= len(node) {
				return nil
			}
			cur = node[i]
		default:
			return nil
		}
	}
	return cur
}

// wireClone deep-copies a toWire-shaped value (map[string]any/[]any).
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

// patchWire clones root and overwrites the node at path with val,
// returning the clone. Used to reconstruct the best-effort prior value of
// a broad listener's subtree when only a narrower descendant's previous
// value is known.
func patchWire(root any, path []any, val any) any {
	if len(path) == 0 {
		return val
	}
	cloned := wireClone(root)
	cur := cloned
	for i := 0; i < len(path)-1; i++ {
		switch node := cur.(type) {
		case map[string]any:
			s, ok := path[i].(string)
			if !ok {
				return cloned
			}
			cur = node[s]
		case []any:
			idx, ok := path[i].(int)
			if !ok || idx < 0 || idx >= len(node) {
				return cloned
			}
			cur = node[idx]
		default:
			return cloned
		}
	}
	last := path[len(path)-1]
	switch node := cur.(type) {
	case map[string]any:
		if s, ok := last.(string); ok {
			if val == nil {
				delete(node, s)
			} else {
				node[s] = val
			}
		}
	case []any:
		if idx, ok := last.(int); ok && idx >= 0 && idx < len(node) {
			node[idx] = val
		}
	}
	return cloned
}
