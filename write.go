package liveproxy

// facadeFor returns the stable *Value for target, discarding and
// replacing any previously cached facade whose kind no longer matches
// the live cache (spec §4.1 "identity is stable ... discarded when kind
// changes between reads").
func (p *Proxy) facadeFor(target Target) *Value {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.facadeForLocked(target)
}

func (p *Proxy) facadeForLocked(target Target) *Value {
	raw, _ := p.cache.get(target)
	k := kindOf(raw)
	key := target.Key() + "#" + k.String()
	if v, ok := p.facades[key]; ok {
		return v
	}
	v := &Value{p: p, target: target.Clone()}
	p.facades[key] = v
	return v
}

// projectLocked wraps a composite child in its facade, or returns a leaf
// value unchanged (spec §4.1 "Reads"). Callers must already hold p.mu.
func (p *Proxy) projectLocked(target Target, raw any) any {
	if isComposite(kindOf(raw)) {
		return p.facadeForLocked(target)
	}
	return raw
}

// flagTargetForLocked computes which target a write to childTarget
// should flag in the mutation queue (spec §4.1/§4.2): writing the root
// flags the root; writing a property whose ancestor chain passes through
// a sequence index flags the outermost such sequence ancestor, never the
// leaf; otherwise the leaf itself is flagged. Callers must hold p.mu.
func (p *Proxy) flagTargetForLocked(childTarget Target) Target {
	for i := 0; i < len(childTarget); i++ {
		prefix := childTarget[:i]
		val, ok := p.cache.get(prefix)
		if !ok {
			continue
		}
		if _, isSeq := val.([]any); isSeq {
			return prefix
		}
	}
	return childTarget
}

// applyWriteLocked is the single workhorse behind every write that
// assigns a value at some target: plain property writes, root
// replacement, and whole-sequence rewrites from push/splice/sort/etc.
// Callers must hold p.mu and must have already normalized newVal.
func (p *Proxy) applyWriteLocked(childTarget Target, newVal any) error {
	current, _ := p.cache.get(childTarget)
	if structurallyEqual(current, newVal) {
		return nil // R1: idempotent writes never enqueue
	}
	flagTarget := p.flagTargetForLocked(childTarget)
	beforeRaw, _ := p.cache.get(flagTarget)
	before := cloneCacheValue(beforeRaw)

	if err := p.cache.set(childTarget, newVal); err != nil {
		return err
	}
	if p.queue.flag(flagTarget, before) {
		p.scheduleFlushLocked()
	}
	return nil
}

// applyDeleteLocked removes childTarget, a no-op if it is already absent.
// Callers must hold p.mu.
func (p *Proxy) applyDeleteLocked(childTarget Target) error {
	current, ok := p.cache.get(childTarget)
	if !ok || current == nil {
		return nil
	}
	flagTarget := p.flagTargetForLocked(childTarget)
	beforeRaw, _ := p.cache.get(flagTarget)
	before := cloneCacheValue(beforeRaw)

	if err := p.cache.delete(childTarget); err != nil {
		return err
	}
	if p.queue.flag(flagTarget, before) {
		p.scheduleFlushLocked()
	}
	return nil
}

// scheduleFlushLocked arranges for flush to run on the scheduler's
// worker goroutine on the next tick, coalescing so at most one flush is
// queued at a time; flush clears the flag when it starts, so writes made
// while a flush runs queue the next one. Callers must hold p.mu.
func (p *Proxy) scheduleFlushLocked() {
	if p.flushQueued {
		return
	}
	p.flushQueued = true
	p.sched.schedule(p.flush)
}
