package liveproxy

import (
	"context"
	"sync"
)

// TransactionStatus reports a Transaction's lifecycle state.
type TransactionStatus int

const (
	TransactionOpen TransactionStatus = iota
	TransactionCommitted
	TransactionRolledBack
)

// Transaction is the Transaction Controller (spec §4.6, C7): while open,
// writes under its target are held in the mutation queue rather than
// flushed (spec §4.2 step 1's "not covered by any active transaction
// target"), letting the caller group several writes into one commit or
// discard them all with Rollback.
type Transaction struct {
	p        *Proxy
	target   Target
	baseline any // cloneCacheValue snapshot of target at start

	mu     sync.Mutex
	status TransactionStatus
}

// startTransaction opens a transaction scoped to target. It fails with
// ErrTransactionConflict if an open transaction already covers, or is
// covered by, target. If the queue currently holds a mutation at or
// under target, it waits for the next flush to drain before the
// transaction takes effect, so the transaction starts from a
// fully-synced baseline.
func (p *Proxy) startTransaction(ctx context.Context, target Target) (*Transaction, error) {
	if err := p.checkDestroyed(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	for _, t := range p.txns {
		if !t.isCompleted() && (t.target.Covers(target) || target.Covers(t.target)) {
			p.mu.Unlock()
			return nil, ErrTransactionConflict
		}
	}
	needsFlushWait := p.queue.hasUnder(target)
	p.mu.Unlock()

	if needsFlushWait {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		p.sched.sync()
	}

	p.mu.Lock()
	raw, _ := p.cache.get(target)
	t := &Transaction{p: p, target: target.Clone(), baseline: cloneCacheValue(raw)}
	p.txns = append(p.txns, t)
	p.mu.Unlock()
	return t, nil
}

func (t *Transaction) isCompleted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status != TransactionOpen
}

// Status reports the transaction's current lifecycle state.
func (t *Transaction) Status() TransactionStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Target returns the transaction's scope.
func (t *Transaction) Target() Target { return t.target }

// Mutations lists the mutations currently held under this transaction's
// target, in flag order.
func (t *Transaction) Mutations() []MutationEvent {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	var out []MutationEvent
	for _, m := range t.p.queue.order {
		if !t.target.Covers(m.target) {
			continue
		}
		val := m.value
		if !m.hasValue {
			raw, _ := t.p.cache.get(m.target)
			val = cloneCacheValue(raw)
		}
		out = append(out, MutationEvent{Target: m.target, Previous: toWire(m.previous), Value: toWire(val)})
	}
	return out
}

// HasMutations reports whether any write is currently held under this
// transaction's target.
func (t *Transaction) HasMutations() bool {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()
	return t.p.queue.hasUnder(t.target)
}

// Commit closes the transaction and releases its held writes to the
// normal flush pipeline, waiting for that flush to complete.
func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	if t.status != TransactionOpen {
		t.mu.Unlock()
		return ErrTransactionCompleted
	}
	t.status = TransactionCommitted
	t.mu.Unlock()

	p := t.p
	p.mu.Lock()
	p.removeTxnLocked(t)
	hasPending := p.queue.hasUnder(t.target)
	if hasPending {
		p.scheduleFlushLocked()
	}
	p.mu.Unlock()

	if hasPending {
		p.sched.sync()
	}
	return nil
}

// Rollback closes the transaction, discards every write held under its
// target, and restores the cache to the baseline captured at start. If
// the target's live value no longer matches that baseline with nothing
// held (meaning a flush raced ahead and already reached the store before
// this transaction's registration took effect), Rollback also writes the
// baseline back to the store, tagged as a rollback so the remote apply
// engine on any other proxy does not mistake it for a forward edit.
func (t *Transaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	if t.status != TransactionOpen {
		t.mu.Unlock()
		return ErrTransactionCompleted
	}
	t.status = TransactionRolledBack
	t.mu.Unlock()

	p := t.p
	p.mu.Lock()
	p.removeTxnLocked(t)
	held := p.queue.extractUnder(t.target)
	current, _ := p.cache.get(t.target)
	racedAhead := len(held) == 0 && !structurallyEqual(current, t.baseline)
	for _, m := range held {
		if !m.hasValue {
			raw, _ := p.cache.get(m.target)
			m.value = cloneCacheValue(raw)
		}
	}
	_ = p.cache.set(t.target, cloneCacheValue(t.baseline))
	p.mu.Unlock()

	for i := len(held) - 1; i >= 0; i-- {
		m := held[i]
		p.pub.emitMutation(MutationEvent{Target: m.target, Previous: toWire(m.value), Value: toWire(m.previous), IsRemote: false})
	}

	if !racedAhead {
		return nil
	}
	wctx := WriteContext{Proxy: ProxyStamp{ID: p.id, Source: SourceUpdateRollback}}
	if t.target.IsRoot() {
		return p.store.Set(ctx, p.path, toWire(t.baseline), wctx)
	}
	parent, key, _ := t.target.Parent()
	parentRef := refForTarget(p.ref, parent)
	return p.store.Update(ctx, parentRef.Path(), map[string]any{keyToString(key): toWire(t.baseline)}, wctx)
}

// removeTxnLocked drops t from p.txns. Callers must hold p.mu.
func (p *Proxy) removeTxnLocked(t *Transaction) {
	for i, x := range p.txns {
		if x == t {
			p.txns = append(p.txns[:i], p.txns[i+1:]...)
			return
		}
	}
}
