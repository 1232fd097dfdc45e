package liveproxy

// pendingMutation is the spec's "Pending mutation" record (§3): a
// target, the snapshot taken when the mutation was first flagged, and —
// filled in at flush time — the live value to write.
type pendingMutation struct {
	target   Target
	previous any
	value    any
	hasValue bool // value filled in yet?
}

// mutationQueue holds at most one pendingMutation per unique target
// (spec §3 invariant), in flag order.
type mutationQueue struct {
	order []*pendingMutation
	byKey map[string]*pendingMutation
}

func newMutationQueue() *mutationQueue {
	return &mutationQueue{byKey: make(map[string]*pendingMutation)}
}

// flag records that target was written, snapshotting previous if this is
// the first flag for target since its last flush. Returns true if a new
// entry was created (used to decide whether a flush needs scheduling).
func (q *mutationQueue) flag(target Target, previous any) (created bool) {
	key := target.Key()
	if _, exists := q.byKey[key]; exists {
		return false
	}
	m := &pendingMutation{target: target, previous: previous}
	q.byKey[key] = m
	q.order = append(q.order, m)
	return true
}

// len reports the number of distinct pending targets.
func (q *mutationQueue) len() int { return len(q.order) }

// hasUnder reports whether any pending mutation's target equals or
// descends from root.
func (q *mutationQueue) hasUnder(root Target) bool {
	for _, m := range q.order {
		if root.Covers(m.target) {
			return true
		}
	}
	return false
}

// extractUnder removes and returns, in flag order, every pending
// mutation whose target equals or descends from root — used by
// transaction rollback and by commit's "these are now flushable" release.
func (q *mutationQueue) extractUnder(root Target) []*pendingMutation {
	var matched, rest []*pendingMutation
	for _, m := range q.order {
		if root.Covers(m.target) {
			matched = append(matched, m)
			delete(q.byKey, m.target.Key())
		} else {
			rest = append(rest, m)
		}
	}
	q.order = rest
	return matched
}

// partitionFlushable splits the queue into mutations eligible for flush
// (not covered by any active transaction target) and those held back,
// removing the flushable ones from the queue (spec §4.2 step 1).
func (q *mutationQueue) partitionFlushable(txnTargets []Target) (flushable []*pendingMutation) {
	var held []*pendingMutation
	for _, m := range q.order {
		blocked := false
		for _, t := range txnTargets {
			if t.Covers(m.target) {
				blocked = true
				break
			}
		}
		if blocked {
			held = append(held, m)
		} else {
			flushable = append(flushable, m)
			delete(q.byKey, m.target.Key())
		}
	}
	q.order = held
	return flushable
}
