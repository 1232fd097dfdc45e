package liveproxy

import "sort"

// OrderedItem is one entry of an OrderedCollection, in sorted order.
type OrderedItem struct {
	Key   string
	Order float64
	Val   any
}

// OrderedCollection is the Ordered Collection Helper (spec §4.8, C8): a
// mapping whose entries carry a numeric "order" property, letting
// consumers treat it like a reorderable list while the underlying store
// only ever sees property writes. New items are spaced increment apart;
// inserting between two neighbors halves the gap, and the whole
// collection is renumbered once a gap collapses to 1 or less.
type OrderedCollection struct {
	p         *Proxy
	target    Target
	prop      string
	increment float64
}

func newOrderedCollection(p *Proxy, target Target, prop string, increment float64) (*OrderedCollection, error) {
	if prop == "" {
		prop = "order"
	}
	if increment <= 0 {
		increment = 10
	}
	p.mu.Lock()
	raw, ok := p.cache.get(target)
	om, isMap := raw.(*OMap)
	p.mu.Unlock()
	if !ok || !isMap {
		return nil, usageErr("ordered_collection", target, p.path, ErrKindMismatch)
	}

	oc := &OrderedCollection{p: p, target: target.Clone(), prop: prop, increment: increment}
	if err := oc.ensureOrders(); err != nil {
		return nil, err
	}
	return oc, nil
}

// ensureOrders assigns an order to any entry that lacks one, in current
// insertion order, starting a fresh collection off evenly spaced.
func (oc *OrderedCollection) ensureOrders() error {
	oc.p.mu.Lock()
	raw, ok := oc.p.cache.get(oc.target)
	om, isMap := raw.(*OMap)
	if !ok || !isMap {
		oc.p.mu.Unlock()
		return usageErr("ordered_collection", oc.target, oc.p.path, ErrKindMismatch)
	}
	i := 0
	var err error
	om.Range(func(key string, val any) bool {
		entry, isEntry := val.(*OMap)
		if !isEntry {
			i++
			return true
		}
		if _, has := entry.Get(oc.prop); !has {
			if e := oc.p.applyWriteLocked(oc.target.Append(key).Append(oc.prop), float64(i)*oc.increment); e != nil {
				err = e
				return false
			}
		}
		i++
		return true
	})
	oc.p.mu.Unlock()
	return err
}

func (oc *OrderedCollection) itemsLocked(om *OMap) []OrderedItem {
	var items []OrderedItem
	om.Range(func(key string, val any) bool {
		entry, _ := val.(*OMap)
		order, _ := entry.Get(oc.prop)
		items = append(items, OrderedItem{Key: key, Order: toFloat(order), Val: val})
		return true
	})
	sort.SliceStable(items, func(i, j int) bool { return items[i].Order < items[j].Order })
	return items
}

// Items returns the collection's entries sorted by order, with each
// entry's value projected into wire shape.
func (oc *OrderedCollection) Items() []OrderedItem {
	oc.p.mu.Lock()
	raw, _ := oc.p.cache.get(oc.target)
	om, _ := raw.(*OMap)
	items := oc.itemsLocked(om)
	oc.p.mu.Unlock()
	for i := range items {
		items[i].Val = toWire(cloneCacheValue(items[i].Val))
	}
	return items
}

// GetArray returns just the ordered values, discarding keys and orders.
func (oc *OrderedCollection) GetArray() []any {
	items := oc.Items()
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = it.Val
	}
	return out
}

// Add inserts (or moves, if key already exists) an entry so it sorts
// immediately after the entry at afterKey ("" for the front).
func (oc *OrderedCollection) Add(key string, val any, afterKey string) error {
	oc.p.mu.Lock()
	raw, ok := oc.p.cache.get(oc.target)
	om, isMap := raw.(*OMap)
	if !ok || !isMap {
		oc.p.mu.Unlock()
		return usageErr("ordered_add", oc.target, oc.p.path, ErrKindMismatch)
	}
	items := oc.itemsLocked(om)
	oc.p.mu.Unlock()

	before, after := neighborOrders(items, afterKey, key, oc.increment)
	order := before + (after-before)/2
	gapCollapsed := after-before <= 1

	entry := NewOMap()
	if existing, isEntryMap := normalize(deepClone(val)).(*OMap); isEntryMap {
		existing.Range(func(k string, v any) bool {
			if k != oc.prop {
				entry.Set(k, v)
			}
			return true
		})
	}
	entry.Set(oc.prop, order)

	oc.p.mu.Lock()
	err := oc.p.applyWriteLocked(oc.target.Append(key), entry)
	oc.p.mu.Unlock()
	if err != nil {
		return err
	}
	if gapCollapsed {
		return oc.renumber()
	}
	return nil
}

// Delete removes an entry.
func (oc *OrderedCollection) Delete(key string) error {
	oc.p.mu.Lock()
	defer oc.p.mu.Unlock()
	return oc.p.applyDeleteLocked(oc.target.Append(key))
}

// Sort reassigns every entry's order per less, evenly respaced.
func (oc *OrderedCollection) Sort(less func(a, b OrderedItem) bool) error {
	items := oc.Items()
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
	for i, it := range items {
		oc.p.mu.Lock()
		err := oc.p.applyWriteLocked(oc.target.Append(it.Key).Append(oc.prop), float64(i)*oc.increment)
		oc.p.mu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

func (oc *OrderedCollection) renumber() error {
	oc.p.mu.Lock()
	raw, ok := oc.p.cache.get(oc.target)
	om, isMap := raw.(*OMap)
	if !ok || !isMap {
		oc.p.mu.Unlock()
		return usageErr("ordered_renumber", oc.target, oc.p.path, ErrKindMismatch)
	}
	items := oc.itemsLocked(om)
	oc.p.mu.Unlock()

	for i, it := range items {
		oc.p.mu.Lock()
		err := oc.p.applyWriteLocked(oc.target.Append(it.Key).Append(oc.prop), float64(i)*oc.increment)
		oc.p.mu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

// neighborOrders finds the order values straddling the insertion point
// immediately after afterKey, excluding excludeKey (the item being
// moved, if any) from consideration. For edge inserts (front or end of an
// otherwise-empty neighbor side) the open bound is placed 2*increment past
// the nearest existing order, so the midpoint Add picks lands exactly
// increment away from it, per spec §4.6. An empty collection yields the
// bounds 0 and increment.
func neighborOrders(items []OrderedItem, afterKey, excludeKey string, increment float64) (before, after float64) {
	filtered := make([]OrderedItem, 0, len(items))
	for _, it := range items {
		if it.Key != excludeKey {
			filtered = append(filtered, it)
		}
	}
	if afterKey == "" {
		if len(filtered) == 0 {
			return 0, increment
		}
		return filtered[0].Order - 2*increment, filtered[0].Order
	}
	for i, it := range filtered {
		if it.Key == afterKey {
			if i+1 < len(filtered) {
				return it.Order, filtered[i+1].Order
			}
			return it.Order, it.Order + 2*increment
		}
	}
	if len(filtered) == 0 {
		return 0, increment
	}
	last := filtered[len(filtered)-1]
	return last.Order, last.Order + 2*increment
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint:
		return float64(t)
	case uint64:
		return float64(t)
	default:
		return 0
	}
}
