package liveproxy

// OMap is an order-preserving string-keyed map: the cache's
// representation of a "mapping from string to value" (spec §3). A plain
// Go map cannot satisfy the spec's "iteration ... in insertion order for
// mappings" requirement (map iteration order is deliberately
// randomized), so the cache stores every composite mapping as an *OMap
// rather than a bare map[string]any.
type OMap struct {
	keys []string
	vals map[string]any
}

// NewOMap returns an empty ordered map.
func NewOMap() *OMap {
	return &OMap{vals: make(map[string]any)}
}

// Get returns the value at key and whether it is present.
func (o *OMap) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.vals[key]
	return v, ok
}

// Set assigns key, appending it to the insertion order if new.
func (o *OMap) Set(key string, val any) {
	if _, exists := o.vals[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.vals[key] = val
}

// Delete removes key, preserving the order of the remaining keys.
func (o *OMap) Delete(key string) {
	if _, exists := o.vals[key]; !exists {
		return
	}
	delete(o.vals, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order. The returned slice must not
// be mutated by the caller.
func (o *OMap) Keys() []string {
	if o == nil {
		return nil
	}
	return o.keys
}

// Len returns the number of entries.
func (o *OMap) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Range calls fn for each entry in insertion order, stopping early if fn
// returns false.
func (o *OMap) Range(fn func(key string, val any) bool) {
	if o == nil {
		return
	}
	for _, k := range o.keys {
		if !fn(k, o.vals[k]) {
			return
		}
	}
}

// Clone returns a shallow copy (same child values, independent key/value
// storage). cloneCacheValue does not use it; it builds deep copies itself.
func (o *OMap) Clone() *OMap {
	if o == nil {
		return nil
	}
	out := &OMap{
		keys: append([]string{}, o.keys...),
		vals: make(map[string]any, len(o.vals)),
	}
	for k, v := range o.vals {
		out.vals[k] = v
	}
	return out
}

