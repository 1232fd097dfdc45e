package liveproxy

// cache holds the in-memory value graph rooted at the proxied path.
// Composite mappings are stored as *OMap (insertion-order preserving);
// composite sequences as []any. cache has no lock of its own: Proxy
// serializes every access through its own mutex (see proxy.go), which is
// the Go translation of the spec's cooperative single-threaded execution
// model.
type cache struct {
	root     any
	hasValue bool
}

func newCache() *cache { return &cache{} }

// get walks target from the root and returns the value there. ok is
// false if an intermediate node is missing or not a composite.
func (c *cache) get(target Target) (v any, ok bool) {
	cur := c.root
	for _, key := range target {
		switch node := cur.(type) {
		case *OMap:
			s, isStr := key.(string)
			if !isStr {
				return nil, false
			}
			cur, ok = node.Get(s)
			if !ok {
				return nil, false
			}
		case []any:
			i, isInt := key.(int)
			if !isInt || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// set walks to target's parent (an existing composite — it is never
// created here) and assigns the trailing key. The root case (empty
// target) replaces the whole cache value.
func (c *cache) set(target Target, value any) error {
	if target.IsRoot() {
		c.root = value
		c.hasValue = value != nil
		return nil
	}
	parent, key, _ := target.Parent()
	parentVal, ok := c.get(parent)
	if !ok {
		return ErrCacheOutdated
	}
	switch node := parentVal.(type) {
	case *OMap:
		s, isStr := key.(string)
		if !isStr {
			return ErrKindMismatch
		}
		if value == nil {
			node.Delete(s)
		} else {
			node.Set(s, value)
		}
		return nil
	case []any:
		i, isInt := key.(int)
		if !isInt {
			return ErrKindMismatch
		}
		if i < 0 || i >= len(node) {
			return ErrCacheOutdated
		}
		node[i] = value
		return nil
	default:
		return ErrKindMismatch
	}
}

// delete removes the key at target from its parent composite. For a
// sequence index this splices the element out (shrinking the array) and
// writes the shrunk array back at the sequence's own target.
func (c *cache) delete(target Target) error {
	if target.IsRoot() {
		c.root = nil
		c.hasValue = false
		return nil
	}
	parent, key, _ := target.Parent()
	parentVal, ok := c.get(parent)
	if !ok {
		return ErrCacheOutdated
	}
	switch node := parentVal.(type) {
	case *OMap:
		s, isStr := key.(string)
		if !isStr {
			return ErrKindMismatch
		}
		node.Delete(s)
		return nil
	case []any:
		i, isInt := key.(int)
		if !isInt || i < 0 || i >= len(node) {
			return nil
		}
		spliced := make([]any, 0, len(node)-1)
		spliced = append(spliced, node[:i]...)
		spliced = append(spliced, node[i+1:]...)
		return c.set(parent, spliced)
	default:
		return ErrKindMismatch
	}
}
