package liveproxy

import "testing"

func TestTargetAppendAndParent(t *testing.T) {
	root := Root()
	a := root.Append("a").Append(2).Append("b")
	parent, key, ok := a.Parent()
	if !ok {
		t.Fatal("Parent() ok = false for non-root target")
	}
	if key != "b" {
		t.Errorf("key = %v, want \"b\"", key)
	}
	if !parent.Equal(Target{"a", 2}) {
		t.Errorf("parent = %v, want [a 2]", parent)
	}
}

func TestTargetRootHasNoParent(t *testing.T) {
	if _, _, ok := Root().Parent(); ok {
		t.Error("Parent() ok = true for root target")
	}
	if !Root().IsRoot() {
		t.Error("IsRoot() = false for Root()")
	}
}

func TestTargetCoversAndAncestry(t *testing.T) {
	a := Target{"items"}
	b := Target{"items", 0, "name"}
	if !a.IsAncestorOf(b) {
		t.Error("a should be an ancestor of b")
	}
	if !a.Covers(b) {
		t.Error("a should cover b")
	}
	if !a.Covers(a) {
		t.Error("a should cover itself")
	}
	if b.IsAncestorOf(a) {
		t.Error("b should not be an ancestor of a")
	}
	if !b.IsDescendantOf(a) {
		t.Error("b should be a descendant of a")
	}
}

func TestTargetKeyDistinguishesStringsAndInts(t *testing.T) {
	s := Target{"1"}
	i := Target{1}
	if s.Key() == i.Key() {
		t.Errorf("string key %q and int key %q collided", s.Key(), i.Key())
	}
}

func TestTargetEqual(t *testing.T) {
	a := Target{"a", 1}
	b := Target{"a", 1}
	c := Target{"a", 2}
	if !a.Equal(b) {
		t.Error("a should equal b")
	}
	if a.Equal(c) {
		t.Error("a should not equal c")
	}
}
