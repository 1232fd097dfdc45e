package liveproxy

import "testing"

func TestDeepCloneSeversAliasing(t *testing.T) {
	original := map[string]any{"nested": map[string]any{"x": 1}}
	cloned := deepClone(original).(map[string]any)
	nested := cloned["nested"].(map[string]any)
	nested["x"] = 2
	if original["nested"].(map[string]any)["x"] != 1 {
		t.Error("mutating the clone affected the original")
	}
}

func TestCloneCacheValueSeversAliasing(t *testing.T) {
	o := NewOMap()
	o.Set("a", 1)
	seq := []any{o}
	cloned := cloneCacheValue(seq).([]any)
	clonedOMap := cloned[0].(*OMap)
	clonedOMap.Set("a", 99)
	orig, _ := o.Get("a")
	if orig != 1 {
		t.Error("mutating the cloned OMap affected the original")
	}
}

func TestStructurallyEqualOMaps(t *testing.T) {
	a := NewOMap()
	a.Set("x", 1)
	a.Set("y", 2)
	b := NewOMap()
	b.Set("y", 2)
	b.Set("x", 1) // different insertion order, same content
	if !structurallyEqual(a, b) {
		t.Error("OMaps with the same entries in different insertion order should be structurally equal")
	}
	b.Set("z", 3)
	if structurallyEqual(a, b) {
		t.Error("OMaps with different entries should not be structurally equal")
	}
}

func TestStructurallyEqualSequences(t *testing.T) {
	a := []any{1, "x", true}
	b := []any{1, "x", true}
	c := []any{1, "x", false}
	if !structurallyEqual(a, b) {
		t.Error("identical sequences should be structurally equal")
	}
	if structurallyEqual(a, c) {
		t.Error("differing sequences should not be structurally equal")
	}
}
