package liveproxy

import (
	"reflect"
	"testing"
)

func TestOMapPreservesInsertionOrder(t *testing.T) {
	o := NewOMap()
	o.Set("z", 1)
	o.Set("a", 2)
	o.Set("m", 3)
	want := []string{"z", "a", "m"}
	if got := o.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
}

func TestOMapSetExistingKeyKeepsPosition(t *testing.T) {
	o := NewOMap()
	o.Set("a", 1)
	o.Set("b", 2)
	o.Set("a", 99)
	want := []string{"a", "b"}
	if got := o.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
	v, _ := o.Get("a")
	if v != 99 {
		t.Errorf("Get(a) = %v, want 99", v)
	}
}

func TestOMapDeleteThenRange(t *testing.T) {
	o := NewOMap()
	o.Set("a", 1)
	o.Set("b", 2)
	o.Set("c", 3)
	o.Delete("b")

	var seen []string
	o.Range(func(k string, _ any) bool {
		seen = append(seen, k)
		return true
	})
	if !reflect.DeepEqual(seen, []string{"a", "c"}) {
		t.Errorf("Range order = %v, want [a c]", seen)
	}
	if o.Len() != 2 {
		t.Errorf("Len() = %d, want 2", o.Len())
	}
}

func TestOMapCloneIsIndependent(t *testing.T) {
	o := NewOMap()
	o.Set("a", 1)
	clone := o.Clone()
	clone.Set("b", 2)
	if o.Len() != 1 {
		t.Errorf("original mutated by writing to clone: Len() = %d", o.Len())
	}
}

func TestOMapRangeStopsEarly(t *testing.T) {
	o := NewOMap()
	o.Set("a", 1)
	o.Set("b", 2)
	o.Set("c", 3)
	var seen []string
	o.Range(func(k string, _ any) bool {
		seen = append(seen, k)
		return k != "b"
	})
	if !reflect.DeepEqual(seen, []string{"a", "b"}) {
		t.Errorf("Range did not stop at returned false: got %v", seen)
	}
}
