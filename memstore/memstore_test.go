package memstore

import (
	"context"
	"testing"

	"github.com/go-mizu/liveproxy"
)

func TestSetAndGet(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Set(ctx, "users/1", map[string]any{"name": "ada"}, liveproxy.WriteContext{}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	snap, err := s.Get(ctx, "users/1", liveproxy.GetOptions{})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	val, ok := snap.Val().(map[string]any)
	if !ok {
		t.Fatalf("Val() = %#v, want map[string]any", snap.Val())
	}
	if val["name"] != "ada" {
		t.Errorf("name = %v, want ada", val["name"])
	}
}

func TestUpdatePartial(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Set(ctx, "doc", map[string]any{"a": 1, "b": 2}, liveproxy.WriteContext{}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Update(ctx, "doc", map[string]any{"a": 10, "b": nil}, liveproxy.WriteContext{}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	snap, _ := s.Get(ctx, "doc", liveproxy.GetOptions{})
	val := snap.Val().(map[string]any)
	if val["a"] != 10 {
		t.Errorf("a = %v, want 10", val["a"])
	}
	if _, has := val["b"]; has {
		t.Errorf("b should have been removed, got %v", val["b"])
	}
}

func TestMutationsNotifiesSubscriber(t *testing.T) {
	s := New()
	ctx := context.Background()

	var got []liveproxy.StoreMutation
	stop := s.Mutations("doc").Subscribe(func(b liveproxy.MutationBatch) {
		got = append(got, b.Mutations()...)
	})
	defer stop()

	if err := s.Set(ctx, "doc", map[string]any{"x": 1}, liveproxy.WriteContext{}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d mutations, want 1", len(got))
	}
	if !got[0].Target.IsRoot() {
		t.Errorf("Target = %v, want root", got[0].Target)
	}
}

func TestStopUnsubscribes(t *testing.T) {
	s := New()
	ctx := context.Background()
	calls := 0
	stop := s.Mutations("doc").Subscribe(func(liveproxy.MutationBatch) { calls++ })
	stop()
	_ = s.Set(ctx, "doc", map[string]any{"x": 1}, liveproxy.WriteContext{})
	if calls != 0 {
		t.Errorf("calls = %d after stop, want 0", calls)
	}
}

func TestRefChildCursor(t *testing.T) {
	s := New()
	ctx := context.Background()
	r := s.Ref("doc")
	if r.Path() != "doc" {
		t.Errorf("Path() = %q, want doc", r.Path())
	}
	child := r.Child("field")
	if child.Path() != "doc/field" {
		t.Errorf("Child Path() = %q, want doc/field", child.Path())
	}
	_ = s.Set(ctx, "doc", map[string]any{"field": 1}, liveproxy.WriteContext{})
	if r.Cursor() == "" {
		t.Error("Cursor() is empty after a write")
	}
}
