package liveproxy_test

import (
	"context"
	"testing"
	"time"

	liveproxy "github.com/go-mizu/liveproxy"
	"github.com/go-mizu/liveproxy/memstore"
)

func waitFor(t *testing.T, ch <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal(msg)
	}
}

func TestCreateUsesStoreDefault(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	p, err := liveproxy.Create(ctx, store, "doc", liveproxy.Options{
		DefaultValue: map[string]any{"count": 0},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer p.Destroy(ctx)

	if !p.HasValue() {
		t.Fatal("HasValue() = false after a default was applied")
	}
	if got := p.Value().Get("count"); got != 0 {
		t.Errorf("count = %v, want 0", got)
	}
}

func TestSetValueAndGet(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	p, err := liveproxy.Create(ctx, store, "doc", liveproxy.Options{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer p.Destroy(ctx)

	if err := p.SetValue(map[string]any{"name": "ada", "tags": []any{"x", "y"}}); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if got := p.Value().Get("name"); got != "ada" {
		t.Errorf("name = %v, want ada", got)
	}
	tags := p.Value().Get("tags").(*liveproxy.Value)
	if got := tags.Values(); len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Errorf("tags = %v, want [x y]", got)
	}
}

func TestPushToMappingAndSequence(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	p, err := liveproxy.Create(ctx, store, "doc", liveproxy.Options{
		DefaultValue: map[string]any{"items": map[string]any{}, "log": []any{}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer p.Destroy(ctx)

	items := p.Value().Get("items").(*liveproxy.Value)
	key, err := items.Push(map[string]any{"title": "first"})
	if err != nil {
		t.Fatalf("Push to mapping: %v", err)
	}
	if _, ok := key.(string); !ok {
		t.Fatalf("Push to mapping returned %T, want string key", key)
	}

	logSeq := p.Value().Get("log").(*liveproxy.Value)
	idx, err := logSeq.Push("started")
	if err != nil {
		t.Fatalf("Push to sequence: %v", err)
	}
	if idx != 0 {
		t.Errorf("Push index = %v, want 0", idx)
	}
}

func TestOnChangedFiresOnMatchingWrite(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	p, err := liveproxy.Create(ctx, store, "doc", liveproxy.Options{
		DefaultValue: map[string]any{"a": map[string]any{"b": 1}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer p.Destroy(ctx)

	fired := make(chan struct{}, 1)
	var newVal any
	a := p.Value().Get("a").(*liveproxy.Value)
	a.OnChanged(func(nv, _ any) bool {
		newVal = nv
		fired <- struct{}{}
		return true
	})

	if err := a.Set("b", 2); err != nil {
		t.Fatalf("Set: %v", err)
	}
	waitFor(t, fired, "OnChanged never fired after a.b = 2")

	m, ok := newVal.(map[string]any)
	if !ok || m["b"] != 2 {
		t.Errorf("newVal = %#v, want {b: 2}", newVal)
	}
}

func TestTransactionCommitPersists(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	p, err := liveproxy.Create(ctx, store, "doc", liveproxy.Options{
		DefaultValue: map[string]any{"balance": 100},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer p.Destroy(ctx)

	txn, err := p.Value().StartTransaction(ctx)
	if err != nil {
		t.Fatalf("StartTransaction: %v", err)
	}
	if err := p.Value().Set("balance", 50); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !txn.HasMutations() {
		t.Error("HasMutations() = false with a write held under the transaction")
	}
	if err := txn.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got := p.Value().Get("balance"); got != 50 {
		t.Errorf("balance = %v after commit, want 50", got)
	}
}

func TestTransactionRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	p, err := liveproxy.Create(ctx, store, "doc", liveproxy.Options{
		DefaultValue: map[string]any{"balance": 100},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer p.Destroy(ctx)

	txn, err := p.Value().StartTransaction(ctx)
	if err != nil {
		t.Fatalf("StartTransaction: %v", err)
	}
	if err := p.Value().Set("balance", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := txn.Rollback(ctx); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if got := p.Value().Get("balance"); got != 100 {
		t.Errorf("balance = %v after rollback, want 100", got)
	}
}

func TestConflictingTransactionRejected(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	p, err := liveproxy.Create(ctx, store, "doc", liveproxy.Options{
		DefaultValue: map[string]any{"a": 1},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer p.Destroy(ctx)

	_, err = p.Value().StartTransaction(ctx)
	if err != nil {
		t.Fatalf("first StartTransaction: %v", err)
	}
	if _, err := p.Value().StartTransaction(ctx); err != liveproxy.ErrTransactionConflict {
		t.Errorf("second StartTransaction err = %v, want ErrTransactionConflict", err)
	}
}

func TestRemoteMutationPropagatesToOtherProxy(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	p1, err := liveproxy.Create(ctx, store, "doc", liveproxy.Options{
		DefaultValue: map[string]any{"count": 0},
	})
	if err != nil {
		t.Fatalf("Create p1: %v", err)
	}
	defer p1.Destroy(ctx)

	p2, err := liveproxy.Create(ctx, store, "doc", liveproxy.Options{})
	if err != nil {
		t.Fatalf("Create p2: %v", err)
	}
	defer p2.Destroy(ctx)

	seen := make(chan liveproxy.MutationEvent, 1)
	p2.On("mutation", func(v any) {
		if ev, ok := v.(liveproxy.MutationEvent); ok && ev.IsRemote {
			seen <- ev
		}
	})

	if err := p1.Value().Set("count", 1); err != nil {
		t.Fatalf("Set on p1: %v", err)
	}

	select {
	case ev := <-seen:
		if ev.Value != 1 {
			t.Errorf("remote mutation value = %v, want 1", ev.Value)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("p2 never observed p1's write")
	}
}

func TestGetOrderedCollection(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	p, err := liveproxy.Create(ctx, store, "doc", liveproxy.Options{
		DefaultValue: map[string]any{"steps": map[string]any{}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer p.Destroy(ctx)

	steps := p.Value().Get("steps").(*liveproxy.Value)
	oc, err := steps.GetOrderedCollection("order", 10)
	if err != nil {
		t.Fatalf("GetOrderedCollection: %v", err)
	}
	if err := oc.Add("c", map[string]any{"label": "third"}, ""); err != nil {
		t.Fatalf("Add c: %v", err)
	}
	if err := oc.Add("a", map[string]any{"label": "first"}, ""); err != nil {
		t.Fatalf("Add a: %v", err)
	}
	items := oc.Items()
	if len(items) != 2 || items[0].Key != "a" || items[1].Key != "c" {
		t.Errorf("Items() = %+v, want a before c", items)
	}
}
