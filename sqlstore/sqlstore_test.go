package sqlstore

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-mizu/liveproxy"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("duckdb", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s, err := New(db)
	require.NoError(t, err)
	return s
}

func TestSetAndGetRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "doc", map[string]any{"name": "ada"}, liveproxy.WriteContext{}))

	snap, err := s.Get(ctx, "doc", liveproxy.GetOptions{})
	require.NoError(t, err)
	val, ok := snap.Val().(map[string]any)
	require.True(t, ok)
	require.Equal(t, "ada", val["name"])
}

func TestGetNestedPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "doc", map[string]any{"profile": map[string]any{"age": float64(30)}}, liveproxy.WriteContext{}))

	snap, err := s.Get(ctx, "doc/profile/age", liveproxy.GetOptions{})
	require.NoError(t, err)
	require.Equal(t, float64(30), snap.Val())
}

func TestUpdateMergesAndDeletes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "doc", map[string]any{"a": float64(1), "b": float64(2)}, liveproxy.WriteContext{}))
	require.NoError(t, s.Update(ctx, "doc", map[string]any{"a": float64(10), "b": nil}, liveproxy.WriteContext{}))

	snap, err := s.Get(ctx, "doc", liveproxy.GetOptions{})
	require.NoError(t, err)
	val := snap.Val().(map[string]any)
	require.Equal(t, float64(10), val["a"])
	_, hasB := val["b"]
	require.False(t, hasB)
}

func TestMutationsNotifiesSubscriber(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var got []liveproxy.StoreMutation
	stop := s.Mutations("doc").Subscribe(func(b liveproxy.MutationBatch) {
		got = append(got, b.Mutations()...)
	})
	defer stop()

	require.NoError(t, s.Set(ctx, "doc", map[string]any{"x": float64(1)}, liveproxy.WriteContext{}))
	require.Len(t, got, 1)
	require.True(t, got[0].Target.IsRoot())
}

func TestPersistsAcrossLoad(t *testing.T) {
	db, err := sql.Open("duckdb", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	s1, err := New(db)
	require.NoError(t, err)
	require.NoError(t, s1.Set(context.Background(), "doc", map[string]any{"v": float64(1)}, liveproxy.WriteContext{}))

	s2, err := New(db)
	require.NoError(t, err)
	snap, err := s2.Get(context.Background(), "doc", liveproxy.GetOptions{})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"v": float64(1)}, snap.Val())
}
