package liveproxy

import "context"

// This file defines the external-store contract consumed by the core
// (spec §6). The core never imports a concrete datastore; see packages
// memstore and sqlstore for implementations.

// CacheMode controls whether Store.Get may answer from its own cache or
// must round-trip to the authoritative backend.
type CacheMode int

const (
	// CacheModeAllow permits the store to answer from a local cache.
	CacheModeAllow CacheMode = iota
	// CacheModeBypass forces a round trip to the authoritative backend,
	// used by Proxy.Reload.
	CacheModeBypass
)

// GetOptions parameterizes Store.Get.
type GetOptions struct {
	CacheMode   CacheMode
	CacheCursor string
}

// ProxyStamp identifies the proxy instance and the reason a write was
// issued. Every outbound Set/Update carries one (spec §6 "Context
// stamping"); every inbound batch is classified by comparing its stamp's
// ID against the local proxy's.
type ProxyStamp struct {
	ID     string
	Source string // "update", "update-rollback", "default"
}

const (
	SourceUpdate         = "update"
	SourceUpdateRollback = "update-rollback"
	SourceDefault        = "default"
)

// WriteContext is passed with every outbound Set/Update call.
type WriteContext struct {
	Proxy ProxyStamp
}

// StoreContext is returned by a Snapshot or MutationBatch: the
// store-assigned cursor and, when the read or batch originated from a
// proxy write, the stamp that write carried.
type StoreContext struct {
	Cursor string
	Proxy  *ProxyStamp
}

// Snapshot is the result of Store.Get.
type Snapshot interface {
	Val() any
	Context() StoreContext
}

// Ref addresses a location in the external store and composes child
// paths, standing in for the spec's path-manipulation/reference
// collaborator.
type Ref interface {
	Path() string
	Child(key string) Ref
	// Cursor returns the sync cursor reached by the most recent write
	// issued through this Ref, or "" if the backend does not support
	// cursors. Checked after Set/Update per spec §6.
	Cursor() string
}

// StoreMutation is one element of a remote mutation batch: the path
// relative to the subscribed root, its new value, and the value it
// replaced.
type StoreMutation struct {
	Target   Target
	Val      any
	Previous any
}

// MutationBatch is a set of mutations delivered together by the store,
// carrying the context stamp of whichever write produced it and, if the
// store supports sync cursors, the cursor reached by applying it.
type MutationBatch interface {
	Mutations() []StoreMutation
	Context() StoreContext
}

// MutationStream is the subscription handle returned by Store.Mutations.
type MutationStream interface {
	// Subscribe registers cb for every batch delivered for the
	// subscribed path and returns a function that cancels the
	// subscription.
	Subscribe(cb func(MutationBatch)) (stop func())
}

// Store is the datastore client the core proxies. It is the sole
// external collaborator the core depends on for persistence and
// notification.
type Store interface {
	// Get fetches the value at path, honoring opts.CacheMode.
	Get(ctx context.Context, path string, opts GetOptions) (Snapshot, error)
	// Set replaces the whole value at path.
	Set(ctx context.Context, path string, value any, wctx WriteContext) error
	// Update applies a partial write: each key in partial is set (or,
	// if its value is nil, removed) under path.
	Update(ctx context.Context, path string, partial map[string]any, wctx WriteContext) error
	// Mutations returns a stream of mutation batches for path.
	Mutations(path string) MutationStream
	// Ref returns a Ref for path.
	Ref(path string) Ref
}
