// Package liveproxy implements a bidirectional synchronization engine that
// binds an in-memory value graph to a path in a hierarchical,
// event-emitting external store.
//
// Client code reads and mutates a [Value] as if it were a plain mutable
// data structure. Every mutation is captured, coalesced, and flushed to the
// external [Store] at the next scheduler tick; mutations observed from the
// store are applied to the cache and fanned out to local subscribers.
//
// The package does not talk to any real datastore, network transport, or
// reactive-stream library directly — those are external collaborators
// satisfying the interfaces in store.go and observable.go. See package
// memstore and package sqlstore for concrete Store implementations, and
// package wsrelay for a transport that republishes proxy events over
// WebSocket.
package liveproxy
