package liveproxy

// Observable is the minimal reactive-stream surface GetObservable/observe
// wrap a subscribe function in. No Go ecosystem reactive-stream library
// (an RxGo equivalent) appears anywhere in the retrieved example pack —
// see DESIGN.md — so this is a small built-in adapter rather than a
// third-party type, matching §9's instruction to keep the core free of a
// hard dependency on any one reactive library and to fail clearly when
// none is configured.
type Observable interface {
	// Subscribe delivers the current value immediately, then every
	// subsequent change, until stop is called.
	Subscribe(onNext func(any)) (stop func())
}

// SubscribeFunc is the shape Value.Subscribe returns: register onNext to
// be called with the current value and every subsequent change, and get
// back a function that cancels delivery.
type SubscribeFunc func(onNext func(any)) (stop func())

// ObservableFactory builds an Observable from a subscribe function shaped
// like the one SubscribeFunc returns. Proxy.Options.ObservableFactory lets
// a caller plug in a real reactive library's adapter; the zero value
// means "unavailable" and GetObservable returns ErrObservableUnavailable.
type ObservableFactory func(subscribe SubscribeFunc) Observable

// channelObservable is the Observable built by DefaultObservableFactory; it
// uses no channel and forwards Subscribe straight to the subscribe function.
type channelObservable struct {
	subscribe SubscribeFunc
}

func (o *channelObservable) Subscribe(onNext func(any)) (stop func()) {
	return o.subscribe(onNext)
}

// DefaultObservableFactory adapts a SubscribeFunc into an Observable
// backed by nothing more than the subscribe function itself — no
// buffering, no channel fan-out beyond what SubscribeFunc already does.
func DefaultObservableFactory(subscribe SubscribeFunc) Observable {
	return &channelObservable{subscribe: subscribe}
}
