package liveproxy

import "sync"

// scheduler serializes a proxy's deferred work — flushes, event
// dispatch, subtree-listener callbacks — onto a single goroutine, FIFO.
// This is the Go translation of spec §5's "cooperative single-threaded"
// execution model: the spec assumes one logical thread of control per
// proxy with explicit suspension points; Go instead lets callers mutate
// the proxy from any goroutine, so the core owns one dedicated worker
// per proxy and every deferred task — "the next scheduler tick" — is
// simply the next task this worker picks up.
type scheduler struct {
	tasks chan func()
	quit  chan struct{}
	wg    sync.WaitGroup
}

func newScheduler() *scheduler {
	s := &scheduler{
		tasks: make(chan func(), 256),
		quit:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *scheduler) run() {
	defer s.wg.Done()
	for {
		select {
		case fn := <-s.tasks:
			fn()
		case <-s.quit:
			s.drain()
			return
		}
	}
}

func (s *scheduler) drain() {
	for {
		select {
		case fn := <-s.tasks:
			fn()
		default:
			return
		}
	}
}

// schedule enqueues fn to run on the worker goroutine. It never blocks
// the caller on fn's execution.
func (s *scheduler) schedule(fn func()) {
	select {
	case s.tasks <- fn:
	case <-s.quit:
	}
}

// sync blocks the caller until every task scheduled before this call has
// run — used to implement "await the next flush" (transaction start,
// Destroy).
func (s *scheduler) sync() {
	done := make(chan struct{})
	s.schedule(func() { close(done) })
	<-done
}

// stop drains any remaining tasks and stops the worker. Safe to call
// once; callers must not schedule after calling stop.
func (s *scheduler) stop() {
	close(s.quit)
	s.wg.Wait()
}
