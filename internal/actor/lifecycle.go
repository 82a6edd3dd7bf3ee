package actor

import "sync"

// lifecycle tracks whether an actor is alive and who wants to hear about its death.
type lifecycle struct {
	mu       sync.Mutex
	stopped  bool
	nextID   uint64
	watchers map[uint64]func()
	done     chan struct{}
}

func newLifecycle() *lifecycle {
	return &lifecycle{
		watchers: make(map[uint64]func()),
		done:     make(chan struct{}),
	}
}

// watch registers fn to run once when the actor terminates. If it already has,
// fn runs immediately on the caller's goroutine. The returned func deregisters.
func (l *lifecycle) watch(fn func()) (cancel func()) {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		fn()
		return func() {}
	}
	id := l.nextID
	l.nextID++
	l.watchers[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.watchers, id)
		l.mu.Unlock()
	}
}

// terminate marks the actor stopped, fires every registered watcher and then
// closes done, so a notification is already enqueued once Done is observed.
// Calls after the first are no-ops.
func (l *lifecycle) terminate() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return
	}
	l.stopped = true
	watchers := l.watchers
	l.watchers = nil
	l.mu.Unlock()

	for _, fn := range watchers {
		fn()
	}
	close(l.done)
}

func (l *lifecycle) alive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.stopped
}
