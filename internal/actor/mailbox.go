package actor

import "sync"

// mailbox is an unbounded FIFO queue owned by one actor goroutine.
//
// Producers append under the lock and poke signal; the owner drains the whole
// queue in one go. signal has capacity 1 so a burst of pushes collapses into a
// single wake-up.
type mailbox[M any] struct {
	mu     sync.Mutex
	queue  []M
	closed bool
	signal chan struct{}
}

func newMailbox[M any]() *mailbox[M] {
	return &mailbox[M]{signal: make(chan struct{}, 1)}
}

// push enqueues msg. Returns false if the mailbox has been closed.
func (m *mailbox[M]) push(msg M) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, msg)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

// drain removes and returns everything queued so far.
func (m *mailbox[M]) drain() []M {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queue
	m.queue = nil
	return q
}

// close rejects further pushes and returns how many queued messages were discarded.
func (m *mailbox[M]) close() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	dropped := len(m.queue)
	m.queue = nil
	return dropped
}
