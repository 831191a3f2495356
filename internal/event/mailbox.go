package event

import "sync"

// mailbox is a thread-safe unbounded FIFO of events.
//
// The queue uses a channel for signaling to enable context-aware waiting.
type mailbox struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // Signals event availability (buffered, size 1)
}

func newMailbox() *mailbox {
	return &mailbox{
		events: make([]Event, 0, 4),
		signal: make(chan struct{}, 1),
	}
}

// put appends an event. Returns false if the mailbox is closed.
func (m *mailbox) put(e Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	m.events = append(m.events, e)

	// Non-blocking: a buffer of 1 coalesces multiple signals
	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

// take removes the front event without blocking.
// done reports that the mailbox is closed and drained.
func (m *mailbox) take() (e Event, ok bool, done bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.events) == 0 {
		return nil, false, m.closed
	}

	e = m.events[0]
	m.events[0] = nil
	if len(m.events) == 1 {
		m.events = m.events[:0]
	} else {
		m.events = m.events[1:]
	}
	return e, true, false
}

// wait returns a channel that signals when events may be available.
func (m *mailbox) wait() <-chan struct{} {
	return m.signal
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// close stops accepting events and wakes any waiter.
// Events already queued can still be taken.
func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	close(m.signal)
}
