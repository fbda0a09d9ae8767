package l1frames

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

// Mailbox is a single-slot frame buffer. Put never blocks: a frame that
// has not been taken by the time the next one arrives is dropped.
type Mailbox struct {
	mu     sync.Mutex
	frame  Frame
	full   bool
	closed bool

	notify chan struct{}
	done   chan struct{}

	puts    atomic.Uint64
	dropped atomic.Uint64
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Put stores f, replacing any frame not yet taken. It reports false if
// the mailbox is closed.
func (m *Mailbox) Put(f Frame) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	if m.full {
		m.dropped.Add(1)
	}
	m.frame, m.full = f, true
	m.mu.Unlock()

	m.puts.Add(1)
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return true
}

// Next blocks until a frame is available and takes it. After Close the
// remaining frame, if any, is still delivered before io.EOF.
func (m *Mailbox) Next(ctx context.Context) (Frame, error) {
	for {
		m.mu.Lock()
		if m.full {
			f := m.frame
			m.frame, m.full = Frame{}, false
			m.mu.Unlock()
			return f, nil
		}
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return Frame{}, io.EOF
		}

		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-m.notify:
		case <-m.done:
		}
	}
}

// Close stops accepting frames and wakes any waiting reader.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	close(m.done)
}

// Dropped returns how many frames were replaced before being taken.
func (m *Mailbox) Dropped() uint64 { return m.dropped.Load() }

// Received returns how many frames were accepted by Put.
func (m *Mailbox) Received() uint64 { return m.puts.Load() }
