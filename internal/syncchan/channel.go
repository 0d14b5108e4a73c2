package syncchan

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("sync channel closed")

// Channel is a per-board publish/subscribe transport with at-least-once delivery. Every
// subscriber of a board receives every message published to it, the publisher's own
// subscriptions included.
type Channel interface {
	Publish(ctx context.Context, msg Message) error
	// Subscribe returns a stream of messages for boardID. The stream is closed after cancel
	// is called or when the transport goes away.
	Subscribe(ctx context.Context, boardID string) (<-chan Message, func(), error)
	Close() error
}

// mailbox is an unbounded per-subscriber queue. Publishers never block on a slow reader
// and nothing is dropped while the subscription is live.
type mailbox struct {
	mu     sync.Mutex
	queue  []Message
	closed bool

	wake      chan struct{}
	out       chan Message
	done      chan struct{}
	closeOnce sync.Once
}

func newMailbox() *mailbox {
	m := &mailbox{
		wake: make(chan struct{}, 1),
		out:  make(chan Message),
		done: make(chan struct{}),
	}
	go m.pump()
	return m
}

func (m *mailbox) put(msg Message) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.queue = append(m.queue, msg)
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *mailbox) pump() {
	defer close(m.out)
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			select {
			case <-m.wake:
				continue
			case <-m.done:
				return
			}
		}
		msg := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()

		select {
		case m.out <- msg:
		case <-m.done:
			return
		}
	}
}

func (m *mailbox) close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.queue = nil
		m.mu.Unlock()
		close(m.done)
	})
}

// fanout tracks the live mailboxes of each board.
type fanout struct {
	mu     sync.Mutex
	boards map[string]map[*mailbox]struct{}
	closed bool
}

func newFanout() *fanout {
	return &fanout{boards: map[string]map[*mailbox]struct{}{}}
}

func (f *fanout) subscribe(boardID string) (*mailbox, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, nil, ErrClosed
	}
	mb := newMailbox()
	subs := f.boards[boardID]
	if subs == nil {
		subs = map[*mailbox]struct{}{}
		f.boards[boardID] = subs
	}
	subs[mb] = struct{}{}
	return mb, func() {
		f.mu.Lock()
		if subs := f.boards[boardID]; subs != nil {
			delete(subs, mb)
			if len(subs) == 0 {
				delete(f.boards, boardID)
			}
		}
		f.mu.Unlock()
		mb.close()
	}, nil
}

func (f *fanout) deliver(msg Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for mb := range f.boards[msg.BoardID] {
		mb.put(msg)
	}
}

func (f *fanout) count(boardID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.boards[boardID])
}

func (f *fanout) close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	boards := f.boards
	f.boards = map[string]map[*mailbox]struct{}{}
	f.mu.Unlock()
	for _, subs := range boards {
		for mb := range subs {
			mb.close()
		}
	}
}
