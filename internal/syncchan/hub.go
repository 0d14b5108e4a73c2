package syncchan

import "context"

// Hub is the in-process transport: every window of this process shares one Hub.
type Hub struct {
	f *fanout
}

func NewHub() *Hub {
	return &Hub{f: newFanout()}
}

func (h *Hub) Publish(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	h.f.mu.Lock()
	closed := h.f.closed
	h.f.mu.Unlock()
	if closed {
		return ErrClosed
	}
	h.f.deliver(msg)
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, boardID string) (<-chan Message, func(), error) {
	mb, cancel, err := h.f.subscribe(boardID)
	if err != nil {
		return nil, nil, err
	}
	return mb.out, cancel, nil
}

// Subscribers returns the number of live subscriptions for boardID.
func (h *Hub) Subscribers(boardID string) int {
	return h.f.count(boardID)
}

func (h *Hub) Close() error {
	h.f.close()
	return nil
}
