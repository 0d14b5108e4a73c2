package syncchan

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"moodboard/internal/model"
	"moodboard/internal/stack"
)

const (
	DefaultPollInterval = time.Second
	// PollOrigin marks messages synthesized from the durable record.
	PollOrigin = "store-poll"
)

// BoardLoader is the read side of the board store.
type BoardLoader interface {
	Load(ctx context.Context, id string) (*model.Board, error)
}

// ownRevisions bounds how many self-written revisions are remembered per board.
const ownRevisions = 16

// PollingChannel is the fallback transport. Publish reaches windows of this process only;
// other processes learn about changes once they are persisted, by polling the board's
// fingerprint and replaying the stored state as ordinary messages. Revisions written by
// this process (see NoteSaved) are not replayed: its windows already hold them.
type PollingChannel struct {
	loader   BoardLoader
	interval time.Duration
	log      *slog.Logger
	local    *Hub

	mu  sync.Mutex
	own map[string][]Fingerprint

	stopCh chan struct{}
}

func NewPollingChannel(loader BoardLoader, interval time.Duration, logger *slog.Logger) *PollingChannel {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &PollingChannel{
		loader:   loader,
		interval: interval,
		log:      logger,
		local:    NewHub(),
		own:      map[string][]Fingerprint{},
		stopCh:   make(chan struct{}),
	}
}

func (c *PollingChannel) Publish(ctx context.Context, msg Message) error {
	return c.local.Publish(ctx, msg)
}

func (c *PollingChannel) Subscribe(ctx context.Context, boardID string) (<-chan Message, func(), error) {
	mb, cancel, err := c.local.f.subscribe(boardID)
	if err != nil {
		return nil, nil, err
	}
	done := make(chan struct{})
	go c.watchLoop(boardID, mb, done)
	return mb.out, func() {
		close(done)
		cancel()
	}, nil
}

func (c *PollingChannel) Close() error {
	select {
	case <-c.stopCh:
	default:
		close(c.stopCh)
	}
	return c.local.Close()
}

// NoteSaved records a revision written by a window of this process.
func (c *PollingChannel) NoteSaved(b *model.Board) {
	if b == nil {
		return
	}
	fp := FingerprintOf(b)
	c.mu.Lock()
	defer c.mu.Unlock()
	revs := append(c.own[b.ID], fp)
	if len(revs) > ownRevisions {
		revs = revs[len(revs)-ownRevisions:]
	}
	c.own[b.ID] = revs
}

func (c *PollingChannel) wroteOwn(boardID string, fp Fingerprint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, own := range c.own[boardID] {
		if own == fp {
			return true
		}
	}
	return false
}

// watchLoop fingerprints the stored board. The first observation is the baseline; each
// later revision not written by this process is replayed into mb.
func (c *PollingChannel) watchLoop(boardID string, mb *mailbox, done <-chan struct{}) {
	var last Fingerprint
	t := time.NewTicker(c.interval)
	defer t.Stop()

	for {
		ctx, cancel := context.WithTimeout(context.Background(), c.interval)
		b, err := c.loader.Load(ctx, boardID)
		cancel()
		if err != nil {
			c.log.Debug("board poll failed", "board", boardID, "err", err)
		} else if fp := FingerprintOf(b); last.IsZero() {
			last = fp
		} else if fp != last {
			last = fp
			if c.wroteOwn(boardID, fp) {
				c.log.Debug("skipped own revision", "board", boardID)
			} else {
				for _, msg := range StateMessages(b, PollOrigin) {
					mb.put(msg)
				}
			}
		}

		select {
		case <-done:
			return
		case <-c.stopCh:
			return
		case <-t.C:
		}
	}
}

// StateMessages expresses a stored board as the messages a window needs to converge on it:
// image-added for every layer (ignored where already known), the full order and groups,
// then per-layer visibility and filters.
func StateMessages(b *model.Board, origin string) []Message {
	st := stack.New(b.Clone())
	out := make([]Message, 0, 2*st.Len()+2)
	for _, e := range st.Flatten() {
		l, _, _ := st.Find(e.ID)
		lc := *l
		out = append(out, Message{Type: TypeImageAdded, BoardID: b.ID, Origin: origin, Layer: &lc})
	}
	out = append(out, Message{
		Type:    TypeStateResponse,
		BoardID: b.ID,
		Origin:  origin,
		Order:   st.Flatten(),
		Groups:  st.Board().Groups,
		BgColor: b.BgColor,
	})
	for _, e := range st.Flatten() {
		l, _, _ := st.Find(e.ID)
		visible := l.Visible
		out = append(out, Message{Type: TypeVisibilityChanged, BoardID: b.ID, Origin: origin, LayerID: l.ID, Visible: &visible})
		out = append(out, Message{Type: TypeFiltersChanged, BoardID: b.ID, Origin: origin, LayerID: l.ID, Filters: l.Filters})
	}
	return out
}
