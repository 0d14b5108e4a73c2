package syncchan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"moodboard/internal/model"
)

const (
	reconnectMin = 100 * time.Millisecond
	reconnectMax = 5 * time.Second
)

// WSChannel talks to a relay server (see internal/relay) over one websocket per board.
// The relay forwards a message to every other connection of the board; local subscribers
// sharing the connection are served directly. A lost connection is redialed with backoff
// while the board has subscribers; their streams stay open meanwhile.
type WSChannel struct {
	base   *url.URL
	dialer *websocket.Dialer
	log    *slog.Logger

	mu     sync.Mutex
	conns  map[string]*wsConn
	local  *fanout
	closed bool
	done   chan struct{}
	// origin stamps the state request sent after a reconnect.
	origin string
}

type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// NewWSChannel accepts http(s):// or ws(s):// relay base URLs.
func NewWSChannel(relayURL string, logger *slog.Logger) (*WSChannel, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(relayURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse relay url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("relay url %q: unsupported scheme", relayURL)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &WSChannel{
		base:   u,
		dialer: &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		log:    logger,
		conns:  map[string]*wsConn{},
		local:  newFanout(),
		done:   make(chan struct{}),
		origin: model.NewID("relay"),
	}, nil
}

// Ping checks that the relay answers its health endpoint.
func (c *WSChannel) Ping(ctx context.Context) error {
	u := *c.base
	if u.Scheme == "wss" {
		u.Scheme = "https"
	} else {
		u.Scheme = "http"
	}
	u.Path += "/healthz"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("relay unreachable: %w", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay health: %s", resp.Status)
	}
	return nil
}

func (c *WSChannel) boardURL(boardID string) string {
	u := *c.base
	u.Path += "/boards/" + url.PathEscape(boardID) + "/ws"
	return u.String()
}

// connFor returns the board's connection, dialing one if needed. The dial runs without
// c.mu so a slow handshake does not stall other boards.
func (c *WSChannel) connFor(ctx context.Context, boardID string) (*wsConn, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if wc := c.conns[boardID]; wc != nil {
		c.mu.Unlock()
		return wc, nil
	}
	c.mu.Unlock()

	conn, _, err := c.dialer.DialContext(ctx, c.boardURL(boardID), nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return nil, ErrClosed
	}
	if wc := c.conns[boardID]; wc != nil {
		// A concurrent dial won.
		c.mu.Unlock()
		_ = conn.Close()
		return wc, nil
	}
	wc := &wsConn{conn: conn}
	c.conns[boardID] = wc
	c.mu.Unlock()
	go c.readLoop(boardID, wc)
	return wc, nil
}

func (c *WSChannel) readLoop(boardID string, wc *wsConn) {
	for {
		_, raw, err := wc.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			if c.conns[boardID] == wc {
				delete(c.conns, boardID)
			}
			c.mu.Unlock()
			_ = wc.conn.Close()
			if closed {
				return
			}
			c.log.Warn("relay connection lost", "board", boardID, "err", err)
			c.reconnect(boardID)
			return
		}
		msg, err := Decode(raw)
		if err != nil {
			c.log.Debug("dropping malformed sync message", "board", boardID, "err", err)
			continue
		}
		c.local.deliver(msg)
	}
}

// reconnect redials boardID until it succeeds, the channel closes or the board loses its
// last subscriber. Messages sent while the connection was down are gone, so the restored
// connection asks for state; a primary elsewhere answers it.
func (c *WSChannel) reconnect(boardID string) {
	delay := reconnectMin
	for {
		select {
		case <-c.done:
			return
		case <-time.After(delay):
		}
		if c.local.count(boardID) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.dialer.HandshakeTimeout)
		wc, err := c.connFor(ctx, boardID)
		cancel()
		if errors.Is(err, ErrClosed) {
			return
		}
		if err == nil {
			c.log.Info("relay connection restored", "board", boardID)
			req := Message{Type: TypeStateRequest, BoardID: boardID, Origin: c.origin}
			if err := c.write(context.Background(), wc, req); err != nil {
				c.log.Debug("state request after reconnect failed", "board", boardID, "err", err)
			}
			return
		}

		c.log.Debug("relay redial failed", "board", boardID, "err", err, "retry_in", delay)
		delay *= 2
		if delay > reconnectMax {
			delay = reconnectMax
		}
	}
}

func (c *WSChannel) write(ctx context.Context, wc *wsConn, msg Message) error {
	raw, err := Encode(msg)
	if err != nil {
		return err
	}
	wc.writeMu.Lock()
	defer wc.writeMu.Unlock()
	if dl, ok := ctx.Deadline(); ok {
		_ = wc.conn.SetWriteDeadline(dl)
	} else {
		_ = wc.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	}
	if err := wc.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return fmt.Errorf("relay write: %w", err)
	}
	return nil
}

func (c *WSChannel) Publish(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	wc, err := c.connFor(ctx, msg.BoardID)
	if err != nil {
		return err
	}
	if err := c.write(ctx, wc, msg); err != nil {
		return err
	}
	c.local.deliver(msg)
	return nil
}

func (c *WSChannel) Subscribe(ctx context.Context, boardID string) (<-chan Message, func(), error) {
	if _, err := c.connFor(ctx, boardID); err != nil {
		return nil, nil, err
	}
	mb, cancel, err := c.local.subscribe(boardID)
	if err != nil {
		return nil, nil, err
	}
	return mb.out, cancel, nil
}

func (c *WSChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conns := c.conns
	c.conns = map[string]*wsConn{}
	c.mu.Unlock()

	for _, wc := range conns {
		wc.writeMu.Lock()
		_ = wc.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		wc.writeMu.Unlock()
		_ = wc.conn.Close()
	}
	c.local.close()
	return nil
}
