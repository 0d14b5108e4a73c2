// Package relay fans sync messages out between windows in different processes.
//
// Windows connect over a websocket per board (syncchan.WSChannel). Browser companion views
// can follow the same stream as datastar server-sent events and post messages back.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/starfederation/datastar-go/datastar"

	"moodboard/internal/model"
	"moodboard/internal/stack"
	"moodboard/internal/syncchan"
)

// BoardLoader lets the SSE endpoint start a stream with the stored board.
type BoardLoader interface {
	Load(ctx context.Context, id string) (*model.Board, error)
}

type Config struct {
	Addr      string
	Advertise bool
	Store     BoardLoader
	Logger    *slog.Logger
}

type Server struct {
	cfg Config
	log *slog.Logger
	hub *syncchan.Hub

	mu    sync.Mutex
	peers int
}

func New(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:7717"
	}
	return &Server{cfg: cfg, log: log, hub: syncchan.NewHub()}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /boards/{boardId}/ws", s.handleWS)
	mux.HandleFunc("GET /boards/{boardId}/events", s.handleEvents)
	mux.HandleFunc("POST /boards/{boardId}/messages", s.handlePost)
	return mux
}

// ListenAndServe runs until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	if s.cfg.Advertise {
		port := ln.Addr().(*net.TCPAddr).Port
		md, err := syncchan.Advertise(port)
		if err != nil {
			s.log.Warn("mdns advertise failed", "err", err)
		} else {
			defer md.Shutdown()
			s.log.Info("advertising relay", "service", syncchan.ServiceType, "port", port)
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("relay listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.hub.Close()
	return srv.Shutdown(shutCtx)
}

// Peers returns the number of connected websocket peers.
func (s *Server) Peers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peers
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "peers": s.Peers()})
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  16 * 1024,
	WriteBufferSize: 16 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			return true
		}
		host := strings.TrimSpace(r.Host)
		return strings.Contains(origin, "://"+host)
	},
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	boardID := strings.TrimSpace(r.PathValue("boardId"))
	if boardID == "" {
		http.Error(w, "missing board id", http.StatusBadRequest)
		return
	}
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	stream, unsub, err := s.hub.Subscribe(r.Context(), boardID)
	if err != nil {
		return
	}
	defer unsub()

	s.mu.Lock()
	s.peers++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.peers--
		s.mu.Unlock()
	}()

	p := &peer{origins: map[string]bool{}}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errCh <- s.pumpWSToHub(ctx, conn, boardID, p)
	}()
	go func() {
		defer wg.Done()
		errCh <- pumpHubToWS(ctx, stream, conn, p)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			s.log.Debug("relay peer closed", "board", boardID, "err", err)
		}
	}
	cancel()
	_ = conn.Close()
	unsub()
	wg.Wait()
}

// peer remembers which windows sit behind one connection so their own messages are not
// echoed back to them.
type peer struct {
	mu      sync.Mutex
	origins map[string]bool
}

func (p *peer) note(origin string) {
	p.mu.Lock()
	p.origins[origin] = true
	p.mu.Unlock()
}

func (p *peer) owns(origin string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.origins[origin]
}

func (s *Server) pumpWSToHub(ctx context.Context, conn *websocket.Conn, boardID string, p *peer) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		msg, err := syncchan.Decode(raw)
		if err != nil || msg.BoardID != boardID {
			s.log.Debug("relay dropped message", "board", boardID, "err", err)
			continue
		}
		p.note(msg.Origin)
		if err := s.hub.Publish(ctx, msg); err != nil {
			return err
		}
	}
}

func pumpHubToWS(ctx context.Context, stream <-chan syncchan.Message, conn *websocket.Conn, p *peer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-stream:
			if !ok {
				return nil
			}
			if p.owns(msg.Origin) {
				continue
			}
			raw, err := syncchan.Encode(msg)
			if err != nil {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return err
			}
		}
	}
}

// handlePost accepts a message from a browser view.
func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	boardID := strings.TrimSpace(r.PathValue("boardId"))
	raw, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	msg, err := syncchan.Decode(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if msg.BoardID != boardID {
		http.Error(w, "board id mismatch", http.StatusBadRequest)
		return
	}
	if err := s.hub.Publish(r.Context(), msg); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleEvents streams the board's messages as datastar signal patches. The stream opens
// with the stored board when a store is configured.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	boardID := strings.TrimSpace(r.PathValue("boardId"))
	stream, unsub, err := s.hub.Subscribe(r.Context(), boardID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer unsub()

	sse := datastar.NewSSE(w, r)
	if s.cfg.Store != nil {
		if b, err := s.cfg.Store.Load(r.Context(), boardID); err == nil {
			_ = sse.MarshalAndPatchSignals(boardSignals(b))
		} else {
			_ = sse.ExecuteScript(fmt.Sprintf(`console.error(%q)`, err.Error()))
		}
	}

	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-sse.Context().Done():
			return
		case <-keepAlive.C:
			_ = sse.PatchSignals([]byte(`{}`))
		case msg, ok := <-stream:
			if !ok {
				return
			}
			_ = sse.MarshalAndPatchSignals(map[string]any{"lastMessage": msg})
		}
	}
}

func boardSignals(b *model.Board) map[string]any {
	st := stack.New(b)
	return map[string]any{
		"board": map[string]any{
			"id":      b.ID,
			"name":    b.Name,
			"bgColor": b.BgColor,
		},
		"order":  st.Flatten(),
		"groups": b.Groups,
	}
}
