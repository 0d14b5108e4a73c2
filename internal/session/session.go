// Package session is the per-window context for one open board.
//
// A Session owns its board's layer stack, groups, drag engine and persistence scheduler,
// and one subscription on the sync channel. Local edits are broadcast and scheduled for
// saving; edits received from sibling windows are applied without either.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"moodboard/internal/drag"
	"moodboard/internal/model"
	"moodboard/internal/persist"
	"moodboard/internal/stack"
	"moodboard/internal/syncchan"
)

type Role string

const (
	// RolePrimary is the window of record; it answers state requests.
	RolePrimary Role = "primary"
	// RoleCompanion asks for the primary's state right after opening.
	RoleCompanion Role = "companion"
	// RoleScript is a short-lived editor such as a CLI command. It edits the stored board
	// and broadcasts, but neither asks for nor answers state.
	RoleScript Role = "script"
)

// BoardStore is the slice of store.Store a session needs.
type BoardStore interface {
	Load(ctx context.Context, id string) (*model.Board, error)
	Save(ctx context.Context, id string, u model.BoardUpdate) (*model.Board, error)
}

type Options struct {
	Store    BoardStore
	Channel  syncchan.Channel
	Role     Role
	WindowID string
	Debounce time.Duration
	Logger   *slog.Logger
}

type ChangeKind string

const (
	ChangeOrder      ChangeKind = "order"
	ChangeVisibility ChangeKind = "visibility"
	ChangeFilters    ChangeKind = "filters"
	ChangeBackground ChangeKind = "background"
	ChangeLayers     ChangeKind = "layers"
	ChangeGroups     ChangeKind = "groups"
	ChangeBoard      ChangeKind = "board"
)

// Change tells listeners what to redraw.
type Change struct {
	Kind   ChangeKind
	Remote bool
	IDs    []string
}

type Session struct {
	id      string
	boardID string
	role    Role
	ch      syncchan.Channel
	log     *slog.Logger

	mu      sync.Mutex
	board   *model.Board
	st      *stack.Stack
	groups  *stack.Groups
	drag    *drag.Engine
	closed  bool
	nextL   int
	listens map[int]func(Change)

	sched *persist.Scheduler
	unsub func()
	wg    sync.WaitGroup
}

var ErrClosed = errors.New("session closed")

// Open loads boardID and attaches the window to the board's sync channel.
func Open(ctx context.Context, boardID string, opts Options) (*Session, error) {
	if opts.Store == nil || opts.Channel == nil {
		return nil, errors.New("session: store and channel are required")
	}
	boardID = strings.TrimSpace(boardID)
	b, err := opts.Store.Load(ctx, boardID)
	if err != nil {
		return nil, err
	}
	role := opts.Role
	if role == "" {
		role = RolePrimary
	}
	id := strings.TrimSpace(opts.WindowID)
	if id == "" {
		id = model.NewID("win")
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Session{
		id:      id,
		boardID: b.ID,
		role:    role,
		ch:      opts.Channel,
		log:     log.With("board", b.ID, "window", id),
		board:   b,
		listens: map[int]func(Change){},
	}
	s.st = stack.New(b)
	s.groups = stack.NewGroups(s.st)
	s.drag = drag.New(s.st, s.groups)
	s.sched = persist.New(persist.Options{
		BoardID:  b.ID,
		Debounce: opts.Debounce,
		Saver:    opts.Store,
		Snapshot: s.snapshot,
		Logger:   s.log,
		OnSaved:  s.noteSaved,
	})
	s.st.OnDirty(s.sched.MarkDirty)

	stream, unsub, err := s.ch.Subscribe(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	s.unsub = unsub
	s.wg.Add(1)
	go s.receiveLoop(stream)

	if role == RoleCompanion {
		s.publish(syncchan.Message{Type: syncchan.TypeStateRequest})
	}
	return s, nil
}

func (s *Session) ID() string      { return s.id }
func (s *Session) BoardID() string { return s.boardID }
func (s *Session) Role() Role      { return s.role }

// Pending reports whether edits are waiting to be saved.
func (s *Session) Pending() bool { return s.sched.Pending() }

// Writes returns the number of durable writes this window has made.
func (s *Session) Writes() int { return s.sched.Writes() }

// OnChange registers fn for every applied change, local or remote. fn runs without the
// session lock held and may call back into the session. The returned func detaches it.
func (s *Session) OnChange(fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return func() {}
	}
	id := s.nextL
	s.nextL++
	s.listens[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listens, id)
		s.mu.Unlock()
	}
}

// Board returns a copy of the current board state.
func (s *Session) Board() *model.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Clone()
}

func (s *Session) Flatten() []stack.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.Flatten()
}

func (s *Session) Rows() []stack.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groups.Rows()
}

// Flush writes pending edits now.
func (s *Session) Flush(ctx context.Context) error {
	return s.sched.FlushNow(ctx)
}

// Close detaches listeners and the channel subscription, then flushes synchronously. The
// window must not be considered closed until Close returns.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.listens = map[int]func(Change){}
	if s.drag.Phase() == drag.Dragging {
		s.drag.Cancel()
	}
	unsub := s.unsub
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	s.wg.Wait()
	// The snapshot callback takes s.mu, so the flush runs unlocked.
	return s.sched.Close(ctx)
}

// noteSaved tells a store-polling channel which revision this window wrote.
func (s *Session) noteSaved(b *model.Board) {
	if n, ok := s.ch.(syncchan.SaveNoter); ok {
		n.NoteSaved(b)
	}
}

func (s *Session) snapshot() model.BoardUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.FullUpdate(s.board)
}

// publish stamps origin and board, then sends msg. Failures are logged; the next full
// order broadcast or state response heals a lost message.
func (s *Session) publish(msg syncchan.Message) {
	msg.BoardID = s.boardID
	msg.Origin = s.id
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.ch.Publish(ctx, msg); err != nil {
		s.log.Warn("sync publish failed", "type", msg.Type, "err", err)
	}
}

func (s *Session) emit(c Change) {
	s.mu.Lock()
	fns := make([]func(Change), 0, len(s.listens))
	for _, fn := range s.listens {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

// lock takes the session lock, failing once the session has been closed.
func (s *Session) lock() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	return nil
}
