// Package persist coalesces board mutations into debounced durable writes.
package persist

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"moodboard/internal/model"
)

const DefaultDebounce = 2 * time.Second

// Saver is the durable side of the scheduler; store.Store satisfies it.
type Saver interface {
	Save(ctx context.Context, id string, u model.BoardUpdate) (*model.Board, error)
}

// SnapshotFunc returns the board state to write. It is called at flush time, never at
// MarkDirty time, so a write always carries the latest state.
type SnapshotFunc func() model.BoardUpdate

type Options struct {
	BoardID  string
	Debounce time.Duration
	Saver    Saver
	Snapshot SnapshotFunc
	Logger   *slog.Logger
	// OnSaved is called after each successful write.
	OnSaved func(*model.Board)
}

// Scheduler is a pure debounce: every MarkDirty restarts the quiet period, so a continuous
// stream of edits produces no write until it pauses.
//
// A failed write leaves the board pending and is retried after another quiet period.
type Scheduler struct {
	boardID  string
	debounce time.Duration
	saver    Saver
	snapshot SnapshotFunc
	log      *slog.Logger
	onSaved  func(*model.Board)

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	saving  bool
	running bool
	closed  bool
	writes  int

	// flushMu serializes writes between the timer goroutine and FlushNow.
	flushMu sync.Mutex
}

func New(opts Options) *Scheduler {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{
		boardID:  opts.BoardID,
		debounce: debounce,
		saver:    opts.Saver,
		snapshot: opts.Snapshot,
		log:      log,
		onSaved:  opts.OnSaved,
	}
}

// MarkDirty sets the pending flag and restarts the quiet period.
func (s *Scheduler) MarkDirty() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = true
	if s.timer == nil {
		s.timer = time.AfterFunc(s.debounce, s.onTimer)
		return
	}
	s.timer.Reset(s.debounce)
}

// Pending reports whether there are edits not yet durably written, including edits whose
// write is in flight.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending || s.saving
}

// Writes returns the number of successful durable writes.
func (s *Scheduler) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *Scheduler) onTimer() {
	s.mu.Lock()
	if s.running {
		// A flush is in flight; come back once it has finished.
		if s.timer != nil {
			s.timer.Reset(s.debounce)
		}
		s.mu.Unlock()
		return
	}
	if !s.pending {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	err := s.flush(context.Background())

	s.mu.Lock()
	s.running = false
	// Edits made during the write (or a failed write) need another pass.
	if s.pending && !s.closed && s.timer != nil {
		s.timer.Reset(s.debounce)
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("autosave failed; will retry", "board", s.boardID, "err", err)
	}
}

// FlushNow cancels the timer and, if anything is pending, performs exactly one write.
func (s *Scheduler) FlushNow(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	err := s.flush(ctx)
	if err != nil {
		// Keep the edit alive for the next attempt.
		s.mu.Lock()
		if !s.closed && s.timer != nil {
			s.timer.Reset(s.debounce)
		}
		s.mu.Unlock()
	}
	return err
}

// Close stops the timer for good and flushes synchronously. MarkDirty calls after Close
// are ignored.
func (s *Scheduler) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	return s.flush(ctx)
}

func (s *Scheduler) flush(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	if !s.pending {
		s.mu.Unlock()
		return nil
	}
	// Cleared before the snapshot so edits racing with the write mark it pending again.
	s.pending = false
	s.saving = true
	s.mu.Unlock()

	b, err := s.saver.Save(ctx, s.boardID, s.snapshot())
	if err != nil {
		s.mu.Lock()
		s.pending = true
		s.saving = false
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.writes++
	s.saving = false
	s.mu.Unlock()
	if s.onSaved != nil {
		s.onSaved(b)
	}
	return nil
}
