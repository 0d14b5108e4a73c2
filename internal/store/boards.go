package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"moodboard/internal/model"
	"moodboard/internal/stack"
)

var ErrNotFound = errors.New("board not found")

// Store is durable CRUD for board records. Every call may block on I/O.
type Store interface {
	Create(ctx context.Context, name, bgColor string) (*model.Board, error)
	Load(ctx context.Context, id string) (*model.Board, error)
	// Save applies the non-nil fields of u, bumps updatedAt and returns the stored board.
	Save(ctx context.Context, id string, u model.BoardUpdate) (*model.Board, error)
	// List returns board metadata, most recently updated first.
	List(ctx context.Context) ([]model.BoardMeta, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendFile     Backend = "file"
	BackendPostgres Backend = "postgres"
)

const DefaultBgColor = "#1e1e1e"

type Options struct {
	Backend     Backend
	Dir         string
	DatabaseURL string
}

// Open returns the store selected by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(string(opts.Backend)))) {
	case "", BackendSQLite:
		return OpenSQLite(ctx, opts.Dir)
	case BackendFile:
		return NewFileStore(opts.Dir)
	case BackendPostgres:
		return OpenPostgres(ctx, opts.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store backend %q (expected sqlite|file|postgres)", opts.Backend)
	}
}

func newBoard(name, bgColor string, now time.Time) *model.Board {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Untitled"
	}
	bgColor = strings.TrimSpace(bgColor)
	if bgColor == "" {
		bgColor = DefaultBgColor
	}
	return &model.Board{
		ID:        model.NewID("board"),
		Name:      name,
		BgColor:   bgColor,
		CreatedAt: now,
		UpdatedAt: now,
		ViewState: model.ViewState{Zoom: 1},
		Layers:    []model.Layer{},
		Objects:   []model.Layer{},
		Groups:    []model.Group{},
	}
}

// normalizeLoaded repairs z-indices of a board read from storage so the flattened stack is
// contiguous again. Relative order is kept.
func normalizeLoaded(b *model.Board) *model.Board {
	stack.New(b).Normalize()
	return b
}

func sortMetas(metas []model.BoardMeta) {
	sort.SliceStable(metas, func(i, j int) bool {
		if !metas[i].UpdatedAt.Equal(metas[j].UpdatedAt) {
			return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
		}
		return metas[i].ID < metas[j].ID
	})
}

// now is truncated to milliseconds so every backend round-trips timestamps exactly.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
