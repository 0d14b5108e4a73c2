package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"moodboard/internal/model"
)

// FileStore keeps one pretty-printed JSON file per board in Dir, named
// <sanitized-name>-<id>.json.
type FileStore struct {
	Dir string

	mu sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("file store: missing dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{Dir: dir}, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) Create(ctx context.Context, name, bgColor string) (*model.Board, error) {
	b := newBoard(name, bgColor, now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *FileStore) Load(ctx context.Context, id string) (*model.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, _, err := s.read(id)
	if err != nil {
		return nil, err
	}
	return normalizeLoaded(b), nil
}

func (s *FileStore) Save(ctx context.Context, id string, u model.BoardUpdate) (*model.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, path, err := s.read(id)
	if err != nil {
		return nil, err
	}
	u.Apply(b, now())
	if err := s.write(b); err != nil {
		return nil, err
	}
	// A rename changes the file name; drop the stale file.
	if p := s.path(b); p != path {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	return b, nil
}

func (s *FileStore) List(ctx context.Context) ([]model.BoardMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths, err := filepath.Glob(filepath.Join(s.Dir, "*.json"))
	if err != nil {
		return nil, err
	}
	metas := make([]model.BoardMeta, 0, len(paths))
	for _, p := range paths {
		b, err := readBoardFile(p)
		if err != nil {
			// Unreadable files are skipped so one bad board does not hide the rest.
			continue
		}
		metas = append(metas, b.Meta())
	}
	sortMetas(metas)
	return metas, nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, path, err := s.read(id)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

func (s *FileStore) read(id string) (*model.Board, string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, "", fmt.Errorf("%w: empty id", ErrNotFound)
	}
	paths, err := filepath.Glob(filepath.Join(s.Dir, "*-"+globEscape(id)+".json"))
	if err != nil {
		return nil, "", err
	}
	for _, p := range paths {
		b, err := readBoardFile(p)
		if err != nil {
			continue
		}
		if b.ID == id {
			return b, p, nil
		}
	}
	return nil, "", fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *FileStore) write(b *model.Board) error {
	raw, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path(b), append(raw, '\n'))
}

func (s *FileStore) path(b *model.Board) string {
	return filepath.Join(s.Dir, sanitizeFilename(b.Name)+"-"+b.ID+".json")
}

func readBoardFile(path string) (*model.Board, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b model.Board
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return &b, nil
}

func sanitizeFilename(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			sb.WriteRune(r)
		} else {
			sb.WriteRune('-')
		}
	}
	return sb.String()
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `\`, `\\`)
	return r.Replace(s)
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".board-*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
