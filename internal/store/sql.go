package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"moodboard/internal/model"
)

// dialect covers the differences between the SQL backends: placeholder style and DDL.
type dialect struct {
	name        string
	dollarArgs  bool
	createTable string
}

// sqlStore is the board store shared by SQLite and Postgres. Each board is one row; the full
// record is kept as JSON next to the columns List needs.
type sqlStore struct {
	db *sql.DB
	d  dialect
}

func (s *sqlStore) Close() error { return s.db.Close() }

// q rewrites ? placeholders for drivers that use $N.
func (s *sqlStore) q(query string) string {
	if !s.d.dollarArgs {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (s *sqlStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.d.createTable); err != nil {
		return fmt.Errorf("%s migrate: %w", s.d.name, err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_boards_updated ON boards(updated_at_unixms DESC)`); err != nil {
		return fmt.Errorf("%s migrate: %w", s.d.name, err)
	}
	return nil
}

func (s *sqlStore) Create(ctx context.Context, name, bgColor string) (*model.Board, error) {
	b := newBoard(name, bgColor, now())
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, s.q(`INSERT INTO boards(id, name, bg_color, created_at_unixms, updated_at_unixms, json) VALUES(?, ?, ?, ?, ?, ?)`),
		b.ID, b.Name, b.BgColor, b.CreatedAt.UnixMilli(), b.UpdatedAt.UnixMilli(), string(raw))
	if err != nil {
		return nil, fmt.Errorf("create board: %w", err)
	}
	return b, nil
}

func (s *sqlStore) Load(ctx context.Context, id string) (*model.Board, error) {
	b, err := loadRow(ctx, s.db, s.q(`SELECT json FROM boards WHERE id = ?`), id)
	if err != nil {
		return nil, err
	}
	return normalizeLoaded(b), nil
}

func (s *sqlStore) Save(ctx context.Context, id string, u model.BoardUpdate) (*model.Board, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	b, err := loadRow(ctx, tx, s.q(`SELECT json FROM boards WHERE id = ?`), id)
	if err != nil {
		return nil, err
	}
	u.Apply(b, now())
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, s.q(`UPDATE boards SET name = ?, bg_color = ?, updated_at_unixms = ?, json = ? WHERE id = ?`),
		b.Name, b.BgColor, b.UpdatedAt.UnixMilli(), string(raw), b.ID); err != nil {
		return nil, fmt.Errorf("save board: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *sqlStore) List(ctx context.Context) ([]model.BoardMeta, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, bg_color, created_at_unixms, updated_at_unixms FROM boards ORDER BY updated_at_unixms DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.BoardMeta{}
	for rows.Next() {
		var m model.BoardMeta
		var created, updated int64
		if err := rows.Scan(&m.ID, &m.Name, &m.BgColor, &created, &updated); err != nil {
			return nil, err
		}
		m.CreatedAt = time.UnixMilli(created).UTC()
		m.UpdatedAt = time.UnixMilli(updated).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *sqlStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM boards WHERE id = ?`), strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadRow(ctx context.Context, db queryRower, query, id string) (*model.Board, error) {
	id = strings.TrimSpace(id)
	var raw string
	if err := db.QueryRowContext(ctx, query, id).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	var b model.Board
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return nil, fmt.Errorf("decode board %s: %w", id, err)
	}
	return &b, nil
}
