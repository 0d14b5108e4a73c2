package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteFileName = "boards.sqlite"

var sqliteDialect = dialect{
	name: "sqlite",
	createTable: `CREATE TABLE IF NOT EXISTS boards (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  bg_color TEXT NOT NULL,
  created_at_unixms INTEGER NOT NULL,
  updated_at_unixms INTEGER NOT NULL,
  json TEXT NOT NULL
);`,
}

// OpenSQLite opens (creating if needed) dir/boards.sqlite.
func OpenSQLite(ctx context.Context, dir string) (Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("sqlite store: missing dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", filepath.Join(dir, sqliteFileName))
	if err != nil {
		return nil, err
	}
	// Several windows may hold the file open at once. WAL gives one writer + many readers;
	// busy_timeout avoids "database is locked" on overlapping flushes.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	s := &sqlStore{db: db, d: sqliteDialect}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
