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

const sqliteFileName = "index.sqlite"

// Store is the local cache of topic snapshots and manual row order. It lives under the
// config dir and can always be rebuilt from the service, except for manual order.
type Store struct {
	Dir string
}

func DefaultDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache"), nil
}

// Open returns the Store at the default location.
func Open() (Store, error) {
	dir, err := DefaultDir()
	if err != nil {
		return Store{}, err
	}
	s := Store{Dir: dir}
	return s, s.Ensure()
}

func (s Store) Ensure() error {
	if strings.TrimSpace(s.Dir) == "" {
		return errors.New("store: missing dir")
	}
	return os.MkdirAll(s.Dir, 0o755)
}

func (s Store) sqlitePath() string {
	return filepath.Join(s.Dir, sqliteFileName)
}

func (s Store) openSQLite(ctx context.Context) (*sql.DB, error) {
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", s.sqlitePath())
	if err != nil {
		return nil, err
	}
	// The CLI and the TUI may have the file open at the same time.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func migrateSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS topics (
			name TEXT PRIMARY KEY,
			seq INTEGER NOT NULL,
			json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			topic TEXT PRIMARY KEY,
			id TEXT NOT NULL,
			saved_at_unixms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS tests (
			topic TEXT NOT NULL,
			id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			json TEXT NOT NULL,
			PRIMARY KEY (topic, id)
		);`,
		`CREATE TABLE IF NOT EXISTS perturbations (
			topic TEXT NOT NULL,
			parent_id TEXT NOT NULL,
			type TEXT NOT NULL,
			seq INTEGER NOT NULL,
			json TEXT NOT NULL,
			PRIMARY KEY (topic, parent_id, type)
		);`,
		`CREATE TABLE IF NOT EXISTS ranks (
			topic TEXT NOT NULL,
			id TEXT NOT NULL,
			rank TEXT NOT NULL,
			PRIMARY KEY (topic, id)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
