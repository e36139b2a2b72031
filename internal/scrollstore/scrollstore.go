// Package scrollstore persists message-pane scroll offsets in SQLite so
// they survive restarts.
package scrollstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/wesm/leadhistory/internal/history"
)

//go:embed schema.sql
var schema string

const defaultSQLiteParams = "?_journal_mode=WAL&_busy_timeout=5000"

// SQLite is a history.ScrollStore backed by a SQLite database.
type SQLite struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

var _ history.ScrollStore = (*SQLite)(nil)

// Open opens or creates the database at the given path and ensures the
// schema exists.
func Open(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+defaultSQLiteParams)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLite{db: db, dbPath: dbPath, now: time.Now}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.dbPath
}

func (s *SQLite) Get(ctx context.Context, key string) (int, bool, error) {
	var offset int
	err := s.db.QueryRowContext(ctx,
		`SELECT scroll_top FROM scroll_positions WHERE key = ?`, key).Scan(&offset)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get scroll position %s: %w", key, err)
	}
	return offset, true, nil
}

func (s *SQLite) Set(ctx context.Context, key string, offset int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scroll_positions (key, scroll_top, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET scroll_top = excluded.scroll_top, updated_at = excluded.updated_at`,
		key, offset, s.now().Unix())
	if err != nil {
		return fmt.Errorf("set scroll position %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM scroll_positions WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete scroll position %s: %w", key, err)
	}
	return nil
}

// Prune removes offsets not updated within maxAge and returns how many
// were removed.
func (s *SQLite) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := s.now().Add(-maxAge).Unix()
	res, err := s.db.ExecContext(ctx, `DELETE FROM scroll_positions WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune scroll positions: %w", err)
	}
	return res.RowsAffected()
}
