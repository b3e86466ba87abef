package cluster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS sessions (
	id    TEXT PRIMARY KEY,
	value INTEGER NOT NULL DEFAULT 0
)`

type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) a session table in the database
// file at path. Separate node processes pointing at the same file share
// sessions.
func NewSQLiteStore(path string) (*sqliteStore, error) {
	if path == "" {
		return nil, errors.New("sqlite store needs a database path")
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}

	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Create(ctx context.Context) (string, error) {
	id := newSessionID()
	if _, err := s.db.ExecContext(ctx, `INSERT INTO sessions (id, value) VALUES (?, 0)`, id); err != nil {
		return "", fmt.Errorf("failed to insert session: %w", err)
	}

	return id, nil
}

func (s *sqliteStore) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up session: %w", err)
	}

	return true, nil
}

func (s *sqliteStore) Increment(ctx context.Context, id string) (int, error) {
	var value int
	err := s.db.QueryRowContext(ctx,
		`UPDATE sessions SET value = value + 1 WHERE id = ? RETURNING value`, id).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment session: %w", err)
	}

	return value - 1, nil
}

func (s *sqliteStore) Invalidate(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (s *sqliteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	return n, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
