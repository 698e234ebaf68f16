package db

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/mattn/go-sqlite3"
)

// Schema of the live page table. Content is stored compressed; content_hash is
// the digest of the uncompressed source.
const schema = `
CREATE TABLE IF NOT EXISTS pages (
    key TEXT PRIMARY KEY,
    content BLOB NOT NULL,
    content_hash TEXT NOT NULL,
    modified_at DATETIME NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS pages_modified_at ON pages (modified_at);`

type SQLite struct {
	path string
	conn *sql.DB
}

// NewSQLite prepares a database at path. ":memory:" opens a private in-memory database.
func NewSQLite(path string) *SQLite {
	return &SQLite{
		path: path,
		conn: nil,
	}
}

func (s *SQLite) InitDB() error {
	var err error
	s.conn, err = sql.Open("sqlite3", s.path)
	if err != nil {
		return err
	}

	// SQLite serializes writers anyway, and an in-memory database only exists
	// on the connection that created it.
	s.conn.SetMaxOpenConns(1)

	if _, err := s.conn.Exec(schema); err != nil {
		return err
	}

	dbLogger.Info().Str("path", s.path).Msg("Database initialized")
	return nil
}

func (s *SQLite) Get() *sql.DB {
	return s.conn
}

func (s *SQLite) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

var errNotInitialized = errors.New("database not initialized")

func (s *SQLite) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if s.conn == nil {
		return nil, errNotInitialized
	}
	dbLogger.Debug().Str("query", query).Msg("Query")
	return s.conn.QueryContext(ctx, query, args...)
}

func (s *SQLite) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	dbLogger.Debug().Str("query", query).Msg("QueryRow")
	return s.conn.QueryRowContext(ctx, query, args...)
}

func (s *SQLite) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s.conn == nil {
		return nil, errNotInitialized
	}
	dbLogger.Debug().Str("query", query).Msg("Exec")
	return s.conn.ExecContext(ctx, query, args...)
}
