package platelog

import (
	"context"
	"database/sql"
	"image"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// SQLiteSink stores entries in a SQLite database.
type SQLiteSink struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// NewSQLiteSink opens or creates the database at path.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	s := &SQLiteSink{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to migrate database")
	}
	return s, nil
}

// migrate creates the plates table if it doesn't exist.
func (s *SQLiteSink) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS plates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		text TEXT NOT NULL,
		seen_at DATETIME NOT NULL,
		x INTEGER DEFAULT 0,
		y INTEGER DEFAULT 0,
		width INTEGER DEFAULT 0,
		height INTEGER DEFAULT 0,
		source TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_plates_seen_at ON plates(seen_at);
	CREATE INDEX IF NOT EXISTS idx_plates_text ON plates(text);
	`

	_, err := s.conn.Exec(schema)
	return err
}

// Record implements Sink.
func (s *SQLiteSink) Record(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO plates (text, seen_at, x, y, width, height, source) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Text, e.At.UTC(), e.Box.Min.X, e.Box.Min.Y, e.Box.Dx(), e.Box.Dy(), e.Source,
	)
	return errors.Wrap(err, "failed to insert plate")
}

// Recent returns up to limit entries, newest first.
func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.QueryContext(ctx,
		`SELECT text, seen_at, x, y, width, height, source FROM plates ORDER BY seen_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query plates")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			at         time.Time
			x, y, w, h int
		)
		if err := rows.Scan(&e.Text, &at, &x, &y, &w, &h, &e.Source); err != nil {
			return nil, errors.Wrap(err, "failed to scan plate")
		}
		e.At = at
		e.Box = image.Rect(x, y, x+w, y+h)
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "failed to read plates")
}

// Close implements Sink.
func (s *SQLiteSink) Close() error {
	return s.conn.Close()
}
