// Package cache stores syntax-check results in SQLite, keyed by a
// content address of the diagram source. Render output is never
// cached; the rendering service stays authoritative for images.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Key returns the content address for a diagram source.
func Key(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// Entry is one cached syntax-check result.
type Entry struct {
	Key         string
	Valid       bool
	Line        int
	Error       string
	Description string
	CreatedAt   time.Time
}

// Store is a SQLite-backed check cache. Safe for concurrent use; the
// database/sql pool serializes access.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS checks (
	key         TEXT PRIMARY KEY,
	valid       INTEGER NOT NULL,
	line        INTEGER NOT NULL,
	error       TEXT NOT NULL,
	description TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);`

// Open opens (or creates) the cache database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Get looks up a check result by content key. The second return is
// false on a miss.
func (s *Store) Get(key string) (*Entry, bool, error) {
	row := s.db.QueryRow(
		`SELECT valid, line, error, description, created_at FROM checks WHERE key = ?`, key)

	var e Entry
	var valid int
	var created int64
	if err := row.Scan(&valid, &e.Line, &e.Error, &e.Description, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	e.Key = key
	e.Valid = valid != 0
	e.CreatedAt = time.Unix(created, 0).UTC()
	return &e, true, nil
}

// Put inserts or replaces a check result. A zero CreatedAt is stamped
// with the current time.
func (s *Store) Put(e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	valid := 0
	if e.Valid {
		valid = 1
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO checks (key, valid, line, error, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Key, valid, e.Line, e.Error, e.Description, e.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("cache: put %s: %w", e.Key, err)
	}
	return nil
}

// Prune deletes entries older than maxAge and returns how many rows
// were removed.
func (s *Store) Prune(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Unix()
	res, err := s.db.Exec(`DELETE FROM checks WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cache: prune: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
