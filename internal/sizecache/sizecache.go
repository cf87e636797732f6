// Package sizecache remembers computed project directory sizes between runs.
package sizecache

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one cached measurement
type Entry struct {
	Path         string
	SizeBytes    int64
	IsGitEnabled bool
	GitSizeBytes int64
	GitBranch    string
	ComputedAt   time.Time
}

// Cache is a sqlite-backed size cache
type Cache struct {
	sql *sql.DB
	ttl time.Duration
	now func() time.Time
}

// Open opens (and creates if needed) the cache database at path. Entries
// older than ttl are treated as misses; ttl <= 0 disables expiry.
func Open(path string, ttl time.Duration) (*Cache, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS dir_sizes (
  path_key       TEXT PRIMARY KEY,
  path           TEXT NOT NULL,
  size_bytes     INTEGER NOT NULL,
  git_enabled    INTEGER NOT NULL CHECK (git_enabled IN (0,1)),
  git_size_bytes INTEGER NOT NULL DEFAULT 0,
  git_branch     TEXT,
  computed_at    INTEGER NOT NULL
);
    `); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Cache{sql: db, ttl: ttl, now: time.Now}, nil
}

// Close closes the database
func (c *Cache) Close() error {
	if c == nil || c.sql == nil {
		return nil
	}
	return c.sql.Close()
}

// key normalizes paths the way the registries compare them
func key(path string) string {
	return strings.ToLower(filepath.Clean(path))
}

// Get returns a fresh entry for path
func (c *Cache) Get(ctx context.Context, path string) (Entry, bool, error) {
	var (
		e        Entry
		git      int
		branch   sql.NullString
		computed int64
	)
	err := c.sql.QueryRowContext(ctx,
		`SELECT path, size_bytes, git_enabled, git_size_bytes, git_branch, computed_at FROM dir_sizes WHERE path_key = ?`,
		key(path)).Scan(&e.Path, &e.SizeBytes, &git, &e.GitSizeBytes, &branch, &computed)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	e.IsGitEnabled = git == 1
	e.GitBranch = branch.String
	e.ComputedAt = time.Unix(0, computed).UTC()

	if c.ttl > 0 && c.now().Sub(e.ComputedAt) > c.ttl {
		return Entry{}, false, nil
	}
	return e, true, nil
}

// Put stores or replaces the entry for e.Path
func (c *Cache) Put(ctx context.Context, e Entry) error {
	if e.ComputedAt.IsZero() {
		e.ComputedAt = c.now()
	}
	_, err := c.sql.ExecContext(ctx, `
INSERT INTO dir_sizes(path_key, path, size_bytes, git_enabled, git_size_bytes, git_branch, computed_at)
VALUES(?,?,?,?,?,?,?)
ON CONFLICT(path_key) DO UPDATE SET
  path = excluded.path,
  size_bytes = excluded.size_bytes,
  git_enabled = excluded.git_enabled,
  git_size_bytes = excluded.git_size_bytes,
  git_branch = excluded.git_branch,
  computed_at = excluded.computed_at`,
		key(e.Path), e.Path, e.SizeBytes, boolToInt(e.IsGitEnabled), e.GitSizeBytes, nullIfEmpty(e.GitBranch), e.ComputedAt.UnixNano())
	return err
}

// Delete drops the entry for path
func (c *Cache) Delete(ctx context.Context, path string) error {
	_, err := c.sql.ExecContext(ctx, `DELETE FROM dir_sizes WHERE path_key = ?`, key(path))
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
