// Package cache stores compiled Lamb bundles in SQLite, keyed by the content
// hash of the program they were compiled from.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chazu/lamb/vm/dist"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("lamb.cache")

// ErrNotFound indicates no bundle is cached under a key.
var ErrNotFound = errors.New("cache: bundle not found")

// Cache is a content-addressed store of compiled bundles.
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Entry describes one cached bundle.
type Entry struct {
	ID        string
	Key       [32]byte
	Size      int
	CreatedAt time.Time
}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS bundles (
		program_hash BLOB PRIMARY KEY,
		id TEXT NOT NULL,
		data BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened cache %s", path)
	return &Cache{db: db, path: path}, nil
}

// Path returns the database file path.
func (c *Cache) Path() string {
	return c.path
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Get returns the bundle stored under key. A stored bundle that fails
// verification is treated as a miss and removed.
func (c *Cache) Get(key [32]byte) (*dist.Bundle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var data []byte
	err := c.db.QueryRow("SELECT data FROM bundles WHERE program_hash = ?", key[:]).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying bundle: %w", err)
	}

	b, err := dist.UnmarshalBundle(data)
	if err != nil {
		log.Warningf("dropping corrupt cache entry %x: %v", key[:8], err)
		if _, derr := c.db.Exec("DELETE FROM bundles WHERE program_hash = ?", key[:]); derr != nil {
			return nil, fmt.Errorf("deleting corrupt bundle: %w", derr)
		}
		return nil, ErrNotFound
	}
	log.Debugf("cache hit %x", key[:8])
	return b, nil
}

// Put stores a bundle under key, replacing any previous entry. It returns
// the entry's ID.
func (c *Cache) Put(key [32]byte, b *dist.Bundle) (string, error) {
	data, err := dist.MarshalBundle(b)
	if err != nil {
		return "", fmt.Errorf("marshaling bundle: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := uuid.New().String()
	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO bundles (program_hash, id, data, created_at) VALUES (?, ?, ?, ?)",
		key[:], id, data, time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("saving bundle: %w", err)
	}
	log.Debugf("cached %x as %s (%d bytes)", key[:8], id, len(data))
	return id, nil
}

// Delete removes the bundle stored under key. Deleting a missing entry is
// not an error.
func (c *Cache) Delete(key [32]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.db.Exec("DELETE FROM bundles WHERE program_hash = ?", key[:]); err != nil {
		return fmt.Errorf("deleting bundle: %w", err)
	}
	return nil
}

// List returns all cached entries, newest first.
func (c *Cache) List() ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.Query("SELECT id, program_hash, length(data), created_at FROM bundles ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("listing bundles: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			key     []byte
			created int64
		)
		if err := rows.Scan(&e.ID, &key, &e.Size, &created); err != nil {
			return nil, fmt.Errorf("scanning bundle: %w", err)
		}
		copy(e.Key[:], key)
		e.CreatedAt = time.Unix(created, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
