/*
Package storage implements the persistent layer for usage history.

History entries live in a SQLite database (modernc.org/sqlite, pure Go) at
~/.toolvault/history.db, indexed by last_used for recency queries and by
tool_route for per-tool operations. If the database cannot be opened the
storage degrades gracefully: operations become no-ops or return empty
results instead of failing the application.
*/
package storage

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Storage defines the persistence operations used by the history store.
type Storage interface {
	// Init opens the database and runs migrations.
	Init() error

	// InsertEntry adds a new history entry.
	InsertEntry(e *Entry) error

	// UpdateEntry overwrites an existing entry by id.
	UpdateEntry(e *Entry) error

	// FindByFingerprint returns the entry for (route, fingerprint), or nil.
	FindByFingerprint(route, fingerprint string) (*Entry, error)

	// ListEntries returns up to limit entries ordered by last_used
	// descending. A non-positive limit returns all entries.
	ListEntries(limit int) ([]*Entry, error)

	// ListByRoute returns a route's entries ordered by last_used descending.
	ListByRoute(route string) ([]*Entry, error)

	// DeleteEntry removes one entry by id.
	DeleteEntry(id string) error

	// DeleteByRoute removes all entries for a route.
	DeleteByRoute(route string) error

	// DeleteAll removes every entry.
	DeleteAll() error

	// CountEntries returns the total entry count.
	CountEntries() (int, error)

	// EvictOldest removes entries beyond keep, oldest last_used first, and
	// returns the evicted ids.
	EvictOldest(keep int) ([]string, error)

	// Cleanup removes entries whose last_used is older than the retention
	// horizon and reclaims space.
	Cleanup(retention time.Duration) error

	// Close closes the database connection.
	Close() error
}

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db       *sql.DB
	dbPath   string
	enabled  bool
	mu       sync.Mutex
	initOnce sync.Once
}

// NewStorage creates storage backed by ~/.toolvault/history.db.
//
// If the home directory cannot be determined, the storage is disabled but
// operations will not fail.
func NewStorage() *SQLiteStorage {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("Warning: failed to get home directory: %v", err)
		return &SQLiteStorage{enabled: false}
	}
	return NewStorageAt(filepath.Join(home, ".toolvault", "history.db"))
}

// NewStorageAt creates storage backed by a specific database path.
func NewStorageAt(dbPath string) *SQLiteStorage {
	return &SQLiteStorage{
		dbPath:  dbPath,
		enabled: true,
	}
}

// Init opens the database and runs migrations.
//
// If initialization fails, storage is disabled and subsequent operations
// become no-ops (graceful degradation).
func (s *SQLiteStorage) Init() error {
	if !s.enabled {
		return nil
	}

	var initErr error
	s.initOnce.Do(func() {
		dbDir := filepath.Dir(s.dbPath)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			initErr = fmt.Errorf("failed to create db directory: %w", err)
			s.enabled = false
			log.Printf("Warning: %v", initErr)
			return
		}

		db, err := sql.Open("sqlite", s.dbPath)
		if err != nil {
			initErr = fmt.Errorf("failed to open database: %w", err)
			s.enabled = false
			log.Printf("Warning: %v", initErr)
			return
		}
		s.db = db

		if err := db.Ping(); err != nil {
			initErr = fmt.Errorf("failed to ping database: %w", err)
			s.enabled = false
			log.Printf("Warning: %v", initErr)
			return
		}

		if err := s.runMigrations(); err != nil {
			initErr = fmt.Errorf("failed to run migrations: %w", err)
			s.enabled = false
			log.Printf("Warning: %v", initErr)
			return
		}
	})

	return initErr
}

// Enabled reports whether the backing database is usable.
func (s *SQLiteStorage) Enabled() bool {
	return s.enabled
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if !s.enabled || s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.db = nil
	return nil
}
