/*
Package storage provides SQLite schema definitions and migration logic.
*/
package storage

import (
	"fmt"
	"log"
)

// runMigrations executes database schema migrations.
func (s *SQLiteStorage) runMigrations() error {
	if !s.enabled || s.db == nil {
		return nil
	}

	if err := s.createMigrationsTable(); err != nil {
		return err
	}

	version, err := s.getCurrentMigrationVersion()
	if err != nil {
		return err
	}

	migrations := []migration{
		{version: 1, name: "history_entries", up: s.migration001HistoryEntries},
	}

	for _, m := range migrations {
		if version < m.version {
			log.Printf("Running migration %d: %s", m.version, m.name)
			if err := m.up(); err != nil {
				return fmt.Errorf("migration %d failed: %w", m.version, err)
			}
			if err := s.setMigrationVersion(m.version); err != nil {
				return err
			}
		}
	}

	return nil
}

// migration represents a single database migration.
type migration struct {
	version int
	name    string
	up      func() error
}

// createMigrationsTable creates the schema_migrations table.
func (s *SQLiteStorage) createMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`
	_, err := s.db.Exec(query)
	return err
}

// getCurrentMigrationVersion returns the highest applied migration version.
func (s *SQLiteStorage) getCurrentMigrationVersion() (int, error) {
	query := "SELECT COALESCE(MAX(version), 0) FROM schema_migrations"
	row := s.db.QueryRow(query)

	var version int
	if err := row.Scan(&version); err != nil {
		return 0, err
	}

	return version, nil
}

// setMigrationVersion records a migration as applied.
func (s *SQLiteStorage) setMigrationVersion(version int) error {
	query := "INSERT INTO schema_migrations (version, name) VALUES (?, ?)"
	_, err := s.db.Exec(query, version, fmt.Sprintf("migration_%d", version))
	return err
}

// migration001HistoryEntries creates the history_entries table.
//
// The UNIQUE(tool_route, fingerprint) constraint backs the one-entry-per-
// (route, input) invariant at the database level, so a lost find-or-update
// race surfaces as a constraint error rather than a duplicate row.
func (s *SQLiteStorage) migration001HistoryEntries() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS history_entries (
			id TEXT PRIMARY KEY,
			tool_name TEXT NOT NULL,
			tool_route TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			input TEXT NOT NULL,
			output TEXT NOT NULL,
			status TEXT NOT NULL,
			timestamps TEXT NOT NULL,
			triggers TEXT NOT NULL,
			last_used DATETIME NOT NULL,
			UNIQUE(tool_route, fingerprint)
		)
	`); err != nil {
		return fmt.Errorf("failed to create history_entries table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_history_last_used
		ON history_entries(last_used DESC)
	`); err != nil {
		return fmt.Errorf("failed to create last_used index: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_history_route
		ON history_entries(tool_route)
	`); err != nil {
		return fmt.Errorf("failed to create route index: %w", err)
	}

	return nil
}
