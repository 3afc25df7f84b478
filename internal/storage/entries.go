package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/toolvault/toolvault/internal/payload"
)

// InsertEntry adds a new history entry.
func (s *SQLiteStorage) InsertEntry(e *Entry) error {
	if !s.enabled || s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	input, output, timestamps, triggers, err := encodeEntry(e)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO history_entries
			(id, tool_name, tool_route, fingerprint, input, output, status, timestamps, triggers, last_used)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if _, err := s.db.Exec(query,
		e.ID,
		e.ToolName,
		e.ToolRoute,
		e.Fingerprint,
		input,
		output,
		string(e.Status),
		timestamps,
		triggers,
		e.LastUsed.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	return nil
}

// UpdateEntry overwrites an existing entry by id.
func (s *SQLiteStorage) UpdateEntry(e *Entry) error {
	if !s.enabled || s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	input, output, timestamps, triggers, err := encodeEntry(e)
	if err != nil {
		return err
	}

	query := `
		UPDATE history_entries
		SET tool_name = ?, fingerprint = ?, input = ?, output = ?, status = ?,
		    timestamps = ?, triggers = ?, last_used = ?
		WHERE id = ?
	`

	if _, err := s.db.Exec(query,
		e.ToolName,
		e.Fingerprint,
		input,
		output,
		string(e.Status),
		timestamps,
		triggers,
		e.LastUsed.UTC().Format(time.RFC3339Nano),
		e.ID,
	); err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}

	return nil
}

// FindByFingerprint returns the entry for (route, fingerprint), or nil if
// no such entry exists.
func (s *SQLiteStorage) FindByFingerprint(route, fingerprint string) (*Entry, error) {
	if !s.enabled || s.db == nil {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(
		selectColumns+" FROM history_entries WHERE tool_route = ? AND fingerprint = ?",
		route, fingerprint,
	)

	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find entry: %w", err)
	}
	return e, nil
}

// ListEntries returns up to limit entries ordered by last_used descending.
// A non-positive limit returns all entries.
func (s *SQLiteStorage) ListEntries(limit int) ([]*Entry, error) {
	if !s.enabled || s.db == nil {
		return []*Entry{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := selectColumns + " FROM history_entries ORDER BY last_used DESC"
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return s.queryEntries(query, args...)
}

// ListByRoute returns a route's entries ordered by last_used descending.
func (s *SQLiteStorage) ListByRoute(route string) ([]*Entry, error) {
	if !s.enabled || s.db == nil {
		return []*Entry{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.queryEntries(
		selectColumns+" FROM history_entries WHERE tool_route = ? ORDER BY last_used DESC",
		route,
	)
}

// DeleteEntry removes one entry by id. Deleting a missing id is a no-op.
func (s *SQLiteStorage) DeleteEntry(id string) error {
	if !s.enabled || s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM history_entries WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// DeleteByRoute removes all entries for a route.
func (s *SQLiteStorage) DeleteByRoute(route string) error {
	if !s.enabled || s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM history_entries WHERE tool_route = ?", route); err != nil {
		return fmt.Errorf("failed to delete route entries: %w", err)
	}
	return nil
}

// DeleteAll removes every entry.
func (s *SQLiteStorage) DeleteAll() error {
	if !s.enabled || s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM history_entries"); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}
	return nil
}

// CountEntries returns the total entry count.
func (s *SQLiteStorage) CountEntries() (int, error) {
	if !s.enabled || s.db == nil {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM history_entries").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

// EvictOldest removes entries beyond keep, oldest last_used first, and
// returns the evicted ids.
func (s *SQLiteStorage) EvictOldest(keep int) ([]string, error) {
	if !s.enabled || s.db == nil {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT id FROM history_entries
		ORDER BY last_used DESC
		LIMIT -1 OFFSET ?
	`, keep)
	if err != nil {
		return nil, fmt.Errorf("failed to select eviction candidates: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			log.Printf("Warning: failed to scan eviction candidate: %v", err)
			continue
		}
		ids = append(ids, id)
	}

	for _, id := range ids {
		if _, err := s.db.Exec("DELETE FROM history_entries WHERE id = ?", id); err != nil {
			return nil, fmt.Errorf("failed to evict entry %s: %w", id, err)
		}
	}

	return ids, nil
}

// Cleanup removes entries whose last_used is older than the retention
// horizon and reclaims space.
func (s *SQLiteStorage) Cleanup(retention time.Duration) error {
	if !s.enabled || s.db == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-retention).UTC().Format(time.RFC3339Nano)

	if _, err := s.db.Exec("DELETE FROM history_entries WHERE last_used < ?", cutoff); err != nil {
		log.Printf("Warning: failed to cleanup history_entries: %v", err)
	}

	if _, err := s.db.Exec("VACUUM"); err != nil {
		log.Printf("Warning: failed to vacuum database: %v", err)
	}

	return nil
}

const selectColumns = `
	SELECT id, tool_name, tool_route, fingerprint, input, output, status, timestamps, triggers, last_used`

// queryEntries runs a multi-row entry query. Caller holds s.mu.
func (s *SQLiteStorage) queryEntries(query string, args ...interface{}) ([]*Entry, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			log.Printf("Warning: failed to scan history row: %v", err)
			continue
		}
		entries = append(entries, e)
	}

	if entries == nil {
		entries = []*Entry{}
	}
	return entries, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var input, output, status, timestamps, triggers, lastUsed string

	if err := row.Scan(
		&e.ID,
		&e.ToolName,
		&e.ToolRoute,
		&e.Fingerprint,
		&input,
		&output,
		&status,
		&timestamps,
		&triggers,
		&lastUsed,
	); err != nil {
		return nil, err
	}

	var err error
	if e.Input, err = payload.FromJSON([]byte(input)); err != nil {
		return nil, fmt.Errorf("corrupt input payload: %w", err)
	}
	if e.Output, err = payload.FromJSON([]byte(output)); err != nil {
		return nil, fmt.Errorf("corrupt output payload: %w", err)
	}
	e.Status = Status(status)

	var stamps []string
	if err := json.Unmarshal([]byte(timestamps), &stamps); err != nil {
		return nil, fmt.Errorf("corrupt timestamps: %w", err)
	}
	for _, raw := range stamps {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt timestamp %q: %w", raw, err)
		}
		e.Timestamps = append(e.Timestamps, t)
	}

	if err := json.Unmarshal([]byte(triggers), &e.Triggers); err != nil {
		return nil, fmt.Errorf("corrupt triggers: %w", err)
	}

	if e.LastUsed, err = time.Parse(time.RFC3339Nano, lastUsed); err != nil {
		return nil, fmt.Errorf("corrupt last_used %q: %w", lastUsed, err)
	}

	return &e, nil
}

// encodeEntry serializes the JSON-backed columns of an entry.
func encodeEntry(e *Entry) (input, output, timestamps, triggers string, err error) {
	inputBytes, err := e.Input.MarshalJSON()
	if err != nil {
		return "", "", "", "", fmt.Errorf("failed to encode input: %w", err)
	}
	outputBytes, err := e.Output.MarshalJSON()
	if err != nil {
		return "", "", "", "", fmt.Errorf("failed to encode output: %w", err)
	}

	stamps := make([]string, len(e.Timestamps))
	for i, t := range e.Timestamps {
		stamps[i] = t.UTC().Format(time.RFC3339Nano)
	}
	stampBytes, err := json.Marshal(stamps)
	if err != nil {
		return "", "", "", "", fmt.Errorf("failed to encode timestamps: %w", err)
	}

	triggerBytes, err := json.Marshal(e.Triggers)
	if err != nil {
		return "", "", "", "", fmt.Errorf("failed to encode triggers: %w", err)
	}

	return string(inputBytes), string(outputBytes), string(stampBytes), string(triggerBytes), nil
}
