/*
Package storage provides tests for the history persistence layer.
*/
package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/toolvault/toolvault/internal/payload"
)

func testStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s := NewStorageAt(filepath.Join(t.TempDir(), "test.db"))
	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testEntry(route, input string, lastUsed time.Time) *Entry {
	in := payload.String(input)
	return &Entry{
		ID:          uuid.NewString(),
		ToolName:    "Case Converter",
		ToolRoute:   route,
		Fingerprint: payload.Fingerprint(in),
		Input:       in,
		Output:      payload.String("OUT"),
		Status:      StatusSuccess,
		Timestamps:  []time.Time{lastUsed},
		Triggers:    []Trigger{TriggerClick},
		LastUsed:    lastUsed,
	}
}

// TestInit verifies database initialization and schema creation.
func TestInit(t *testing.T) {
	s := testStorage(t)
	if !s.Enabled() {
		t.Error("storage should be enabled after Init")
	}
}

// TestInsertAndFind verifies round-tripping an entry through SQLite.
func TestInsertAndFind(t *testing.T) {
	s := testStorage(t)

	now := time.Now().UTC().Truncate(time.Millisecond)
	entry := testEntry("/t/case-converter", "Hello", now)
	if err := s.InsertEntry(entry); err != nil {
		t.Fatalf("InsertEntry failed: %v", err)
	}

	found, err := s.FindByFingerprint("/t/case-converter", entry.Fingerprint)
	if err != nil {
		t.Fatalf("FindByFingerprint failed: %v", err)
	}
	if found == nil {
		t.Fatal("entry not found")
	}
	if found.ID != entry.ID {
		t.Errorf("id = %s, want %s", found.ID, entry.ID)
	}
	if !payload.Equal(found.Input, entry.Input) {
		t.Error("input did not round-trip")
	}
	if len(found.Timestamps) != 1 || !found.Timestamps[0].Equal(now) {
		t.Errorf("timestamps did not round-trip: %v", found.Timestamps)
	}
	if len(found.Triggers) != 1 || found.Triggers[0] != TriggerClick {
		t.Errorf("triggers did not round-trip: %v", found.Triggers)
	}
}

// TestFindMissing verifies a missing fingerprint returns nil, nil.
func TestFindMissing(t *testing.T) {
	s := testStorage(t)

	found, err := s.FindByFingerprint("/t/none", "nope")
	if err != nil {
		t.Fatalf("FindByFingerprint failed: %v", err)
	}
	if found != nil {
		t.Error("expected nil for missing entry")
	}
}

// TestUpdateEntry verifies updates overwrite stored fields.
func TestUpdateEntry(t *testing.T) {
	s := testStorage(t)

	now := time.Now().UTC()
	entry := testEntry("/t/base64", "aGk=", now)
	if err := s.InsertEntry(entry); err != nil {
		t.Fatalf("InsertEntry failed: %v", err)
	}

	entry.Output = payload.String("hi")
	entry.Status = StatusError
	entry.Timestamps = append([]time.Time{now.Add(time.Second)}, entry.Timestamps...)
	entry.Triggers = append(entry.Triggers, TriggerQuery)
	entry.LastUsed = now.Add(time.Second)

	if err := s.UpdateEntry(entry); err != nil {
		t.Fatalf("UpdateEntry failed: %v", err)
	}

	found, err := s.FindByFingerprint("/t/base64", entry.Fingerprint)
	if err != nil {
		t.Fatalf("FindByFingerprint failed: %v", err)
	}
	if found.Output.Str() != "hi" || found.Status != StatusError {
		t.Errorf("update not applied: %v %v", found.Output.Text(), found.Status)
	}
	if len(found.Timestamps) != 2 || len(found.Triggers) != 2 {
		t.Errorf("merged lists not stored: %d %d", len(found.Timestamps), len(found.Triggers))
	}
}

// TestListOrdering verifies last_used descending order.
func TestListOrdering(t *testing.T) {
	s := testStorage(t)

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		e := testEntry("/t/case-converter", string(rune('a'+i)), base.Add(time.Duration(i)*time.Second))
		if err := s.InsertEntry(e); err != nil {
			t.Fatalf("InsertEntry failed: %v", err)
		}
	}

	entries, err := s.ListEntries(0)
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].LastUsed.After(entries[i-1].LastUsed) {
			t.Error("entries not ordered by last_used descending")
		}
	}

	limited, err := s.ListEntries(2)
	if err != nil {
		t.Fatalf("ListEntries with limit failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("got %d entries, want 2", len(limited))
	}
}

// TestDeleteOperations verifies single, per-route, and bulk deletes.
func TestDeleteOperations(t *testing.T) {
	s := testStorage(t)

	now := time.Now().UTC()
	a := testEntry("/t/a", "1", now)
	b := testEntry("/t/a", "2", now)
	c := testEntry("/t/b", "3", now)
	for _, e := range []*Entry{a, b, c} {
		if err := s.InsertEntry(e); err != nil {
			t.Fatalf("InsertEntry failed: %v", err)
		}
	}

	if err := s.DeleteEntry(a.ID); err != nil {
		t.Fatalf("DeleteEntry failed: %v", err)
	}
	if count, _ := s.CountEntries(); count != 2 {
		t.Errorf("count after DeleteEntry = %d, want 2", count)
	}

	// Deleting a missing id is a no-op.
	if err := s.DeleteEntry("missing"); err != nil {
		t.Fatalf("DeleteEntry of missing id failed: %v", err)
	}

	if err := s.DeleteByRoute("/t/a"); err != nil {
		t.Fatalf("DeleteByRoute failed: %v", err)
	}
	byRoute, _ := s.ListByRoute("/t/a")
	if len(byRoute) != 0 {
		t.Error("route entries not deleted")
	}

	if err := s.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	if count, _ := s.CountEntries(); count != 0 {
		t.Errorf("count after DeleteAll = %d, want 0", count)
	}
}

// TestEvictOldest verifies LRU eviction keeps the most recent entries.
func TestEvictOldest(t *testing.T) {
	s := testStorage(t)

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		e := testEntry("/t/x", string(rune('a'+i)), base.Add(time.Duration(i)*time.Second))
		if err := s.InsertEntry(e); err != nil {
			t.Fatalf("InsertEntry failed: %v", err)
		}
	}

	evicted, err := s.EvictOldest(3)
	if err != nil {
		t.Fatalf("EvictOldest failed: %v", err)
	}
	if len(evicted) != 2 {
		t.Fatalf("evicted %d, want 2", len(evicted))
	}

	remaining, _ := s.ListEntries(0)
	if len(remaining) != 3 {
		t.Fatalf("remaining %d, want 3", len(remaining))
	}
	for _, e := range remaining {
		if e.LastUsed.Before(base.Add(2 * time.Second)) {
			t.Error("an older entry survived eviction")
		}
	}
}

// TestCleanup verifies retention-horizon cleanup.
func TestCleanup(t *testing.T) {
	s := testStorage(t)

	now := time.Now().UTC()
	old := testEntry("/t/x", "old", now.Add(-48*time.Hour))
	fresh := testEntry("/t/x", "fresh", now)
	for _, e := range []*Entry{old, fresh} {
		if err := s.InsertEntry(e); err != nil {
			t.Fatalf("InsertEntry failed: %v", err)
		}
	}

	if err := s.Cleanup(24 * time.Hour); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}

	entries, _ := s.ListEntries(0)
	if len(entries) != 1 || entries[0].ID != fresh.ID {
		t.Errorf("cleanup kept wrong entries: %d", len(entries))
	}
}

// TestDisabledStorage verifies graceful degradation when disabled.
func TestDisabledStorage(t *testing.T) {
	s := &SQLiteStorage{enabled: false}

	if err := s.Init(); err != nil {
		t.Fatalf("Init on disabled storage failed: %v", err)
	}
	if err := s.InsertEntry(testEntry("/t/x", "a", time.Now())); err != nil {
		t.Errorf("InsertEntry should no-op: %v", err)
	}
	entries, err := s.ListEntries(0)
	if err != nil || len(entries) != 0 {
		t.Errorf("ListEntries should return empty: %v %d", err, len(entries))
	}
	if count, err := s.CountEntries(); err != nil || count != 0 {
		t.Errorf("CountEntries should return 0: %v %d", err, count)
	}
}

// TestUniqueConstraint verifies the (route, fingerprint) uniqueness guard.
func TestUniqueConstraint(t *testing.T) {
	s := testStorage(t)

	now := time.Now().UTC()
	a := testEntry("/t/x", "same", now)
	b := testEntry("/t/x", "same", now)

	if err := s.InsertEntry(a); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if err := s.InsertEntry(b); err == nil {
		t.Error("duplicate (route, fingerprint) insert should fail")
	}

	// Same input under a different route is a distinct entry.
	c := testEntry("/t/y", "same", now)
	if err := s.InsertEntry(c); err != nil {
		t.Errorf("same fingerprint under another route should insert: %v", err)
	}
}
