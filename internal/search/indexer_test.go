package search

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/toolvault/toolvault/internal/payload"
	"github.com/toolvault/toolvault/internal/storage"
)

func entry(name, route, input string) *storage.Entry {
	in := payload.String(input)
	return &storage.Entry{
		ID:          uuid.NewString(),
		ToolName:    name,
		ToolRoute:   route,
		Fingerprint: payload.Fingerprint(in),
		Input:       in,
		Output:      payload.String("out"),
		Status:      storage.StatusSuccess,
		Timestamps:  []time.Time{time.Now()},
		Triggers:    []storage.Trigger{storage.TriggerClick},
		LastUsed:    time.Now(),
	}
}

// TestRebuildAndSearch verifies indexing and keyword search over entries.
func TestRebuildAndSearch(t *testing.T) {
	idx, err := NewIndexer()
	if err != nil {
		t.Fatalf("NewIndexer failed: %v", err)
	}
	defer idx.Close()

	entries := []*storage.Entry{
		entry("Case Converter", "/t/case-converter", "hello world"),
		entry("JSON Formatter", "/t/json-formatter", `{"greeting":"hi"}`),
	}
	if err := idx.Rebuild(entries); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	count, err := idx.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	results, err := idx.Search("hello", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].ToolRoute != "/t/case-converter" {
		t.Errorf("route = %q", results[0].ToolRoute)
	}
	if results[0].EntryID != entries[0].ID {
		t.Errorf("entry id mismatch")
	}
}

// TestRebuildReplaces verifies a rebuild drops stale documents.
func TestRebuildReplaces(t *testing.T) {
	idx, err := NewIndexer()
	if err != nil {
		t.Fatalf("NewIndexer failed: %v", err)
	}
	defer idx.Close()

	old := entry("Text Reverse", "/t/text-reverse", "palindrome")
	if err := idx.Rebuild([]*storage.Entry{old}); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	if err := idx.Rebuild([]*storage.Entry{entry("Base64", "/t/base64", "aGVsbG8=")}); err != nil {
		t.Fatalf("second Rebuild failed: %v", err)
	}

	results, err := idx.Search("palindrome", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("stale document survived rebuild: %d hits", len(results))
	}
}

// TestFollow verifies the subscription-driven sync loop.
func TestFollow(t *testing.T) {
	idx, err := NewIndexer()
	if err != nil {
		t.Fatalf("NewIndexer failed: %v", err)
	}
	defer idx.Close()

	revisions := make(chan []*storage.Entry, 1)
	done := make(chan struct{})
	go func() {
		idx.Follow(revisions)
		close(done)
	}()

	revisions <- []*storage.Entry{entry("Emoji Search", "/t/emoji-search", "party popper")}
	close(revisions)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Follow did not return after channel close")
	}

	results, err := idx.Search("party", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}
