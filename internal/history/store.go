/*
Package history implements the usage-history store.

The store owns the list of usage records: one entry per unique
(tool route, input) pair. Re-running a tool with a structurally-equal input
updates the existing entry (merging timestamps and triggers, overwriting
output and status) instead of duplicating it. Retention is bounded: beyond
MaxEntries the least-recently-used entries are evicted.

Every append consults the preference resolver. An effective preference of
"off" (or the global kill switch) makes the call a no-op; "restrictive"
stores the redaction placeholder in place of the output.

Storage failures never propagate to callers: they are logged, recorded as a
retrievable error string, and the operation degrades.
*/
package history

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/toolvault/toolvault/internal/config"
	"github.com/toolvault/toolvault/internal/payload"
	"github.com/toolvault/toolvault/internal/prefs"
	"github.com/toolvault/toolvault/internal/storage"
)

const (
	// MaxEntries bounds the total number of retained history entries.
	MaxEntries = 100

	// MaxTimestamps bounds the execution instants kept per entry.
	MaxTimestamps = 50

	// MaxTriggers bounds the distinct trigger causes kept per entry.
	MaxTriggers = 10

	// subscriberBuffer is the channel depth for list-revision fan-out.
	// Slow subscribers miss intermediate revisions rather than blocking
	// appends.
	subscriberBuffer = 16
)

// Record is the caller-supplied data for one append.
type Record struct {
	ToolName  string
	ToolRoute string
	Input     payload.Value
	Output    payload.Value
	Status    storage.Status
	Trigger   storage.Trigger
}

// Store is the history service. Construct one per process with NewStore and
// inject it into consumers; all mutation goes through its methods.
type Store struct {
	storage  storage.Storage
	resolver *prefs.Resolver
	settings *config.Store

	// now is the clock, swappable in tests.
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*storage.Entry // by id

	// routeLocks serialize find-merge-persist per tool route so rapid
	// appends for the same input cannot race into duplicate rows.
	routeMu    sync.Mutex
	routeLocks map[string]*sync.Mutex

	subMu       sync.Mutex
	subscribers map[int]chan []*storage.Entry
	nextSubID   int

	errMu   sync.Mutex
	lastErr string
}

// NewStore creates the history store and loads existing entries.
//
// An unrecoverable load failure leaves the in-memory list empty and records
// a retrievable error; it never fails construction.
func NewStore(st storage.Storage, resolver *prefs.Resolver, settings *config.Store) *Store {
	s := &Store{
		storage:     st,
		resolver:    resolver,
		settings:    settings,
		now:         time.Now,
		entries:     make(map[string]*storage.Entry),
		routeLocks:  make(map[string]*sync.Mutex),
		subscribers: make(map[int]chan []*storage.Entry),
	}

	loaded, err := st.ListEntries(0)
	if err != nil {
		log.Printf("Warning: failed to load history, starting empty: %v", err)
		s.setError(fmt.Sprintf("failed to load history: %v", err))
		return s
	}
	for _, e := range loaded {
		s.entries[e.ID] = e
	}

	return s
}

// Append records one tool execution, deduplicating by (route, input).
//
// The returned error is always nil for preference-suppressed calls and for
// storage failures (which are recorded and retrievable via LastError);
// only invalid records fail.
func (s *Store) Append(ctx context.Context, rec Record) error {
	if rec.ToolRoute == "" {
		return fmt.Errorf("record missing tool route")
	}
	if !storage.ValidTrigger(rec.Trigger) {
		return fmt.Errorf("invalid trigger %q", rec.Trigger)
	}

	if !s.settings.HistoryEnabled() {
		return nil
	}

	pref := s.resolver.Effective(ctx, rec.ToolRoute)
	if pref == config.PreferenceOff {
		return nil
	}

	output := rec.Output
	if pref == config.PreferenceRestrictive {
		output = payload.Redacted()
	}

	lock := s.routeLock(rec.ToolRoute)
	lock.Lock()
	defer lock.Unlock()

	now := s.now()
	fingerprint := payload.Fingerprint(rec.Input)

	if existing := s.findLocked(rec.ToolRoute, fingerprint); existing != nil {
		merged := mergeEntry(existing, rec, output, now)
		if err := s.storage.UpdateEntry(merged); err != nil {
			log.Printf("Warning: failed to persist history update: %v", err)
			s.setError(fmt.Sprintf("failed to persist history update: %v", err))
			return nil
		}
		s.mu.Lock()
		s.entries[merged.ID] = merged
		s.mu.Unlock()
		s.publish()
		return nil
	}

	entry := &storage.Entry{
		ID:          uuid.NewString(),
		ToolName:    rec.ToolName,
		ToolRoute:   rec.ToolRoute,
		Fingerprint: fingerprint,
		Input:       rec.Input,
		Output:      output,
		Status:      rec.Status,
		Timestamps:  []time.Time{now},
		Triggers:    []storage.Trigger{rec.Trigger},
		LastUsed:    now,
	}

	if err := s.storage.InsertEntry(entry); err != nil {
		log.Printf("Warning: failed to persist history entry: %v", err)
		s.setError(fmt.Sprintf("failed to persist history entry: %v", err))
		return nil
	}

	s.mu.Lock()
	s.entries[entry.ID] = entry
	overflow := len(s.entries) > MaxEntries
	s.mu.Unlock()

	if overflow {
		s.evict()
	}

	s.publish()
	return nil
}

// List returns the entries ordered by lastUsed descending.
func (s *Store) List() []*storage.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// DeleteEntry removes one entry by id. Unknown ids are a no-op.
func (s *Store) DeleteEntry(id string) error {
	if err := s.storage.DeleteEntry(id); err != nil {
		log.Printf("Warning: failed to delete history entry: %v", err)
		s.setError(fmt.Sprintf("failed to delete history entry: %v", err))
		return nil
	}

	s.mu.Lock()
	_, existed := s.entries[id]
	delete(s.entries, id)
	s.mu.Unlock()

	if existed {
		s.publish()
	}
	return nil
}

// ClearForTool removes all entries for a route.
func (s *Store) ClearForTool(route string) error {
	if err := s.storage.DeleteByRoute(route); err != nil {
		log.Printf("Warning: failed to clear history for %s: %v", route, err)
		s.setError(fmt.Sprintf("failed to clear history for %s: %v", route, err))
		return nil
	}

	s.mu.Lock()
	removed := false
	for id, e := range s.entries {
		if e.ToolRoute == route {
			delete(s.entries, id)
			removed = true
		}
	}
	s.mu.Unlock()

	if removed {
		s.publish()
	}
	return nil
}

// ClearAll removes every entry.
func (s *Store) ClearAll() error {
	if err := s.storage.DeleteAll(); err != nil {
		log.Printf("Warning: failed to clear history: %v", err)
		s.setError(fmt.Sprintf("failed to clear history: %v", err))
		return nil
	}

	s.mu.Lock()
	removed := len(s.entries) > 0
	s.entries = make(map[string]*storage.Entry)
	s.mu.Unlock()

	if removed {
		s.publish()
	}
	return nil
}

// Subscribe registers a channel that receives the full entry list after
// every mutation. Cancel with Unsubscribe.
func (s *Store) Subscribe() (<-chan []*storage.Entry, int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan []*storage.Entry, subscriberBuffer)
	s.subscribers[id] = ch
	return ch, id
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if ch, ok := s.subscribers[id]; ok {
		delete(s.subscribers, id)
		close(ch)
	}
}

// LastError returns the most recent degraded-operation message, or "".
func (s *Store) LastError() string {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.lastErr
}

// ClearError resets the retrievable error state.
func (s *Store) ClearError() {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	s.lastErr = ""
}

// mergeEntry folds a new execution into an existing entry.
func mergeEntry(existing *storage.Entry, rec Record, output payload.Value, now time.Time) *storage.Entry {
	merged := *existing

	// Prepend the new instant, de-duplicate, keep newest first, cap.
	stamps := make([]time.Time, 0, len(existing.Timestamps)+1)
	stamps = append(stamps, now)
	for _, t := range existing.Timestamps {
		if !t.Equal(now) {
			stamps = append(stamps, t)
		}
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].After(stamps[j]) })
	if len(stamps) > MaxTimestamps {
		stamps = stamps[:MaxTimestamps]
	}
	merged.Timestamps = stamps

	// Add the trigger if new; beyond the cap the oldest-inserted drops.
	triggers := make([]storage.Trigger, len(existing.Triggers))
	copy(triggers, existing.Triggers)
	seen := false
	for _, tr := range triggers {
		if tr == rec.Trigger {
			seen = true
			break
		}
	}
	if !seen {
		triggers = append(triggers, rec.Trigger)
		if len(triggers) > MaxTriggers {
			triggers = triggers[1:]
		}
	}
	merged.Triggers = triggers

	merged.ToolName = rec.ToolName
	merged.Output = output
	merged.Status = rec.Status
	merged.LastUsed = now

	return &merged
}

// evict enforces MaxEntries against both the backing store and the cache.
// The cache is trimmed independently of what the store reports: a disabled
// or out-of-sync store must not let the in-memory list grow unbounded.
func (s *Store) evict() {
	evicted, err := s.storage.EvictOldest(MaxEntries)
	if err != nil {
		log.Printf("Warning: failed to evict history entries: %v", err)
		s.setError(fmt.Sprintf("failed to evict history entries: %v", err))
	}

	reported := make(map[string]bool, len(evicted))
	for _, id := range evicted {
		reported[id] = true
	}

	s.mu.Lock()
	for _, id := range evicted {
		delete(s.entries, id)
	}
	var victims []string
	if len(s.entries) > MaxEntries {
		ordered := s.snapshotLocked()
		for _, e := range ordered[MaxEntries:] {
			victims = append(victims, e.ID)
			delete(s.entries, e.ID)
		}
	}
	s.mu.Unlock()

	for _, id := range victims {
		if reported[id] {
			continue
		}
		if err := s.storage.DeleteEntry(id); err != nil {
			log.Printf("Warning: failed to delete evicted history entry %s: %v", id, err)
		}
	}
}

// findLocked scans the in-memory list for a (route, fingerprint) match.
// Caller holds the route lock.
func (s *Store) findLocked(route, fingerprint string) *storage.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ToolRoute == route && e.Fingerprint == fingerprint {
			return e
		}
	}
	return nil
}

// snapshotLocked returns the entries sorted newest first. Caller holds s.mu.
func (s *Store) snapshotLocked() []*storage.Entry {
	out := make([]*storage.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastUsed.Equal(out[j].LastUsed) {
			return out[i].LastUsed.After(out[j].LastUsed)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// publish fans the current list out to subscribers without blocking.
func (s *Store) publish() {
	s.mu.Lock()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.subMu.Lock()
	defer s.subMu.Unlock()

	for id, ch := range s.subscribers {
		select {
		case ch <- snapshot:
		default:
			log.Printf("Warning: history subscriber %d is lagging, dropping revision", id)
		}
	}
}

func (s *Store) routeLock(route string) *sync.Mutex {
	s.routeMu.Lock()
	defer s.routeMu.Unlock()

	lock, ok := s.routeLocks[route]
	if !ok {
		lock = &sync.Mutex{}
		s.routeLocks[route] = lock
	}
	return lock
}

func (s *Store) setError(msg string) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	s.lastErr = msg
}
