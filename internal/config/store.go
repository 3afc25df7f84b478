package config

import (
	"log"
	"sync"
)

// Store holds the live settings for the process and persists every mutation.
//
// The store is a process-wide singleton constructed once at startup and
// passed to the services that need it; all mutation goes through its
// methods so the in-memory state and the settings file never diverge.
type Store struct {
	mu        sync.RWMutex
	path      string
	settings  *Settings
	listeners []func(Settings)
	// selfWrites counts saves issued by this process so the file watcher
	// can tell our own writes apart from external edits.
	selfWrites int
}

// NewStore loads settings from path and wraps them in a store.
func NewStore(path string) (*Store, error) {
	s, err := LoadFrom(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, settings: s}, nil
}

// Path returns the settings file path.
func (st *Store) Path() string {
	return st.path
}

// Snapshot returns a copy of the current settings.
func (st *Store) Snapshot() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return *st.settings.clone()
}

// HistoryEnabled reports the global logging kill switch.
func (st *Store) HistoryEnabled() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.settings.IsHistoryEnabled
}

// SetHistoryEnabled flips the global kill switch and persists.
func (st *Store) SetHistoryEnabled(enabled bool) error {
	st.mu.Lock()
	st.settings.IsHistoryEnabled = enabled
	err := st.saveLocked()
	snapshot := *st.settings.clone()
	st.mu.Unlock()

	st.notify(snapshot)
	return err
}

// Override returns the explicit preference override for a route, if any.
func (st *Store) Override(route string) (Preference, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	pref, ok := st.settings.ToolPreferences[route]
	return pref, ok
}

// SetOverride records an explicit preference override for a route and
// persists.
func (st *Store) SetOverride(route string, pref Preference) error {
	st.mu.Lock()
	st.settings.ToolPreferences[route] = pref
	err := st.saveLocked()
	snapshot := *st.settings.clone()
	st.mu.Unlock()

	st.notify(snapshot)
	return err
}

// ClearOverride removes a route's override, keeping the map minimal.
// Clearing a route with no override is a no-op and does not persist.
func (st *Store) ClearOverride(route string) error {
	st.mu.Lock()
	if _, ok := st.settings.ToolPreferences[route]; !ok {
		st.mu.Unlock()
		return nil
	}
	delete(st.settings.ToolPreferences, route)
	err := st.saveLocked()
	snapshot := *st.settings.clone()
	st.mu.Unlock()

	st.notify(snapshot)
	return err
}

// OnChange registers a callback invoked with a settings snapshot after every
// mutation or external reload. Callbacks run synchronously; keep them cheap.
func (st *Store) OnChange(fn func(Settings)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.listeners = append(st.listeners, fn)
}

// Reload re-reads the settings file, replacing in-memory state.
// Used by the file watcher when an external edit lands.
func (st *Store) Reload() error {
	fresh, err := LoadFrom(st.path)
	if err != nil {
		return err
	}

	st.mu.Lock()
	st.settings = fresh
	snapshot := *st.settings.clone()
	st.mu.Unlock()

	st.notify(snapshot)
	return nil
}

// consumeSelfWrite reports whether a pending self-issued save accounts for a
// watcher event, decrementing the counter if so.
func (st *Store) consumeSelfWrite() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.selfWrites > 0 {
		st.selfWrites--
		return true
	}
	return false
}

func (st *Store) saveLocked() error {
	st.selfWrites++
	if err := Save(st.settings, st.path); err != nil {
		st.selfWrites--
		log.Printf("Warning: failed to persist settings: %v", err)
		return err
	}
	return nil
}

func (st *Store) notify(snapshot Settings) {
	st.mu.RLock()
	listeners := make([]func(Settings), len(st.listeners))
	copy(listeners, st.listeners)
	st.mu.RUnlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}
