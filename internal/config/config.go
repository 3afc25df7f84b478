/*
Package config handles loading, saving, and watching toolvault settings.

Settings are stored in ~/.toolvault/settings.json:

  {
    "isHistoryEnabled": true,
    "toolPreferences": {
      "/t/case-converter": "restrictive"
    }
  }

toolPreferences holds only explicit per-tool overrides; a route that follows
its tool's declared default is absent from the map. A corrupt or
shape-invalid settings file is discarded and replaced with defaults rather
than failing the application.
*/
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Preference is a three-state logging level for a tool route.
type Preference string

const (
	// PreferenceOn logs input and output.
	PreferenceOn Preference = "on"
	// PreferenceRestrictive logs input but replaces output with a placeholder.
	PreferenceRestrictive Preference = "restrictive"
	// PreferenceOff disables logging for the tool entirely.
	PreferenceOff Preference = "off"
)

// GlobalDefault is the preference applied when neither an override nor a
// fetched tool default is available.
const GlobalDefault = PreferenceOn

// ParsePreference validates a preference string.
func ParsePreference(s string) (Preference, error) {
	switch Preference(s) {
	case PreferenceOn, PreferenceRestrictive, PreferenceOff:
		return Preference(s), nil
	default:
		return "", fmt.Errorf("invalid preference %q (want on, restrictive, or off)", s)
	}
}

// Settings is the persisted configuration blob.
type Settings struct {
	// IsHistoryEnabled is the global kill switch for usage logging.
	IsHistoryEnabled bool `json:"isHistoryEnabled"`

	// ToolPreferences maps tool routes to explicit preference overrides.
	// Absence means "use the tool's declared default."
	ToolPreferences map[string]Preference `json:"toolPreferences"`
}

// NewSettings returns settings with logging enabled and no overrides.
func NewSettings() *Settings {
	return &Settings{
		IsHistoryEnabled: true,
		ToolPreferences:  make(map[string]Preference),
	}
}

// validate checks the shape of loaded settings. Unknown preference values
// make the blob invalid as a whole; the caller falls back to defaults.
func (s *Settings) validate() error {
	if s.ToolPreferences == nil {
		return fmt.Errorf("missing 'toolPreferences' field")
	}
	for route, pref := range s.ToolPreferences {
		if route == "" {
			return fmt.Errorf("empty tool route in preference map")
		}
		if _, err := ParsePreference(string(pref)); err != nil {
			return fmt.Errorf("route %s: %w", route, err)
		}
	}
	return nil
}

// clone returns a deep copy so callers never alias the stored map.
func (s *Settings) clone() *Settings {
	out := &Settings{
		IsHistoryEnabled: s.IsHistoryEnabled,
		ToolPreferences:  make(map[string]Preference, len(s.ToolPreferences)),
	}
	for k, v := range s.ToolPreferences {
		out.ToolPreferences[k] = v
	}
	return out
}

// DefaultPath returns the path to ~/.toolvault/settings.json.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".toolvault", "settings.json"), nil
}

// Load reads settings from the default path.
func Load() (*Settings, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads settings from a specific path.
//
// A missing file yields defaults. A file that fails to parse or validate is
// discarded: the corruption is logged and defaults are returned, matching
// the "feature disabled, never fatal" error model.
func LoadFrom(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewSettings(), nil
		}
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	// Unmarshal on top of defaults so absent fields keep their default
	// values; in particular a blob without isHistoryEnabled must not flip
	// the kill switch off.
	s := NewSettings()
	if err := json.Unmarshal(data, s); err != nil {
		log.Printf("Warning: discarding corrupt settings file %s: %v", path, err)
		return NewSettings(), nil
	}
	if s.ToolPreferences == nil {
		s.ToolPreferences = make(map[string]Preference)
	}
	if err := s.validate(); err != nil {
		log.Printf("Warning: discarding invalid settings file %s: %v", path, err)
		return NewSettings(), nil
	}

	return s, nil
}
