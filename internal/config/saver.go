package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Save writes settings with validation, a backup of the previous file, and
// an atomic rename so a crash mid-write never leaves a truncated blob.
func Save(s *Settings, path string) error {
	if err := s.validate(); err != nil {
		return fmt.Errorf("refusing to save invalid settings: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := backupSettings(path); err != nil {
		// First run has nothing to back up; anything else is worth a note
		// but not worth failing the save.
		fmt.Fprintf(os.Stderr, "Warning: failed to create settings backup: %v\n", err)
	}

	return atomicWrite(path, data)
}

func backupSettings(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return os.WriteFile(path+".bak", data, 0644)
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}

	return os.Rename(tmpPath, path)
}
