package config

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the store whenever the settings file is modified by another
// process (an editor, a second toolvault instance). Writes issued through
// the store itself are ignored.
//
// The watcher runs until stop is closed. Watching the parent directory
// rather than the file keeps the watch alive across atomic renames.
func Watch(st *Store, stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create settings watcher: %w", err)
	}

	dir := filepath.Dir(st.Path())
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go func() {
		defer watcher.Close()
		target := filepath.Clean(st.Path())

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if st.consumeSelfWrite() {
					continue
				}
				log.Printf("Settings file changed externally, reloading")
				if err := st.Reload(); err != nil {
					log.Printf("Warning: failed to reload settings: %v", err)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("Warning: settings watcher error: %v", err)

			case <-stop:
				return
			}
		}
	}()

	return nil
}
