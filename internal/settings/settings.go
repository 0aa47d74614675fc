// Package settings persists flat key-value application state.
//
// The store is a single JSON file of string keys and values, rewritten
// wholesale on every change with an atomic temp-file rename. It holds the
// small, non-secret state that lives outside the per-account files: the last
// active user id, the login host, OAuth client id, redirect URI and scopes.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Well-known keys.
const (
	KeyLastActiveUserID = "last_active_user_id"
	KeyLoginHost        = "login_host"
	KeyAppLoginHost     = "app_login_host"
	KeyAppCustomHost    = "app_custom_host"
	KeyClientID         = "client_id"
	KeyRedirectURI      = "redirect_uri"
	KeyScopes           = "scopes"

	// KeyLegacyLoginHost is the deprecated pre-2.0 key, migrated to
	// KeyLoginHost and deleted on first read.
	KeyLegacyLoginHost = "account_login_host"
)

// Store is a file-backed key-value store.
type Store struct {
	mu     sync.Mutex
	path   string
	values map[string]string

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Open loads the store at path, creating an empty one if the file does not
// exist. A malformed file is treated as empty; the next write replaces it.
func Open(path string) (*Store, error) {
	s := &Store{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted app data dir
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("open settings: %w", err)
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		fmt.Fprintf(os.Stderr, "warning: resetting malformed settings at %s: %v\n", path, err)
		s.values = make(map[string]string)
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// GetString returns the value for key, or "" if unset.
func (s *Store) GetString(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

// SetString stores value under key and persists the file.
func (s *Store) SetString(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return s.saveLocked()
}

// Delete removes key and persists the file. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return err
	}

	// Atomic write with randomized temp file name
	tmpFile, err := os.CreateTemp(dir, "settings-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	// Unix: rename atomically replaces the destination.
	// Windows: rename fails when destination exists; remove and retry.
	if err := os.Rename(tmpPath, s.path); err != nil {
		if runtime.GOOS == "windows" {
			_ = os.Remove(s.path)
			return os.Rename(tmpPath, s.path)
		}
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Watch starts an fsnotify watcher on the backing file. When the file is
// rewritten externally the store reloads it and calls onChange with the keys
// whose values differ. Close stops the watcher.
func (s *Store) Watch(onChange func(changed []string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return fmt.Errorf("settings: watcher already active")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory: editors and atomic renames replace the file inode.
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return err
	}

	s.watcher = w
	s.done = make(chan struct{})
	go s.watchLoop(w, s.done, onChange)
	return nil
}

func (s *Store) watchLoop(w *fsnotify.Watcher, done chan struct{}, onChange func([]string)) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Name != s.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if changed := s.reload(); len(changed) > 0 && onChange != nil {
				onChange(changed)
			}
		case _, ok := <-w.Errors:
			if !ok {
				return
			}
		}
	}
}

// reload re-reads the file and returns the keys whose values changed.
func (s *Store) reload() []string {
	data, err := os.ReadFile(s.path) //nolint:gosec // G304: Path is from trusted app data dir
	if err != nil {
		return nil
	}
	fresh := make(map[string]string)
	if err := json.Unmarshal(data, &fresh); err != nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var changed []string
	for k, v := range fresh {
		if s.values[k] != v {
			changed = append(changed, k)
		}
	}
	for k := range s.values {
		if _, ok := fresh[k]; !ok {
			changed = append(changed, k)
		}
	}
	s.values = fresh
	return changed
}

// Close stops the watcher if one is active.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == nil {
		return nil
	}
	close(s.done)
	err := s.watcher.Close()
	s.watcher = nil
	return err
}
