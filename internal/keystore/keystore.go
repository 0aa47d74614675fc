// Package keystore provides secure keyed-credential storage.
//
// The account manager uses it to register generated account identifiers and
// collision-check new ones. Values go to the system keyring when available;
// because keyrings cannot enumerate entries, a small index file tracks the
// known keys and their attributes. When no keyring is available, everything
// falls back to a single plaintext file.
package keystore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/zalando/go-keyring"
)

const serviceName = "stratus"

// Entry describes a stored key and its queryable attributes.
type Entry struct {
	Key   string `json:"key"`
	Label string `json:"label,omitempty"`
}

// Keystore is a secure keyed-credential storage backend.
type Keystore interface {
	// List enumerates all entries.
	List() ([]Entry, error)
	// Get returns the secret stored under key.
	Get(key string) (string, error)
	// Set stores secret under key with the given label attribute.
	Set(key, label, secret string) error
	// Delete removes key. Deleting an absent key is a no-op.
	Delete(key string) error
}

// Open creates a keystore rooted at dir, preferring the system keyring.
// Set STRATUS_NO_KEYRING to force the file fallback (used by tests).
func Open(dir string) Keystore {
	if os.Getenv("STRATUS_NO_KEYRING") != "" {
		return &fileStore{path: filepath.Join(dir, "keystore.json")}
	}

	// Probe keyring availability
	testKey := "stratus::test"
	if err := keyring.Set(serviceName, testKey, "test"); err == nil {
		_ = keyring.Delete(serviceName, testKey) // Best-effort cleanup
		return &keyringStore{indexPath: filepath.Join(dir, "keystore-index.json")}
	}
	fmt.Fprintf(os.Stderr, "warning: system keyring unavailable, secrets stored in plaintext at %s\n",
		filepath.Join(dir, "keystore.json"))
	return &fileStore{path: filepath.Join(dir, "keystore.json")}
}

// keyringStore keeps secrets in the system keyring and the enumerable key
// index in a file.
type keyringStore struct {
	mu        sync.Mutex
	indexPath string
}

func (s *keyringStore) List() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadIndex()
}

func (s *keyringStore) Get(key string) (string, error) {
	secret, err := keyring.Get(serviceName, key)
	if err != nil {
		return "", fmt.Errorf("keystore: %w", err)
	}
	return secret, nil
}

func (s *keyringStore) Set(key, label, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Set(serviceName, key, secret); err != nil {
		return fmt.Errorf("keystore: %w", err)
	}

	entries, err := s.loadIndex()
	if err != nil {
		return err
	}
	for i, e := range entries {
		if e.Key == key {
			entries[i].Label = label
			return writeIndex(s.indexPath, entries)
		}
	}
	entries = append(entries, Entry{Key: key, Label: label})
	return writeIndex(s.indexPath, entries)
}

func (s *keyringStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Delete(serviceName, key); err != nil && err != keyring.ErrNotFound {
		return fmt.Errorf("keystore: %w", err)
	}

	entries, err := s.loadIndex()
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.Key != key {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return nil
	}
	return writeIndex(s.indexPath, kept)
}

func (s *keyringStore) loadIndex() ([]Entry, error) {
	data, err := os.ReadFile(s.indexPath) //nolint:gosec // G304: Path is from trusted app data dir
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("keystore: invalid index: %w", err)
	}
	return entries, nil
}

// fileStore keeps everything in one JSON file.
type fileStore struct {
	mu   sync.Mutex
	path string
}

type fileEntry struct {
	Label  string `json:"label,omitempty"`
	Secret string `json:"secret"`
}

func (s *fileStore) List() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.loadAll()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(all))
	for key, e := range all {
		entries = append(entries, Entry{Key: key, Label: e.Label})
	}
	return entries, nil
}

func (s *fileStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.loadAll()
	if err != nil {
		return "", err
	}
	e, ok := all[key]
	if !ok {
		return "", fmt.Errorf("keystore: entry not found: %s", key)
	}
	return e.Secret, nil
}

func (s *fileStore) Set(key, label, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.loadAll()
	if err != nil {
		return err
	}
	all[key] = fileEntry{Label: label, Secret: secret}
	return s.saveAll(all)
}

func (s *fileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.loadAll()
	if err != nil {
		return err
	}
	if _, ok := all[key]; !ok {
		return nil
	}
	delete(all, key)
	return s.saveAll(all)
}

func (s *fileStore) loadAll() (map[string]fileEntry, error) {
	data, err := os.ReadFile(s.path) //nolint:gosec // G304: Path is from trusted app data dir
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]fileEntry), nil
		}
		return nil, err
	}
	var all map[string]fileEntry
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("keystore: invalid store file: %w", err)
	}
	return all, nil
}

func (s *fileStore) saveAll(all map[string]fileEntry) error {
	return atomicWriteJSON(s.path, all)
}

// atomicWriteJSON writes v as indented JSON via a temp file and rename.
func atomicWriteJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
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
	if err := os.Rename(tmpPath, path); err != nil {
		if runtime.GOOS == "windows" {
			_ = os.Remove(path)
			return os.Rename(tmpPath, path)
		}
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func writeIndex(path string, entries []Entry) error {
	return atomicWriteJSON(path, entries)
}
