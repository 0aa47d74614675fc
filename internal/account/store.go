package account

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gofrs/flock"
)

// On-disk layout: <root>/org-<orgID>/user-<sanitizedUserID>/account.json.
// Org and user directories are prefix-matched so unrelated files dropped into
// the tree are ignored.
const (
	orgDirPrefix    = "org-"
	userDirPrefix   = "user-"
	accountFileName = "account.json"
	lockFileName    = ".accounts.lock"

	// anonOrgSegment holds accounts whose org id is not yet known.
	anonOrgSegment = "unassigned"
)

// Store is the in-memory account map plus its durable directory tree.
// It is not internally synchronized; the Manager serializes all access.
type Store struct {
	root     string
	accounts map[string]*Account
}

// NewStore creates a store rooted at dir. No I/O happens until Load or Save.
func NewStore(dir string) *Store {
	return &Store{
		root:     dir,
		accounts: make(map[string]*Account),
	}
}

// Root returns the storage root directory.
func (s *Store) Root() string {
	return s.root
}

// Get returns the account stored under the sanitized key, or nil.
func (s *Store) Get(key string) *Account {
	return s.accounts[key]
}

// Put inserts or replaces the account under its sanitized user id.
func (s *Store) Put(acct *Account) {
	s.accounts[SanitizeUserID(acct.UserID())] = acct
}

// Remove deletes the key from the map. Removing an absent key is a no-op.
func (s *Store) Remove(key string) {
	delete(s.accounts, key)
}

// Rekey moves the entry under oldKey to newKey. Used exactly once per
// account: when a placeholder receives its real backend-assigned id.
func (s *Store) Rekey(oldKey, newKey string) {
	acct, ok := s.accounts[oldKey]
	if !ok {
		return
	}
	delete(s.accounts, oldKey)
	s.accounts[newKey] = acct
}

// All returns every account, placeholder included.
func (s *Store) All() []*Account {
	accounts := make([]*Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		accounts = append(accounts, a)
	}
	return accounts
}

// Len returns the number of accounts in the map.
func (s *Store) Len() int {
	return len(s.accounts)
}

// Load rebuilds the map from disk: the map is cleared, then the two-level
// org/user directory tree is scanned and one account file is deserialized
// per user directory. A corrupt account file is deleted and logged, and the
// scan continues; only a failure to enumerate the root directory is an
// error. A missing root directory is a fresh install, not an error.
func (s *Store) Load(log *slog.Logger) error {
	s.accounts = make(map[string]*Account)

	orgs, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("enumerate account root %s: %w", s.root, err)
	}

	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	for _, org := range orgs {
		if !org.IsDir() || !strings.HasPrefix(org.Name(), orgDirPrefix) {
			continue
		}
		orgPath := filepath.Join(s.root, org.Name())
		users, err := os.ReadDir(orgPath)
		if err != nil {
			log.Warn("skipping unreadable org directory", "path", orgPath, "error", err)
			continue
		}
		for _, user := range users {
			if !user.IsDir() || !strings.HasPrefix(user.Name(), userDirPrefix) {
				continue
			}
			path := filepath.Join(orgPath, user.Name(), accountFileName)
			acct, err := readAccountFile(path)
			if err != nil {
				// Corrupt persisted account: recover by deletion so the
				// remaining good accounts stay available.
				log.Warn("removing corrupt account file", "path", path, "error", err)
				_ = os.Remove(path)
				continue
			}
			if acct.IsPlaceholder() {
				// Placeholders must never be persisted; drop stragglers.
				log.Warn("dropping persisted placeholder account", "path", path)
				_ = os.Remove(path)
				continue
			}
			s.Put(acct)
		}
	}
	return nil
}

// Save persists every non-placeholder account, overwriting existing files,
// then removes user directories for accounts no longer in the map. The first
// write or removal error aborts the whole operation.
func (s *Store) Save() error {
	if err := os.MkdirAll(s.root, 0700); err != nil {
		return fmt.Errorf("create account root %s: %w", s.root, err)
	}

	unlock, err := s.lock()
	if err != nil {
		return err
	}
	defer unlock()

	wanted := make(map[string]bool)
	for key, acct := range s.accounts {
		if acct.IsPlaceholder() {
			continue
		}
		dir := filepath.Join(s.root, orgSegment(acct), userDirPrefix+key)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create account directory %s: %w", dir, err)
		}
		if err := writeAccountFile(filepath.Join(dir, accountFileName), acct); err != nil {
			return err
		}
		wanted[dir] = true
	}

	return s.sweepStale(wanted)
}

// sweepStale removes user directories that no longer correspond to a stored
// account, and org directories left empty afterwards.
func (s *Store) sweepStale(wanted map[string]bool) error {
	orgs, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("enumerate account root %s: %w", s.root, err)
	}
	for _, org := range orgs {
		if !org.IsDir() || !strings.HasPrefix(org.Name(), orgDirPrefix) {
			continue
		}
		orgPath := filepath.Join(s.root, org.Name())
		users, err := os.ReadDir(orgPath)
		if err != nil {
			return fmt.Errorf("enumerate org directory %s: %w", orgPath, err)
		}
		remaining := 0
		for _, user := range users {
			if !user.IsDir() || !strings.HasPrefix(user.Name(), userDirPrefix) {
				continue
			}
			userPath := filepath.Join(orgPath, user.Name())
			if wanted[userPath] {
				remaining++
				continue
			}
			if err := os.RemoveAll(userPath); err != nil {
				return fmt.Errorf("remove stale account directory %s: %w", userPath, err)
			}
		}
		if remaining == 0 {
			// Best-effort: an org dir may still hold unrelated files.
			_ = os.Remove(orgPath)
		}
	}
	return nil
}

// RemoveDir deletes the on-disk directory for acct. Best-effort companion to
// DeleteAccount; Save sweeps up anything left behind.
func (s *Store) RemoveDir(acct *Account) error {
	key := SanitizeUserID(acct.UserID())
	userPath := filepath.Join(s.root, orgSegment(acct), userDirPrefix+key)
	if err := os.RemoveAll(userPath); err != nil {
		return err
	}
	_ = os.Remove(filepath.Dir(userPath))
	return nil
}

// lock takes the cross-process file lock guarding the directory tree.
func (s *Store) lock() (func(), error) {
	fl := flock.New(filepath.Join(s.root, lockFileName))
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("lock account store: %w", err)
	}
	return func() { _ = fl.Unlock() }, nil
}

func orgSegment(acct *Account) string {
	orgID := ""
	if acct.Credential != nil {
		orgID = SanitizeUserID(acct.Credential.OrganizationID)
	}
	if orgID == "" {
		orgID = anonOrgSegment
	}
	return orgDirPrefix + orgID
}

func readAccountFile(path string) (*Account, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted app data dir
	if err != nil {
		return nil, err
	}
	var acct Account
	if err := json.Unmarshal(data, &acct); err != nil {
		return nil, err
	}
	if acct.Credential == nil || acct.Credential.UserID == "" {
		return nil, fmt.Errorf("account file %s missing credential user id", path)
	}
	return &acct, nil
}

func writeAccountFile(path string, acct *Account) error {
	data, err := json.MarshalIndent(acct, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, accountFileName+".tmp-*")
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
