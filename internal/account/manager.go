package account

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/stratusio/stratus-cli/internal/config"
	"github.com/stratusio/stratus-cli/internal/events"
	"github.com/stratusio/stratus-cli/internal/keystore"
	"github.com/stratusio/stratus-cli/internal/settings"
)

// Manager orchestrates the account store: load-at-startup, create/replace/
// delete, active-account switching, persistence on demand, and change
// notifications. All operations are serialized by an internal lock; event
// delivery is synchronous on the mutating goroutine, so handlers must not
// call back into mutating Manager methods.
type Manager struct {
	mu       sync.Mutex
	cfg      *config.Config
	store    *Store
	settings *settings.Store
	keys     keystore.Keystore
	bus      *events.Bus
	log      *slog.Logger

	// activeID is the sanitized user id of the active account, "" when no
	// account is active. Persisted under settings.KeyLastActiveUserID.
	activeID string
}

// NewManager creates a manager. settingsStore carries the flat persisted
// state (active id, login host); keys is used for identifier collision
// checks. logger may be nil.
func NewManager(cfg *config.Config, store *Store, settingsStore *settings.Store, keys keystore.Keystore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:      cfg,
		store:    store,
		settings: settingsStore,
		keys:     keys,
		bus:      events.NewBus(),
		log:      logger,
	}
}

// Events returns the manager's notification bus.
func (m *Manager) Events() *events.Bus {
	return m.bus
}

// LoadAccounts clears in-memory state and rebuilds it from disk, then
// re-selects the active account: the persisted last-active id when it still
// exists, otherwise any remaining account, otherwise none. The active
// credential's client id is refreshed from configuration, covering a client
// id change between launches. Concludes with a credentials-changed
// broadcast. Fails only when the root directory exists but cannot be
// enumerated.
func (m *Manager) LoadAccounts() error {
	m.mu.Lock()
	if err := m.store.Load(m.log); err != nil {
		m.mu.Unlock()
		return err
	}

	m.activeID = ""
	last := SanitizeUserID(m.settings.GetString(settings.KeyLastActiveUserID))
	if last != "" && m.store.Get(last) != nil {
		m.activeID = last
	} else {
		m.reconcileActiveLocked()
	}

	if acct := m.currentLocked(); acct != nil && m.cfg.ClientID != "" {
		acct.Credential.ClientID = m.cfg.ClientID
	}
	m.log.Debug("accounts loaded", "count", m.store.Len(), "active", m.activeID)
	m.mu.Unlock()

	m.bus.Publish(events.UserDataChanged{Fields: allCredentialFields, Change: events.ChangeSwitched})
	m.bus.Publish(events.CredentialsUpdated{})
	return nil
}

// SaveAccounts persists every non-placeholder account, aborting on the
// first write or removal error.
func (m *Manager) SaveAccounts() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Save()
}

// CreateAccount synthesizes a fresh placeholder account: a collision-checked
// unique identifier, no access token, and domain/client id/redirect URI
// copied from configuration. The account is added to the store but not
// activated; the caller decides when to switch to it.
func (m *Manager) CreateAccount() *Account {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred := &Credential{
		Domain:      m.loginHostLocked(),
		UserID:      TempUserID,
		ClientID:    m.cfg.ClientID,
		RedirectURI: m.cfg.RedirectURI,
		Scopes:      m.cfg.Scopes,
	}
	return m.insertLocked(cred)
}

// CreateAccountWithCredential is CreateAccount with the credential supplied
// wholesale instead of synthesized.
func (m *Manager) CreateAccountWithCredential(cred *Credential) *Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(cred.Clone())
}

func (m *Manager) insertLocked(cred *Credential) *Account {
	acct := &Account{
		Identifier: m.generateUniqueIdentifierLocked(),
		Credential: cred,
	}
	m.store.Put(acct)
	if err := m.keys.Set(acct.Identifier, SanitizeUserID(cred.UserID), ""); err != nil {
		m.log.Warn("could not register account identifier in keystore", "error", err)
	}
	return acct
}

// generateUniqueIdentifierLocked produces an identifier unknown to both the
// keystore and the in-memory store, appending random suffixes until there is
// no collision.
func (m *Manager) generateUniqueIdentifierLocked() string {
	known := make(map[string]bool)
	if entries, err := m.keys.List(); err == nil {
		for _, e := range entries {
			known[e.Key] = true
		}
	} else {
		m.log.Warn("keystore enumeration failed, collision check degraded", "error", err)
	}
	for _, a := range m.store.All() {
		known[a.Identifier] = true
	}

	id := "acct-" + uuid.NewString()
	for known[id] {
		id += "-" + randomSuffix()
	}
	return id
}

func randomSuffix() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// ApplyCredential installs freshly obtained credentials. With no current
// account it creates one (emitting account-created); otherwise it overwrites
// the current account's credential in place. If the active entry is still
// the placeholder, the map entry is swapped to the real id and the active
// pointer follows. Always concludes with a credentials-changed broadcast.
func (m *Manager) ApplyCredential(cred *Credential) *Account {
	m.mu.Lock()

	var (
		acct    *Account
		mask    events.FieldMask
		change  events.ChangeKind
		created bool
	)

	if cur := m.currentLocked(); cur == nil {
		acct = m.insertLocked(cred.Clone())
		key := SanitizeUserID(cred.UserID)
		m.activeID = key
		m.persistActiveLocked()
		mask = cred.Diff(nil)
		change = events.ChangeNew
		created = true
	} else {
		old := cur.Credential.Clone()
		*cur.Credential = *cred.Clone()
		mask = cur.Credential.Diff(old)
		change = events.ChangeUpdated
		acct = cur
	}

	if m.activeID == SanitizeUserID(TempUserID) {
		newKey := SanitizeUserID(cred.UserID)
		m.store.Rekey(m.activeID, newKey)
		m.activeID = newKey
		m.persistActiveLocked()
		if err := m.keys.Set(acct.Identifier, newKey, ""); err != nil {
			m.log.Warn("could not update keystore entry after placeholder swap", "error", err)
		}
	}
	userID := SanitizeUserID(acct.UserID())
	m.mu.Unlock()

	if created {
		m.bus.Publish(events.AccountCreated{UserID: userID})
	}
	m.bus.Publish(events.UserDataChanged{Fields: mask, Change: change})
	m.bus.Publish(events.CredentialsUpdated{})
	return acct
}

// CurrentAccount returns the active account, or nil.
func (m *Manager) CurrentAccount() *Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLocked()
}

func (m *Manager) currentLocked() *Account {
	if m.activeID == "" {
		return nil
	}
	return m.store.Get(m.activeID)
}

// SetCurrentAccount switches the active account. Passing the current value
// is a no-op; passing nil deactivates. The new active id is persisted before
// the in-memory pointer moves.
func (m *Manager) SetCurrentAccount(acct *Account) error {
	m.mu.Lock()

	newID := ""
	if acct != nil {
		newID = SanitizeUserID(acct.UserID())
	}
	if newID == m.activeID {
		m.mu.Unlock()
		return nil
	}
	if newID != "" && m.store.Get(newID) == nil {
		m.mu.Unlock()
		return fmt.Errorf("account %q is not in the store", newID)
	}

	old := m.currentLocked()
	prevID := m.activeID
	m.activeID = newID
	if err := m.persistActiveLocked(); err != nil {
		m.activeID = prevID
		m.mu.Unlock()
		return err
	}

	mask := allCredentialFields
	if acct != nil && old != nil {
		mask = acct.Credential.Diff(old.Credential)
	}
	m.mu.Unlock()

	m.bus.Publish(events.UserDataChanged{Fields: mask, Change: events.ChangeSwitched})
	return nil
}

func (m *Manager) persistActiveLocked() error {
	if m.activeID == "" {
		return m.settings.Delete(settings.KeyLastActiveUserID)
	}
	return m.settings.SetString(settings.KeyLastActiveUserID, m.activeID)
}

// reconcileActiveLocked picks any remaining real account as active, or
// leaves active unset when none remain, and persists the outcome.
func (m *Manager) reconcileActiveLocked() {
	m.activeID = ""
	for _, a := range m.store.All() {
		if a.UserID() != "" && !a.IsPlaceholder() {
			m.activeID = SanitizeUserID(a.UserID())
			break
		}
	}
	if err := m.persistActiveLocked(); err != nil {
		m.log.Warn("could not persist active account id", "error", err)
	}
}

// Account looks up an account by user id (sanitized first). Returns nil when
// absent.
func (m *Manager) Account(userID string) *Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Get(SanitizeUserID(userID))
}

// AllUserAccounts enumerates every real account; the placeholder is never
// included.
func (m *Manager) AllUserAccounts() []*Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	var accounts []*Account
	for _, a := range m.store.All() {
		if !a.IsPlaceholder() {
			accounts = append(accounts, a)
		}
	}
	return accounts
}

// DeleteAccount removes the account for userID from the store, its keystore
// entry and its on-disk directory. Deleting an unknown id is a no-op. The
// active pointer is always reconciled afterwards: deleting the active
// account falls back to any remaining account, mirroring the load-time
// recovery path, so the pointer can never dangle.
func (m *Manager) DeleteAccount(userID string) error {
	m.mu.Lock()

	key := SanitizeUserID(userID)
	acct := m.store.Get(key)
	if acct == nil {
		m.mu.Unlock()
		return nil
	}

	m.store.Remove(key)
	if err := m.store.RemoveDir(acct); err != nil {
		m.log.Warn("could not remove account directory", "user", key, "error", err)
	}
	if err := m.keys.Delete(acct.Identifier); err != nil {
		m.log.Warn("could not remove keystore entry", "identifier", acct.Identifier, "error", err)
	}

	wasActive := m.activeID == key
	if wasActive {
		m.reconcileActiveLocked()
	}
	m.mu.Unlock()

	m.bus.Publish(events.UserDataChanged{Fields: allCredentialFields, Change: events.ChangeDeleted})
	if wasActive {
		m.bus.Publish(events.CredentialsUpdated{})
	}
	return nil
}
