// Package account implements multi-account credential management: the
// in-memory account store, its durable on-disk representation, and the
// manager that orchestrates lifecycle, active-user switching and change
// notifications.
package account

// TempUserID is the sentinel user id of a placeholder account created before
// the backend has assigned a real one. Placeholder accounts are never
// persisted and are excluded from enumeration.
const TempUserID = "TEMP-USER-ID"

// Account pairs a stable identifier with one owned credential set. The
// identifier is assigned at creation and never changes; the credential
// mutates in place.
type Account struct {
	Identifier string      `json:"identifier"`
	Credential *Credential `json:"credential"`
}

// UserID returns the account's (unsanitized) user id.
func (a *Account) UserID() string {
	if a == nil || a.Credential == nil {
		return ""
	}
	return a.Credential.UserID
}

// IsPlaceholder reports whether the account still carries the temporary
// sentinel id.
func (a *Account) IsPlaceholder() bool {
	return a.UserID() == TempUserID
}
