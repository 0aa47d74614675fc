package account

import "golang.org/x/text/unicode/norm"

// MaxUserIDLength is the bound on sanitized user identifiers. Backend user
// ids are 15 characters; anything longer is an 18-character case-safe form
// or garbage, and truncating yields the canonical 15-character id either way.
const MaxUserIDLength = 15

// SanitizeUserID normalizes an externally supplied user identifier to the
// canonical form used as map keys and directory names: NFC-normalized and
// truncated to MaxUserIDLength runes. Idempotent; empty input stays empty.
func SanitizeUserID(id string) string {
	id = norm.NFC.String(id)
	runes := []rune(id)
	if len(runes) > MaxUserIDLength {
		return string(runes[:MaxUserIDLength])
	}
	return id
}
