package account

import (
	"slices"

	"github.com/stratusio/stratus-cli/internal/events"
)

// Credential holds one account's OAuth credential set. Fields mutate in
// place; the identity of the owning Account does not change when they do.
type Credential struct {
	AccessToken    string   `json:"access_token,omitempty"`
	RefreshToken   string   `json:"refresh_token,omitempty"`
	Domain         string   `json:"domain"`
	InstanceURL    string   `json:"instance_url,omitempty"`
	APIURL         string   `json:"api_url,omitempty"`
	OrganizationID string   `json:"organization_id,omitempty"`
	UserID         string   `json:"user_id"`
	ClientID       string   `json:"client_id"`
	RedirectURI    string   `json:"redirect_uri"`
	Scopes         []string `json:"scopes,omitempty"`
}

// Clone returns a deep copy.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Scopes = slices.Clone(c.Scopes)
	return &cp
}

// Diff returns the mask of fields whose values differ from old. A nil old is
// treated as an all-empty credential.
func (c *Credential) Diff(old *Credential) events.FieldMask {
	if old == nil {
		old = &Credential{}
	}
	var mask events.FieldMask
	if c.AccessToken != old.AccessToken {
		mask |= events.FieldAccessToken
	}
	if c.RefreshToken != old.RefreshToken {
		mask |= events.FieldRefreshToken
	}
	if c.InstanceURL != old.InstanceURL {
		mask |= events.FieldInstanceURL
	}
	if c.APIURL != old.APIURL {
		mask |= events.FieldAPIURL
	}
	if c.Domain != old.Domain {
		mask |= events.FieldDomain
	}
	if c.ClientID != old.ClientID {
		mask |= events.FieldClientID
	}
	if c.OrganizationID != old.OrganizationID {
		mask |= events.FieldOrgID
	}
	if c.UserID != old.UserID {
		mask |= events.FieldUserID
	}
	return mask
}

// allCredentialFields is the mask covering every credential field, used for
// whole-account transitions (load, switch, delete).
const allCredentialFields = events.FieldAccessToken | events.FieldRefreshToken |
	events.FieldInstanceURL | events.FieldAPIURL | events.FieldDomain |
	events.FieldClientID | events.FieldOrgID | events.FieldUserID
