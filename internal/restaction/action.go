// Package restaction describes a single authenticated outgoing REST call:
// the headers it needs, the base URL it resolves against, how its response
// content and errors are extracted, and whether the credentials it depends
// on are ready.
package restaction

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/stratusio/stratus-cli/internal/account"
	"github.com/stratusio/stratus-cli/internal/apierror"
	"github.com/stratusio/stratus-cli/internal/events"
)

// Header disabling the legacy entity text-encoding mode. Always sent.
const (
	entityEncodingHeader = "X-Stratus-Entity-Encoding"
	entityEncodingValue  = "false"
)

// securityTokenField is the response field whose value is captured as the
// CSRF token for subsequent protected calls.
const securityTokenField = "securityToken"

// NetworkContext is the execution context an action is enqueued against. It
// owns the active credential association and the CSRF token, and broadcasts
// credential-change events to its attached actions. Implemented by
// restclient.Client.
type NetworkContext interface {
	ActiveCredential() *account.Credential
	SetSecurityToken(token string)
	Events() *events.Bus
}

// Action is one outgoing API call descriptor. Actions read the active
// credential lazily per request through their network context; they never
// own the account.
type Action struct {
	Method       string
	Path         string
	APIVersion   string
	PathPrefix   string
	RequiresAuth bool

	// BaseURLOverride, when set, wins over the active credential's API URL.
	BaseURLOverride string

	mu    sync.Mutex
	ctx   NetworkContext
	sub   *events.Subscription
	ready bool
}

// Attach associates the action with a network context and subscribes it to
// credential-change broadcasts so readiness stays current. Detach must be
// called when the action leaves the context.
func (a *Action) Attach(ctx NetworkContext) {
	a.mu.Lock()
	a.detachLocked()
	a.ctx = ctx
	a.sub = ctx.Events().Subscribe(a.onEvent)
	a.mu.Unlock()
	a.recomputeReadiness()
}

// Detach drops the context association and cancels the subscription.
func (a *Action) Detach() {
	a.mu.Lock()
	a.detachLocked()
	a.mu.Unlock()
}

func (a *Action) detachLocked() {
	if a.sub != nil {
		a.sub.Cancel()
		a.sub = nil
	}
	a.ctx = nil
	a.ready = false
}

// onEvent recomputes readiness only for credential changes that touch the
// instance URL or access token; other field changes are ignored.
func (a *Action) onEvent(event any) {
	change, ok := event.(events.UserDataChanged)
	if !ok {
		return
	}
	if !change.Fields.Has(events.FieldInstanceURL | events.FieldAccessToken) {
		return
	}
	a.recomputeReadiness()
}

func (a *Action) recomputeReadiness() {
	cred := a.activeCredential()
	ready := cred != nil && cred.InstanceURL != "" && cred.AccessToken != ""
	a.mu.Lock()
	a.ready = ready
	a.mu.Unlock()
}

// CredentialsReady reports whether both an instance URL and a non-empty
// access token are present on the associated account.
func (a *Action) CredentialsReady() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

func (a *Action) activeCredential() *account.Credential {
	a.mu.Lock()
	ctx := a.ctx
	a.mu.Unlock()
	if ctx == nil {
		return nil
	}
	return ctx.ActiveCredential()
}

// Headers returns the headers for this action: the fixed entity-encoding
// header, plus an OAuth Authorization header when the action requires
// authentication and an access token is available.
func (a *Action) Headers() http.Header {
	h := http.Header{}
	h.Set(entityEncodingHeader, entityEncodingValue)
	if a.RequiresAuth {
		if cred := a.activeCredential(); cred != nil && cred.AccessToken != "" {
			h.Set("Authorization", "OAuth "+cred.AccessToken)
		}
	}
	return h
}

// BaseURL resolves the request base URL: the explicit override when
// configured, otherwise the active credential's API URL. Always
// slash-terminated; empty when neither source is available.
func (a *Action) BaseURL() string {
	base := a.BaseURLOverride
	if base == "" {
		if cred := a.activeCredential(); cred != nil {
			base = cred.APIURL
		}
	}
	if base == "" {
		return ""
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

// FullPath joins the path prefix, API version and path.
func (a *Action) FullPath() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.PathPrefix, a.APIVersion, a.Path} {
		if p = strings.Trim(p, "/"); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "/")
}

// Description identifies the action for diagnostics.
func (a *Action) Description() string {
	return fmt.Sprintf("%s /%s", a.Method, a.FullPath())
}

// ContentFromData decodes the response body. When the decoded content is an
// object carrying a security token, the token is stored on the owning
// network context as a side effect for subsequent CSRF-protected calls.
func (a *Action) ContentFromData(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var content any
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("decode response for %s: %w", a.Description(), err)
	}

	if record, ok := content.(map[string]any); ok {
		if token, ok := record[securityTokenField].(string); ok && token != "" {
			a.mu.Lock()
			ctx := a.ctx
			a.mu.Unlock()
			if ctx != nil {
				ctx.SetSecurityToken(token)
			}
		}
	}
	return content, nil
}

// ErrorFromData interprets a terminal response. Status codes below 400 pass
// through as nil; everything else is classified and wrapped into a
// structured error carrying the action description, the session-refresh
// flag, the backend error code, and cause as the underlying error. A 4xx/5xx
// with no recognizable body still yields a non-nil error.
func (a *Action) ErrorFromData(data []byte, status int, cause error) error {
	if status < 400 {
		return nil
	}
	c := apierror.Classify(status, data, a.Method, "/"+a.FullPath())
	return apierror.WrapClassified(c, status, a.Description(), cause)
}

// EqualTo reports whether other describes the same call: method and path
// base equality plus matching API version and path prefix. Used by queue
// deduplication.
func (a *Action) EqualTo(other *Action) bool {
	if other == nil {
		return false
	}
	return a.Method == other.Method &&
		a.Path == other.Path &&
		a.APIVersion == other.APIVersion &&
		a.PathPrefix == other.PathPrefix
}
