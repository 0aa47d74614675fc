package restclient

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratusio/stratus-cli/internal/account"
	"github.com/stratusio/stratus-cli/internal/apierror"
	"github.com/stratusio/stratus-cli/internal/config"
	"github.com/stratusio/stratus-cli/internal/keystore"
	"github.com/stratusio/stratus-cli/internal/restaction"
	"github.com/stratusio/stratus-cli/internal/settings"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient wires a manager with one authenticated account whose API URL
// points at baseURL.
func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	t.Setenv("STRATUS_NO_KEYRING", "1")
	dir := t.TempDir()

	cfg := &config.Config{
		ClientID:    "client-123",
		RedirectURI: "stratus://oauth/done",
		DataDir:     dir,
		Sources:     make(map[string]string),
	}
	settingsStore, err := settings.Open(filepath.Join(dir, "settings.json"))
	require.NoError(t, err)
	store := account.NewStore(filepath.Join(dir, "accounts"))
	keys := keystore.Open(dir)
	mgr := account.NewManager(cfg, store, settingsStore, keys, discardLogger())

	mgr.ApplyCredential(&account.Credential{
		AccessToken:    "tok-1",
		RefreshToken:   "refresh-1",
		InstanceURL:    baseURL,
		APIURL:         baseURL,
		UserID:         "005000000000001",
		OrganizationID: "00D000000000001",
		ClientID:       "client-123",
	})

	opts = append(opts, WithLogger(discardLogger()))
	c := New(mgr, opts...)
	t.Cleanup(c.Close)
	return c
}

type fakeRefresher struct {
	calls   atomic.Int32
	refresh func() error
}

func (r *fakeRefresher) RefreshSession(context.Context) error {
	r.calls.Add(1)
	if r.refresh != nil {
		return r.refresh()
	}
	return nil
}

func TestSendSuccess(t *testing.T) {
	var gotAuth, gotEncoding string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotEncoding = r.Header.Get("X-Stratus-Entity-Encoding")
		w.Write([]byte(`{"records":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	a := &restaction.Action{Method: "GET", Path: "records", RequiresAuth: true}
	c.Enqueue(a)

	content, err := c.Send(context.Background(), a, nil)
	require.NoError(t, err)
	assert.Equal(t, "OAuth tok-1", gotAuth)
	assert.Equal(t, "false", gotEncoding)

	record, ok := content.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, record, "records")
}

func TestSendRefreshesExpiredSessionOnce(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`[{"errorCode":"INVALID_SESSION_ID","message":"Session expired"}]`))
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	refresher := &fakeRefresher{}
	c := newTestClient(t, srv.URL, WithSessionRefresher(refresher))
	a := &restaction.Action{Method: "GET", Path: "records", RequiresAuth: true}
	c.Enqueue(a)

	content, err := c.Send(context.Background(), a, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, refresher.calls.Load())
	assert.EqualValues(t, 2, requests.Load())

	record, ok := content.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, record["ok"])
}

func TestSendRetriesOnlyOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`[{"errorCode":"INVALID_SESSION_ID"}]`))
	}))
	defer srv.Close()

	refresher := &fakeRefresher{}
	c := newTestClient(t, srv.URL, WithSessionRefresher(refresher))
	a := &restaction.Action{Method: "GET", Path: "records", RequiresAuth: true}
	c.Enqueue(a)

	_, err := c.Send(context.Background(), a, nil)
	require.Error(t, err)
	assert.EqualValues(t, 1, refresher.calls.Load(), "a failed retry must not refresh again")
	assert.True(t, apierror.AsError(err).AuthFailure)
}

func TestSendNoRefreshWithoutRefresher(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`[{"errorCode":"INVALID_SESSION_ID"}]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	a := &restaction.Action{Method: "GET", Path: "records", RequiresAuth: true}
	c.Enqueue(a)

	_, err := c.Send(context.Background(), a, nil)
	require.Error(t, err)
	assert.EqualValues(t, 1, requests.Load())
}

func TestSendNonAuthErrorNotRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`[{"errorCode":"NOT_FOUND","message":"no such record"}]`))
	}))
	defer srv.Close()

	refresher := &fakeRefresher{}
	c := newTestClient(t, srv.URL, WithSessionRefresher(refresher))
	a := &restaction.Action{Method: "GET", Path: "records/001", RequiresAuth: true}
	c.Enqueue(a)

	_, err := c.Send(context.Background(), a, nil)
	require.Error(t, err)
	assert.EqualValues(t, 0, refresher.calls.Load())
	assert.Equal(t, "no such record", apierror.AsError(err).Message)
}

func TestSendCapturesAndReplaysSecurityToken(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Stratus-Csrf-Token")
		w.Write([]byte(`{"securityToken":"csrf-42"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	a := &restaction.Action{Method: "POST", Path: "session", RequiresAuth: true}
	c.Enqueue(a)

	_, err := c.Send(context.Background(), a, nil)
	require.NoError(t, err)
	assert.Empty(t, gotToken, "first call has no token yet")
	assert.Equal(t, "csrf-42", c.SecurityToken())

	_, err = c.Send(context.Background(), a, nil)
	require.NoError(t, err)
	assert.Equal(t, "csrf-42", gotToken, "captured token is replayed on the next call")
}

func TestSendTransportErrorIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // Connections now refuse

	c := newTestClient(t, srv.URL)
	a := &restaction.Action{Method: "GET", Path: "records", RequiresAuth: true}
	c.Enqueue(a)

	_, err := c.Send(context.Background(), a, nil)
	require.Error(t, err)
	structured := apierror.AsError(err)
	assert.Equal(t, apierror.CodeNetwork, structured.Code)
	assert.True(t, structured.Retryable)
}

func TestSendWithoutBaseURL(t *testing.T) {
	c := newTestClient(t, "https://example.invalid")
	a := &restaction.Action{Method: "GET", Path: "records", RequiresAuth: true}
	// Never enqueued: the action has no context and no base URL
	_, err := c.Send(context.Background(), a, nil)
	require.Error(t, err)
	assert.Equal(t, apierror.CodeAuth, apierror.AsError(err).Code)
}

func TestEnqueueCoalescesEquivalentActions(t *testing.T) {
	c := newTestClient(t, "https://example.invalid")

	a := &restaction.Action{Method: "GET", Path: "records", APIVersion: "v58.0"}
	b := &restaction.Action{Method: "GET", Path: "records", APIVersion: "v58.0"}
	other := &restaction.Action{Method: "GET", Path: "limits", APIVersion: "v58.0"}

	assert.Same(t, a, c.Enqueue(a))
	assert.Same(t, a, c.Enqueue(b), "equivalent action coalesces onto the queued one")
	assert.Same(t, other, c.Enqueue(other))

	assert.False(t, b.CredentialsReady(), "coalesced duplicate stays detached")

	c.Dequeue(a)
	assert.Same(t, b, c.Enqueue(b), "after dequeue the slot is free again")
}

func TestAttachedActionTracksManagerEvents(t *testing.T) {
	c := newTestClient(t, "https://acme.stratus.io")
	a := &restaction.Action{Method: "GET", Path: "records", RequiresAuth: true}
	c.Enqueue(a)
	assert.True(t, a.CredentialsReady())
}
