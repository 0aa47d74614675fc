// Package restclient executes authenticated REST actions against the
// active account's instance. It is the network context actions are enqueued
// against: it relays credential-change broadcasts to attached actions, holds
// the CSRF security token, and drives the refresh-then-retry-once policy
// when a response signals an expired session.
package restclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/stratusio/stratus-cli/internal/account"
	"github.com/stratusio/stratus-cli/internal/apierror"
	"github.com/stratusio/stratus-cli/internal/events"
	"github.com/stratusio/stratus-cli/internal/resilience"
	"github.com/stratusio/stratus-cli/internal/restaction"
	"github.com/stratusio/stratus-cli/internal/version"
)

const securityTokenHeader = "X-Stratus-Csrf-Token"

// Hooks observes the request lifecycle. Implemented by
// observability.TraceHooks.
type Hooks interface {
	OnRequestStart(method, url string)
	OnRequestEnd(method, url string, status int, err error, d time.Duration)
	OnAuthRefresh()
}

// SessionRefresher re-acquires a valid access token after the backend
// reports the current one invalid. The OAuth token-exchange call itself
// lives outside this package.
type SessionRefresher interface {
	RefreshSession(ctx context.Context) error
}

// Client is the network context for authenticated actions.
type Client struct {
	accounts   *account.Manager
	httpClient *http.Client
	refresher  SessionRefresher
	log        *slog.Logger
	hooks      Hooks
	retry      *resilience.RetryConfig

	mu            sync.Mutex
	securityToken string
	queue         []*restaction.Action
	relay         *events.Subscription
	bus           *events.Bus
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSessionRefresher installs the refresh orchestrator consulted when a
// response demands a session refresh.
func WithSessionRefresher(r SessionRefresher) Option {
	return func(c *Client) { c.refresher = r }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithHooks installs request lifecycle hooks.
func WithHooks(h Hooks) Option {
	return func(c *Client) { c.hooks = h }
}

// WithRetry enables backoff retries for retryable network errors. Without
// this option every transport failure surfaces immediately.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) { c.retry = &cfg }
}

// New creates a client bound to the account manager's active credential.
// Manager broadcasts are relayed onto the client's own bus so attached
// actions see per-context events; Close tears the relay down.
func New(accounts *account.Manager, opts ...Option) *Client {
	c := &Client{
		accounts: accounts,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: slog.Default(),
		bus: events.NewBus(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.relay = accounts.Events().Subscribe(func(event any) {
		if change, ok := event.(events.UserDataChanged); ok {
			c.bus.Publish(change)
		}
	})
	return c
}

// Close cancels the manager relay and detaches every enqueued action.
func (c *Client) Close() {
	c.relay.Cancel()
	c.mu.Lock()
	queue := c.queue
	c.queue = nil
	c.mu.Unlock()
	for _, a := range queue {
		a.Detach()
	}
}

// ActiveCredential returns the account manager's active credential, or nil.
func (c *Client) ActiveCredential() *account.Credential {
	acct := c.accounts.CurrentAccount()
	if acct == nil {
		return nil
	}
	return acct.Credential
}

// SetSecurityToken stores the CSRF token captured from a response.
func (c *Client) SetSecurityToken(token string) {
	c.mu.Lock()
	c.securityToken = token
	c.mu.Unlock()
}

// SecurityToken returns the stored CSRF token, or "".
func (c *Client) SecurityToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.securityToken
}

// Events returns the client's per-context event bus.
func (c *Client) Events() *events.Bus {
	return c.bus
}

// Enqueue attaches the action to this context and adds it to the queue. If
// an equivalent action is already enqueued, that one is returned instead and
// a is left detached (coalescing).
func (c *Client) Enqueue(a *restaction.Action) *restaction.Action {
	c.mu.Lock()
	for _, queued := range c.queue {
		if queued.EqualTo(a) {
			c.mu.Unlock()
			return queued
		}
	}
	c.queue = append(c.queue, a)
	c.mu.Unlock()

	a.Attach(c)
	return a
}

// Dequeue removes the action from the queue and detaches it.
func (c *Client) Dequeue(a *restaction.Action) {
	c.mu.Lock()
	for i, queued := range c.queue {
		if queued == a {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	a.Detach()
}

// Send executes the action: one request, and on a session-expired
// classification exactly one refresh-then-retry when a refresher is
// installed. body may be nil.
func (c *Client) Send(ctx context.Context, a *restaction.Action, body []byte) (any, error) {
	content, err := c.trySend(ctx, a, body)
	if err == nil {
		return content, nil
	}

	apiErr := apierror.AsError(err)
	if !apiErr.AuthFailure || c.refresher == nil {
		return nil, err
	}

	c.log.Debug("session expired, refreshing", "action", a.Description())
	if c.hooks != nil {
		c.hooks.OnAuthRefresh()
	}
	if refreshErr := c.refresher.RefreshSession(ctx); refreshErr != nil {
		return nil, fmt.Errorf("session refresh after %s: %w", a.Description(), refreshErr)
	}
	return c.trySend(ctx, a, body)
}

// trySend wraps sendOnce in the retry policy when one is configured. Only
// retryable network errors are retried; auth and API errors pass through.
func (c *Client) trySend(ctx context.Context, a *restaction.Action, body []byte) (any, error) {
	if c.retry == nil {
		return c.sendOnce(ctx, a, body)
	}

	var content any
	err := resilience.Retry(ctx, *c.retry, func(err error) bool {
		structured := apierror.AsError(err)
		return structured.Code == apierror.CodeNetwork && structured.Retryable
	}, func() error {
		var err error
		content, err = c.sendOnce(ctx, a, body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return content, nil
}

func (c *Client) sendOnce(ctx context.Context, a *restaction.Action, body []byte) (any, error) {
	base := a.BaseURL()
	if base == "" {
		return nil, apierror.ErrAuth("No API URL available; authenticate first")
	}
	url := base + a.FullPath()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, a.Method, url, reader)
	if err != nil {
		return nil, err
	}

	for k, vs := range a.Headers() {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.SecurityToken(); token != "" {
		req.Header.Set(securityTokenHeader, token)
	}

	if c.hooks != nil {
		c.hooks.OnRequestStart(a.Method, url)
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if c.hooks != nil {
			c.hooks.OnRequestEnd(a.Method, url, 0, err, time.Since(start))
		}
		netErr := apierror.ErrNetwork(err)
		if !apierror.IsConnectivityError(err) {
			netErr.Retryable = false
		}
		return nil, netErr
	}
	defer resp.Body.Close()
	if c.hooks != nil {
		c.hooks.OnRequestEnd(a.Method, url, resp.StatusCode, nil, time.Since(start))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response for %s: %w", a.Description(), err)
	}

	if apiErr := a.ErrorFromData(data, resp.StatusCode, nil); apiErr != nil {
		return nil, apiErr
	}
	return a.ContentFromData(data)
}
