// Package client is an HTTP client for the tenant access API. It keeps the
// session and refresh credentials and recovers from an expired session with a
// single refresh exchange shared by all concurrent callers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	RefreshPath = "/api/auth/refresh"
	LoginPath   = "/api/auth/login"
	LogoutPath  = "/api/auth/logout"

	// SelectorHeader is honoured by the server for superadmin credentials only.
	SelectorHeader = "X-Empresa-Id"

	defaultTimeout = 30 * time.Second
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrNotAllowed   = errors.New("method not allowed")
	ErrConflict     = errors.New("conflict")
	ErrBadRequest   = errors.New("bad request")
	// ErrSessionEnded means the refresh exchange itself was refused; the caller must log in again.
	ErrSessionEnded = errors.New("session ended")
)

// APIError is a non-2xx response. errors.Is matches it against the sentinel
// for its status.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"error"`
	kind    error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.Status)
	}
	return fmt.Sprintf("api: %s (%s)", e.Message, e.Code)
}

func (e *APIError) Unwrap() error { return e.kind }

// Tokens is the credential pair the client holds.
type Tokens struct {
	SessionToken     string    `json:"session_token"`
	SessionExpiresAt time.Time `json:"session_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokens starts the client with an existing credential pair.
func WithTokens(t Tokens) Option {
	return func(c *Client) { c.tokens = t }
}

// WithTokenSink is called whenever login or refresh produces new credentials.
func WithTokenSink(fn func(Tokens)) Option {
	return func(c *Client) { c.sink = fn }
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	sink       func(Tokens)

	mu       sync.RWMutex
	tokens   Tokens
	selector string

	refreshes singleflight.Group
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SelectTenant sets the tenant selector sent with every request; "" clears it.
func (c *Client) SelectTenant(tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selector = tenantID
}

func (c *Client) Tokens() Tokens {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens
}

func (c *Client) setTokens(t Tokens) {
	c.mu.Lock()
	c.tokens = t
	c.mu.Unlock()
	if c.sink != nil {
		c.sink(t)
	}
}

func (c *Client) Login(ctx context.Context, email, password string) error {
	var t Tokens
	err := c.send(ctx, http.MethodPost, LoginPath, map[string]string{"email": email, "password": password}, &t, false)
	if err != nil {
		return err
	}
	c.setTokens(t)
	return nil
}

// Logout revokes the refresh credential and forgets both tokens.
func (c *Client) Logout(ctx context.Context) error {
	refresh := c.Tokens().RefreshToken
	err := c.Do(ctx, http.MethodPost, LogoutPath, map[string]string{"refresh_token": refresh}, nil)
	c.setTokens(Tokens{})
	return err
}

// Do sends an authenticated request. A 401 from any endpoint but the refresh
// endpoint triggers at most one refresh exchange and one retry.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	used := c.Tokens().SessionToken
	err := c.send(ctx, method, path, in, out, true)
	if !errors.Is(err, ErrUnauthorized) || path == RefreshPath {
		return err
	}
	if err := c.refresh(ctx, used); err != nil {
		return err
	}
	return c.send(ctx, method, path, in, out, true)
}

// refresh exchanges the refresh credential unless another caller already
// replaced the session that failed.
func (c *Client) refresh(ctx context.Context, failedSession string) error {
	current := c.Tokens()
	if current.SessionToken != failedSession {
		return nil
	}
	if current.RefreshToken == "" {
		return fmt.Errorf("%w: no refresh credential", ErrSessionEnded)
	}

	_, err, _ := c.refreshes.Do("refresh", func() (any, error) {
		if c.Tokens().SessionToken != failedSession {
			return nil, nil
		}
		var t Tokens
		err := c.send(ctx, http.MethodPost, RefreshPath, map[string]string{"refresh_token": current.RefreshToken}, &t, false)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
				return nil, fmt.Errorf("%w: %w", ErrSessionEnded, err)
			}
			return nil, err
		}
		c.setTokens(t)
		return nil, nil
	})
	return err
}

func (c *Client) send(ctx context.Context, method, path string, in, out any, authenticated bool) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	c.mu.RLock()
	session, selector := c.tokens.SessionToken, c.selector
	c.mu.RUnlock()
	if authenticated && session != "" {
		req.Header.Set("Authorization", "Bearer "+session)
	}
	if selector != "" {
		req.Header.Set(SelectorHeader, selector)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(apiErr)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		apiErr.kind = ErrUnauthorized
	case http.StatusForbidden:
		apiErr.kind = ErrForbidden
	case http.StatusNotFound:
		apiErr.kind = ErrNotFound
	case http.StatusMethodNotAllowed:
		apiErr.kind = ErrNotAllowed
	case http.StatusConflict:
		apiErr.kind = ErrConflict
	case http.StatusBadRequest:
		apiErr.kind = ErrBadRequest
	}
	return apiErr
}
