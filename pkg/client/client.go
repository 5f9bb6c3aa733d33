// Package client is a Go client for the workflow API.
//
// Identity is explicit: Login and Register return a *Session, every call
// takes it, and Logout closes it. There is no package-level state.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"workflow/backend/internal/dto"
	apperrors "workflow/backend/pkg/errors"
)

// SessionTTL is how long a session is honoured locally after issuance.
const SessionTTL = 24 * time.Hour

// ErrSessionClosed is returned without touching the network when the
// session was logged out or has expired.
var ErrSessionClosed = apperrors.New(apperrors.ErrForbidden, "session closed or expired")

// Client talks to one API base URL. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	now     func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithClock pins the clock used for session expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a client for baseURL, e.g. "http://localhost:8080/api/v1".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ── session ──

// Session is an authenticated identity. The token is opaque to the client.
type Session struct {
	User      dto.AuthResponse
	token     string
	expiresAt time.Time

	mu     sync.Mutex
	closed bool
}

// ExpiresAt is the local expiry, one day after issuance.
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }

// Close tears the session down locally. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Session) bearer(now time.Time) (string, error) {
	if s == nil {
		return "", ErrSessionClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !now.Before(s.expiresAt) {
		return "", ErrSessionClosed
	}
	return s.token, nil
}

// Login opens a session.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	var resp dto.AuthResponse
	if err := c.do(ctx, nil, http.MethodPost, "/auth/login", dto.LoginRequest{Username: username, Password: password}, &resp); err != nil {
		return nil, err
	}
	return c.newSession(resp), nil
}

// Register creates a student account and opens a session for it.
func (c *Client) Register(ctx context.Context, req dto.RegisterRequest) (*Session, error) {
	var resp dto.AuthResponse
	if err := c.do(ctx, nil, http.MethodPost, "/auth/register", req, &resp); err != nil {
		return nil, err
	}
	return c.newSession(resp), nil
}

// Logout revokes the token server-side and then closes the session. The
// session is closed even when the server call fails.
func (c *Client) Logout(ctx context.Context, sess *Session) error {
	err := c.do(ctx, sess, http.MethodPost, "/auth/logout", nil, nil)
	if sess != nil {
		sess.Close()
	}
	return err
}

func (c *Client) newSession(resp dto.AuthResponse) *Session {
	token := resp.Token
	resp.Token = ""
	return &Session{
		User:      resp,
		token:     token,
		expiresAt: c.now().Add(SessionTTL),
	}
}

// ── transport ──

// envelope mirrors the server's {code,message,data,details} wrapper.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details json.RawMessage `json:"details"`
}

// do sends one JSON request. sess nil means an anonymous call.
func (c *Client) do(ctx context.Context, sess *Session, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	contentType := ""
	if in != nil {
		contentType = "application/json"
	}
	return c.send(ctx, sess, method, path, body, contentType, out)
}

func (c *Client) send(ctx context.Context, sess *Session, method, path string, body io.Reader, contentType string, out interface{}) error {
	var token string
	if sess != nil {
		t, err := sess.bearer(c.now())
		if err != nil {
			return err
		}
		token = t
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Upstream(method+" "+path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Upstream("read "+path, err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
			return apperrors.Upstream("decode "+path, err)
		}
	}

	if resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, env)
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return apperrors.Upstream("decode "+path, err)
		}
	}
	return nil
}
