// Package transport issues HTTP requests against the cinema backend and
// decodes its response envelope.  Every call resolves to a typed result
// or an error from the apierr taxonomy; nothing is swallowed here.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iliyamo/cinema-booking-client/internal/apierr"
)

// TokenSource supplies the bearer token attached to authenticated
// requests and knows how to renew it.  The session store implements it;
// the indirection keeps transport free of a session dependency.
type TokenSource interface {
	AccessToken() string
	RefreshAccess(ctx context.Context) error
}

// envelope is the backend's uniform response shape.  Data stays raw until
// the caller's target type is known.
type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client is a thin wrapper over http.Client bound to one backend base
// URL.  Safe for concurrent use once constructed.
type Client struct {
	base   *url.URL
	http   *http.Client
	tokens TokenSource
	log    *slog.Logger
}

// Option customizes a Client at construction time.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying http.Client entirely.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger attaches a structured logger; requests are logged at debug.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New builds a Client for the given base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, apierr.Validation("invalid base URL %q: %v", baseURL, err)
	}
	c := &Client{
		base: u,
		http: &http.Client{Timeout: 10 * time.Second},
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetTokenSource wires the session store in after construction.  The
// session store itself talks through this client, so the two are built
// first and connected second.
func (c *Client) SetTokenSource(ts TokenSource) { c.tokens = ts }

// BaseURL returns the backend base URL the client was built with.
func (c *Client) BaseURL() string { return c.base.String() }

// Do issues one request and decodes the envelope's data field into out
// (which may be nil when the caller only cares about success).  A 401
// triggers exactly one token refresh and retry; any further rejection
// surfaces as an AuthError.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	return c.do(ctx, method, path, query, body, out, true)
}

// DoWithoutRefresh issues a request that never triggers the token
// refresh-and-retry.  The refresh call itself must go through here: it
// is issued from inside RefreshAccess, so letting a 401 on it trigger
// another refresh would recurse without bound.
func (c *Client) DoWithoutRefresh(ctx context.Context, method, path string, query url.Values, body, out any) error {
	return c.do(ctx, method, path, query, body, out, false)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, allowRefresh bool) error {
	op := method + " " + path

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return apierr.Validation("%s: encode request body: %v", op, err)
		}
		payload = b
	}

	status, raw, err := c.send(ctx, method, path, query, payload)
	if err != nil {
		return &apierr.TransportError{Op: op, Err: err}
	}

	if status == http.StatusUnauthorized && allowRefresh && c.tokens != nil {
		if rerr := c.tokens.RefreshAccess(ctx); rerr != nil {
			// Taxonomy errors from the token source pass through so a
			// network blip during refresh is not mistaken for a dead
			// session; anything else means the credential is unusable.
			var auth *apierr.AuthError
			var te *apierr.TransportError
			if errors.As(rerr, &auth) || errors.As(rerr, &te) {
				return rerr
			}
			return &apierr.AuthError{Msg: "token refresh failed: " + rerr.Error()}
		}
		c.log.Debug("retrying after token refresh", "op", op)
		status, raw, err = c.send(ctx, method, path, query, payload)
		if err != nil {
			return &apierr.TransportError{Op: op, Err: err}
		}
	}
	if status == http.StatusUnauthorized {
		return &apierr.AuthError{Msg: op + ": unauthorized"}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if status >= 500 {
			return &apierr.TransportError{Op: op, Err: errors.New(http.StatusText(status))}
		}
		return &apierr.TransportError{Op: op, Err: errors.New("malformed response body")}
	}

	if !env.Success {
		if env.Code == http.StatusUnauthorized {
			return &apierr.AuthError{Msg: env.Message}
		}
		code := env.Code
		if code == 0 {
			code = status
		}
		return &apierr.RemoteError{Code: code, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &apierr.TransportError{Op: op, Err: err}
		}
	}
	return nil
}

// send performs a single HTTP exchange and returns the status and body.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte) (int, []byte, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		if tok := c.tokens.AccessToken(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	c.log.Debug("request",
		"method", method, "path", path,
		"status", resp.StatusCode, "duration", time.Since(start))
	return resp.StatusCode, raw, nil
}
