package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/iliyamo/cinema-booking-client/internal/apierr"
)

// staticTokens is a TokenSource whose refresh swaps in a second token.
type staticTokens struct {
	token      atomic.Value
	refreshed  atomic.Int32
	refreshErr error
}

func newStaticTokens(tok string) *staticTokens {
	s := &staticTokens{}
	s.token.Store(tok)
	return s
}

func (s *staticTokens) AccessToken() string { return s.token.Load().(string) }

func (s *staticTokens) RefreshAccess(ctx context.Context) error {
	s.refreshed.Add(1)
	if s.refreshErr != nil {
		return s.refreshErr
	}
	s.token.Store("fresh-token")
	return nil
}

func newClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestDoDecodesEnvelopeData(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/movies" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"success":true,"code":200,"data":{"id":"m1","title":"Interstellar"}}`))
	}))
	t.Cleanup(srv.Close)

	var out struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	c := newClient(t, srv)
	if err := c.Do(context.Background(), http.MethodGet, "/api/movies", nil, nil, &out); err != nil {
		t.Fatalf("do: %v", err)
	}
	if out.ID != "m1" || out.Title != "Interstellar" {
		t.Fatalf("decoded %+v", out)
	}
}

func TestDoBusinessFailureIsRemoteError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"code":400,"message":"seat 1-1 is not available"}`))
	}))
	t.Cleanup(srv.Close)

	err := newClient(t, srv).Do(context.Background(), http.MethodPost, "/api/booking/create", nil, map[string]string{}, nil)
	var remote *apierr.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("err = %v (%T), want RemoteError", err, err)
	}
	if remote.Code != 400 || remote.Message != "seat 1-1 is not available" {
		t.Fatalf("remote = %+v", remote)
	}
}

func TestDoEnvelopeCode401IsAuthError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"code":401,"message":"invalid username or password"}`))
	}))
	t.Cleanup(srv.Close)

	err := newClient(t, srv).Do(context.Background(), http.MethodPost, "/api/login", nil, map[string]string{}, nil)
	var auth *apierr.AuthError
	if !errors.As(err, &auth) {
		t.Fatalf("err = %v (%T), want AuthError", err, err)
	}
}

func TestDoRefreshesOnceOn401(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") == "Bearer fresh-token" {
			w.Write([]byte(`{"success":true,"code":200}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success":false,"code":401,"message":"invalid token"}`))
	}))
	t.Cleanup(srv.Close)

	tokens := newStaticTokens("stale-token")
	c := newClient(t, srv)
	c.SetTokenSource(tokens)

	if err := c.Do(context.Background(), http.MethodGet, "/api/booking/my-orders", nil, nil, nil); err != nil {
		t.Fatalf("do: %v", err)
	}
	if got := tokens.refreshed.Load(); got != 1 {
		t.Fatalf("refreshed %d times, want 1", got)
	}
	if got := calls.Load(); got != 2 {
		t.Fatalf("server saw %d calls, want 2", got)
	}
}

func TestDoFailedRefreshIsAuthErrorWithoutRetry(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success":false,"code":401}`))
	}))
	t.Cleanup(srv.Close)

	tokens := newStaticTokens("stale-token")
	tokens.refreshErr = errors.New("refresh rejected")
	c := newClient(t, srv)
	c.SetTokenSource(tokens)

	err := c.Do(context.Background(), http.MethodGet, "/api/booking/my-orders", nil, nil, nil)
	var auth *apierr.AuthError
	if !errors.As(err, &auth) {
		t.Fatalf("err = %v (%T), want AuthError", err, err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("server saw %d calls, want 1 (no retry after failed refresh)", got)
	}
}

func TestDoWithoutRefreshNeverTouchesTokenSource(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success":false,"code":401}`))
	}))
	t.Cleanup(srv.Close)

	tokens := newStaticTokens("stale-token")
	c := newClient(t, srv)
	c.SetTokenSource(tokens)

	err := c.DoWithoutRefresh(context.Background(), http.MethodPost, "/refreshToken", nil, map[string]string{}, nil)
	var auth *apierr.AuthError
	if !errors.As(err, &auth) {
		t.Fatalf("err = %v (%T), want AuthError", err, err)
	}
	if got := tokens.refreshed.Load(); got != 0 {
		t.Fatalf("RefreshAccess called %d times, want 0", got)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("server saw %d calls, want 1", got)
	}
}

func TestDoNetworkFailureIsTransportError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	err := newClient(t, srv).Do(context.Background(), http.MethodGet, "/api/movies", nil, nil, nil)
	var te *apierr.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v (%T), want TransportError", err, err)
	}
}

func TestDoMalformedBodyIsTransportError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway error</html>"))
	}))
	t.Cleanup(srv.Close)

	err := newClient(t, srv).Do(context.Background(), http.MethodGet, "/api/movies", nil, nil, nil)
	var te *apierr.TransportError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v (%T), want TransportError", err, err)
	}
}
