// Package session holds the authenticated identity in memory and mirrors
// it into durable storage so a restart does not lose who is logged in.
//
// Two durable keys exist and are written independently: the generic
// identity blob, and a dedicated user-id key.  Identity refreshes
// rewrite the blob wholesale, so the user id gets its own key that no
// unrelated write can erase.  That separation is the load-bearing part
// of this package.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/cinema-booking-client/internal/api"
	"github.com/iliyamo/cinema-booking-client/internal/apierr"
	"github.com/iliyamo/cinema-booking-client/internal/model"
	"github.com/iliyamo/cinema-booking-client/internal/storage"
)

// Durable storage keys.  UserIDKey is deliberately separate from the
// identity blob; see the package comment.
const (
	UserInfoKey = "user-info"
	UserIDKey   = "cinema-user-id"
)

// AuthAPI is the slice of the facade the store needs.  Narrowed to an
// interface so tests can fake the backend.
type AuthAPI interface {
	Login(ctx context.Context, req api.LoginRequest) (api.LoginData, error)
	RefreshToken(ctx context.Context, refreshToken string) (api.TokenData, error)
}

// Store is the injectable session context.  Construct one at app start
// (it restores itself from durable storage), pass it where identity is
// needed, and call Logout to tear it down.  Safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	api     AuthAPI
	durable storage.Store
	log     *slog.Logger
	cur     model.Session
}

// New builds a Store over the given backend facade and durable mirror,
// restoring any identity a previous process left behind.
func New(a AuthAPI, durable storage.Store, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{api: a, durable: durable, log: log}
	s.restore()
	return s
}

// restore loads the identity blob, then overlays the dedicated user-id
// key.  The dedicated key wins: the blob may have been rewritten by a
// flow that did not carry the user id.
func (s *Store) restore() {
	if blob, ok, err := s.durable.Get(UserInfoKey); err == nil && ok {
		if err := json.Unmarshal([]byte(blob), &s.cur); err != nil {
			s.log.Warn("discarding unreadable identity blob", "error", err)
			s.cur = model.Session{}
		}
	}
	if id, ok, err := s.durable.Get(UserIDKey); err == nil && ok && id != "" {
		s.cur.UserID = id
	}
}

// Current returns a copy of the in-memory session.
func (s *Store) Current() model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// UserID returns the current user id, empty when logged out.
func (s *Store) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur.UserID
}

// SetUserID updates the in-memory identity and writes the dedicated
// durable key.  Later writes to the identity blob cannot erase it.
func (s *Store) SetUserID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur.UserID = id
	return s.durable.Set(UserIDKey, id)
}

// Login authenticates against the backend.  On success the in-memory
// identity is replaced and both durable keys are written; on failure the
// prior session is left untouched and the error propagates.
func (s *Store) Login(ctx context.Context, username, password string) (model.Session, error) {
	data, err := s.api.Login(ctx, api.LoginRequest{Username: username, Password: password})
	if err != nil {
		return model.Session{}, err
	}

	next := model.Session{
		UserID:       data.UserID,
		Username:     data.Username,
		Nickname:     data.Nickname,
		Roles:        data.Roles,
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
	}
	// The backend uses the login name as the user id; fall back to it
	// when the response omits an explicit id.
	if next.UserID == "" {
		next.UserID = data.Username
	}
	if exp, ok := data.ExpiresAt(); ok {
		next.ExpiresAt = exp
	} else if exp, ok := tokenExpiry(data.AccessToken); ok {
		next.ExpiresAt = exp
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Persist before replacing memory: a failed write must not leave the
	// store claiming an identity durable storage does not hold.
	if err := s.durable.Set(UserIDKey, next.UserID); err != nil {
		return model.Session{}, err
	}
	if err := s.writeBlob(next); err != nil {
		return model.Session{}, err
	}
	s.cur = next
	s.log.Info("logged in", "user", next.UserID)
	return next, nil
}

// Refresh renews the token pair using the held refresh token.  Token
// fields are the only thing the refresh response owns; the user id is
// re-read from its dedicated durable key afterwards so a blob rewrite
// during refresh can never drop it.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	refreshToken := s.cur.RefreshToken
	s.mu.Unlock()

	data, err := s.api.RefreshToken(ctx, refreshToken)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cur
	next.AccessToken = data.AccessToken
	if data.RefreshToken != "" {
		next.RefreshToken = data.RefreshToken
	}
	if exp, ok := data.ExpiresAt(); ok {
		next.ExpiresAt = exp
	} else if exp, ok := tokenExpiry(data.AccessToken); ok {
		next.ExpiresAt = exp
	}
	if id, ok, err := s.durable.Get(UserIDKey); err == nil && ok && id != "" {
		next.UserID = id
	}
	if err := s.writeBlob(next); err != nil {
		return err
	}
	s.cur = next
	return nil
}

// Logout clears the in-memory identity and removes every identity
// artifact from durable storage.  After it returns, nothing recoverable
// remains.
func (s *Store) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.cur.UserID
	s.cur = model.Session{}
	if err := s.durable.Delete(UserIDKey); err != nil {
		return err
	}
	if err := s.durable.Delete(UserInfoKey); err != nil {
		return err
	}
	s.log.Info("logged out", "user", user)
	return nil
}

// AccessToken implements transport.TokenSource.
func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur.AccessToken
}

// RefreshAccess implements transport.TokenSource; the transport client
// calls it exactly once per rejected request.  A refresh the backend
// refuses means the session cannot be renewed: it is torn down rather
// than kept around sending a dead token.  Network failures keep the
// session; the refresh token may still be good.
func (s *Store) RefreshAccess(ctx context.Context) error {
	err := s.Refresh(ctx)
	var auth *apierr.AuthError
	if errors.As(err, &auth) {
		if lerr := s.Logout(); lerr != nil {
			s.log.Warn("clearing dead session", "error", lerr)
		}
	}
	return err
}

// writeBlob persists the given session as the identity blob.  Caller
// holds the lock.
func (s *Store) writeBlob(sess model.Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.durable.Set(UserInfoKey, string(b))
}

// tokenExpiry extracts the exp claim from an access token without
// verifying the signature; the client never holds the signing secret,
// it only needs the timestamp.  Returns false for opaque tokens.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
