package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/iliyamo/cinema-booking-client/internal/apierr"
)

// LoginRequest carries the credentials for /api/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginData is the identity payload returned on a successful login.
// Expires arrives as a string because the backend has used both RFC 3339
// and "2006/01/02 15:04:05" formats; ExpiresAt handles both.
type LoginData struct {
	UserID       string   `json:"userId"`
	Username     string   `json:"username"`
	Nickname     string   `json:"nickname,omitempty"`
	Roles        []string `json:"roles"`
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken,omitempty"`
	Expires      string   `json:"expires,omitempty"`
}

// ExpiresAt parses the expiry timestamp.  Returns false when the field
// is absent or unparsable; callers then fall back to the token's own
// exp claim.
func (d LoginData) ExpiresAt() (time.Time, bool) {
	return parseExpires(d.Expires)
}

// RegisterRequest carries the fields for /api/register.  The username
// doubles as the user id on this backend.
type RegisterRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Nickname string `json:"nickname,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
}

// RegisterData echoes the registered identity.  Registration does not log
// the user in; a login call follows.
type RegisterData struct {
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenData is the payload of a successful token refresh.  It owns only
// token fields: identity fields are deliberately absent, which is why
// the session store re-reads the durable user-id key after a refresh.
type TokenData struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	Expires      string `json:"expires,omitempty"`
}

// ExpiresAt parses the expiry timestamp, same contract as LoginData.
func (d TokenData) ExpiresAt() (time.Time, bool) {
	return parseExpires(d.Expires)
}

// Login exchanges credentials for a session payload.  Bad credentials
// surface as an AuthError; the caller's existing session is not touched
// by this facade on failure.
func (c *Client) Login(ctx context.Context, req LoginRequest) (LoginData, error) {
	if err := c.checkRequest(req); err != nil {
		return LoginData{}, err
	}
	var data LoginData
	if err := c.t.Do(ctx, http.MethodPost, "/api/login", nil, req, &data); err != nil {
		return LoginData{}, asAuth(err)
	}
	return data, nil
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (RegisterData, error) {
	if err := c.checkRequest(req); err != nil {
		return RegisterData{}, err
	}
	var data RegisterData
	if err := c.t.Do(ctx, http.MethodPost, "/api/register", nil, req, &data); err != nil {
		return RegisterData{}, err
	}
	return data, nil
}

// RefreshToken exchanges a refresh token for fresh token material.  Any
// rejection means the session cannot be renewed and surfaces as an
// AuthError.  The request bypasses the transport's refresh-and-retry:
// this call is what that retry runs, so routing it through Do would let
// a backend answering 401 drive the client into unbounded recursion.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (TokenData, error) {
	if refreshToken == "" {
		return TokenData{}, &apierr.AuthError{Msg: "no refresh token held"}
	}
	var data TokenData
	err := c.t.DoWithoutRefresh(ctx, http.MethodPost, "/refreshToken", nil, refreshTokenRequest{RefreshToken: refreshToken}, &data)
	if err != nil {
		return TokenData{}, asAuth(err)
	}
	return data, nil
}

// asAuth narrows a generic backend rejection into AuthError; transport
// errors pass through so a flaky network is not mistaken for a bad
// credential.
func asAuth(err error) error {
	var remote *apierr.RemoteError
	if errors.As(err, &remote) {
		return &apierr.AuthError{Msg: remote.Message}
	}
	return err
}

// parseExpires accepts the two timestamp formats the backend has emitted.
func parseExpires(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006/01/02 15:04:05", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
