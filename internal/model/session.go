package model

import "time"

// Session is the authenticated identity held by the client between
// requests.  It lives in process memory with a durable mirror so a
// restart does not lose who is logged in.
//
// Fields:
//  UserID       – backend user identifier; must survive a restart even
//                 when the identity blob does not carry it (see the
//                 dedicated storage key in the session package).
//  Username     – login name.
//  Nickname     – display name, optional.
//  Roles        – role set granted at login (e.g. "common", "admin").
//  AccessToken  – bearer token sent on authenticated requests.
//  RefreshToken – optional long-lived token used to renew access.
//  ExpiresAt    – access-token expiry; zero when the backend did not say.
type Session struct {
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	Nickname     string    `json:"nickname,omitempty"`
	Roles        []string  `json:"roles"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expires,omitempty"`
}

// Authenticated reports whether the session carries an identity.
func (s Session) Authenticated() bool { return s.UserID != "" && s.AccessToken != "" }

// Expired reports whether the access token is past its known expiry.  A
// zero expiry is treated as not expired; the backend will reject the
// token if it is wrong.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// HasRole reports whether the session carries the named role.
func (s Session) HasRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}
