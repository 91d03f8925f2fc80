package stub

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// TokenConfig controls stub token issuance.
type TokenConfig struct {
	Secret         string
	AccessTTLMin   int
	RefreshTTLDays int
}

// Identity is what a successful login or refresh yields.
type Identity struct {
	UserID       string
	Username     string
	Nickname     string
	Roles        []string
	AccessToken  string
	RefreshToken string
	Expires      time.Time
}

// Register creates a user account.  The username doubles as the user id.
func (w *World) Register(username, password, nickname, phone, email string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), w.opts.BcryptCost)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.users[username]; ok {
		return ErrUserExists
	}
	w.users[username] = &user{
		id:           username,
		nickname:     nickname,
		phone:        phone,
		email:        email,
		passwordHash: hash,
	}
	return nil
}

// Login verifies credentials and issues a token pair.
func (w *World) Login(username, password string, tc TokenConfig) (Identity, error) {
	w.mu.Lock()
	u, ok := w.users[username]
	w.mu.Unlock()
	if !ok {
		return Identity{}, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.passwordHash, []byte(password)); err != nil {
		return Identity{}, ErrBadCredentials
	}
	return w.issueTokens(u, tc)
}

// RefreshTokens validates a refresh token by hash, revokes it and issues
// a new pair (rotation, same as the production auth service).
func (w *World) RefreshTokens(raw string, tc TokenConfig) (Identity, error) {
	hash := hashRefreshRaw(raw)
	w.mu.Lock()
	rec, ok := w.refresh[hash]
	if ok {
		delete(w.refresh, hash)
	}
	u := w.users[rec.userID]
	w.mu.Unlock()

	if !ok || w.opts.Now().After(rec.expires) || u == nil {
		return Identity{}, ErrBadCredentials
	}
	return w.issueTokens(u, tc)
}

func (w *World) issueTokens(u *user, tc TokenConfig) (Identity, error) {
	exp := w.opts.Now().Add(time.Duration(tc.AccessTTLMin) * time.Minute)
	role := "common"
	if u.admin {
		role = "admin"
	}
	claims := jwt.MapClaims{
		"sub":  u.id,
		"role": role,
		"exp":  exp.Unix(),
		"iat":  w.opts.Now().Unix(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(tc.Secret))
	if err != nil {
		return Identity{}, err
	}

	refreshRaw, err := randomHex(32)
	if err != nil {
		return Identity{}, err
	}
	refreshExp := w.opts.Now().Add(time.Duration(tc.RefreshTTLDays) * 24 * time.Hour)

	w.mu.Lock()
	w.refresh[hashRefreshRaw(refreshRaw)] = refreshRecord{userID: u.id, expires: refreshExp}
	w.mu.Unlock()

	return Identity{
		UserID:       u.id,
		Username:     u.id,
		Nickname:     u.nickname,
		Roles:        []string{role},
		AccessToken:  access,
		RefreshToken: refreshRaw,
		Expires:      exp,
	}, nil
}

// hashRefreshRaw stores only a SHA-256 digest of the refresh token so a
// leaked world dump cannot renew sessions.
func hashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
