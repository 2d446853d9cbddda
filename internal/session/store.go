// Package session issues, reads and destroys the signed cookie that carries
// the logged-in user id.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
)

// CookieName is the name of the session cookie.
const CookieName = "session"

// DefaultMaxAge bounds how long an issued cookie stays valid.
const DefaultMaxAge = 7 * 24 * time.Hour

var (
	ErrNoSession      = errors.New("no session cookie")
	ErrInvalidSession = errors.New("invalid session cookie")
	ErrEmptyUserID    = errors.New("session user id is required")
)

// Identity is the single attribute a session carries.
type Identity struct {
	UserID string `json:"userId"`
}

// Config describes how cookies are signed and scoped.
type Config struct {
	Secret string
	Secure bool
	MaxAge time.Duration
}

// Store is a cookie-backed session store. The cookie value is signed with
// the configured secret; nothing is kept server side.
type Store struct {
	codec  *securecookie.SecureCookie
	secure bool
	maxAge time.Duration
}

// NewStore creates a Store signing cookies with cfg.Secret.
func NewStore(cfg Config) *Store {
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	codec := securecookie.New([]byte(cfg.Secret), nil)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(maxAge / time.Second))

	return &Store{
		codec:  codec,
		secure: cfg.Secure,
		maxAge: maxAge,
	}
}

// Get resolves the identity carried by the request's session cookie.
func (s *Store) Get(r *http.Request) (Identity, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return Identity{}, ErrNoSession
	}

	var identity Identity
	if err := s.codec.Decode(CookieName, cookie.Value, &identity); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if identity.UserID == "" {
		return Identity{}, ErrInvalidSession
	}
	return identity, nil
}

// Commit writes a cookie binding the response to identity.
func (s *Store) Commit(w http.ResponseWriter, identity Identity) error {
	if strings.TrimSpace(identity.UserID) == "" {
		return ErrEmptyUserID
	}

	value, err := s.codec.Encode(CookieName, identity)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(s.maxAge / time.Second),
		Expires:  time.Now().Add(s.maxAge),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Destroy expires the session cookie on the client.
func (s *Store) Destroy(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
