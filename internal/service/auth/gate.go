package auth

import (
	"errors"
	"log"
	"net/http"

	"github.com/zhouzirui/z-chat/backend/internal/session"
)

// View classifies a requested page for the gate.
type View int

const (
	// ViewProtected requires a logged-in user.
	ViewProtected View = iota
	// ViewLogin is the login entry point.
	ViewLogin
)

// Decision is the outcome of CheckAccess.
type Decision int

const (
	Allow Decision = iota
	RedirectToLogin
	RedirectToApp
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "redirect-to-login"
	case RedirectToApp:
		return "redirect-to-app"
	default:
		return "unknown"
	}
}

// Paths the gate redirects to.
const (
	LoginPath = "/login"
	AppPath   = "/chat"
)

// CheckAccess decides whether view is reachable for identity. A nil identity
// means the session could not be resolved.
func CheckAccess(view View, identity *session.Identity) Decision {
	switch {
	case view == ViewProtected && identity == nil:
		return RedirectToLogin
	case view == ViewLogin && identity != nil:
		return RedirectToApp
	default:
		return Allow
	}
}

// SessionReader is the read side of the session store.
type SessionReader interface {
	Get(r *http.Request) (session.Identity, error)
}

// Resolve looks up the identity for r. Any failure, including a tampered
// cookie, yields nil.
func Resolve(sessions SessionReader, r *http.Request) *session.Identity {
	identity, err := sessions.Get(r)
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			log.Printf("[auth] rejecting session cookie: %v", err)
		}
		return nil
	}
	return &identity
}
