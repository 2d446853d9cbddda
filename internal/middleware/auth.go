package middleware

import (
	"context"
	"net/http"

	"github.com/zhouzirui/z-chat/backend/internal/service/auth"
	"github.com/zhouzirui/z-chat/backend/internal/session"
	"github.com/zhouzirui/z-chat/backend/pkg/utils"
)

type identityKey struct{}

// IdentityFromContext returns the identity stored by RequireSession.
func IdentityFromContext(ctx context.Context) (session.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(session.Identity)
	return identity, ok
}

// RequireSession gates protected pages: visitors without a valid session are
// redirected to the login page.
func RequireSession(sessions auth.SessionReader) func(http.Handler) http.Handler {
	return gate(sessions, auth.ViewProtected, func(w http.ResponseWriter, r *http.Request, _ auth.Decision) {
		http.Redirect(w, r, auth.LoginPath, http.StatusSeeOther)
	})
}

// RequireSessionAPI gates JSON endpoints, answering 401 instead of redirecting.
func RequireSessionAPI(sessions auth.SessionReader) func(http.Handler) http.Handler {
	return gate(sessions, auth.ViewProtected, func(w http.ResponseWriter, _ *http.Request, _ auth.Decision) {
		utils.RespondError(w, http.StatusUnauthorized, "unauthorized")
	})
}

// RedirectAuthenticated sends logged-in visitors of the login page to the app.
func RedirectAuthenticated(sessions auth.SessionReader) func(http.Handler) http.Handler {
	return gate(sessions, auth.ViewLogin, func(w http.ResponseWriter, r *http.Request, _ auth.Decision) {
		http.Redirect(w, r, auth.AppPath, http.StatusSeeOther)
	})
}

func gate(sessions auth.SessionReader, view auth.View, deny func(http.ResponseWriter, *http.Request, auth.Decision)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := auth.Resolve(sessions, r)

			if decision := auth.CheckAccess(view, identity); decision != auth.Allow {
				deny(w, r, decision)
				return
			}

			if identity != nil {
				r = r.WithContext(context.WithValue(r.Context(), identityKey{}, *identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}
