package httpapi

import (
	"net/http"
	"time"

	"vendorhub.org/internal/auth"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "vh_session"

var publicPaths = []string{
	"/v1/auth/register",
	"/v1/auth/login",
	"/v1/documents/fetch",
	"/metrics",
	"/healthz",
	"/readyz",
	"/",
}

// withSession resolves the session cookie into claims on the request
// context. Public paths pass through untouched; everything else requires a
// verifiable session. A missing cookie and an invalid token are both 401,
// but only the latter advertises the failed credential.
func (a *API) withSession(next http.Handler) http.Handler {
	if a == nil || a.sessions == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}

		claims, err := a.sessions.Verify(cookie.Value)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Cookie")
			writeError(w, r, http.StatusUnauthorized, "invalid session")
			return
		}

		ctx := auth.ContextWithClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole returns 403 unless the session role is one of the allowed
// roles. It assumes withSession already ran; a missing session is a 401.
func RequireRole(next http.HandlerFunc, roles ...auth.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "authentication required")
			return
		}
		for _, role := range roles {
			if claims.Role == role {
				next(w, r)
				return
			}
		}
		writeError(w, r, http.StatusForbidden, "insufficient role")
	}
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

func (a *API) setSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}
