package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/wilvurson/ai-chat/internal/server/auth"
)

const authCookieName = "auth_token"

type contextKey string

const principalKey contextKey = "principal"

// requireIdentity verifies the session credential and stores the principal
// in the request context. The credential is read from the auth_token cookie
// first, then from an Authorization: Bearer header for non-browser clients.
// Any failure is a plain 401.
func (s *Server) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ""
		if c, err := r.Cookie(authCookieName); err == nil {
			token = c.Value
		}
		if token == "" {
			header := r.Header.Get("Authorization")
			if after, ok := strings.CutPrefix(header, "Bearer "); ok {
				token = after
			}
		}
		if token == "" {
			respondError(w, http.StatusUnauthorized, "unauthenticated", "missing credential")
			return
		}

		principal, err := s.identity.Verify(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "unauthenticated", "invalid credential")
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFrom(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey).(auth.Principal)
	return p, ok
}

func (s *Server) setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.identity.Validity().Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
