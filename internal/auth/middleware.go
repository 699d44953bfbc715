package auth

import (
	"context"
	"net/http"
)

type contextKey string

const loginKey contextKey = "githubLogin"

// CookieName is the cookie carrying the session token.
const CookieName = "token"

// RequireAuth rejects requests without a valid session cookie with 401 and
// stores the GitHub login in the context of the rest.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			login, err := extractLogin(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithLogin(r.Context(), login)))
		})
	}
}

// OptionalAuth stores the GitHub login when a valid session cookie is
// present and lets every request through.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if login, err := extractLogin(r, tokens); err == nil && login != "" {
				r = r.WithContext(WithLogin(r.Context(), login))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithLogin returns a copy of ctx carrying login.
func WithLogin(ctx context.Context, login string) context.Context {
	return context.WithValue(ctx, loginKey, login)
}

// LoginFromContext returns the signed-in GitHub login, or ("", false) for
// anonymous requests.
func LoginFromContext(ctx context.Context) (string, bool) {
	login, ok := ctx.Value(loginKey).(string)
	return login, ok && login != ""
}

func extractLogin(r *http.Request, tokens *TokenService) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", err
	}
	return tokens.Validate(cookie.Value)
}
