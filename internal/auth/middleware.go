package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/sakif/jsonhost/internal/model"
)

// CookieName is the session cookie that carries the signed token.
const CookieName = "token"

// contextKey is unexported so no other package can read or shadow the
// identity stored by RequireAuth.
type contextKey string

const identityKey contextKey = "identity"

// RequireAuth rejects requests without a valid session cookie with 401 and
// stores the decoded identity in the request context otherwise.
//
// The identity is trusted from the token payload; handlers that need fresh
// account data (api key, preview url) read it from the store themselves.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := extractIdentity(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the caller stored by RequireAuth.
// ok is false for anonymous requests.
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(model.Identity)
	return id, ok && id.ID != ""
}

func extractIdentity(r *http.Request, tokens *TokenService) (model.Identity, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return model.Identity{}, err
	}
	return tokens.Validate(cookie.Value)
}

// SetSessionCookie writes the session cookie. Secure should be true
// whenever the service is reached over HTTPS.
func SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie in the browser.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
