package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const claimsKey contextKey = "auth.claims"

// ClaimsFrom returns the verified claims attached to a request, if any.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

// Subject returns the token subject for audit attribution, or "anonymous"
// when auth is disabled.
func Subject(ctx context.Context) string {
	if c, ok := ClaimsFrom(ctx); ok && c.Subject != "" {
		return c.Subject
	}
	return "anonymous"
}

// Require returns middleware enforcing a bearer token carrying scope. A nil
// verifier disables enforcement entirely.
func Require(v *Verifier, scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if v == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				deny(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
				return
			}
			claims, err := v.Verify(raw)
			if err != nil {
				deny(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
				return
			}
			if !claims.HasScope(scope) {
				deny(w, http.StatusForbidden, "FORBIDDEN", "token lacks scope "+scope)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func deny(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"result":  "ERROR",
		"code":    code,
		"message": message,
	})
}
