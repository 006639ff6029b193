package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/oryza-labs/cat-explorer/internal/auth"
)

// TokenValidator validates a session token and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeAuthError(w http.ResponseWriter, r *http.Request, message string) {
	ctx := SetErrorCode(r.Context(), "auth_failed")
	UpdateResponseContext(w, ctx)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    "auth_failed",
			"message": message,
		},
	})
}

// Authenticate requires a valid Bearer access token. The verified
// identity is placed in the request context for downstream handlers.
func Authenticate(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				writeAuthError(w, r, "missing or malformed Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				writeAuthError(w, r, "invalid or expired token")
				return
			}
			if claims.Type != auth.TokenTypeAccess {
				writeAuthError(w, r, "token is not an access token")
				return
			}

			ctx := SetIdentity(r.Context(), claims.Identity())
			UpdateResponseContext(w, ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthenticate attaches the identity when a valid access token
// is present but lets anonymous requests through. Invalid tokens are
// still rejected so a broken client fails loudly rather than silently
// losing its session.
func OptionalAuthenticate(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil || claims.Type != auth.TokenTypeAccess {
				writeAuthError(w, r, "invalid or expired token")
				return
			}

			ctx := SetIdentity(r.Context(), claims.Identity())
			UpdateResponseContext(w, ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
