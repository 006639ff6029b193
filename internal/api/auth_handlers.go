package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/oryza-labs/cat-explorer/internal/auth"
)

// stateCookieName carries the anti-CSRF state through the OAuth
// round trip.
const stateCookieName = "oauth_state"

// stateCookieMaxAge bounds how long a pending login attempt stays valid.
const stateCookieMaxAge = 10 * time.Minute

// IdentityVerifier exchanges an OAuth authorization code for a verified
// identity.
type IdentityVerifier interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.Identity, error)
}

// TokenIssuer mints session token pairs for verified identities.
type TokenIssuer interface {
	GenerateAccessToken(id auth.Identity) (string, error)
	GenerateRefreshToken(id auth.Identity) (string, error)
	ValidateToken(tokenString string) (*auth.Claims, error)
}

// TokenPairResponse is the session payload returned after a successful
// login or refresh.
type TokenPairResponse struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	ExpiresIn    int64         `json:"expiresIn"`
	User         auth.Identity `json:"user"`
}

// RefreshRequest is the request body for POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// AuthHandlers holds dependencies for authentication endpoints.
type AuthHandlers struct {
	verifier IdentityVerifier
	tokens   TokenIssuer
	secure   bool
}

// NewAuthHandlers creates an AuthHandlers instance. secure controls the
// Secure flag on the state cookie; set it in production.
func NewAuthHandlers(verifier IdentityVerifier, tokens TokenIssuer, secure bool) *AuthHandlers {
	return &AuthHandlers{
		verifier: verifier,
		tokens:   tokens,
		secure:   secure,
	}
}

// Login handles GET /auth/login: sets the state cookie and redirects to
// the provider's consent screen.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	state := uuid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int(stateCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.verifier.AuthURL(state), http.StatusFound)
}

// Callback handles GET /auth/callback: verifies the state, exchanges
// the code for an identity, and returns a session token pair.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Login was denied at the provider")
		return
	}

	code := q.Get("code")
	if code == "" {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Missing authorization code")
		return
	}

	state := q.Get("state")
	cookie, err := r.Cookie(stateCookieName)
	if err != nil || state == "" || cookie.Value != state {
		WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "State mismatch")
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})

	identity, err := h.verifier.Exchange(r.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrProviderTimeout):
			WriteError(w, r.Context(), http.StatusGatewayTimeout, ErrCodeUpstreamTimeout, "Identity provider timed out")
		case errors.Is(err, auth.ErrProviderUnavailable):
			WriteError(w, r.Context(), http.StatusServiceUnavailable, ErrCodeUpstreamUnavailable, "Identity provider unavailable")
		case errors.Is(err, auth.ErrCodeRejected):
			WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Authorization code rejected")
		default:
			slog.ErrorContext(r.Context(), "code exchange failed", "error", err)
			WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Login failed")
		}
		return
	}

	h.writeTokenPair(w, r, *identity)
}

// Refresh handles POST /auth/refresh: trades a valid refresh token for
// a new session token pair.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	if req.RefreshToken == "" {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "refreshToken is required")
		return
	}

	claims, err := h.tokens.ValidateToken(req.RefreshToken)
	if err != nil || claims.Type != auth.TokenTypeRefresh {
		WriteError(w, r.Context(), http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid refresh token")
		return
	}

	h.writeTokenPair(w, r, claims.Identity())
}

func (h *AuthHandlers) writeTokenPair(w http.ResponseWriter, r *http.Request, identity auth.Identity) {
	accessToken, err := h.tokens.GenerateAccessToken(identity)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to sign access token", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to create session")
		return
	}

	refreshToken, err := h.tokens.GenerateRefreshToken(identity)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to sign refresh token", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to create session")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, TokenPairResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(auth.AccessTokenExpiry.Seconds()),
		User:         identity,
	})
}
