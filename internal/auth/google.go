package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Google OAuth 2.0 endpoints.
const (
	GoogleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	GoogleTokenURL    = "https://oauth2.googleapis.com/token"
	GoogleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// verifierTimeout bounds each round trip to Google. Exceeding it is
// reported as ErrProviderTimeout rather than left pending.
const verifierTimeout = 10 * time.Second

// Errors surfaced by the OAuth verifier.
var (
	ErrProviderTimeout     = errors.New("identity provider timed out")
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	ErrCodeRejected        = errors.New("authorization code rejected")
)

// GoogleVerifier exchanges OAuth authorization codes with Google and
// resolves them to a verified Identity. The API layer treats it as an
// opaque capability: a request either yields an identity or nothing.
type GoogleVerifier struct {
	clientID     string
	clientSecret string
	redirectURL  string
	httpClient   *http.Client

	// Endpoint overrides for tests.
	tokenURL    string
	userinfoURL string
}

// NewGoogleVerifier creates a verifier for the given OAuth client.
func NewGoogleVerifier(clientID, clientSecret, redirectURL string) *GoogleVerifier {
	return &GoogleVerifier{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURL:  redirectURL,
		httpClient:   &http.Client{Timeout: verifierTimeout},
		tokenURL:     GoogleTokenURL,
		userinfoURL:  GoogleUserinfoURL,
	}
}

// AuthURL builds the consent-screen URL for the given anti-CSRF state.
func (v *GoogleVerifier) AuthURL(state string) string {
	q := url.Values{}
	q.Set("client_id", v.clientID)
	q.Set("redirect_uri", v.redirectURL)
	q.Set("response_type", "code")
	q.Set("scope", "openid email profile")
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	q.Set("state", state)
	return GoogleAuthURL + "?" + q.Encode()
}

// googleToken is the token endpoint response.
type googleToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// googleUserinfo is the userinfo endpoint response.
type googleUserinfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Exchange trades an authorization code for a verified Identity: one
// round trip to the token endpoint, one to userinfo.
func (v *GoogleVerifier) Exchange(ctx context.Context, code string) (*Identity, error) {
	data := url.Values{}
	data.Set("client_id", v.clientID)
	data.Set("client_secret", v.clientSecret)
	data.Set("code", code)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", v.redirectURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: %s", ErrCodeRejected, strings.TrimSpace(string(body)))
	}

	var token googleToken
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}

	return v.fetchUserinfo(ctx, token.AccessToken)
}

// fetchUserinfo resolves the access token to the user's profile.
func (v *GoogleVerifier) fetchUserinfo(ctx context.Context, accessToken string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.userinfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: userinfo returned %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var info googleUserinfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo response: %w", err)
	}
	if info.ID == "" || info.Email == "" {
		return nil, fmt.Errorf("%w: userinfo missing subject or email", ErrProviderUnavailable)
	}

	return &Identity{
		Subject: info.ID,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}, nil
}

// classifyTransportError maps client errors to the verifier taxonomy.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrProviderTimeout
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return ErrProviderTimeout
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}
