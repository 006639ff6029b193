package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// newFakeGoogle stands in for the token and userinfo endpoints.
func newFakeGoogle(t *testing.T, tokenStatus, userinfoStatus int) *GoogleVerifier {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("token request parse: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q", got)
		}
		if tokenStatus != http.StatusOK {
			w.WriteHeader(tokenStatus)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"fake-access-token","token_type":"Bearer","expires_in":3599}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer fake-access-token" {
			t.Errorf("userinfo authorization = %q", got)
		}
		if userinfoStatus != http.StatusOK {
			w.WriteHeader(userinfoStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"108","email":"user@example.com","name":"Cat Fancier","picture":"https://example.com/p.jpg"}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	v := NewGoogleVerifier("client-id", "client-secret", "https://app.example.com/auth/callback")
	v.tokenURL = server.URL + "/token"
	v.userinfoURL = server.URL + "/userinfo"
	return v
}

func TestAuthURL(t *testing.T) {
	v := NewGoogleVerifier("client-id", "client-secret", "https://app.example.com/auth/callback")

	raw := v.AuthURL("anti-csrf-state")
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("AuthURL() not parseable: %v", err)
	}
	if !strings.HasPrefix(raw, GoogleAuthURL+"?") {
		t.Errorf("AuthURL() = %q, want %q prefix", raw, GoogleAuthURL)
	}

	q := parsed.Query()
	want := map[string]string{
		"client_id":     "client-id",
		"redirect_uri":  "https://app.example.com/auth/callback",
		"response_type": "code",
		"state":         "anti-csrf-state",
	}
	for k, v := range want {
		if got := q.Get(k); got != v {
			t.Errorf("query %s = %q, want %q", k, got, v)
		}
	}
	if !strings.Contains(q.Get("scope"), "email") {
		t.Errorf("scope = %q, want email included", q.Get("scope"))
	}
}

func TestExchange(t *testing.T) {
	v := newFakeGoogle(t, http.StatusOK, http.StatusOK)

	id, err := v.Exchange(t.Context(), "auth-code")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if id.Subject != "108" || id.Email != "user@example.com" {
		t.Errorf("Exchange() identity = %+v", id)
	}
	if id.Name != "Cat Fancier" {
		t.Errorf("name = %q", id.Name)
	}
}

func TestExchangeCodeRejected(t *testing.T) {
	v := newFakeGoogle(t, http.StatusBadRequest, http.StatusOK)

	if _, err := v.Exchange(t.Context(), "bad-code"); !errors.Is(err, ErrCodeRejected) {
		t.Errorf("Exchange() error = %v, want ErrCodeRejected", err)
	}
}

func TestExchangeUserinfoUnavailable(t *testing.T) {
	v := newFakeGoogle(t, http.StatusOK, http.StatusInternalServerError)

	if _, err := v.Exchange(t.Context(), "auth-code"); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Exchange() error = %v, want ErrProviderUnavailable", err)
	}
}

func TestExchangeProviderDown(t *testing.T) {
	v := NewGoogleVerifier("client-id", "client-secret", "https://app.example.com/auth/callback")
	v.tokenURL = "http://127.0.0.1:1/token"

	if _, err := v.Exchange(t.Context(), "auth-code"); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Exchange() error = %v, want ErrProviderUnavailable", err)
	}
}
