package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testIdentity = Identity{Subject: "google|123", Email: "user@example.com"}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	svc := NewJWTService("test-secret")

	token, err := svc.GenerateAccessToken(testIdentity)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Subject != testIdentity.Subject {
		t.Errorf("subject = %q, want %q", claims.Subject, testIdentity.Subject)
	}
	if claims.Email != testIdentity.Email {
		t.Errorf("email = %q, want %q", claims.Email, testIdentity.Email)
	}
	if claims.Type != TokenTypeAccess {
		t.Errorf("typ = %q, want %q", claims.Type, TokenTypeAccess)
	}

	id := claims.Identity()
	if id != (Identity{Subject: testIdentity.Subject, Email: testIdentity.Email}) {
		t.Errorf("Identity() = %+v", id)
	}
}

func TestGenerateRefreshToken(t *testing.T) {
	svc := NewJWTService("test-secret")

	token, err := svc.GenerateRefreshToken(testIdentity)
	if err != nil {
		t.Fatalf("GenerateRefreshToken() error = %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Type != TokenTypeRefresh {
		t.Errorf("typ = %q, want %q", claims.Type, TokenTypeRefresh)
	}
	if until := time.Until(claims.ExpiresAt.Time); until < 6*24*time.Hour {
		t.Errorf("refresh expiry in %v, want about 7 days", until)
	}
}

func TestGenerateTokenEmptySubject(t *testing.T) {
	svc := NewJWTService("test-secret")

	if _, err := svc.GenerateAccessToken(Identity{Email: "no-subject@example.com"}); !errors.Is(err, ErrEmptySubject) {
		t.Errorf("GenerateAccessToken() error = %v, want ErrEmptySubject", err)
	}
	if _, err := svc.GenerateRefreshToken(Identity{}); !errors.Is(err, ErrEmptySubject) {
		t.Errorf("GenerateRefreshToken() error = %v, want ErrEmptySubject", err)
	}
}

func TestValidateTokenRejections(t *testing.T) {
	svc := NewJWTService("test-secret")
	other := NewJWTService("different-secret")

	token, err := other.GenerateAccessToken(testIdentity)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", token},
		{"garbage", "not.a.token"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.ValidateToken(tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ValidateToken() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestValidateTokenRejectsWrongAlgorithm(t *testing.T) {
	svc := NewJWTService("test-secret")

	// alg=none tokens must never validate, whatever their claims say.
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "google|123",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Type: TokenTypeAccess,
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateToken(alg=none) error = %v, want ErrInvalidToken", err)
	}
}

func TestValidateTokenExpired(t *testing.T) {
	svc := NewJWTService("test-secret")

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "google|123",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		Type: TokenTypeAccess,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("ValidateToken(expired) error = %v, want ErrExpiredToken", err)
	}
}

func TestSecretRotation(t *testing.T) {
	oldSvc := NewJWTService("old-secret")
	oldToken, err := oldSvc.GenerateAccessToken(testIdentity)
	if err != nil {
		t.Fatal(err)
	}

	rotated := NewJWTServiceWithRotation("new-secret", "old-secret")

	// Tokens signed with the previous secret stay valid during rotation.
	if _, err := rotated.ValidateToken(oldToken); err != nil {
		t.Errorf("ValidateToken(old token) error = %v", err)
	}

	// New tokens are signed with the current secret.
	newToken, err := rotated.GenerateAccessToken(testIdentity)
	if err != nil {
		t.Fatal(err)
	}
	currentOnly := NewJWTService("new-secret")
	if _, err := currentOnly.ValidateToken(newToken); err != nil {
		t.Errorf("new token not signed with current secret: %v", err)
	}

	// After rotation completes the old secret is dropped.
	completed := NewJWTServiceWithRotation("new-secret", "")
	if _, err := completed.ValidateToken(oldToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ValidateToken(old token, rotation complete) error = %v, want ErrInvalidToken", err)
	}
}
