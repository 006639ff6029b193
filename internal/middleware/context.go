// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"context"

	"github.com/oryza-labs/cat-explorer/internal/auth"
)

// identityKey is the context key for the authenticated identity.
type identityKey struct{}

// errorCodeKey is the context key for error code.
type errorCodeKey struct{}

// SetIdentity stores the authenticated identity in the context.
// Called by the authentication middleware after validating the token.
func SetIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// GetIdentity retrieves the authenticated identity from context.
// The second return value is false for anonymous requests.
func GetIdentity(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(auth.Identity)
	return id, ok
}

// SetErrorCode stores an error code in the context so the logging
// middleware can attach it to the request log line.
func SetErrorCode(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, errorCodeKey{}, code)
}

// GetErrorCode retrieves the error code from context. Returns empty
// string if not present.
func GetErrorCode(ctx context.Context) string {
	if code, ok := ctx.Value(errorCodeKey{}).(string); ok {
		return code
	}
	return ""
}
